package gallerypress

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPoller(maxAttempts int, slept *int) poller {
	return poller{
		interval:    time.Millisecond,
		maxAttempts: maxAttempts,
		sleep:       func(time.Duration) { *slept++ },
	}
}

func TestPollerReturnsValueOnLaterAttempt(t *testing.T) {
	var slept, calls int
	p := testPoller(5, &slept)

	v, err := p.wait(context.Background(), func() (string, bool, error) {
		calls++
		if calls == 3 {
			return "found", true, nil
		}
		return "", false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "found" {
		t.Errorf("value = %q, want %q", v, "found")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if slept != 2 {
		t.Errorf("slept = %d, want 2 (no sleep before the first attempt)", slept)
	}
}

func TestPollerTimesOutAfterMaxAttempts(t *testing.T) {
	var slept, calls int
	p := testPoller(4, &slept)

	_, err := p.wait(context.Background(), func() (string, bool, error) {
		calls++
		return "", false, nil
	})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want exactly maxAttempts", calls)
	}
}

func TestPollerAbortsOnError(t *testing.T) {
	var slept int
	p := testPoller(10, &slept)
	boom := errors.New("boom")

	_, err := p.wait(context.Background(), func() (string, bool, error) {
		return "", false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestPollerHonorsContextCancellation(t *testing.T) {
	var slept int
	p := testPoller(10, &slept)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := p.wait(ctx, func() (string, bool, error) {
		calls++
		cancel()
		return "", false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
