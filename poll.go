package gallerypress

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout marks a polling window that elapsed without the watched
// value appearing. It is distinct from an explicit upstream rejection.
var ErrPollTimeout = errors.New("polling window elapsed")

const (
	defaultPollInterval = 800 * time.Millisecond
	defaultPollAttempts = 20
)

// poller evaluates a predicate at a fixed interval until it yields a value
// or the attempt budget is spent. sleep is injectable so tests run without
// real delays.
type poller struct {
	interval    time.Duration
	maxAttempts int
	sleep       func(time.Duration)
}

func newPoller() poller {
	return poller{
		interval:    defaultPollInterval,
		maxAttempts: defaultPollAttempts,
		sleep:       time.Sleep,
	}
}

// wait runs fn up to maxAttempts times, sleeping one interval between
// attempts. fn reports (value, done, err): done ends polling with the value,
// an error aborts immediately, anything else means "not yet".
func (p poller) wait(ctx context.Context, fn func() (string, bool, error)) (string, error) {
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			p.sleep(p.interval)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, done, err := fn()
		if err != nil {
			return "", err
		}
		if done {
			return v, nil
		}
	}
	return "", ErrPollTimeout
}
