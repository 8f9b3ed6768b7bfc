package gallerypress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sendGridBaseURL = "https://api.sendgrid.com"

// MailClient submits mail to the SendGrid v3 API. One call per job; no retry
// state is retained after the call returns.
type MailClient struct {
	apiKey     string
	from       string
	bcc        string
	httpClient *http.Client

	baseURL string // overrides the SendGrid endpoint in tests
}

// NewMailClient builds a client from configuration.
func NewMailClient(cfg Config) *MailClient {
	return &MailClient{
		apiKey:     cfg.SendGridKey,
		from:       cfg.MailFrom,
		bcc:        cfg.MailBCC,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *MailClient) base() string {
	if m.baseURL != "" {
		return m.baseURL
	}
	return sendGridBaseURL
}

// Send submits one email. Any non-2xx response is an *UpstreamError.
func (m *MailClient) Send(ctx context.Context, job EmailJob) error {
	personalization := map[string]any{
		"to": []map[string]string{{"email": job.To}},
	}
	// SendGrid rejects a BCC that duplicates the recipient.
	if m.bcc != "" && !strings.EqualFold(m.bcc, job.To) {
		personalization["bcc"] = []map[string]string{{"email": m.bcc}}
	}
	payload := map[string]any{
		"personalizations": []map[string]any{personalization},
		"from":             map[string]string{"email": m.from},
		"subject":          job.Subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": job.TextBody},
			{"type": "text/html", "value": job.HTMLBody},
		},
	}
	if len(job.Attachment.Content) > 0 {
		payload["attachments"] = []map[string]string{{
			"content":     base64.StdEncoding.EncodeToString(job.Attachment.Content),
			"filename":    job.Attachment.Filename,
			"type":        job.Attachment.MIMEType,
			"disposition": "attachment",
		}}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.base()+"/v3/mail/send", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
		return &UpstreamError{Status: resp.StatusCode, Body: string(data)}
	}
	return nil
}
