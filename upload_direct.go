package gallerypress

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
)

// directUploader submits the encoded bytes to the file-creation endpoint in
// one call. The platform may index the file asynchronously, so a creation
// response without a URL falls back to polling the file listing by filename.
type directUploader struct {
	client *ShopifyClient
	poll   poller
}

func newDirectUploader(client *ShopifyClient) *directUploader {
	return &directUploader{client: client, poll: newPoller()}
}

func (u *directUploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	payload := map[string]any{
		"file": map[string]any{
			"attachment": base64.StdEncoding.EncodeToString(data),
			"filename":   filename,
		},
	}
	var out struct {
		File struct {
			URL string `json:"url"`
		} `json:"file"`
	}
	if err := u.client.doJSON(ctx, http.MethodPost, u.client.restURL("files.json"), payload, &out); err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if out.File.URL != "" {
		return out.File.URL, nil
	}
	return u.poll.wait(ctx, func() (string, bool, error) {
		return u.lookup(ctx, filename)
	})
}

// lookup checks the file listing for an entry matching filename that has a
// resolved URL.
func (u *directUploader) lookup(ctx context.Context, filename string) (string, bool, error) {
	var out struct {
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"files"`
	}
	listURL := u.client.restURL("files.json") + "?filename=" + url.QueryEscape(filename)
	if err := u.client.doJSON(ctx, http.MethodGet, listURL, nil, &out); err != nil {
		return "", false, err
	}
	for _, f := range out.Files {
		if f.Filename == filename && f.URL != "" {
			return f.URL, true, nil
		}
	}
	return "", false, nil
}
