package gallerypress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// GraphQL documents for the staged-upload flow. The three-step sequence is
// dictated by the platform's API contract: request a temporary target,
// upload the raw bytes there, then register the staged resource as a file.
const (
	stagedUploadsCreateMutation = `mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets { url resourceUrl parameters { name value } }
    userErrors { field message }
  }
}`

	fileCreateMutation = `mutation fileCreate($files: [FileCreateInput!]!) {
  fileCreate(files: $files) {
    files { ... on MediaImage { image { url } } }
    userErrors { field message }
  }
}`

	fileByNameQuery = `query fileByName($query: String!) {
  files(first: 1, query: $query) {
    nodes { ... on MediaImage { image { url } } }
  }
}`
)

type stagedTarget struct {
	URL         string `json:"url"`
	ResourceURL string `json:"resourceUrl"`
	Parameters  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"parameters"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// stagedUploader implements the two-phase upload pattern: stage, post,
// register, then poll the file query until the platform has indexed the
// image and exposes its URL.
type stagedUploader struct {
	client     *ShopifyClient
	httpClient *http.Client // unauthenticated client for the staged target
	poll       poller
}

func newStagedUploader(client *ShopifyClient) *stagedUploader {
	return &stagedUploader{
		client:     client,
		httpClient: client.httpClient,
		poll:       newPoller(),
	}
}

func (u *stagedUploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	target, err := u.stage(ctx, filename, len(data))
	if err != nil {
		return "", err
	}
	if err := u.post(ctx, target, filename, data); err != nil {
		return "", err
	}
	url, err := u.register(ctx, target.ResourceURL, filename)
	if err != nil {
		return "", err
	}
	if url != "" {
		return url, nil
	}
	return u.poll.wait(ctx, func() (string, bool, error) {
		return u.lookup(ctx, filename)
	})
}

// stage requests a temporary upload target and its one-time form parameters.
func (u *stagedUploader) stage(ctx context.Context, filename string, size int) (stagedTarget, error) {
	var out struct {
		StagedUploadsCreate struct {
			StagedTargets []stagedTarget `json:"stagedTargets"`
			UserErrors    []userError    `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	}
	variables := map[string]any{
		"input": []map[string]any{{
			"resource":   "FILE",
			"filename":   filename,
			"mimeType":   "image/png",
			"fileSize":   fmt.Sprintf("%d", size),
			"httpMethod": "POST",
		}},
	}
	if err := u.client.graphql(ctx, stagedUploadsCreateMutation, variables, &out); err != nil {
		return stagedTarget{}, fmt.Errorf("staged upload create: %w", err)
	}
	if len(out.StagedUploadsCreate.UserErrors) > 0 {
		return stagedTarget{}, fmt.Errorf("staged upload create: %s", out.StagedUploadsCreate.UserErrors[0].Message)
	}
	if len(out.StagedUploadsCreate.StagedTargets) == 0 {
		return stagedTarget{}, fmt.Errorf("staged upload create: no staged target returned")
	}
	return out.StagedUploadsCreate.StagedTargets[0], nil
}

// post submits the raw bytes as a multipart form to the staged target. The
// one-time parameters must precede the file field.
func (u *stagedUploader) post(ctx context.Context, target stagedTarget, filename string, data []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range target.Parameters {
		if err := mw.WriteField(p.Name, p.Value); err != nil {
			return fmt.Errorf("write form field: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post staged upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
		return &UpstreamError{Status: resp.StatusCode, Body: string(data)}
	}
	return nil
}

// register turns the staged resource into a platform-managed file. The URL
// is frequently absent here because indexing is asynchronous.
func (u *stagedUploader) register(ctx context.Context, resourceURL, filename string) (string, error) {
	var out struct {
		FileCreate struct {
			Files []struct {
				Image struct {
					URL string `json:"url"`
				} `json:"image"`
			} `json:"files"`
			UserErrors []userError `json:"userErrors"`
		} `json:"fileCreate"`
	}
	variables := map[string]any{
		"files": []map[string]any{{
			"originalSource": resourceURL,
			"contentType":    "IMAGE",
			"alt":            filename,
		}},
	}
	if err := u.client.graphql(ctx, fileCreateMutation, variables, &out); err != nil {
		return "", fmt.Errorf("file create: %w", err)
	}
	if len(out.FileCreate.UserErrors) > 0 {
		return "", fmt.Errorf("file create: %s", out.FileCreate.UserErrors[0].Message)
	}
	if len(out.FileCreate.Files) > 0 {
		return out.FileCreate.Files[0].Image.URL, nil
	}
	return "", nil
}

func (u *stagedUploader) lookup(ctx context.Context, filename string) (string, bool, error) {
	var out struct {
		Files struct {
			Nodes []struct {
				Image struct {
					URL string `json:"url"`
				} `json:"image"`
			} `json:"nodes"`
		} `json:"files"`
	}
	variables := map[string]any{"query": "filename:" + filename}
	if err := u.client.graphql(ctx, fileByNameQuery, variables, &out); err != nil {
		return "", false, err
	}
	for _, n := range out.Files.Nodes {
		if n.Image.URL != "" {
			return n.Image.URL, true, nil
		}
	}
	return "", false, nil
}
