package gallerypress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxUpstreamBody = 512 // truncation limit for error diagnostics

// UpstreamError is a non-success response from an external platform. The
// upstream status and a truncated response body are preserved for diagnosis;
// these calls are never retried automatically.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// ShopifyClient talks to the Shopify admin API for one store. All calls
// authenticate with the static access token header.
type ShopifyClient struct {
	shopDomain  string
	accessToken string
	apiVersion  string
	blogID      string
	httpClient  *http.Client

	baseURL string // overrides https://{shopDomain} in tests
}

// NewShopifyClient builds a client from configuration.
func NewShopifyClient(cfg Config) *ShopifyClient {
	return &ShopifyClient{
		shopDomain:  cfg.ShopDomain,
		accessToken: cfg.AccessToken,
		apiVersion:  cfg.APIVersion,
		blogID:      cfg.BlogID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ShopifyClient) base() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + c.shopDomain
}

func (c *ShopifyClient) restURL(path string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.base(), c.apiVersion, path)
}

// doJSON performs an authenticated JSON request. A non-2xx status becomes an
// *UpstreamError; on success the body is decoded into out when non-nil.
func (c *ShopifyClient) doJSON(ctx context.Context, method, url string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Status: resp.StatusCode, Body: truncate(string(data), maxUpstreamBody)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// graphql posts a query to the admin GraphQL endpoint and decodes the data
// object into out. Top-level GraphQL errors are surfaced as plain errors.
func (c *ShopifyClient) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	payload := map[string]any{"query": query, "variables": variables}
	if err := c.doJSON(ctx, http.MethodPost, c.restURL("graphql.json"), payload, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

// CreateArticle submits a composed article to the blog. The blog handle is
// looked up best-effort so the caller can derive the canonical URL; a failed
// lookup leaves BlogHandle empty and the URL underived.
func (c *ShopifyClient) CreateArticle(ctx context.Context, title, bodyHTML, tags string, publish bool) (ArticleRecord, error) {
	payload := map[string]any{
		"article": map[string]any{
			"title":     title,
			"body_html": bodyHTML,
			"tags":      tags,
			"published": publish,
		},
	}
	var out struct {
		Article struct {
			ID     int64  `json:"id"`
			Handle string `json:"handle"`
		} `json:"article"`
	}
	url := c.restURL(fmt.Sprintf("blogs/%s/articles.json", c.blogID))
	if err := c.doJSON(ctx, http.MethodPost, url, payload, &out); err != nil {
		return ArticleRecord{}, fmt.Errorf("create article: %w", err)
	}
	rec := ArticleRecord{ID: out.Article.ID, Handle: out.Article.Handle}
	if handle, err := c.blogHandle(ctx); err == nil {
		rec.BlogHandle = handle
	}
	return rec, nil
}

func (c *ShopifyClient) blogHandle(ctx context.Context) (string, error) {
	var out struct {
		Blog struct {
			Handle string `json:"handle"`
		} `json:"blog"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.restURL(fmt.Sprintf("blogs/%s.json", c.blogID)), nil, &out); err != nil {
		return "", err
	}
	return out.Blog.Handle, nil
}

// CreateMetafield attaches a private single-line field to an article.
func (c *ShopifyClient) CreateMetafield(ctx context.Context, articleID int64, namespace, key, value string) error {
	payload := map[string]any{
		"metafield": map[string]any{
			"namespace": namespace,
			"key":       key,
			"type":      "single_line_text_field",
			"value":     value,
		},
	}
	url := c.restURL(fmt.Sprintf("articles/%d/metafields.json", articleID))
	if err := c.doJSON(ctx, http.MethodPost, url, payload, nil); err != nil {
		return fmt.Errorf("create metafield: %w", err)
	}
	return nil
}

// FileUploader resolves raw image bytes into a durable public URL on the
// platform's file storage. Implementations are chosen once at startup.
type FileUploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
