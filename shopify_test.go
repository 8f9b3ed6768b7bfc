package gallerypress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *ShopifyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewShopifyClient(Config{
		ShopDomain:  "example.myshopify.com",
		AccessToken: "test-token",
		APIVersion:  "2024-01",
		BlogID:      "42",
	})
	client.baseURL = srv.URL
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateArticleDerivesCanonicalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/api/2024-01/blogs/42/articles.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "test-token" {
			t.Errorf("access token header = %q", got)
		}
		var body struct {
			Article struct {
				Title     string `json:"title"`
				BodyHTML  string `json:"body_html"`
				Published bool   `json:"published"`
			} `json:"article"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode article payload: %v", err)
		}
		if body.Article.Title != "Mosaic by brickfan" {
			t.Errorf("title = %q", body.Article.Title)
		}
		if body.Article.Published {
			t.Errorf("expected draft article")
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"article": map[string]any{"id": 1001, "handle": "mosaic-by-brickfan"},
		})
	})
	mux.HandleFunc("GET /admin/api/2024-01/blogs/42.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"blog": map[string]any{"handle": "community-mosaics"}})
	})
	client := newTestClient(t, mux)

	rec, err := client.CreateArticle(context.Background(), "Mosaic by brickfan", "<p>body</p>", "mosaic", false)
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if rec.ID != 1001 {
		t.Errorf("ID = %d", rec.ID)
	}
	want := "https://example.myshopify.com/blogs/community-mosaics/mosaic-by-brickfan"
	if got := rec.CanonicalURL("example.myshopify.com"); got != want {
		t.Errorf("CanonicalURL = %q, want %q", got, want)
	}
}

func TestCreateArticleSurfacesUpstreamError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2000), http.StatusUnprocessableEntity)
	}))

	_, err := client.CreateArticle(context.Background(), "t", "b", "", true)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d", ue.Status)
	}
	if len(ue.Body) > maxUpstreamBody {
		t.Errorf("body not truncated: %d bytes", len(ue.Body))
	}
}

func TestCreateArticleToleratesBlogHandleFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/api/2024-01/blogs/42/articles.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"article": map[string]any{"id": 7, "handle": "some-handle"},
		})
	})
	mux.HandleFunc("GET /admin/api/2024-01/blogs/42.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	client := newTestClient(t, mux)

	rec, err := client.CreateArticle(context.Background(), "t", "b", "", true)
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if rec.BlogHandle != "" {
		t.Errorf("BlogHandle = %q, want empty", rec.BlogHandle)
	}
	if url := rec.CanonicalURL("example.myshopify.com"); url != "" {
		t.Errorf("CanonicalURL = %q, want empty when blog handle is absent", url)
	}
}

func TestCreateMetafield(t *testing.T) {
	var got map[string]map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/api/2024-01/articles/7/metafields.json", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode metafield payload: %v", err)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"metafield": map[string]any{"id": 1}})
	})
	client := newTestClient(t, mux)

	if err := client.CreateMetafield(context.Background(), 7, "submission", "contact_email", "a@b.c"); err != nil {
		t.Fatalf("CreateMetafield: %v", err)
	}
	if got["metafield"]["value"] != "a@b.c" {
		t.Errorf("metafield value = %v", got["metafield"]["value"])
	}
}

func TestDirectUploaderReturnsImmediateURL(t *testing.T) {
	var listCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/api/2024-01/files.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"file": map[string]any{"url": "https://cdn.example.com/f.png"},
		})
	})
	mux.HandleFunc("GET /admin/api/2024-01/files.json", func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		writeJSON(w, http.StatusOK, map[string]any{"files": []any{}})
	})
	u := newDirectUploader(newTestClient(t, mux))
	u.poll.sleep = func(time.Duration) {}

	url, err := u.Upload(context.Background(), "f.png", []byte("bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example.com/f.png" {
		t.Errorf("url = %q", url)
	}
	if listCalls != 0 {
		t.Errorf("expected no polling when the create call returns a URL")
	}
}

func TestDirectUploaderPollsListingUntilMatch(t *testing.T) {
	var listCalls, slept int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/api/2024-01/files.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"file": map[string]any{}})
	})
	mux.HandleFunc("GET /admin/api/2024-01/files.json", func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		if listCalls < 2 {
			writeJSON(w, http.StatusOK, map[string]any{"files": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"files": []any{
				map[string]any{"filename": "other.png", "url": "https://cdn.example.com/other.png"},
				map[string]any{"filename": "f.png", "url": "https://cdn.example.com/f.png"},
			},
		})
	})
	u := newDirectUploader(newTestClient(t, mux))
	u.poll.sleep = func(time.Duration) { slept++ }

	url, err := u.Upload(context.Background(), "f.png", []byte("bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example.com/f.png" {
		t.Errorf("url = %q", url)
	}
	if listCalls != 2 {
		t.Errorf("listCalls = %d, want 2", listCalls)
	}
	if listCalls > u.poll.maxAttempts {
		t.Errorf("polled more than the configured maximum")
	}
}

func TestDirectUploaderTimesOut(t *testing.T) {
	var listCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/api/2024-01/files.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"file": map[string]any{}})
	})
	mux.HandleFunc("GET /admin/api/2024-01/files.json", func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		writeJSON(w, http.StatusOK, map[string]any{"files": []any{}})
	})
	u := newDirectUploader(newTestClient(t, mux))
	u.poll.sleep = func(time.Duration) {}

	_, err := u.Upload(context.Background(), "f.png", []byte("bytes"))
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if listCalls != u.poll.maxAttempts {
		t.Errorf("listCalls = %d, want exactly %d", listCalls, u.poll.maxAttempts)
	}
}

func TestStagedUploaderFullFlow(t *testing.T) {
	var srv *httptest.Server
	var stagedPosted bool
	var graphqlCalls []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/api/2024-01/graphql.json", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode graphql request: %v", err)
		}
		graphqlCalls = append(graphqlCalls, req.Query)
		switch {
		case strings.Contains(req.Query, "stagedUploadsCreate"):
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"stagedUploadsCreate": map[string]any{
						"stagedTargets": []any{map[string]any{
							"url":         srv.URL + "/staged-target",
							"resourceUrl": "https://storage.example.com/tmp/f.png",
							"parameters": []any{
								map[string]any{"name": "key", "value": "tmp/f.png"},
								map[string]any{"name": "policy", "value": "signed"},
							},
						}},
						"userErrors": []any{},
					},
				},
			})
		case strings.Contains(req.Query, "fileCreate"):
			if !stagedPosted {
				t.Errorf("fileCreate called before the staged target received the bytes")
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"fileCreate": map[string]any{
						"files":      []any{map[string]any{"image": map[string]any{}}},
						"userErrors": []any{},
					},
				},
			})
		case strings.Contains(req.Query, "files("):
			url := ""
			if len(graphqlCalls) >= 4 { // second lookup attempt
				url = "https://cdn.example.com/f.png"
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"files": map[string]any{
						"nodes": []any{map[string]any{"image": map[string]any{"url": url}}},
					},
				},
			})
		default:
			t.Errorf("unexpected graphql query: %s", req.Query)
		}
	})
	mux.HandleFunc("POST /staged-target", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse staged multipart form: %v", err)
		}
		if got := r.FormValue("key"); got != "tmp/f.png" {
			t.Errorf("form key = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("staged form file: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if string(data) != "image-bytes" {
				t.Errorf("staged bytes = %q", data)
			}
		}
		stagedPosted = true
		w.WriteHeader(http.StatusNoContent)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewShopifyClient(Config{
		ShopDomain:  "example.myshopify.com",
		AccessToken: "test-token",
		APIVersion:  "2024-01",
		BlogID:      "42",
	})
	client.baseURL = srv.URL
	u := newStagedUploader(client)
	u.poll.sleep = func(time.Duration) {}

	url, err := u.Upload(context.Background(), "f.png", []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example.com/f.png" {
		t.Errorf("url = %q", url)
	}
	if !stagedPosted {
		t.Errorf("staged target never received the bytes")
	}
}

func TestStagedUploaderSurfacesUserErrors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"stagedUploadsCreate": map[string]any{
					"stagedTargets": []any{},
					"userErrors": []any{
						map[string]any{"field": []string{"input"}, "message": "file size too large"},
					},
				},
			},
		})
	}))
	u := newStagedUploader(client)

	_, err := u.Upload(context.Background(), "f.png", []byte("bytes"))
	if err == nil || !strings.Contains(err.Error(), "file size too large") {
		t.Fatalf("err = %v, want user error message", err)
	}
}

func TestGraphQLTopLevelErrors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"errors": []any{map[string]any{"message": "throttled"}},
		})
	}))

	err := client.graphql(context.Background(), "query { shop { name } }", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("err = %v, want throttled", err)
	}
}

func TestCanonicalURLRequiresBothHandles(t *testing.T) {
	cases := []struct {
		rec  ArticleRecord
		want string
	}{
		{ArticleRecord{ID: 1, Handle: "a", BlogHandle: "b"}, "https://s.example.com/blogs/b/a"},
		{ArticleRecord{ID: 1, Handle: "", BlogHandle: "b"}, ""},
		{ArticleRecord{ID: 1, Handle: "a", BlogHandle: ""}, ""},
	}
	for _, tc := range cases {
		if got := tc.rec.CanonicalURL("s.example.com"); got != tc.want {
			t.Errorf("CanonicalURL(%+v) = %q, want %q", tc.rec, got, tc.want)
		}
	}
}
