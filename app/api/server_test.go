package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/publish"
)

type fakePipeline struct {
	latest    *feed.Corpus
	next      *feed.Corpus
	err       error
	refreshes int
	ctxErr    error
}

func (p *fakePipeline) Latest() *feed.Corpus {
	return p.latest
}

func (p *fakePipeline) Refresh(ctx context.Context) (*feed.Corpus, error) {
	p.refreshes++
	p.ctxErr = ctx.Err()
	if p.err != nil {
		return nil, p.err
	}
	p.latest = p.next
	return p.next, nil
}

const testRegistry = `title: "Daily Digest"
rss_feeds:
  - name: "Blog"
    url: "https://blog.example.com/feed.xml"
    category: "tech"
  - name: "News"
    url: "https://news.example.org/rss"
    category: "international"
categories:
  tech:
    title: "Tech News"
    icon: "🔧"
`

func testCorpus() *feed.Corpus {
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return feed.NewCorpus("run-42", base, []feed.Result{
		feed.Succeeded("Blog", []feed.Post{
			{Title: "Go 1.22", Link: "https://blog.example.com/go", Published: base.Add(-time.Hour), Source: "Blog", Category: "tech", Slug: "Go-122"},
			{Title: "Older", Link: "https://blog.example.com/older", Published: base.Add(-3 * time.Hour), Source: "Blog", Category: "tech", Slug: "Older"},
		}, nil),
		feed.Succeeded("News", []feed.Post{
			{Title: "Summit", Link: "https://news.example.org/summit", Published: base.Add(-2 * time.Hour), Source: "News", Category: "international", Slug: "Summit"},
		}, nil),
		feed.Failed("Down", &feed.FetchError{Source: "Down", Kind: feed.KindTimeout, Err: context.DeadlineExceeded}),
	})
}

func setupServer(t *testing.T, pipeline *fakePipeline, apiKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "_config.yml")
	if err := os.WriteFile(path, []byte(testRegistry), 0644); err != nil {
		t.Fatal(err)
	}
	registry := feed.NewRegistryCache(path, 30)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	handler := NewHandler(pipeline, registry, publish.NewGenerator("test"), "https://digest.example.com", 2)
	return NewServer(handler, apiKey)
}

func request(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	r := setupServer(t, &fakePipeline{}, "")

	w := request(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	decode(t, w, &body)
	if body["status"] != "pending" {
		t.Errorf("Expected pending status before the first run, got %v", body["status"])
	}
	if body["sources"] != float64(2) {
		t.Errorf("Expected 2 sources, got %v", body["sources"])
	}

	r = setupServer(t, &fakePipeline{latest: testCorpus()}, "")
	decode(t, request(r, http.MethodGet, "/health", nil), &body)
	if body["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", body["status"])
	}
}

func TestGetPosts(t *testing.T) {
	r := setupServer(t, &fakePipeline{latest: testCorpus()}, "")

	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"all posts newest first", "/posts", []string{"Go 1.22", "Summit", "Older"}},
		{"limited", "/posts?limit=2", []string{"Go 1.22", "Summit"}},
		{"by category", "/posts?category=tech", []string{"Go 1.22", "Older"}},
		{"category and limit", "/posts?category=tech&limit=1", []string{"Go 1.22"}},
		{"unknown category", "/posts?category=sports", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(r, http.MethodGet, tt.path, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}

			var body struct {
				RunID string      `json:"run_id"`
				Posts []feed.Post `json:"posts"`
			}
			decode(t, w, &body)

			if body.RunID != "run-42" {
				t.Errorf("Expected run id run-42, got %s", body.RunID)
			}
			if len(body.Posts) != len(tt.expected) {
				t.Fatalf("Expected %d posts, got %d", len(tt.expected), len(body.Posts))
			}
			for i, title := range tt.expected {
				if body.Posts[i].Title != title {
					t.Errorf("Post %d: expected %q, got %q", i, title, body.Posts[i].Title)
				}
			}
		})
	}
}

func TestGetPostsValidation(t *testing.T) {
	r := setupServer(t, &fakePipeline{latest: testCorpus()}, "")

	for _, path := range []string{"/posts?limit=-1", "/posts?limit=ten"} {
		if w := request(r, http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestEndpointsBeforeFirstRun(t *testing.T) {
	r := setupServer(t, &fakePipeline{}, "")

	for _, path := range []string{"/posts", "/categories", "/errors", "/feed.xml"} {
		if w := request(r, http.MethodGet, path, nil); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestGetCategories(t *testing.T) {
	r := setupServer(t, &fakePipeline{latest: testCorpus()}, "")

	var body struct {
		Categories []categoryResponse `json:"categories"`
	}
	decode(t, request(r, http.MethodGet, "/categories", nil), &body)

	expected := []categoryResponse{
		{Name: "tech", Title: "Tech News", Icon: "🔧", Posts: 2},
		{Name: "international", Title: "international", Posts: 1},
	}
	if len(body.Categories) != len(expected) {
		t.Fatalf("Expected %d categories, got %d", len(expected), len(body.Categories))
	}
	for i := range expected {
		if body.Categories[i] != expected[i] {
			t.Errorf("Category %d: expected %+v, got %+v", i, expected[i], body.Categories[i])
		}
	}
}

func TestGetErrors(t *testing.T) {
	r := setupServer(t, &fakePipeline{latest: testCorpus()}, "")

	var body struct {
		Errors []errorResponse `json:"errors"`
	}
	decode(t, request(r, http.MethodGet, "/errors", nil), &body)

	if len(body.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(body.Errors))
	}
	if body.Errors[0].Source != "Down" || body.Errors[0].Kind != "timeout" {
		t.Errorf("Unexpected error entry: %+v", body.Errors[0])
	}
}

func TestGetFeed(t *testing.T) {
	r := setupServer(t, &fakePipeline{latest: testCorpus()}, "")

	w := request(r, http.MethodGet, "/feed.xml", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Expected XML content type, got %s", ct)
	}
	if w.Header().Get("X-Feed-Items") != "2" {
		t.Errorf("Expected 2 items, got %s", w.Header().Get("X-Feed-Items"))
	}

	rss := w.Body.String()
	if !strings.Contains(rss, "<title>Daily Digest</title>") {
		t.Error("Feed should carry the registry title")
	}
	if !strings.Contains(rss, `<atom:link href="https://digest.example.com/feed.xml"`) {
		t.Error("Feed should link to itself under the base URL")
	}
	if strings.Contains(rss, "<title>Older</title>") {
		t.Error("Feed should be limited to the post limit")
	}
}

func TestRefreshAuthentication(t *testing.T) {
	pipeline := &fakePipeline{next: testCorpus()}
	r := setupServer(t, pipeline, "secret")

	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := request(r, http.MethodPost, "/api/refresh", tt.headers); w.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, w.Code)
			}
		})
	}

	if pipeline.refreshes != 2 {
		t.Errorf("Expected 2 refreshes, got %d", pipeline.refreshes)
	}
}

func TestRefresh(t *testing.T) {
	pipeline := &fakePipeline{next: testCorpus()}
	r := setupServer(t, pipeline, "secret")

	w := request(r, http.MethodPost, "/api/refresh", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Success bool        `json:"success"`
		Run     runResponse `json:"run"`
	}
	decode(t, w, &body)
	if !body.Success || body.Run.RunID != "run-42" || body.Run.Posts != 3 || body.Run.Errors != 1 {
		t.Errorf("Unexpected refresh response: %+v", body)
	}

	pipeline.err = errors.New("registry unreadable")
	if w := request(r, http.MethodPost, "/api/refresh", map[string]string{"X-API-Key": "secret"}); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 on refresh failure, got %d", w.Code)
	}
}

func TestRefreshDisabledWithoutKey(t *testing.T) {
	pipeline := &fakePipeline{next: testCorpus()}
	r := setupServer(t, pipeline, "")

	if w := request(r, http.MethodPost, "/api/refresh", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when the API is disabled, got %d", w.Code)
	}
	if pipeline.refreshes != 0 {
		t.Error("Refresh should not run when the API is disabled")
	}
}

func TestRefreshIgnoresClientDisconnect(t *testing.T) {
	pipeline := &fakePipeline{next: testCorpus()}
	r := setupServer(t, pipeline, "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil).WithContext(ctx)
	req.Header.Set("X-API-Key", "secret")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if pipeline.refreshes != 1 {
		t.Fatalf("Expected 1 refresh, got %d", pipeline.refreshes)
	}
	if pipeline.ctxErr != nil {
		t.Errorf("Expected the run context to outlive the request, got: %v", pipeline.ctxErr)
	}
}
