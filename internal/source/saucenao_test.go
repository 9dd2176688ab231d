package source

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(path, []byte("not really a png"), 0644); err != nil {
		t.Fatalf("writing test image: %v", err)
	}
	return path
}

func newTestClient(apiKey, endpoint string) *Client {
	c := NewClient(apiKey)
	c.endpoint = endpoint
	return c
}

const fixtureResponse = `{
	"results": [
		{
			"header": {"similarity": "40.1", "thumbnail": "https://img.example/low.jpg"},
			"data": {"ext_urls": ["https://example.com/low"], "title": "Low Match"}
		},
		{
			"header": {"similarity": "95", "thumbnail": "https://img.example/best.jpg"},
			"data": {"ext_urls": ["https://example.com/best", "https://mirror.example/best"], "creator": "alice", "title": "Best Match"}
		},
		{
			"header": {"similarity": "70"},
			"data": {"author_name": "carol", "source": "Threshold Match"}
		},
		{
			"header": {"similarity": "71.5"},
			"data": {"ext_urls": [], "artist": "bob"}
		},
		{
			"header": {},
			"data": {"ext_urls": ["https://example.com/unscored"]}
		}
	]
}`

func TestLookupFiltersAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fixtureResponse))
	}))
	defer server.Close()

	c := newTestClient("key", server.URL)
	results, reason := c.Lookup(writeTestImage(t))
	if reason != "" {
		t.Fatalf("unexpected reason: %s", reason)
	}

	similarities := make([]float64, len(results))
	for i, r := range results {
		similarities[i] = r.Similarity
	}
	want := []float64{95, 71.5, 70}
	if len(similarities) != len(want) {
		t.Fatalf("similarities = %v, want %v", similarities, want)
	}
	for i := range want {
		if similarities[i] != want[i] {
			t.Fatalf("similarities = %v, want %v", similarities, want)
		}
	}

	best := results[0]
	if best.SourceURL != "https://example.com/best" {
		t.Errorf("best source URL = %q, want first ext_url", best.SourceURL)
	}
	if best.Artist != "alice" {
		t.Errorf("best artist = %q, want alice (creator alias)", best.Artist)
	}
	if best.Title != "Best Match" {
		t.Errorf("best title = %q, want Best Match", best.Title)
	}
	if best.Thumbnail != "https://img.example/best.jpg" {
		t.Errorf("best thumbnail = %q", best.Thumbnail)
	}

	second := results[1]
	if second.SourceURL != "N/A" {
		t.Errorf("second source URL = %q, want N/A for empty ext_urls", second.SourceURL)
	}
	if second.Artist != "bob" {
		t.Errorf("second artist = %q, want bob (artist alias)", second.Artist)
	}
	if second.Title != "N/A" {
		t.Errorf("second title = %q, want N/A", second.Title)
	}

	third := results[2]
	if third.Artist != "carol" {
		t.Errorf("third artist = %q, want carol (author_name alias)", third.Artist)
	}
	if third.Title != "Threshold Match" {
		t.Errorf("third title = %q, want Threshold Match (source alias)", third.Title)
	}
}

func TestLookupSendsExpectedForm(t *testing.T) {
	var gotAPIKey, gotOutputType string
	var gotDBs []string
	var gotFile bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotAPIKey = r.FormValue("api_key")
		gotOutputType = r.FormValue("output_type")
		gotDBs = r.MultipartForm.Value["db"]
		_, _, err := r.FormFile("file")
		gotFile = err == nil

		w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	c := newTestClient("secret-key", server.URL)
	results, reason := c.Lookup(writeTestImage(t))
	if reason != "" {
		t.Fatalf("unexpected reason: %s", reason)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}

	if gotAPIKey != "secret-key" {
		t.Errorf("api_key = %q", gotAPIKey)
	}
	if gotOutputType != "2" {
		t.Errorf("output_type = %q, want 2 (JSON)", gotOutputType)
	}
	if len(gotDBs) != 2 || gotDBs[0] != "5" || gotDBs[1] != "34" {
		t.Errorf("db values = %v, want [5 34]", gotDBs)
	}
	if !gotFile {
		t.Error("request carried no file part")
	}
}

func TestLookupDegradesToEmpty(t *testing.T) {
	badStatus := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer badStatus.Close()

	badBody := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer badBody.Close()

	unreachable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachable.Close()

	tests := []struct {
		name   string
		client *Client
	}{
		{"no api key", newTestClient("", badStatus.URL)},
		{"non-2xx response", newTestClient("key", badStatus.URL)},
		{"unparsable body", newTestClient("key", badBody.URL)},
		{"transport failure", newTestClient("key", unreachable.URL)},
	}

	img := writeTestImage(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, reason := tt.client.Lookup(img)
			if len(results) != 0 {
				t.Errorf("results = %v, want empty", results)
			}
			if reason == "" {
				t.Error("expected a diagnostic reason for the empty result")
			}
		})
	}
}

func TestLookupMissingImage(t *testing.T) {
	c := newTestClient("key", "http://127.0.0.1:0")
	results, reason := c.Lookup(filepath.Join(t.TempDir(), "missing.png"))
	if len(results) != 0 || reason == "" {
		t.Errorf("results = %v, reason = %q; want empty results and a reason", results, reason)
	}
}
