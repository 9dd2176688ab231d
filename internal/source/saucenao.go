package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

const (
	defaultEndpoint = "https://saucenao.com/search.php"

	// Matches below this similarity are discarded as noise.
	minSimilarity = 70.0

	lookupTimeout = 15 * time.Second
)

// Result is one surviving match from the identification service,
// normalized for the caller. Absent fields carry the "N/A" sentinel so
// templates and API clients never see empty holes.
type Result struct {
	Similarity float64 `json:"similarity"`
	SourceURL  string  `json:"source_url"`
	Artist     string  `json:"artist"`
	Title      string  `json:"title"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
}

const unknownField = "N/A"

// Client talks to the SauceNAO reverse-image-search API. Lookups are
// best-effort: any transport, status, or decode failure degrades to an
// empty result list so the image itself stays servable.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: lookupTimeout},
	}
}

// Enabled reports whether an API key is configured. Without one every
// lookup returns an empty list immediately.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// apiResponse mirrors the parts of the SauceNAO JSON payload we consume.
// Similarity arrives as a string ("92.53"), so it is parsed by hand.
type apiResponse struct {
	Results []apiResult `json:"results"`
}

type apiResult struct {
	Header struct {
		Similarity string `json:"similarity"`
		Thumbnail  string `json:"thumbnail"`
	} `json:"header"`
	Data struct {
		ExtURLs    []string `json:"ext_urls"`
		Creator    string   `json:"creator"`
		Artist     string   `json:"artist"`
		AuthorName string   `json:"author_name"`
		Title      string   `json:"title"`
		Source     string   `json:"source"`
	} `json:"data"`
}

// Lookup uploads the image at path and returns the filtered, sorted
// matches. The second return value is a diagnostic reason describing why
// the list is empty; it is "" when the service answered normally.
func (c *Client) Lookup(path string) ([]Result, string) {
	if !c.Enabled() {
		return nil, "lookup disabled: no API key configured"
	}

	img, err := os.Open(path)
	if err != nil {
		return nil, fmt.Sprintf("image not readable: %v", err)
	}
	defer img.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Sprintf("failed to build request: %v", err)
	}
	if _, err := io.Copy(part, img); err != nil {
		return nil, fmt.Sprintf("failed to read image: %v", err)
	}

	writer.WriteField("api_key", c.apiKey)
	writer.WriteField("output_type", "2") // JSON output
	writer.WriteField("db", "5")
	writer.WriteField("db", "34")
	if err := writer.Close(); err != nil {
		return nil, fmt.Sprintf("failed to build request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Sprintf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Sprintf("lookup request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Sprintf("lookup returned status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Sprintf("failed to decode lookup response: %v", err)
	}

	return normalize(parsed.Results), ""
}

// normalize filters matches to those at or above the similarity
// threshold, sorts them by similarity descending (stable, so equal
// scores keep their original order), and maps fields to the Result
// shape.
func normalize(raw []apiResult) []Result {
	type scored struct {
		similarity float64
		result     apiResult
	}

	var kept []scored
	for _, r := range raw {
		if r.Header.Similarity == "" {
			continue
		}
		similarity, err := strconv.ParseFloat(r.Header.Similarity, 64)
		if err != nil || similarity < minSimilarity {
			continue
		}
		kept = append(kept, scored{similarity: similarity, result: r})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].similarity > kept[j].similarity
	})

	results := make([]Result, 0, len(kept))
	for _, s := range kept {
		data := s.result.Data

		sourceURL := unknownField
		if len(data.ExtURLs) > 0 {
			sourceURL = data.ExtURLs[0]
		}

		artist := firstNonEmpty(data.Creator, data.Artist, data.AuthorName)
		title := firstNonEmpty(data.Title, data.Source)

		results = append(results, Result{
			Similarity: s.similarity,
			SourceURL:  sourceURL,
			Artist:     artist,
			Title:      title,
			Thumbnail:  s.result.Header.Thumbnail,
		})
	}

	return results
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return unknownField
}
