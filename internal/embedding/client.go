package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	DefaultEndpoint       = "http://127.0.0.1:8844/embed"
	DefaultModelName      = "all-MiniLM-L6-v2"
	DefaultDimensions     = 384
	DefaultMaxLength      = 256
	DefaultRequestTimeout = 45 * time.Second
)

// ClientOptions configures the HTTP embedding client.
type ClientOptions struct {
	Endpoint       string
	ModelName      string
	Dimensions     int
	MaxLength      int
	RequestTimeout time.Duration
}

// Client calls an HTTP embedding service. It accepts both the plain
// {"texts": [...]} shape and the OpenAI-style {"input": [...]} shape,
// chosen by the endpoint path.
type Client struct {
	opts   ClientOptions
	http   *http.Client
	loaded bool
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	Model     string   `json:"model,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewClient(opts ClientOptions) *Client {
	normalized := normalizeOptions(opts)
	return &Client{
		opts: normalized,
		http: &http.Client{Timeout: normalized.RequestTimeout},
	}
}

func normalizeOptions(opts ClientOptions) ClientOptions {
	normalized := opts
	if strings.TrimSpace(normalized.Endpoint) == "" {
		normalized.Endpoint = DefaultEndpoint
	}
	normalized.Endpoint = normalizeEndpoint(normalized.Endpoint)
	if strings.TrimSpace(normalized.ModelName) == "" {
		normalized.ModelName = DefaultModelName
	}
	if normalized.Dimensions <= 0 {
		normalized.Dimensions = DefaultDimensions
	}
	if normalized.MaxLength <= 0 {
		normalized.MaxLength = DefaultMaxLength
	}
	if normalized.RequestTimeout <= 0 {
		normalized.RequestTimeout = DefaultRequestTimeout
	}
	return normalized
}

func normalizeEndpoint(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = "/embed"
	}
	return parsed.String()
}

// EnsureLoaded probes the service once so a missing or still-loading
// model fails the run up front instead of mid-stage.
func (c *Client) EnsureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	if _, err := c.request(ctx, []string{"warmup"}); err != nil {
		return fmt.Errorf("embedding service not ready: %w", err)
	}
	c.loaded = true
	return nil
}

func (c *Client) Dimensions() int {
	return c.opts.Dimensions
}

// Embed returns the L2-normalized embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding response count mismatch: requested=1 returned=%d", len(vectors))
	}
	vector := vectors[0]
	if len(vector) != c.opts.Dimensions {
		return nil, fmt.Errorf("expected %d dimensions, got %d", c.opts.Dimensions, len(vector))
	}
	return Normalize(vector), nil
}

func (c *Client) request(ctx context.Context, texts []string) ([][]float64, error) {
	payload := embedRequest{
		Texts:     texts,
		MaxLength: c.opts.MaxLength,
	}
	if parsed, err := url.Parse(c.opts.Endpoint); err == nil && strings.HasSuffix(parsed.Path, "/v1/embeddings") {
		payload = embedRequest{
			Input: texts,
			Model: c.opts.ModelName,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response missing vectors")
	}
	return vectors, nil
}

// Normalize returns the L2-normalized copy of vector. A zero vector
// is returned unchanged.
func Normalize(vector []float64) []float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return vector
	}
	norm := math.Sqrt(sumSquares)
	normalized := make([]float64, len(vector))
	for i, v := range vector {
		normalized[i] = v / norm
	}
	return normalized
}

// Dot computes the dot product of two equal-length vectors.
func Dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
