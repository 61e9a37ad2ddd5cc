// Package cadengine is a Go client for the CAD engine HTTP API. It uploads
// STEP/IGES exchange files through the base64 conversion endpoint and
// surfaces health and job history.
package cadengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout        = 2 * time.Minute
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// ClientConfig configures a Client. BaseURL is required; everything else
// has working defaults.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:5000".
	BaseURL string
	// APIKey is sent as a bearer token when set. The service itself is
	// unauthenticated; deployments behind a gateway often are not.
	APIKey string
	// Timeout bounds each HTTP attempt. Conversions of large models can
	// run minutes, so the default is generous.
	Timeout time.Duration
	// MaxRetries bounds additional attempts after the first.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// HTTPClient overrides the built-in client; Timeout is ignored then.
	HTTPClient *http.Client
}

// Client calls the CAD engine API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      retryConfig
}

// NewClient creates an API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("cadengine: BaseURL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := retryConfig{
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
	if retry.maxRetries <= 0 {
		retry.maxRetries = defaultMaxRetries
	}
	if retry.initialBackoff <= 0 {
		retry.initialBackoff = defaultInitialBackoff
	}
	if retry.maxBackoff <= 0 {
		retry.maxBackoff = defaultMaxBackoff
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		retry:      retry,
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Kind       string `json:"error"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("cadengine: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cadengine: HTTP %d [%s] %s: %s", e.StatusCode, e.Kind, e.Message, e.Detail)
}

// ConvertResult is a finished conversion.
type ConvertResult struct {
	// Filename is the server-derived STL filename.
	Filename      string
	TriangleCount int
	SizeBytes     int64
	// Data is the decoded binary STL artifact.
	Data []byte
}

type convertEnvelope struct {
	StlBase64     string `json:"stl_base64"`
	StlSize       int64  `json:"stl_size"`
	StlFilename   string `json:"stl_filename"`
	TriangleCount int    `json:"triangle_count"`
}

// Convert uploads one exchange file and returns the STL artifact. The
// filename's extension selects the format, so it must end in
// .step/.stp/.iges/.igs.
func (c *Client) Convert(ctx context.Context, filename string, data []byte) (*ConvertResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("cadengine: build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("cadengine: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("cadengine: build upload: %w", err)
	}

	// The body is rebuilt from these bytes on every retry attempt.
	body := buf.Bytes()
	contentType := mw.FormDataContentType()

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert/step-to-stl-base64", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFrom(resp)
	}

	var envelope convertEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("cadengine: decode response: %w", err)
	}
	stl, err := base64.StdEncoding.DecodeString(envelope.StlBase64)
	if err != nil {
		return nil, fmt.Errorf("cadengine: decode artifact: %w", err)
	}

	return &ConvertResult{
		Filename:      envelope.StlFilename,
		TriangleCount: envelope.TriangleCount,
		SizeBytes:     envelope.StlSize,
		Data:          stl,
	}, nil
}

// ConvertFile reads path and converts it.
func (c *Client) ConvertFile(ctx context.Context, path string) (*ConvertResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cadengine: read input: %w", err)
	}
	return c.Convert(ctx, filepath.Base(path), data)
}

// HealthStatus is the health endpoint's report.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Engine  string `json:"engine"`
}

// Health reports service health. A degraded service answers 503 with a
// body, which comes back as Status "degraded" and a nil error; only
// transport trouble or unexpected statuses error. Health never retries,
// the 503 is the answer a probe is asking for.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("cadengine: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cadengine: health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, apiErrorFrom(resp)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("cadengine: decode response: %w", err)
	}
	return &status, nil
}

// Job is one conversion history record.
type Job struct {
	ID                string    `json:"id"`
	Filename          string    `json:"filename"`
	OutputName        string    `json:"output_name"`
	Format            string    `json:"format"`
	Status            string    `json:"status"`
	Stage             string    `json:"stage"`
	ErrorKind         string    `json:"error_kind,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	SizeBytes         int64     `json:"size_bytes"`
	TriangleCount     int       `json:"triangle_count"`
	ArtifactBytes     int64     `json:"artifact_bytes"`
	LinearDeflection  float64   `json:"linear_deflection"`
	AngularDeflection float64   `json:"angular_deflection"`
	DurationMS        int64     `json:"duration_ms"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Jobs lists recent conversions, newest first. A limit of 0 takes the
// server default.
func (c *Client) Jobs(ctx context.Context, limit int) ([]Job, error) {
	url := c.baseURL + "/jobs"
	if limit > 0 {
		url += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFrom(resp)
	}

	var envelope struct {
		Jobs  []Job `json:"jobs"`
		Count int   `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("cadengine: decode response: %w", err)
	}
	return envelope.Jobs, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// apiErrorFrom drains a non-2xx response into an APIError.
func apiErrorFrom(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		apiErr.Message = "unreadable error body"
		return apiErr
	}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
