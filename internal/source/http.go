package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 32 << 20

type HTTPSource struct {
	url      string
	format   Format
	client   *http.Client
	maxBytes int64
}

// NewHTTPSource fetches a remote shelter document. With an empty format the
// response Content-Type decides, falling back to JSON.
func NewHTTPSource(url string, format Format, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		format: format,
		client: &http.Client{
			Timeout: timeout,
		},
		maxBytes: maxBodyBytes,
	}
}

func (s *HTTPSource) Name() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	format := s.format
	if format == "" {
		format = formatFromContentType(resp.Header.Get("Content-Type"))
	}

	// Oversized bodies are rejected, never decoded truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", s.maxBytes)
	}

	return Decode(bytes.NewReader(body), format)
}

func formatFromContentType(ct string) Format {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "geo+json"):
		return FormatGeoJSON
	case strings.Contains(ct, "csv"):
		return FormatCSV
	case strings.Contains(ct, "yaml"):
		return FormatYAML
	default:
		return FormatJSON
	}
}
