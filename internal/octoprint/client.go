package octoprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is the flat timeout applied to every outbound call
const DefaultTimeout = 10 * time.Second

// APIKeyHeader is the header OctoPrint reads the API key from
const APIKeyHeader = "X-Api-Key"

// Client talks to a single OctoPrint instance. It holds no state about
// the outcome of the calls it makes.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for serverURL. A trailing slash on serverURL is ignored.
func NewClient(serverURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ServerURL returns the normalized base URL of the upstream service
func (c *Client) ServerURL() string {
	return c.serverURL
}

// apiURL builds <serverUrl>/api<path>
func (c *Client) apiURL(path string) string {
	return c.serverURL + "/api" + path
}

// escapePath escapes each segment of a slash separated storage path
func escapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// doJSON sends an API request with an optional JSON body and decodes the
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindDecode, Op: op, Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(path), reader)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(op, req, out)
}

// do executes req and decodes a JSON response into out. A *string out
// receives the body verbatim.
func (c *Client) do(op string, req *http.Request, out interface{}) error {
	req.Header.Set(APIKeyHeader, c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Upstream request failed",
			zap.String("op", op),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("Upstream request",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Error{
			Kind:       KindUpstream,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("upstream returned %s", resp.Status),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	// Raw downloads are read as text
	if text, ok := out.(*string); ok {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
		}
		*text = string(b)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return &Error{Kind: KindDecode, Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}
