package sources

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/utils"
)

const (
	DefaultUserAgent = "job-radar (+https://github.com/spigell/job-radar)"
	contentEncoding  = "gzip"
	defaultTimeout   = 15 * time.Second
	maxErrorBody     = 256
)

// ErrBadStatus is returned when a source answers with a non-200 status.
var ErrBadStatus = errors.New("bad status")

// HTTPClient is the shared transport used by HTTP based adapters.
type HTTPClient struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewHTTPClient(logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		UserAgent:  DefaultUserAgent,
		logger:     logger,
	}
}

// GetJSON makes a GET request and decodes a JSON body into target.
func (c *HTTPClient) GetJSON(ctx context.Context, endpoint string, q url.Values, target any) error {
	data, err := c.Get(ctx, endpoint, q, "application/json")
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}

// Get makes a GET request and returns the (decompressed) body.
func (c *HTTPClient) Get(ctx context.Context, endpoint string, q url.Values, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	req = c.setHeaders(req)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", ErrBadStatus, resp.Status, utils.TruncateForLog(string(data), maxErrorBody))
	}

	return data, nil
}

func (c *HTTPClient) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", redact(req.URL)))
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func (c *HTTPClient) setHeaders(req *http.Request) *http.Request {
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Encoding", contentEncoding)
	return req
}

// redact hides credentials passed as query parameters.
func redact(u *url.URL) string {
	q := u.Query()
	for _, key := range []string{"app_key", "api_key", "key", "token"} {
		if q.Has(key) {
			q.Set(key, "***")
		}
	}
	cp := *u
	cp.RawQuery = q.Encode()
	return cp.String()
}
