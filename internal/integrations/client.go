// Package integrations talks to the code hosting and CI providers that feed
// change descriptions and test outcomes into the pipeline.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/logger"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// APIError is returned for a non-2xx provider response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// client is the shared transport of all providers. Every request waits on
// the limiter first, so concurrent callers share one request budget.
type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	authorize  func(req *http.Request)
	logger     *logger.Logger
}

func newClient(cfg *contract.Config, component string, authorize func(req *http.Request)) *client {
	r := cfg.CIRate
	if r <= 0 {
		r = contract.DefaultCIRate
	}
	if authorize == nil {
		authorize = func(*http.Request) {}
	}
	return &client{
		baseURL:    strings.TrimRight(cfg.CIBaseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(r), 1),
		authorize:  authorize,
		logger:     logger.Named(component),
	}
}

// getJSON issues a GET against path relative to the base URL and decodes the body into dst.
func (c *client) getJSON(ctx context.Context, path, operation string, dst any) error {
	return c.doJSON(ctx, http.MethodGet, c.baseURL+path, operation, nil, dst)
}

func (c *client) doJSON(ctx context.Context, method, url, operation string, body any, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("op", operation).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Provider request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode: %w", operation, err)
	}
	return nil
}

// parseRequestRef reports whether ref names a pull or merge request ("#12" or "!12").
func parseRequestRef(ref string) (int, bool) {
	if len(ref) < 2 || (ref[0] != '#' && ref[0] != '!') {
		return 0, false
	}
	n, err := strconv.Atoi(ref[1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// countDiffLines counts added and removed lines of a unified diff body.
func countDiffLines(diff string) (insertions, deletions int) {
	for line := range strings.SplitSeq(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			insertions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return insertions, deletions
}
