// Package request is the outbound HTTP layer: queued per-provider delivery,
// exponential backoff on retryable statuses, and optional response caching.
package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"coastwatch/pkg/logging"
	"coastwatch/pkg/model"
	"coastwatch/pkg/tracker"
	"coastwatch/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("CoastWatch/%s (coastal monitoring)", version.Version)

// Cacher caches raw response bodies. Implemented by the sqlite store.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Options tune retry behavior.
type Options struct {
	Retries   int
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	return o
}

// Client handles HTTP requests with per-provider queuing, caching, and
// tracking. Requests to the same provider run sequentially so a slow
// predictor never sees parallel hammering from one user session.
type Client struct {
	httpClient *http.Client
	cache      Cacher
	tracker    *tracker.Tracker
	opts       Options

	mu     sync.Mutex // Protects queues map
	queues map[string]chan job
}

type job struct {
	req      *http.Request
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client. cache may be nil to disable caching.
func New(cache Cacher, t *tracker.Tracker, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      cache,
		tracker:    t,
		opts:       opts,
		queues:     make(map[string]chan job),
	}
}

// Get performs a GET request, consulting the cache first when cacheKey is
// non-empty.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	provider, err := providerOf(u)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" && c.cache != nil {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.CacheHit(provider)
			logging.Trace(slog.Default(), "cache hit", "provider", provider, "key", cacheKey)
			return val, nil
		}
		c.tracker.CacheMiss(provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", model.ErrNetwork, err)
	}
	return c.enqueue(ctx, provider, job{req: req, cacheKey: cacheKey, respChan: make(chan jobResult, 1)})
}

// Post performs a JSON POST request. Responses are never cached.
func (c *Client) Post(ctx context.Context, u string, body []byte) ([]byte, error) {
	provider, err := providerOf(u)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", model.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.enqueue(ctx, provider, job{req: req, respChan: make(chan jobResult, 1)})
}

// PostMultipart uploads a multipart body with the given content type.
func (c *Client) PostMultipart(ctx context.Context, u, contentType string, body []byte) ([]byte, error) {
	provider, err := providerOf(u)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", model.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.enqueue(ctx, provider, job{req: req, respChan: make(chan jobResult, 1)})
}

// providerOf groups hosts into provider queues. All arcgis subdomains share
// one queue; everything else queues per host.
func providerOf(u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url: %v", model.ErrNetwork, err)
	}
	host := parsed.Host
	if strings.HasSuffix(host, ".arcgis.com") || host == "arcgis.com" {
		return "arcgis", nil
	}
	return host, nil
}

func (c *Client) enqueue(ctx context.Context, provider string, j job) ([]byte, error) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	select {
	case q <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-j.respChan:
		return res.body, res.err
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if j.req.Context().Err() != nil {
			slog.Warn("request dropped from queue, context expired", "provider", provider)
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}

		if j.req.Header.Get("User-Agent") == "" {
			j.req.Header.Set("User-Agent", defaultUserAgent)
		}

		body, err := c.executeWithBackoff(j.req)
		if err == nil {
			c.tracker.Success(provider)
			if j.cacheKey != "" && c.cache != nil {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, body); err != nil {
					slog.Error("failed to cache response", "url", j.req.URL, "error", err)
				}
			}
		} else {
			c.tracker.Failure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}
	}
}

// executeWithBackoff retries on transport errors, 429 and 5xx with
// exponential delay plus jitter. Other 4xx statuses fail immediately.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	for attempt := 0; attempt < c.opts.Retries; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		slog.Debug("network request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		attemptReq := req
		if req.GetBody != nil {
			// Rewind the body so retries resend the full payload.
			if rewound, err := req.GetBody(); err == nil {
				attemptReq = req.Clone(req.Context())
				attemptReq.Body = rewound
			}
		}
		resp, err := c.httpClient.Do(attemptReq)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("request failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
			if err := c.sleep(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			slog.Warn("retryable status", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			if err := c.sleep(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d from %s", model.ErrNetwork, resp.StatusCode, req.URL.Host)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", model.ErrNetwork, err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("%w: max retries exceeded for %s", model.ErrNetwork, req.URL.Host)
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := time.Duration(math.Pow(2, float64(attempt))) * c.opts.BaseDelay
	if delay > c.opts.MaxDelay {
		delay = c.opts.MaxDelay
	}
	delay += time.Duration(rand.Float64() * 0.1 * float64(delay))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
