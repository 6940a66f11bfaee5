// Package fetch provides the blocking HTTP client shared by all extractors.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shopcrawl/shopcrawl/config"
)

// Stats receives request instrumentation. The scraper metrics registry
// implements it; a nil implementation is tolerated.
type Stats interface {
	IncRequest(phase string)
	ObserveDuration(d time.Duration)
	IncError(kind string)
}

// Client issues sequential GET requests with a browser-like identification
// header and a fixed inter-request delay.
type Client struct {
	http      *http.Client
	userAgent string
	delay     time.Duration
	stats     Stats

	mu        sync.Mutex
	requested bool
}

// NewClient builds a client from cfg.
func NewClient(cfg *config.Config, stats Stats) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
		delay:     cfg.Delay,
		stats:     stats,
	}
}

// WithTransport swaps the underlying round tripper. Used by tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.http.Transport = rt
}

// Get fetches rawURL and returns the response body. Network failures,
// timeouts, and non-success statuses all surface as *FetchError naming the
// URL.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.pause(ctx); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	if c.stats != nil {
		c.stats.IncRequest("started")
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if c.stats != nil {
		c.stats.ObserveDuration(time.Since(start))
	}
	if err != nil {
		ferr := &FetchError{URL: rawURL, Err: err}
		if c.stats != nil {
			c.stats.IncError(ferr.kind())
		}
		return nil, ferr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ferr := &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("http status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
		if c.stats != nil {
			c.stats.IncError(ferr.kind())
		}
		return nil, ferr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// Document fetches rawURL and parses the body into a queryable node tree.
func (c *Client) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}
	return doc, nil
}

// JSON fetches rawURL and decodes the body into v.
func (c *Client) JSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &ParseError{URL: rawURL, Err: err}
	}
	return nil
}

// XML fetches rawURL and decodes the body into v.
func (c *Client) XML(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return &ParseError{URL: rawURL, Err: err}
	}
	return nil
}

// pause applies the fixed inter-request delay. The first request of a run
// is not delayed.
func (c *Client) pause(ctx context.Context) error {
	c.mu.Lock()
	first := !c.requested
	c.requested = true
	c.mu.Unlock()

	if first || c.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
