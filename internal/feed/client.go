// Package feed fetches and parses NHC advisory RSS documents.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// FailureKind classifies why a feed fetch failed.
type FailureKind string

const (
	FailureNetwork FailureKind = "network"
	FailureTimeout FailureKind = "timeout"
	FailureStatus  FailureKind = "status"
)

// FetchError reports a failed feed fetch with the URL and failure class.
type FetchError struct {
	URL        string
	Kind       FailureKind
	StatusCode int // set only for FailureStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FailureStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// maxFeedBytes bounds how much of a feed document is read. NHC basin feeds
// are tens of kilobytes; anything past this is a broken upstream.
const maxFeedBytes = 4 << 20

// Client fetches advisory feed documents over HTTP. It applies a bounded
// per-request timeout and a politeness rate limit shared across all regions,
// and performs no retries: retry policy belongs to the orchestrator so one
// region's failures never eat into another's cycle time.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a feed client. requestsPerSecond bounds the aggregate
// request rate against upstream feed hosts.
func NewClient(timeout time.Duration, requestsPerSecond float64, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		userAgent:  "storm-advisory-ingest/1.0",
		logger:     logger,
	}
}

// Fetch retrieves the raw feed document at url. Failures are returned as a
// *FetchError classifying the cause; the response body is fully read so the
// caller owns plain bytes with no open connection.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Kind: FailureTimeout, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: FailureNetwork, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Kind: FailureStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Kind: classifyTransportError(err), Err: err}
	}

	c.logger.Debug("feed fetched", "url", url, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func classifyTransportError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureNetwork
}
