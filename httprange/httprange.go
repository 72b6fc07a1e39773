// Package httprange fetches byte ranges from HTTP servers with retry and
// exponential backoff.
//
// Only 206 Partial Content responses are accepted. A 200 from a server that
// ignored the Range header carries the entire resource, so it counts as a
// failed attempt just like any other non-206 status.
package httprange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultConnectTimeout is the default value of [Client.ConnectTimeout].
	DefaultConnectTimeout = 30 * time.Second
	// DefaultRequestTimeout is the default value of [Client.RequestTimeout].
	DefaultRequestTimeout = 60 * time.Second
	// DefaultMaxAttempts is the default value of [Client.MaxAttempts].
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the default value of [Client.BaseDelay].
	DefaultBaseDelay = 1 * time.Second
)

// Result is the outcome of a successful ranged GET.
type Result struct {
	// Body holds the bytes of the 206 response. Closed ranges that overshoot
	// the resource come back clamped, so len(Body) may be less than requested.
	Body []byte

	// Size is the total resource length parsed from the Content-Range
	// response header, or -1 if the server did not report one.
	Size int64
}

// Client performs ranged GETs against HTTP servers.
type Client struct {
	// ConnectTimeout bounds the TCP connect of each attempt.
	//
	// Defaults to DefaultConnectTimeout. Ignored when HTTPClient is given.
	ConnectTimeout time.Duration

	// RequestTimeout bounds each attempt end to end, body read included.
	//
	// Defaults to DefaultRequestTimeout. Cannot be negative.
	RequestTimeout time.Duration

	// MaxAttempts is the number of tries per Fetch, the first one included.
	//
	// Defaults to DefaultMaxAttempts. Cannot be non-positive.
	MaxAttempts int

	// BaseDelay seeds the backoff: the wait before attempt k+1 is
	// BaseDelay*2^(k-1) for k starting at 1. There is no jitter and no cap.
	//
	// Defaults to DefaultBaseDelay. Cannot be negative.
	BaseDelay time.Duration

	// Limiter, when set, gates every attempt including retries.
	Limiter *rate.Limiter

	// HTTPClient replaces the http.Client built from ConnectTimeout.
	HTTPClient *http.Client

	// Logger receives per-attempt diagnostics.
	//
	// Defaults to a no-op logger.
	Logger zerolog.Logger
}

// New returns a Client ready to fetch ranges.
func New(optFns ...func(*Client)) (*Client, error) {
	c := &Client{
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		Logger:         zerolog.Nop(),
	}
	for _, fn := range optFns {
		fn(c)
	}

	if c.MaxAttempts <= 0 {
		return nil, fmt.Errorf("maxAttempts (%d) must be greater than 0", c.MaxAttempts)
	}
	if c.BaseDelay < 0 {
		return nil, fmt.Errorf("baseDelay (%s) must not be negative", c.BaseDelay)
	}
	if c.RequestTimeout < 0 {
		return nil, fmt.Errorf("requestTimeout (%s) must not be negative", c.RequestTimeout)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:       http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{Timeout: c.ConnectTimeout}).DialContext,
			},
		}
	}

	return c, nil
}

// Fetch GETs the bytes described by spec from url.
//
// Every failed attempt is retried, non-206 statuses included, until
// MaxAttempts is exhausted; the terminal failure is always an [Error]
// recording the attempt count and last status. The context applies across
// all attempts and backoff waits, while RequestTimeout bounds each attempt
// individually.
func (c *Client) Fetch(ctx context.Context, url string, spec Spec) (*Result, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.BaseDelay << (attempt - 2)
			c.Logger.Debug().
				Str("url", url).
				Stringer("range", spec).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("backing off before retry")

			select {
			case <-ctx.Done():
				return nil, Error{URL: url, Spec: spec, Attempts: attempt - 1, StatusCode: lastStatus, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, Error{URL: url, Spec: spec, Attempts: attempt - 1, StatusCode: lastStatus, Err: err}
			}
		}

		result, status, err := c.do(ctx, url, spec)
		if err == nil {
			return result, nil
		}

		lastErr, lastStatus = err, status
		c.Logger.Debug().
			Err(err).
			Str("url", url).
			Stringer("range", spec).
			Int("attempt", attempt).
			Int("max_attempts", c.MaxAttempts).
			Msg("range request attempt failed")
	}

	return nil, Error{URL: url, Spec: spec, Attempts: c.MaxAttempts, StatusCode: lastStatus, Err: lastErr}
}

// do performs a single attempt. The returned status is 0 if no response
// arrived.
func (c *Client) do(ctx context.Context, url string, spec Spec) (_ *Result, status int, err error) {
	if c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("Range", spec.Header())
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request error: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		return nil, resp.StatusCode, errors.New("server ignored the range request")
	default:
		return nil, resp.StatusCode, fmt.Errorf("range request failed: %s", resp.Status)
	}

	size := int64(-1)
	if v := resp.Header.Get("Content-Range"); v != "" {
		if n, err := parseContentRangeTotal(v); err != nil {
			c.Logger.Debug().Err(err).Str("url", url).Msg("ignoring unparseable Content-Range")
		} else {
			size = n
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body error: %w", err)
	}

	return &Result{Body: body, Size: size}, resp.StatusCode, nil
}

// FetchStream is like Fetch but hands the 206 response body back for the
// caller to consume incrementally, which suits open-ended ranges that would
// be wasteful to buffer. Retries cover connecting and the status check; once
// the body is handed over, read errors are the caller's. RequestTimeout does
// not apply, since it would cut long-lived streams short; bound the read
// with the context instead. The caller must close the returned body.
func (c *Client) FetchStream(ctx context.Context, url string, spec Spec) (io.ReadCloser, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.BaseDelay << (attempt - 2)
			select {
			case <-ctx.Done():
				return nil, Error{URL: url, Spec: spec, Attempts: attempt - 1, StatusCode: lastStatus, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, Error{URL: url, Spec: spec, Attempts: attempt - 1, StatusCode: lastStatus, Err: err}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request error: %w", err)
		}
		req.Header.Set("Range", spec.Header())
		req.Header.Set("Accept-Encoding", "identity")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr, lastStatus = fmt.Errorf("send request error: %w", err), 0
		} else if resp.StatusCode != http.StatusPartialContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				lastErr = errors.New("server ignored the range request")
			} else {
				lastErr = fmt.Errorf("range request failed: %s", resp.Status)
			}
			lastStatus = resp.StatusCode
		} else {
			return resp.Body, nil
		}

		c.Logger.Debug().
			Err(lastErr).
			Str("url", url).
			Stringer("range", spec).
			Int("attempt", attempt).
			Int("max_attempts", c.MaxAttempts).
			Msg("range stream attempt failed")
	}

	return nil, Error{URL: url, Spec: spec, Attempts: c.MaxAttempts, StatusCode: lastStatus, Err: lastErr}
}

// Close releases idle connections held by the underlying transport. It is
// safe to call multiple times.
func (c *Client) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}

// parseContentRangeTotal extracts the total resource length from a
// Content-Range header such as "bytes 0-1023/146515".
func parseContentRangeTotal(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 || parts[1] == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
