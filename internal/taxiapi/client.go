/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package taxiapi is a client for the ride-pricing "route info" API that
// quotes every tariff class for a trip between two points.
package taxiapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/telemetry"
	"golang.org/x/time/rate"
)

// ErrUnexpectedStatus marks a response that is not a successful quote.
var ErrUnexpectedStatus = errors.New("unexpected status from pricing API")

// StatusError wraps ErrUnexpectedStatus with the HTTP status code.
func StatusError(code int) error {
	return fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
}

const maxBodyBytes = 1 << 20

// Config holds API credentials and limits.
type Config struct {
	BaseURL  string
	ClientID string
	APIKey   string
	Classes  string
	// RequestsPerSecond caps outgoing requests; zero disables the limit.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client performs rate limited, traced requests.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: telemetry.HTTPTransport(nil),
		}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{cfg: cfg, http: httpClient, limiter: limiter}
}

// Response is a raw API exchange.
type Response struct {
	StatusCode int
	Params     map[string]string
	Body       []byte
	Duration   time.Duration
}

// Params returns the query parameters for a trip. The API expects
// longitude before latitude.
func (c *Client) Params(from, dest models.Coordinate) map[string]string {
	return map[string]string{
		"rll":    fmt.Sprintf("%s,%s~%s,%s", fmtCoord(from.Longitude), fmtCoord(from.Latitude), fmtCoord(dest.Longitude), fmtCoord(dest.Latitude)),
		"clid":   c.cfg.ClientID,
		"apikey": c.cfg.APIKey,
		"class":  c.cfg.Classes,
	}
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RouteInfo requests a quote for the trip. Non-2xx statuses are returned
// as a Response, not an error; only transport failures are errors.
func (c *Client) RouteInfo(ctx context.Context, from, dest models.Coordinate) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := c.Params(from, dest)
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	telemetry.PricingAPIRequestDuration.Observe(elapsed.Seconds())
	if err != nil {
		telemetry.PricingAPIRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("pricing API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		telemetry.PricingAPIRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}
	telemetry.PricingAPIRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	// Credentials are not kept with the logged request.
	delete(params, "apikey")
	return &Response{StatusCode: resp.StatusCode, Params: params, Body: body, Duration: elapsed}, nil
}
