// Package geocode resolves coordinates to formatted addresses through the
// OpenCage geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the OpenCage JSON endpoint.
const DefaultBaseURL = "https://api.opencagedata.com/geocode/v1/json"

var (
	ErrNoResults     = errors.New("geocode: no results")
	ErrMissingAPIKey = errors.New("geocode: missing API key")
)

// UpstreamError is returned when the geocoding API answers with a non-200
// status.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("geocode: upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("geocode: upstream status %d: %s", e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// RequestsPerSecond limits outbound calls. Zero means unlimited.
	RequestsPerSecond float64
	Timeout           time.Duration
	UserAgent         string
	Logger            *zap.Logger
}

// Client is a reverse geocoder. It is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	log       *zap.Logger
}

// New creates a client. The API key is checked on each call so a server can
// start without one.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Inf, 1),
		log:       cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = "plat-trip/1.0"
	}
	if cfg.Timeout <= 0 {
		c.http.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

type response struct {
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Results []struct {
		Formatted string `json:"formatted"`
	} `json:"results"`
}

// ReverseGeocode returns the formatted address of the first result for pos.
func (c *Client) ReverseGeocode(ctx context.Context, pos orb.Point) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("geocode: rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("q", formatCoord(pos.Lat())+","+formatCoord(pos.Lon()))
	params.Set("key", c.apiKey)
	params.Set("limit", "1")
	params.Set("no_annotations", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("opencage request failed", zap.Error(err))
		return "", fmt.Errorf("geocode: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body response
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("opencage upstream error", zap.Int("status", resp.StatusCode))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: body.Status.Message}
	}
	if decodeErr != nil {
		c.log.Error("failed to decode opencage payload", zap.Error(decodeErr))
		return "", fmt.Errorf("geocode: decode: %w", decodeErr)
	}
	if len(body.Results) == 0 || body.Results[0].Formatted == "" {
		return "", ErrNoResults
	}
	return body.Results[0].Formatted, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
