package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 2 * time.Second})
}

func TestReverseGeocode(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":{"code":200,"message":"OK"},"results":[{"formatted":"Flinders St, Melbourne VIC 3000, Australia"}]}`))
	})

	addr, err := c.ReverseGeocode(context.Background(), orb.Point{144.9648731, -37.8182711})
	require.NoError(t, err)
	assert.Equal(t, "Flinders St, Melbourne VIC 3000, Australia", addr)

	assert.Equal(t, "-37.8182711,144.9648731", got.Get("q"))
	assert.Equal(t, "test-key", got.Get("key"))
	assert.Equal(t, "1", got.Get("limit"))
	assert.Equal(t, "1", got.Get("no_annotations"))
}

func TestReverseGeocode_NoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":{"code":200,"message":"OK"},"results":[]}`))
	})

	_, err := c.ReverseGeocode(context.Background(), orb.Point{0, 0})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestReverseGeocode_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"status":{"code":402,"message":"quota exceeded"},"results":[]}`))
	})

	_, err := c.ReverseGeocode(context.Background(), orb.Point{1, 1})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusPaymentRequired, upstream.StatusCode)
	assert.Equal(t, "quota exceeded", upstream.Message)
}

func TestReverseGeocode_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.ReverseGeocode(context.Background(), orb.Point{1, 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResults)
}

func TestReverseGeocode_MissingKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.ReverseGeocode(context.Background(), orb.Point{1, 1})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, calls)
}

func TestReverseGeocode_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"formatted":"x"}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", RequestsPerSecond: 0.01})
	_, err := c.ReverseGeocode(context.Background(), orb.Point{1, 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ReverseGeocode(ctx, orb.Point{1, 1})
	assert.Error(t, err)
}
