// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/justestif/moodtune/internal/metrics"
)

// ErrNotConfigured is returned when no Spotify credentials are available.
var ErrNotConfigured = errors.New("spotify credentials not configured")

// Default request budget. Spotify rate limits over a rolling 30 second window.
const (
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 5
)

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api     *spotify.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit sets the request budget.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client, opts ...Option) *Client {
	c := &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(time.Second/DefaultRequestsPerSecond), DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithCredentials authenticates with the client-credentials flow.
// No user is involved, so only catalogue endpoints are available.
// The token is refreshed on demand using ctx, which should outlive the client.
func NewWithCredentials(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrNotConfigured
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return New(spotify.New(cfg.Client(ctx)), opts...), nil
}

// wait blocks until the limiter allows another request.
func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}
