// Package fetch performs rate-limited, retried fetches through the
// rendering proxy and accounts for the credits each attempt consumes.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Meter receives consumption and transport-error counts from the
// client. The pipeline run state implements it.
type Meter interface {
	AddCredits(n int)
	AddFetchError()
}

// Config controls proxy access and the retry schedule.
type Config struct {
	APIKey      string
	BaseURL     string
	CountryCode string
	Timeout     time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// MinBodyBytes below which a response is a soft failure.
	MinBodyBytes int

	RateLimitBackoff   time.Duration
	ServerErrorBackoff time.Duration
	ShortBodyBackoff   time.Duration
	TransportBackoff   time.Duration

	RenderCost int
	PlainCost  int
}

// Defaults returns the production retry schedule and costs.
func Defaults() Config {
	return Config{
		BaseURL:            "https://api.scraperapi.com",
		CountryCode:        "fr",
		Timeout:            90 * time.Second,
		MaxRetries:         2,
		MinBodyBytes:       2000,
		RateLimitBackoff:   15 * time.Second,
		ServerErrorBackoff: 8 * time.Second,
		ShortBodyBackoff:   10 * time.Second,
		TransportBackoff:   5 * time.Second,
		RenderCost:         10,
		PlainCost:          5,
	}
}

type action int

const (
	actSuccess action = iota
	actRetry
	actEmpty
	actFail
)

// Client fetches target URLs through the proxy.
type Client struct {
	cfg    Config
	http   *http.Client
	meter  Meter
	logger *zap.Logger
	sleep  func(time.Duration)
}

// New constructs a Client. meter may not be nil.
func New(cfg Config, meter Meter, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = Defaults().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Defaults().Timeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		meter:  meter,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Fetch performs one proxied GET of target. A false result means every
// attempt failed; an empty-but-true result means the source answered
// with a permanent client error and the caller should treat the page as
// having no listings. Fetch never returns an error: the pipeline
// tolerates fully failed fetches.
func (c *Client) Fetch(ctx context.Context, target string, render bool) (string, bool) {
	cost := c.cfg.PlainCost
	if render {
		cost = c.cfg.RenderCost
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}

		body, status, err := c.attempt(ctx, target, render)
		c.meter.AddCredits(cost)

		act, backoff := c.classify(status, len(body), err)
		switch act {
		case actSuccess:
			return body, true
		case actEmpty:
			return "", true
		case actFail:
			return "", false
		case actRetry:
			if attempt >= c.cfg.MaxRetries {
				return "", false
			}
			c.logger.Debug("fetch retry",
				zap.String("url", target),
				zap.Int("status", status),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			c.sleep(backoff)
		}
	}
}

// classify maps an attempt outcome onto the retry policy: rate limits
// and server errors back off and retry, other client errors are
// permanently empty, short bodies are soft failures, transport errors
// count and retry.
func (c *Client) classify(status, bodyLen int, err error) (action, time.Duration) {
	switch {
	case err != nil:
		c.meter.AddFetchError()
		return actRetry, c.cfg.TransportBackoff
	case status == http.StatusTooManyRequests:
		return actRetry, c.cfg.RateLimitBackoff
	case status == http.StatusInternalServerError || status == http.StatusForbidden:
		return actRetry, c.cfg.ServerErrorBackoff
	case status >= 400:
		return actEmpty, 0
	case bodyLen < c.cfg.MinBodyBytes:
		return actRetry, c.cfg.ShortBodyBackoff
	default:
		return actSuccess, 0
	}
}

func (c *Client) attempt(ctx context.Context, target string, render bool) (string, int, error) {
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("url", target)
	if render {
		q.Set("render", "true")
	}
	if c.cfg.CountryCode != "" {
		q.Set("country_code", c.cfg.CountryCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}
