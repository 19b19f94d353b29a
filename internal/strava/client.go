// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package strava syncs weekly cycling aggregates from the Strava API as an
// optional overlay for the attendance heatmap. Everything here is
// best-effort: a failed sync never blocks ingestion or summary reads.
package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/database"
	"github.com/gymtrack/gymtrackd/internal/logging"
)

// tokenExpiryBuffer refreshes the access token this long before its actual
// expiry so in-flight requests never race the deadline.
const tokenExpiryBuffer = 300 * time.Second

// activitiesPerPage is Strava's maximum page size.
const activitiesPerPage = 100

// ErrNotAuthorized is returned when no OAuth token is stored yet; the
// operator must complete the authorization flow first.
var ErrNotAuthorized = errors.New("strava: not authorized, complete the OAuth flow")

// TokenStore persists the OAuth credential set across restarts.
type TokenStore interface {
	GetStravaToken(ctx context.Context) (*database.StravaToken, error)
	SaveStravaToken(ctx context.Context, t *database.StravaToken) error
}

// Activity is the subset of a Strava activity the sync consumes.
type Activity struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Distance   float64   `json:"distance"`    // meters
	MovingTime int       `json:"moving_time"` // seconds
	StartDate  time.Time `json:"start_date"`
}

// Ride reports whether the activity counts as cycling.
func (a *Activity) Ride() bool {
	return a.Type == "Ride" || a.Type == "VirtualRide"
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Athlete      struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

// Client is a rate-limited, circuit-breaker-protected Strava API client.
// Strava allows 100 requests per 15 minutes on the free tier; the limiter
// spaces requests to stay under that with headroom for other consumers.
type Client struct {
	cfg      config.StravaConfig
	http     *http.Client
	tokens   TokenStore
	cb       *gobreaker.CircuitBreaker[[]byte]
	limiter  *rate.Limiter
	tokenURL string
}

// NewClient builds a Client. The circuit opens after five consecutive
// failures and probes again after a minute, so a Strava outage degrades to
// skipped syncs instead of hammering a dead API.
func NewClient(cfg config.StravaConfig, tokens TokenStore) *Client {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "strava-api",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: timeout},
		tokens:   tokens,
		cb:       cb,
		limiter:  rate.NewLimiter(rate.Every(9*time.Second), 10),
		tokenURL: strings.TrimSuffix(cfg.BaseURL, "/api/v3") + "/oauth/token",
	}
}

// ExchangeCode trades an OAuth authorization code for tokens and stores
// them. Called once from the authorization callback.
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	return c.requestToken(ctx, url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	})
}

// refreshToken replaces an expiring token set using the stored refresh token.
func (c *Client) refreshToken(ctx context.Context, refresh string) error {
	return c.requestToken(ctx, url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {refresh},
		"grant_type":    {"refresh_token"},
	})
}

func (c *Client) requestToken(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("strava: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("strava: token request failed: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("strava: malformed token response: %w", err)
	}

	if err := c.tokens.SaveStravaToken(ctx, &database.StravaToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
		AthleteID:    tr.Athlete.ID,
	}); err != nil {
		return fmt.Errorf("strava: persist token: %w", err)
	}

	logging.Info().
		Int64("athlete_id", tr.Athlete.ID).
		Time("expires_at", time.Unix(tr.ExpiresAt, 0).UTC()).
		Msg("Strava token stored")
	return nil
}

// accessToken returns a valid access token, refreshing it when within the
// expiry buffer.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	t, err := c.tokens.GetStravaToken(ctx)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrNotAuthorized
		}
		return "", err
	}

	if time.Now().Add(tokenExpiryBuffer).Unix() < t.ExpiresAt {
		return t.AccessToken, nil
	}

	logging.Debug().Msg("Strava access token expiring, refreshing")
	if err := c.refreshToken(ctx, t.RefreshToken); err != nil {
		return "", err
	}
	t, err = c.tokens.GetStravaToken(ctx)
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// GetActivitiesSince pages through the athlete's activities after the given
// instant, oldest pages first exhausted until a short page.
func (c *Client) GetActivitiesSince(ctx context.Context, after time.Time) ([]Activity, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var all []Activity
	for page := 1; ; page++ {
		q := url.Values{
			"after":    {strconv.FormatInt(after.Unix(), 10)},
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(activitiesPerPage)},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.BaseURL+"/athlete/activities?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("strava: build activities request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		body, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("strava: activities page %d failed: %w", page, err)
		}

		var activities []Activity
		if err := json.Unmarshal(body, &activities); err != nil {
			return nil, fmt.Errorf("strava: malformed activities response: %w", err)
		}

		all = append(all, activities...)
		if len(activities) < activitiesPerPage {
			return all, nil
		}
	}
}

// do executes one request through the rate limiter and circuit breaker,
// returning the response body. Non-2xx statuses are failures and count
// toward tripping the breaker.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	return c.cb.Execute(func() ([]byte, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := readBody(resp)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
		}
		return body, nil
	})
}

// readBody drains the response with a 10 MiB cap; activity pages are far
// smaller, the cap just bounds a misbehaving endpoint.
func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
