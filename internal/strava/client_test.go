// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/database"
)

type memTokenStore struct {
	token *database.StravaToken
	saves int
}

func (m *memTokenStore) GetStravaToken(_ context.Context) (*database.StravaToken, error) {
	if m.token == nil {
		return nil, database.ErrNotFound
	}
	cp := *m.token
	return &cp, nil
}

func (m *memTokenStore) SaveStravaToken(_ context.Context, t *database.StravaToken) error {
	cp := *t
	m.token = &cp
	m.saves++
	return nil
}

func newTestClient(serverURL string, tokens TokenStore) *Client {
	c := NewClient(config.StravaConfig{
		ClientID:     "123",
		ClientSecret: "secret",
		BaseURL:      serverURL + "/api/v3",
	}, tokens)
	// Tests must not wait out the request spacing.
	c.limiter.SetLimit(1e6)
	return c
}

func TestExchangeCodeStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %q, want /oauth/token", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("code"); got != "abc" {
			t.Errorf("code = %q", got)
		}
		fmt.Fprint(w, `{"access_token":"at1","refresh_token":"rt1","expires_at":9999999999,"athlete":{"id":42}}`)
	}))
	defer server.Close()

	store := &memTokenStore{}
	c := newTestClient(server.URL, store)

	if err := c.ExchangeCode(context.Background(), "abc"); err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if store.token == nil || store.token.AccessToken != "at1" || store.token.AthleteID != 42 {
		t.Errorf("stored token = %+v", store.token)
	}
}

func TestAccessTokenRefreshesInsideBuffer(t *testing.T) {
	refreshed := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "rt-old" {
			t.Errorf("refresh_token = %q", got)
		}
		refreshed = true
		fmt.Fprint(w, `{"access_token":"at-new","refresh_token":"rt-new","expires_at":9999999999}`)
	}))
	defer server.Close()

	store := &memTokenStore{token: &database.StravaToken{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		// Expires in two minutes: inside the five minute buffer.
		ExpiresAt: time.Now().Add(2 * time.Minute).Unix(),
	}}
	c := newTestClient(server.URL, store)

	token, err := c.accessToken(context.Background())
	if err != nil {
		t.Fatalf("accessToken() error = %v", err)
	}
	if !refreshed {
		t.Error("token inside expiry buffer was not refreshed")
	}
	if token != "at-new" {
		t.Errorf("token = %q, want at-new", token)
	}
}

func TestAccessTokenFreshTokenNotRefreshed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	store := &memTokenStore{token: &database.StravaToken{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}}
	c := newTestClient(server.URL, store)

	token, err := c.accessToken(context.Background())
	if err != nil {
		t.Fatalf("accessToken() error = %v", err)
	}
	if token != "at" {
		t.Errorf("token = %q, want at", token)
	}
}

func TestAccessTokenNotAuthorized(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0", &memTokenStore{})
	if _, err := c.accessToken(context.Background()); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("error = %v, want ErrNotAuthorized", err)
	}
}

func TestGetActivitiesSincePaginates(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/athlete/activities" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer at" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Errorf("per_page = %q, want 100", got)
		}

		pages++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			// A full page forces a second fetch.
			fmt.Fprint(w, "[")
			for i := 0; i < activitiesPerPage; i++ {
				if i > 0 {
					fmt.Fprint(w, ",")
				}
				fmt.Fprintf(w, `{"id":%d,"type":"Ride","distance":1000,"moving_time":600,"start_date":"2026-03-02T08:00:00Z"}`, i)
			}
			fmt.Fprint(w, "]")
		case "2":
			fmt.Fprint(w, `[{"id":999,"type":"Run","distance":5000,"moving_time":1500,"start_date":"2026-03-03T08:00:00Z"}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	store := &memTokenStore{token: &database.StravaToken{
		AccessToken: "at",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}}
	c := newTestClient(server.URL, store)

	activities, err := c.GetActivitiesSince(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetActivitiesSince() error = %v", err)
	}
	if pages != 2 {
		t.Errorf("pages fetched = %d, want 2", pages)
	}
	if len(activities) != activitiesPerPage+1 {
		t.Errorf("activities = %d, want %d", len(activities), activitiesPerPage+1)
	}
	if last := activities[len(activities)-1]; last.ID != 999 || last.Ride() {
		t.Errorf("last activity = %+v", last)
	}
}

func TestDoRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Rate Limit Exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	store := &memTokenStore{token: &database.StravaToken{
		AccessToken: "at",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}}
	c := newTestClient(server.URL, store)

	if _, err := c.GetActivitiesSince(context.Background(), time.Now().Add(-time.Hour)); err == nil {
		t.Fatal("expected error for 429 response")
	}
}
