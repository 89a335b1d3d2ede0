/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(zerolog.Nop(), "")
	c.baseURL = srv.URL
	c.pagePause = 0
	return c, srv
}

func pageOf(n int, repo string) []Event {
	events := make([]Event, n)
	for i := range events {
		events[i] = Event{
			ID:        fmt.Sprintf("%d", i),
			Type:      WatchEvent,
			Repo:      Repo{Name: repo},
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}
	return events
}

func TestFetchRepoEventsStopsOnEmptyPage(t *testing.T) {
	var requests int
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("page") == "1" {
			json.NewEncoder(w).Encode(pageOf(100, "golang/go"))
			return
		}
		json.NewEncoder(w).Encode([]Event{})
	}))

	events, err := c.FetchRepoEvents(context.Background(), "golang", "go")
	require.NoError(t, err)
	assert.Len(t, events, 100)
	assert.Equal(t, 2, requests, "should stop after the first empty page")
}

func TestFetchRepoEventsCapsAtThreePages(t *testing.T) {
	var requests int
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(pageOf(100, "golang/go"))
	}))

	events, err := c.FetchRepoEvents(context.Background(), "golang", "go")
	require.NoError(t, err)
	assert.Len(t, events, 300)
	assert.Equal(t, 3, requests)
}

func TestFetchPageSendsRequiredHeaders(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, clientAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode([]Event{})
	}))
	c.token = "sekrit"

	_, err := c.FetchPage(context.Background(), c.baseURL+"/events", 2, 50)
	require.NoError(t, err)
}

func TestFetchPageNotFoundIsEmpty(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	events, err := c.FetchGlobalPage(context.Background(), 100, 1)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchPageUpstreamFailure(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream sad"))
	}))

	_, err := c.FetchGlobalPage(context.Background(), 100, 1)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Contains(t, se.Body, "upstream sad")
}

func TestFetchPageMalformedBody(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))

	_, err := c.FetchGlobalPage(context.Background(), 100, 1)
	assert.Error(t, err)
}

func TestFetchPageRetriesAfterRateLimit(t *testing.T) {
	now := time.Now()
	var requests int
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", now.Unix()+20))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(pageOf(3, "golang/go"))
	}))

	var slept []time.Duration
	c.policy = &LimitPolicy{
		Now:   func() time.Time { return now },
		Sleep: func(_ context.Context, d time.Duration) error { slept = append(slept, d); return nil },
	}

	var waits int
	c.OnRateLimitWait = func(time.Duration) { waits++ }

	events, err := c.FetchGlobalPage(context.Background(), 100, 1)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, 2, requests, "should re-issue the request after the pause")
	require.Len(t, slept, 1)
	assert.Equal(t, 20*time.Second+rateLimitSlack, slept[0])
	assert.Equal(t, 1, waits)
}

func TestFetchPageRateLimitWithQuotaLeftProceeds(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "5")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
	}))
	c.policy.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("policy must not sleep when quota remains")
		return nil
	}

	_, err := c.FetchGlobalPage(context.Background(), 100, 1)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
}
