/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 * Copyright (c) 2025, Gideon Williams <gideon@gideonw.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package server exposes the store and metric computations over HTTP, plus a
// prometheus endpoint on a separate port.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gitscope/gitscope/pkg/github"
	"github.com/gitscope/gitscope/pkg/metrics"
	"github.com/gitscope/gitscope/pkg/store"
)

// RepoFetcher is the slice of the feed client route handlers use for live
// per-repository lookups.
type RepoFetcher interface {
	FetchRepoEvents(ctx context.Context, owner, repo string) ([]github.Event, error)
	FetchGlobalPage(ctx context.Context, perPage, page int) ([]github.Event, error)
}

type Server struct {
	log     zerolog.Logger
	metrics MetricsStore

	store    store.Store
	client   RepoFetcher
	apiPort  int
	promPort int
}

func New(log zerolog.Logger, ms MetricsStore, st store.Store, client RepoFetcher, apiPort, promPort int) *Server {
	return &Server{
		log:      log,
		metrics:  ms,
		store:    st,
		client:   client,
		apiPort:  apiPort,
		promPort: promPort,
	}
}

// Routes builds the API handler. Split out from ServeAPI so tests can drive
// it with httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleAllEvents)
	mux.HandleFunc("GET /github/events", s.handleGlobalEvents)
	mux.HandleFunc("GET /metrics/event-counts", s.handleEventCounts)
	mux.HandleFunc("GET /metrics/{owner}/{repo}/pr-interval", s.handlePRInterval)
	return s.accessLog(mux)
}

// ServeAPI serves the query API until ctx is cancelled.
func (s *Server) ServeAPI(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.apiPort),
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("api-port", s.apiPort).Msg("listening for API requests")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ServeMetrics serves the prometheus endpoint.
func (s *Server) ServeMetrics() {
	s.log.Info().Int("port", s.promPort).Msg("/metrics endpoint started")
	http.Handle("/metrics", s.metrics.Handler())
	http.ListenAndServe(fmt.Sprintf(":%d", s.promPort), nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "healthy",
		"total_events_collected": stats.Events,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAllEvents dumps every stored event. Full scan, diagnostics only.
func (s *Server) handleAllEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.AllEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to fetch all events: %v", err))
		return
	}
	if events == nil {
		events = []github.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handlePRInterval(w http.ResponseWriter, r *http.Request) {
	repoKey := strings.ToLower(r.PathValue("owner") + "/" + r.PathValue("repo"))

	events, err := s.store.EventsForRepo(r.Context(), repoKey, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var opened []github.Event
	for _, ev := range events {
		if ev.Type == github.PullRequestEvent && ev.Action() == github.ActionOpened {
			opened = append(opened, ev)
		}
	}

	avg, ok := metrics.AveragePRInterval(opened)
	if !ok {
		writeError(w, http.StatusNotFound, "need at least 2 PRs to calculate average interval")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"average_seconds": avg.Seconds()})
}

func (s *Server) handleEventCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner, repo := q.Get("owner"), q.Get("repo")
	offset := intQuery(q.Get("offset"), 10)

	if owner == "" || repo == "" {
		events, err := s.store.Recent(r.Context(), offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, metrics.CountsByType(events))
		return
	}

	repoKey := strings.ToLower(owner + "/" + repo)
	counts, err := s.store.CountsByType(r.Context(), repoKey, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Nothing collected yet for this repo; fall back to a live fetch so the
	// answer isn't empty just because the poller hasn't seen it.
	if len(counts) == 0 {
		events, err := s.client.FetchRepoEvents(r.Context(), owner, repo)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		since := time.Now().UTC().Add(-time.Duration(offset) * time.Minute)
		var windowed []github.Event
		for _, ev := range events {
			t, terr := ev.Created()
			if terr != nil {
				continue
			}
			if !t.Before(since) {
				windowed = append(windowed, ev)
			}
		}
		counts = metrics.CountsByType(windowed)
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleGlobalEvents relays one live page of the global feed, filtered to the
// interesting event types. No store involved.
func (s *Server) handleGlobalEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	perPage := clampInt(intQuery(q.Get("per_page"), 30), 1, 100)
	page := intQuery(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}

	events, err := s.client.FetchGlobalPage(r.Context(), perPage, page)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	filtered := []github.Event{}
	for _, ev := range events {
		if github.Interesting(ev.Type) {
			filtered = append(filtered, ev)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// writeUpstreamError relays the upstream status and body when the failure
// came from the feed, and reports a bad gateway otherwise.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var se *github.StatusError
	if errors.As(err, &se) {
		writeError(w, se.Status, se.Body)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
