/*
 * Copyright (c) 2025, Gideon Williams <gideon@gideonw.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package collector runs the background loop that polls the global events
// feed and writes interesting events into the store.
package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitscope/gitscope/pkg/github"
	"github.com/gitscope/gitscope/pkg/store"
)

const globalPageSize = 100

// Fetcher is the slice of the feed client the loop needs.
type Fetcher interface {
	FetchGlobalPage(ctx context.Context, perPage, page int) ([]github.Event, error)
}

// Metrics receives per-iteration counters. A nil Metrics is replaced with a
// no-op implementation.
type Metrics interface {
	IncEventsFetched(n int)
	IncEventsStored(n int)
	IncFetchErrors()
	ObservePollDuration(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) IncEventsFetched(int)        {}
func (noopMetrics) IncEventsStored(int)         {}
func (noopMetrics) IncFetchErrors()             {}
func (noopMetrics) ObservePollDuration(float64) {}

// Collector polls the global feed on a fixed cadence. Errors never terminate
// the loop; only context cancellation does.
type Collector struct {
	log      zerolog.Logger
	fetcher  Fetcher
	store    store.Store
	interval time.Duration
	metrics  Metrics
}

func New(log zerolog.Logger, f Fetcher, s store.Store, interval time.Duration, m Metrics) *Collector {
	if m == nil {
		m = noopMetrics{}
	}
	return &Collector{
		log:      log,
		fetcher:  f,
		store:    s,
		interval: interval,
		metrics:  m,
	}
}

// Run polls until ctx is cancelled, sleeping the configured interval between
// iterations whether or not an iteration succeeded.
func (c *Collector) Run(ctx context.Context) error {
	c.log.Info().Dur("interval", c.interval).Msg("starting event collector")

	for {
		c.poll(ctx)

		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.log.Info().Msg("event collector stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Collector) poll(ctx context.Context) {
	start := time.Now()
	defer func() {
		c.metrics.ObservePollDuration(time.Since(start).Seconds())
	}()

	events, err := c.fetcher.FetchGlobalPage(ctx, globalPageSize, 1)
	if err != nil {
		c.metrics.IncFetchErrors()
		c.log.Error().Err(err).Msg("error fetching public events")
		return
	}
	c.metrics.IncEventsFetched(len(events))
	c.log.Info().Int("fetched", len(events)).Msg("fetched public events")

	stored := 0
	for _, ev := range events {
		if !github.Interesting(ev.Type) {
			continue
		}
		if err := c.store.Add(ctx, ev); err != nil {
			c.log.Error().Err(err).Str("id", ev.ID).Msg("failed to store event")
			continue
		}
		stored++
	}
	c.metrics.IncEventsStored(stored)
	c.log.Info().Int("stored", stored).Msg("stored interesting events")
}
