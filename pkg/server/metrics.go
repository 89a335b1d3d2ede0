/*
 * Copyright (c) 2025, Gideon Williams <gideon@gideonw.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsStore interface {
	Registry() *prometheus.Registry
	RegisterCollector(c prometheus.Collector)
	Handler() http.Handler

	// Collection
	IncEventsFetched(n int)
	IncEventsStored(n int)
	IncFetchErrors()
	IncRateLimitWaits()
	ObservePollDuration(seconds float64)
}

type metricsStore struct {
	registry       *prometheus.Registry
	EventsFetched  prometheus.Counter
	EventsStored   prometheus.Counter
	FetchErrors    prometheus.Counter
	RateLimitWaits prometheus.Counter
	PollDuration   prometheus.Histogram
}

func NewMetricsStore() MetricsStore {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(
			collectors.WithGoCollectorRuntimeMetrics(collectors.MetricsAll),
		),
	)

	factory := promauto.With(reg)
	return &metricsStore{
		registry: reg,
		EventsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitscope_events_fetched_total",
			Help: "The total number of events returned by the global feed",
		}),
		EventsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitscope_events_stored_total",
			Help: "The total number of interesting events written to the store",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitscope_fetch_errors_total",
			Help: "The total number of failed global feed polls",
		}),
		RateLimitWaits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitscope_rate_limit_waits_total",
			Help: "The total number of pauses forced by upstream rate limiting",
		}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gitscope_poll_duration_seconds",
			Help:    "Duration of collector poll iterations",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (ms *metricsStore) Registry() *prometheus.Registry {
	return ms.registry
}

func (ms *metricsStore) RegisterCollector(c prometheus.Collector) {
	ms.registry.MustRegister(c)
}

func (ms *metricsStore) Handler() http.Handler {
	return promhttp.HandlerFor(ms.Registry(), promhttp.HandlerOpts{Registry: ms.Registry()})
}

func (ms *metricsStore) IncEventsFetched(n int) {
	ms.EventsFetched.Add(float64(n))
}

func (ms *metricsStore) IncEventsStored(n int) {
	ms.EventsStored.Add(float64(n))
}

func (ms *metricsStore) IncFetchErrors() {
	ms.FetchErrors.Inc()
}

func (ms *metricsStore) IncRateLimitWaits() {
	ms.RateLimitWaits.Inc()
}

func (ms *metricsStore) ObservePollDuration(seconds float64) {
	ms.PollDuration.Observe(seconds)
}
