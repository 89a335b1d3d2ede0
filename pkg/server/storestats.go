/*
 * Copyright (c) 2025, Gideon Williams <gideon@gideonw.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitscope/gitscope/pkg/store"
)

type storeStatsCollector struct {
	store store.Store

	partitions *prometheus.Desc
	events     *prometheus.Desc
}

func NewStoreStatsCollector(s store.Store) prometheus.Collector {
	return &storeStatsCollector{
		store: s,
		partitions: prometheus.NewDesc(
			"gitscope_store_partitions",
			"Number of repository partitions in the event store.",
			nil, nil,
		),
		events: prometheus.NewDesc(
			"gitscope_store_events",
			"Number of events held in the event store.",
			nil, nil,
		),
	}
}

// Describe implements Collector.
func (c *storeStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.partitions
	ch <- c.events
}

// Collect implements Collector.
func (c *storeStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Stats(context.Background())
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.partitions, prometheus.GaugeValue, float64(stats.Partitions))
	ch <- prometheus.MustNewConstMetric(c.events, prometheus.GaugeValue, float64(stats.Events))
}
