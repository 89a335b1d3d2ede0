/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package store holds collected feed events, partitioned by repository, and
// serves time-windowed queries concurrently with ingestion.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gitscope/gitscope/pkg/github"
)

// ErrMalformedEvent is returned by Add for events that carry no repository
// name. Callers ingesting a batch should skip the event and continue.
var ErrMalformedEvent = errors.New("event has no repository name")

// Stats is a point-in-time summary of store contents.
type Stats struct {
	Partitions int
	Events     int
}

// Store is the capability interface shared by the in-memory and redis
// backends. Reads may run concurrently with the single ingesting writer.
//
// EventsForRepo returns events in insertion order, not time order; callers
// needing chronological order must sort. Recent and AllEvents scan every
// partition and promise no cross-partition order.
type Store interface {
	Add(ctx context.Context, ev github.Event) error
	EventsForRepo(ctx context.Context, repo string, since *time.Time) ([]github.Event, error)
	CountsByType(ctx context.Context, repo string, minutesBack int) (map[string]int, error)
	Recent(ctx context.Context, minutesBack int) ([]github.Event, error)
	AllEvents(ctx context.Context) ([]github.Event, error)
	Stats(ctx context.Context) (Stats, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend   string
	RedisAddr string
	Retention time.Duration
}

// New constructs the configured backend. The in-memory store is the default.
func New(log zerolog.Logger, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(log), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisStore(log, rdb, cfg.Retention), nil
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func countByType(events []github.Event) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		t := ev.Type
		if t == "" {
			t = "Unknown"
		}
		counts[t]++
	}
	return counts
}

func cutoff(minutesBack int) time.Time {
	return time.Now().UTC().Add(-time.Duration(minutesBack) * time.Minute)
}
