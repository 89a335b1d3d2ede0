/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitscope/gitscope/pkg/github"
)

// MemoryStore keeps events in per-repository slices. A read lock on the
// partition map plus a per-partition lock is all the coordination needed:
// there is one logical writer, and cross-partition scans don't need a global
// snapshot. Retention is unbounded; the redis backend is the one that expires.
type MemoryStore struct {
	log zerolog.Logger

	mu         sync.RWMutex
	partitions map[string]*partition
}

type partition struct {
	mu     sync.RWMutex
	events []github.Event
}

func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		log:        log,
		partitions: make(map[string]*partition),
	}
}

func (s *MemoryStore) Add(_ context.Context, ev github.Event) error {
	key := ev.RepoKey()
	if key == "" {
		return ErrMalformedEvent
	}

	s.mu.Lock()
	p, ok := s.partitions[key]
	if !ok {
		p = &partition{}
		s.partitions[key] = p
	}
	s.mu.Unlock()

	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()

	s.log.Debug().Str("repo", key).Str("type", ev.Type).Msg("stored event")
	return nil
}

func (s *MemoryStore) EventsForRepo(_ context.Context, repo string, since *time.Time) ([]github.Event, error) {
	s.mu.RLock()
	p := s.partitions[strings.ToLower(repo)]
	s.mu.RUnlock()

	if p == nil {
		return nil, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return s.filter(p.events, since), nil
}

// filter copies events matching the window. Events whose timestamp won't
// parse are skipped when a window is requested.
func (s *MemoryStore) filter(events []github.Event, since *time.Time) []github.Event {
	if since == nil {
		return append([]github.Event(nil), events...)
	}

	var out []github.Event
	for _, ev := range events {
		t, err := ev.Created()
		if err != nil {
			s.log.Debug().Err(err).Str("id", ev.ID).Msg("skipping event with bad timestamp")
			continue
		}
		if !t.Before(*since) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *MemoryStore) CountsByType(ctx context.Context, repo string, minutesBack int) (map[string]int, error) {
	since := cutoff(minutesBack)
	events, err := s.EventsForRepo(ctx, repo, &since)
	if err != nil {
		return nil, err
	}
	return countByType(events), nil
}

func (s *MemoryStore) Recent(_ context.Context, minutesBack int) ([]github.Event, error) {
	since := cutoff(minutesBack)
	var out []github.Event
	for _, p := range s.snapshot() {
		p.mu.RLock()
		out = append(out, s.filter(p.events, &since)...)
		p.mu.RUnlock()
	}
	return out, nil
}

func (s *MemoryStore) AllEvents(_ context.Context) ([]github.Event, error) {
	var out []github.Event
	for _, p := range s.snapshot() {
		p.mu.RLock()
		out = append(out, p.events...)
		p.mu.RUnlock()
	}
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	stats := Stats{}
	for _, p := range s.snapshot() {
		p.mu.RLock()
		stats.Partitions++
		stats.Events += len(p.events)
		p.mu.RUnlock()
	}
	return stats, nil
}

func (s *MemoryStore) snapshot() []*partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]*partition, 0, len(s.partitions))
	for _, p := range s.partitions {
		parts = append(parts, p)
	}
	return parts
}
