/*
 * Copyright (c) 2025, Gideon Williams <gideon@gideonw.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gitscope/gitscope/pkg/github"
)

const (
	redisEventPrefix = "gitscope:events:"
	redisRepoSet     = "gitscope:repos"
)

// RedisStore is the durable, retention-expiring backend. Each repository gets
// a sorted set scored by created_at epoch seconds; entries older than the
// retention horizon are dropped on read, and whole keys expire when a
// repository stops receiving events.
type RedisStore struct {
	log       zerolog.Logger
	rdb       *redis.Client
	retention time.Duration
}

func NewRedisStore(log zerolog.Logger, rdb *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{log: log, rdb: rdb, retention: retention}
}

func (s *RedisStore) Add(ctx context.Context, ev github.Event) error {
	key := ev.RepoKey()
	if key == "" {
		return ErrMalformedEvent
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}

	score := time.Now().UTC()
	if t, terr := ev.Created(); terr == nil {
		score = t
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, redisEventPrefix+key, redis.Z{
		Score:  float64(score.Unix()),
		Member: raw,
	})
	pipe.SAdd(ctx, redisRepoSet, key)
	pipe.Expire(ctx, redisEventPrefix+key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "storing event for %s", key)
	}

	s.log.Debug().Str("repo", key).Str("type", ev.Type).Msg("stored event")
	return nil
}

func (s *RedisStore) EventsForRepo(ctx context.Context, repo string, since *time.Time) ([]github.Event, error) {
	key := strings.ToLower(repo)
	if err := s.expire(ctx, key); err != nil {
		return nil, err
	}

	min := "-inf"
	if since != nil {
		min = strconv.FormatInt(since.Unix(), 10)
	}
	vals, err := s.rdb.ZRangeByScore(ctx, redisEventPrefix+key, &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "querying events for %s", key)
	}

	events := make([]github.Event, 0, len(vals))
	for _, v := range vals {
		var ev github.Event
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			s.log.Warn().Err(err).Str("repo", key).Msg("skipping undecodable stored event")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *RedisStore) CountsByType(ctx context.Context, repo string, minutesBack int) (map[string]int, error) {
	since := cutoff(minutesBack)
	events, err := s.EventsForRepo(ctx, repo, &since)
	if err != nil {
		return nil, err
	}
	return countByType(events), nil
}

func (s *RedisStore) Recent(ctx context.Context, minutesBack int) ([]github.Event, error) {
	since := cutoff(minutesBack)
	return s.scan(ctx, &since)
}

func (s *RedisStore) AllEvents(ctx context.Context) ([]github.Event, error) {
	return s.scan(ctx, nil)
}

func (s *RedisStore) scan(ctx context.Context, since *time.Time) ([]github.Event, error) {
	repos, err := s.rdb.SMembers(ctx, redisRepoSet).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing repositories")
	}

	var out []github.Event
	for _, repo := range repos {
		events, err := s.EventsForRepo(ctx, repo, since)
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
	}
	return out, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	repos, err := s.rdb.SMembers(ctx, redisRepoSet).Result()
	if err != nil {
		return Stats{}, errors.Wrap(err, "listing repositories")
	}

	stats := Stats{Partitions: len(repos)}
	for _, repo := range repos {
		n, err := s.rdb.ZCard(ctx, redisEventPrefix+repo).Result()
		if err != nil {
			return Stats{}, errors.Wrapf(err, "counting events for %s", repo)
		}
		stats.Events += int(n)
	}
	return stats, nil
}

// expire drops entries older than the retention horizon.
func (s *RedisStore) expire(ctx context.Context, repo string) error {
	horizon := time.Now().UTC().Add(-s.retention).Unix()
	err := s.rdb.ZRemRangeByScore(ctx, redisEventPrefix+repo, "-inf", "("+strconv.FormatInt(horizon, 10)).Err()
	if err != nil {
		return errors.Wrapf(err, "expiring events for %s", repo)
	}
	return nil
}
