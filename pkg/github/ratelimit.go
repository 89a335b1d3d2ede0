/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package github

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// rateLimitSlack is added on top of the reset horizon so we don't wake up a
// moment before the quota actually refills.
const rateLimitSlack = 5 * time.Second

// LimitPolicy decides whether a response means we have exhausted our request
// quota and, if so, how long to pause before retrying. Now and Sleep are
// fields so tests can substitute a fake clock.
type LimitPolicy struct {
	Now   func() time.Time
	Sleep func(context.Context, time.Duration) error
}

func NewLimitPolicy() *LimitPolicy {
	return &LimitPolicy{
		Now:   time.Now,
		Sleep: sleepContext,
	}
}

// Backoff returns how long the caller should pause before re-issuing the
// request, or zero when it may proceed. Only a 403 with zero remaining quota
// and a reset time still in the future triggers a pause.
func (p *LimitPolicy) Backoff(status int, h http.Header) time.Duration {
	if status != http.StatusForbidden {
		return 0
	}
	if headerInt(h, "X-RateLimit-Remaining") > 0 {
		return 0
	}
	reset := headerInt(h, "X-RateLimit-Reset")
	wait := time.Unix(int64(reset), 0).Sub(p.Now())
	if wait <= 0 {
		return 0
	}
	return wait + rateLimitSlack
}

// headerInt parses a numeric header, defaulting to 0 when absent or
// unparseable.
func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
