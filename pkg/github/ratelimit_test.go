/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package github

import (
	"net/http"
	"testing"
	"time"
)

func limitHeaders(remaining, reset string) http.Header {
	h := http.Header{}
	if remaining != "" {
		h.Set("X-RateLimit-Remaining", remaining)
	}
	if reset != "" {
		h.Set("X-RateLimit-Reset", reset)
	}
	return h
}

func TestBackoff(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	policy := &LimitPolicy{Now: func() time.Time { return now }}

	tt := []struct {
		test      string
		status    int
		remaining string
		reset     string
		want      time.Duration
	}{
		{
			"quota exhausted waits until reset plus slack",
			http.StatusForbidden,
			"0",
			"1700000020",
			20*time.Second + rateLimitSlack,
		},
		{
			"quota remaining never waits",
			http.StatusForbidden,
			"5",
			"1700000020",
			0,
		},
		{
			"non-403 never waits",
			http.StatusOK,
			"0",
			"1700000020",
			0,
		},
		{
			"reset in the past proceeds immediately",
			http.StatusForbidden,
			"0",
			"1699999990",
			0,
		},
		{
			"absent headers default to zero",
			http.StatusForbidden,
			"",
			"",
			0,
		},
		{
			"unparseable remaining treated as exhausted",
			http.StatusForbidden,
			"not-a-number",
			"1700000010",
			10*time.Second + rateLimitSlack,
		},
	}

	for _, tc := range tt {
		t.Run(tc.test, func(t *testing.T) {
			got := policy.Backoff(tc.status, limitHeaders(tc.remaining, tc.reset))
			if got != tc.want {
				t.Errorf("expected backoff %v, got %v", tc.want, got)
			}
		})
	}
}
