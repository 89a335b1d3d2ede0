/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package metrics computes aggregates over slices of stored events. Functions
// here are stateless; callers are responsible for pre-filtering (for example
// to pull-request-opened events).
package metrics

import (
	"sort"
	"time"

	"github.com/gitscope/gitscope/pkg/github"
)

// AveragePRInterval returns the mean interval between successive events,
// sorted by creation time. The second return is false when fewer than two
// events have usable timestamps. Negative deltas are discarded, which guards
// against duplicate timestamps arriving out of order.
func AveragePRInterval(events []github.Event) (time.Duration, bool) {
	times := make([]time.Time, 0, len(events))
	for _, ev := range events {
		t, err := ev.Created()
		if err != nil {
			continue
		}
		times = append(times, t)
	}
	if len(times) < 2 {
		return 0, false
	}

	sort.SliceStable(times, func(i, j int) bool {
		return times[i].Before(times[j])
	})

	var total time.Duration
	count := 0
	for i := 1; i < len(times); i++ {
		delta := times[i].Sub(times[i-1])
		if delta < 0 {
			continue
		}
		total += delta
		count++
	}
	if count == 0 {
		return 0, false
	}
	return total / time.Duration(count), true
}

// CountsByType totals events per type. Events without a type are bucketed
// under "Unknown".
func CountsByType(events []github.Event) map[string]int {
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
