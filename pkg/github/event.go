/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package github

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Event types the collector retains. Everything else on the public feed is
// dropped at ingestion.
const (
	WatchEvent       = "WatchEvent"
	PullRequestEvent = "PullRequestEvent"
	IssuesEvent      = "IssuesEvent"

	ActionOpened = "opened"
)

var interesting = map[string]struct{}{
	WatchEvent:       {},
	PullRequestEvent: {},
	IssuesEvent:      {},
}

// Interesting reports whether an event type is one of the three kinds we keep.
func Interesting(eventType string) bool {
	_, ok := interesting[eventType]
	return ok
}

// Repo identifies the repository an event belongs to, as reported by the feed.
type Repo struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Event is a single activity item from the GitHub events feed. The actor and
// payload are carried through opaquely; only payload.action is ever inspected.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     json.RawMessage `json:"actor,omitempty"`
	Repo      Repo            `json:"repo"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// Created parses the event's created_at timestamp. The feed emits ISO-8601
// with a trailing Z; the result is always UTC. This is the one place
// timestamps are parsed, so that store filtering and metric computation agree
// on semantics.
func (e Event) Created() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, e.CreatedAt)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing created_at %q", e.CreatedAt)
	}
	return t.UTC(), nil
}

// Action returns payload.action, or "" when the payload has none.
func (e Event) Action() string {
	if len(e.Payload) == 0 {
		return ""
	}
	var p struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	return p.Action
}

// RepoKey returns the lowercase owner/name partition key for this event, or
// "" when the feed entry carried no repository name.
func (e Event) RepoKey() string {
	return strings.ToLower(e.Repo.Name)
}
