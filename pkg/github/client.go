/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 * Copyright (c) 2025, Gideon Williams <gideon@gideonw.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
	clientAgent    = "gitscope"

	requestTimeout = 30 * time.Second

	// The events API never returns more than 300 items for a single
	// repository, so three pages of 100 is the most we can get.
	repoPageSize = 100
	maxRepoPages = 3

	maxErrorBody = 4 << 10
)

// StatusError is returned for non-2xx responses that are not handled
// internally (404 and rate-limit 403s never surface as errors). It carries
// the upstream status and body so route-level callers can relay them.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// Client fetches pages of the public events feed.
type Client struct {
	log    zerolog.Logger
	http   *http.Client
	policy *LimitPolicy

	baseURL string
	token   string

	// pagePause is the delay between successive per-repo page requests.
	// Injectable so tests don't sleep.
	pagePause time.Duration

	// OnRateLimitWait, when set, is invoked with the pause duration every
	// time the rate-limit policy suspends a request.
	OnRateLimitWait func(time.Duration)
}

func NewClient(log zerolog.Logger, token string) *Client {
	return &Client{
		log:       log,
		http:      &http.Client{Timeout: requestTimeout},
		policy:    NewLimitPolicy(),
		baseURL:   defaultBaseURL,
		token:     token,
		pagePause: time.Second,
	}
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", clientAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// FetchPage fetches a single page of events from url. Timeouts and 404s
// yield an empty page rather than an error; a quota-exhausted 403 suspends
// and retries internally. Any other non-2xx status or an undecodable body is
// returned as an error for the caller to surface or swallow.
func (c *Client) FetchPage(ctx context.Context, url string, page, perPage int) ([]Event, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building feed request")
		}
		q := req.URL.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(perPage))
		req.URL.RawQuery = q.Encode()
		c.headers(req)

		resp, err := c.http.Do(req)
		if err != nil {
			if isTimeout(err) {
				c.log.Warn().Str("url", url).Msg("timeout fetching feed page")
				return nil, nil
			}
			return nil, errors.Wrap(err, "fetching feed page")
		}

		if wait := c.policy.Backoff(resp.StatusCode, resp.Header); wait > 0 {
			drain(resp)
			c.log.Warn().Dur("wait", wait).Msg("rate limit exhausted, pausing")
			if c.OnRateLimitWait != nil {
				c.OnRateLimitWait(wait)
			}
			if err := c.policy.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			drain(resp)
			c.log.Warn().Str("url", url).Msg("resource not found")
			return nil, nil
		}

		if resp.StatusCode/100 != 2 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
		}

		if pi := resp.Header.Get("X-Poll-Interval"); pi != "" {
			c.log.Debug().Str("poll-interval", pi).Msg("suggested poll interval")
		}

		var events []Event
		err = json.NewDecoder(resp.Body).Decode(&events)
		resp.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, "decoding feed page")
		}
		return events, nil
	}
}

// FetchGlobalPage fetches one page of the global public events feed,
// unfiltered by type.
func (c *Client) FetchGlobalPage(ctx context.Context, perPage, page int) ([]Event, error) {
	return c.FetchPage(ctx, c.baseURL+"/events", page, perPage)
}

// FetchRepoEvents fetches up to three pages of 100 events for a single
// repository, pausing a second between pages so we don't burst the quota.
// Fetching stops early once a page comes back empty.
func (c *Client) FetchRepoEvents(ctx context.Context, owner, repo string) ([]Event, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/events", c.baseURL, owner, repo)

	var all []Event
	for page := 1; page <= maxRepoPages; page++ {
		events, err := c.FetchPage(ctx, url, page, repoPageSize)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}
		all = append(all, events...)
		if page < maxRepoPages {
			if err := sleepContext(ctx, c.pagePause); err != nil {
				return nil, err
			}
		}
	}
	return all, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
