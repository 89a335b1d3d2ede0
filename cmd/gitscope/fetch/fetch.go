/*
 * Copyright (c) 2025, Gideon Williams <gideon@gideonw.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package fetch

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gitscope/gitscope/pkg/github"
)

var Command = &cobra.Command{
	Use:   "fetch OWNER/REPO",
	Short: "One-shot fetch of recent events for a repository",
	Args:  cobra.ExactArgs(1),

	Run: func(cmd *cobra.Command, args []string) {
		logger := viper.Get("logger").(zerolog.Logger)

		owner, repo, ok := strings.Cut(args[0], "/")
		if !ok || owner == "" || repo == "" {
			logger.Fatal().Str("arg", args[0]).Msg("expected OWNER/REPO")
		}

		client := github.NewClient(logger, viper.GetString("gitscope.token"))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		events, err := client.FetchRepoEvents(ctx, owner, repo)
		if err != nil {
			logger.Fatal().Err(err).Msg("unable to fetch repository events")
		}

		if viper.GetBool("gitscope.json") {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(events)
			return
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Type", "Action", "Age"})
		for _, ev := range events {
			age := ev.CreatedAt
			if t, err := ev.Created(); err == nil {
				age = humanize.Time(t)
			}
			table.Append([]string{ev.ID, ev.Type, ev.Action(), age})
		}
		table.Render()

		logger.Info().Int("events", len(events)).Str("repo", args[0]).Msg("fetched repository events")
	},
}

func init() {
	// Flags for this command
	Command.Flags().Bool("json", false, "Dump raw event JSON instead of a table")

	// Bind flags to viper
	viper.BindPFlag("gitscope.json", Command.Flags().Lookup("json"))
}
