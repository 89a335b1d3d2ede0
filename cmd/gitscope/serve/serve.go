/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gitscope/gitscope/pkg/collector"
	"github.com/gitscope/gitscope/pkg/github"
	"github.com/gitscope/gitscope/pkg/server"
	"github.com/gitscope/gitscope/pkg/store"
)

var Command = &cobra.Command{
	Use:   "serve",
	Short: "Collect GitHub activity and serve metrics over HTTP",

	Run: func(cmd *cobra.Command, args []string) {
		logger := viper.Get("logger").(zerolog.Logger)

		pollInterval := clampInt(viper.GetInt("gitscope.poll-interval"), 5, 300)
		retention := clampInt(viper.GetInt("gitscope.retention"), 10, 10080)

		st, err := store.New(logger, store.Config{
			Backend:   viper.GetString("gitscope.store"),
			RedisAddr: viper.GetString("gitscope.redis-addr"),
			Retention: time.Duration(retention) * time.Minute,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("unable to build event store")
		}

		client := github.NewClient(logger, viper.GetString("gitscope.token"))

		ms := server.NewMetricsStore()
		ms.RegisterCollector(server.NewStoreStatsCollector(st))
		client.OnRateLimitWait = func(time.Duration) { ms.IncRateLimitWaits() }

		srv := server.New(logger, ms, st, client,
			viper.GetInt("gitscope.api-port"),
			viper.GetInt("gitscope.prom-port"),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Run the collector loop alongside the API
		coll := collector.New(logger, client, st, time.Duration(pollInterval)*time.Second, ms)
		go coll.Run(ctx)

		// Serve the metrics endpoint
		go srv.ServeMetrics()

		// Serve the query API until shutdown
		if err := srv.ServeAPI(ctx); err != nil {
			logger.Error().Err(err).Msg("error serving API")
		}
	},
}

func init() {
	// Flags for this command
	Command.Flags().IntP("api-port", "p", 8000, "Port for the query API")
	Command.Flags().Int("prom-port", 2112, "Set the port for /metrics")
	Command.Flags().Int("poll-interval", 30, "Seconds between polls of the public events feed (5-300)")
	Command.Flags().Int("retention", 1440, "Minutes of history the durable store keeps (10-10080)")
	Command.Flags().StringP("store", "s", "memory", "Event store backend [memory, redis]")
	Command.Flags().String("redis-addr", "localhost:6379", "Address of the redis store backend")

	// Bind flags to viper
	viper.BindPFlag("gitscope.api-port", Command.Flags().Lookup("api-port"))
	viper.BindPFlag("gitscope.prom-port", Command.Flags().Lookup("prom-port"))
	viper.BindPFlag("gitscope.poll-interval", Command.Flags().Lookup("poll-interval"))
	viper.BindPFlag("gitscope.retention", Command.Flags().Lookup("retention"))
	viper.BindPFlag("gitscope.store", Command.Flags().Lookup("store"))
	viper.BindPFlag("gitscope.redis-addr", Command.Flags().Lookup("redis-addr"))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
