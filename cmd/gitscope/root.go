/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package gitscope

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gitscope/gitscope/cmd/gitscope/fetch"
	"github.com/gitscope/gitscope/cmd/gitscope/serve"
)

var (
	Version        = "develop"
	CommitHash     = "n/a"
	BuildTimestamp = "n/a"

	rootCmd = &cobra.Command{
		Use:   "gitscope",
		Short: "Gitscope collects and aggregates GitHub activity events",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Values from a .env file become visible to AutomaticEnv.
			godotenv.Load()
			initLogging()
			initLogLevel()
			initConfig(cmd.Root().PersistentFlags().Lookup("config").Value.String())
			initLogLevel()
			traceConfig()
		},
		Version: Version,
	}
)

func init() {
	// Configure the root binary options
	rootCmd.PersistentFlags().CountP("verbose", "v", "-v for debug logs (-vv for trace)")
	rootCmd.PersistentFlags().Bool("local", true, "Configures the logger to print readable logs")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the gitscope config file (default ./config.toml)")
	rootCmd.PersistentFlags().StringP("token", "t", "", "GitHub token used to lift the feed rate limit")

	// Bind viper config to the root flags
	viper.BindPFlag("gitscope.local", rootCmd.PersistentFlags().Lookup("local"))
	viper.BindPFlag("gitscope.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("gitscope.token", rootCmd.PersistentFlags().Lookup("token"))
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.SetVersionTemplate(fmt.Sprintf("gitscope version: %s git_commit: %s build_time: %s\n", Version, CommitHash, BuildTimestamp))

	// Bind viper flags to ENV variables
	viper.BindEnv("gitscope.token", "GITHUB_TOKEN")
	viper.AutomaticEnv()

	// Register commands on the root binary command
	serve.Command.Version = rootCmd.Version
	fetch.Command.Version = rootCmd.Version
	rootCmd.AddCommand(serve.Command)
	rootCmd.AddCommand(fetch.Command)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("root command failed")
		os.Exit(1)
	}
}
