// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sqlsage-dev/sqlsage/internal/config"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// NewRootCmd creates the root sqlsage command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sqlsage",
		Short:         "sqlsage — self-improving text-to-SQL assistant",
		Long:          "sqlsage turns natural-language questions into validated DuckDB SQL,\nlearning from every confirmed answer and from SQL it mines off the web.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("database", "", "path to the DuckDB database")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newInitCmd(),
		newAskCmd(),
		newMineCmd(),
		newTrainCmd(),
		newIngestCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover sqlsage.yaml from standard locations.
		// Note: SetConfigType is intentionally omitted. When set, Viper
		// falls back to trying the bare config name without extension,
		// which collides with the ./sqlsage binary in the project root.
		v.SetConfigName("sqlsage")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sqlsage")
		v.AddConfigPath("/etc/sqlsage")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere — bootstrap a default to ~/.config/sqlsage/.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	// Bind persistent flags to viper keys.
	if err := v.BindPFlag("engine.database", cmd.Root().PersistentFlags().Lookup("database")); err != nil {
		return sageerr.Errorf(sageerr.CodeCLISetupFailure, "binding database flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return sageerr.Errorf(sageerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
