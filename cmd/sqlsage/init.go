// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sqlsage-dev/sqlsage/internal/config"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long:  "Write the commented default configuration to ~/.config/sqlsage/sqlsage.yaml\nso it can be edited before first use.",
		RunE:  runInitConfig,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInitConfig(cmd *cobra.Command, _ []string) error {
	cfgPath, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		if _, err := os.Stat(cfgPath); err == nil {
			return sageerr.Errorf(sageerr.CodeCLIInputInvalid,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, config.DefaultConfigYAML, 0o600); err != nil {
		return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", cfgPath)
	return nil
}
