package main

import (
	"github.com/spf13/cobra"

	"spycats/internal/config"
)

type rootOptions struct {
	envFile string
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.envFile)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "spycatd",
		Short:        "Spy cat agency mission service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading SPYCATS_* variables")
	root.AddCommand(newServeCmd(opts), newBackupCmd(opts), newRestoreCmd(opts))
	return root
}
