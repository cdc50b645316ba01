package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. Running the root command with
// no subcommand starts the simulation.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gridsim",
		Short:         "CIGRE MV grid simulator publishing bus voltages over MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to YAML config file (default $"+configEnvVar+", else built-in defaults)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the simulation loop",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), resolveConfigPath(configPath))
			},
		},
		newSolveCommand(&configPath),
		newNetworkCommand(&configPath),
		newWatchCommand(&configPath),
		newMigrateCommand(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "gridsim %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)

	return root
}

func newSolveCommand(configPath *string) *cobra.Command {
	var scaling float64

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve the power flow once and print the voltage payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return solveOnce(cmd.Context(), resolveConfigPath(*configPath), scaling, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64Var(&scaling, "scaling", 1.0, "load scaling factor applied to every load")
	return cmd
}

func newNetworkCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Print the buses of the loaded network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printNetwork(resolveConfigPath(*configPath), cmd.OutOrStdout())
		},
	}
}

func newWatchCommand(configPath *string) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to the voltage topic and print each snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watch(cmd.Context(), resolveConfigPath(*configPath), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "topic to subscribe to (default simulation.topic)")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after this many snapshots (0 = until interrupted)")
	return cmd
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list the history database migrations",
		ValidArgs: []string{migrateUp, migrateDown, migrateStatus},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateDatabase(cmd.Context(), resolveConfigPath(*configPath), args[0], cmd.OutOrStdout())
		},
	}
}

// resolveConfigPath prefers the flag, then GRIDSIM_CONFIG. Empty means
// built-in defaults plus environment overrides.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(configEnvVar)
}
