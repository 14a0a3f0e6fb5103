package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	maxFrames  uint64
	journalMax int
)

var rootCmd = &cobra.Command{
	Use:   "framecore",
	Short: "Phase-driven frame loop with scripted systems",
	Long: `framecore drives registered systems through the fixed phases of each
frame: fixed updates, update, late update, render and frame advance.
Without a subcommand it runs the loop until interrupted.`,
	SilenceUsage: true,
	RunE:         runLoop,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the frame loop",
	RunE:  runLoop,
}

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List the frame phases in dispatch order",
	Args:  cobra.NoArgs,
	RunE:  listPhases,
}

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the scripted systems declared in the manifest",
	Args:  cobra.NoArgs,
	RunE:  listSystems,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the frame journal",
	Args:  cobra.NoArgs,
	RunE:  migrate,
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the most recent frame journal samples",
	Args:  cobra.NoArgs,
	RunE:  showJournal,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: $FRAMECORE_CONFIG or config/framecore.toml)")
	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().Uint64Var(&maxFrames, "frames", 0, "stop after this many frames (0 runs until interrupted)")
	}
	journalCmd.Flags().IntVarP(&journalMax, "limit", "n", 20, "number of samples to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(phasesCmd)
	rootCmd.AddCommand(systemsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(journalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
