package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/l1jgo/framecore/internal/core/phase"
	"github.com/l1jgo/framecore/internal/data"
	"github.com/l1jgo/framecore/internal/persist"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func listPhases(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPHASE\tSYSTEMS\tUPDATING\tRENDERING")
	for _, p := range phase.All() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			int(p), p, yesNo(p.Dispatchable()), yesNo(p.IsUpdating()), yesNo(p.IsRendering()))
	}
	return tw.Flush()
}

func listSystems(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := data.LoadSystemManifest(cfg.Scripting.Manifest)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPHASE\tPRIORITY\tINIT\tSCRIPT")
	for _, e := range table.All() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.Name, e.ResolvedPhase(), e.Priority, e.InitOrder, e.Script)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printStat(cmd.OutOrStdout(), "Systems", table.Count())
	return nil
}

func openDB(cmd *cobra.Command) (*persist.DB, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if !cfg.Database.Enabled() {
		return nil, nil, nil, fmt.Errorf("database.dsn is not set")
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("database: %w", err)
	}
	return db, ctx, cancel, nil
}

func migrate(cmd *cobra.Command, _ []string) error {
	db, ctx, cancel, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer db.Close()

	version, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	printOK(cmd.OutOrStdout(), fmt.Sprintf("Schema at version %d", version))
	return nil
}

func showJournal(cmd *cobra.Command, _ []string) error {
	db, ctx, cancel, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer db.Close()

	samples, err := persist.NewJournalRepo(db).Latest(ctx, journalMax)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tDELTA\tFAULTS\tSYSTEMS\tRECORDED")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			numbers.Sprint(s.Frame), s.Delta, numbers.Sprint(s.Faults), s.Systems,
			s.RecordedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
