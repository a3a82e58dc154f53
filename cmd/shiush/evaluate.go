package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tgienger/shiush/internal/db"
	"github.com/tgienger/shiush/internal/models"
)

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Move tasks along for the days that passed since the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "shiush: ", 0)

			database, err := db.New(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			// A dry run migrates a copy and throws it away
			var kv db.KV = database
			if dryRun {
				mem, err := db.CopyKeys(database, db.StoreKey, db.LastOpenedKey)
				if err != nil {
					return err
				}
				kv = mem
			}

			engine, evaluator, err := newEngine(db.NewRecords(kv), cfg, logger)
			if err != nil {
				return err
			}
			report, err := evaluator.Evaluate(cmd.Context())
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report)
			snap := engine.Snapshot()
			for _, b := range models.Buckets {
				fmt.Fprintf(out, "  %-10s %d\n", b.Title(), len(*snap.Bucket(b)))
			}
			if dryRun {
				fmt.Fprintln(out, "dry run: nothing was saved")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would move without saving")

	return cmd
}
