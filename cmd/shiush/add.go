package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tgienger/shiush/internal/models"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	var bucket string
	var priority string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task to a list",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("task text is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := models.ParseBucket(bucket)
			if err != nil {
				return err
			}
			p, err := models.ParsePriority(priority)
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("task text is required")
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			s, cleanup, err := openSession(cmd.Context(), cfg, log.New(os.Stderr, "shiush: ", 0))
			if err != nil {
				return err
			}
			defer cleanup()

			if err := s.engine.AddTask(b, text, p); err != nil {
				return fmt.Errorf("failed to add task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added to %s: %s\n", b.Title(), text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", string(models.BucketToday), "List (today|tomorrow|week|month|year|due)")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(models.PriorityMain), "Priority (main|sub|minor)")

	return cmd
}
