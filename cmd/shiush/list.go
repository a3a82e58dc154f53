package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tgienger/shiush/internal/models"
	"github.com/tgienger/shiush/internal/ui/styles"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [bucket]",
		Short: "Print tasks, one list or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buckets := models.Buckets
			if len(args) == 1 {
				b, err := models.ParseBucket(args[0])
				if err != nil {
					return err
				}
				buckets = []models.Bucket{b}
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

			out := cmd.OutOrStdout()
			st := styles.NewStyles()
			for i, b := range buckets {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printBucket(out, st, b, s.engine.Tasks(b))
			}
			return nil
		},
	}
	return cmd
}

func printBucket(w io.Writer, st *styles.Styles, b models.Bucket, tasks []models.Task) {
	fmt.Fprintln(w, st.Title.Render(b.Title()))
	if len(tasks) == 0 {
		fmt.Fprintln(w, st.TitleMuted.Render("  (empty)"))
		return
	}

	for _, t := range tasks {
		check := "[ ]"
		text := t.Text
		if t.Completed {
			check = "[x]"
			text = st.Done.Render(text)
		}
		line := fmt.Sprintf("  %s %s %s", check, st.Priority(t.Priority).Render(fmt.Sprintf("%-5s", t.Priority)), text)
		if t.SourceSection != "" {
			line += " " + st.Origin.Render("(from "+t.SourceSection.Title()+")")
		}
		fmt.Fprintln(w, line)

		for _, sub := range t.Subtasks {
			mark := "[ ]"
			if sub.Completed {
				mark = "[x]"
			}
			fmt.Fprintln(w, lipgloss.NewStyle().PaddingLeft(6).Render("└ "+mark+" "+sub.Text))
		}
	}
}
