package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/memory"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the cross-run QA archive",
	Long: `List archived QA sessions and the recurring-issue signatures that have
accumulated across runs. Flagged signatures seed new runs so the review
latch survives between sessions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		db, err := memory.Open(memory.Path(root))
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer db.Close()

		sessions, err := db.ListSessions(historyLimit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("no archived sessions yet")
		}
		for _, s := range sessions {
			fmt.Printf("%s  %s/%s  %d iteration(s)  %s  %d issue(s)\n",
				s.EndedAt.Format("2006-01-02 15:04"), s.RunID, s.ItemID,
				s.Iterations, s.FinalStatus, s.IssueCount)
		}

		recurring, err := db.CarriedRecurring()
		if err != nil {
			return err
		}
		shown := false
		for _, ri := range recurring {
			if !shown {
				fmt.Println("\nrecurring issues:")
				shown = true
			}
			file := ri.File
			if file == "" {
				file = "(no file)"
			}
			mark := " "
			if ri.FlaggedForReview {
				mark = color.YellowString("⚑")
			}
			fmt.Printf("  %s %s in %s  %d occurrence(s)\n", mark, ri.Type, file, ri.Occurrences)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum sessions to list (0 for all)")
}
