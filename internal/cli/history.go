package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/storage"
)

var historyFlags struct {
	kind    string
	outcome string
	limit   int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded job runs, newest first",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFlags.kind, "kind", "", "only runs of this kind")
	historyCmd.Flags().StringVar(&historyFlags.outcome, "outcome", "", "only runs with this outcome")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "maximum rows")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("history needs database.url to be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	runs, db, err := openRuns(ctx, *cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	filter := storage.RunFilter{
		Kind:    domain.JobKind(historyFlags.kind),
		Outcome: domain.RunOutcome(historyFlags.outcome),
		Limit:   historyFlags.limit,
	}
	list, err := runs.List(ctx, filter)
	if err != nil {
		return err
	}
	counts, err := runs.Count(ctx)
	if err != nil {
		return err
	}

	printRuns(list)

	fmt.Printf("\nTotals: %d succeeded, %d placeholder, %d failed, %d timed out, %d rejected\n",
		counts[domain.OutcomeSucceeded],
		counts[domain.OutcomePlaceholder],
		counts[domain.OutcomeFailed],
		counts[domain.OutcomeTimedOut],
		counts[domain.OutcomeRejected])
	return nil
}

func printRuns(list []*domain.RunRecord) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Created", "Kind", "Outcome", "Job", "Model", "Strategy", "Elapsed")
	for _, r := range list {
		table.Append(
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			string(r.Kind),
			string(r.Outcome),
			r.JobID,
			r.Model,
			r.Strategy,
			(time.Duration(r.ElapsedMs) * time.Millisecond).String(),
		)
	}
	table.Render()
}
