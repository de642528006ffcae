package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vietddude/imagine/internal/infra/imagine"
	"github.com/vietddude/imagine/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Fetch the current state of a remote job once",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Service.Timeout)
	defer cancel()

	client := imagine.NewClient(cfg.Service)
	defer client.Close()

	task, err := client.Fetch(ctx, args[0])
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")
	table.Append([]string{"Job ID", task.ID})
	table.Append([]string{"Action", task.Action})
	table.Append([]string{"Status", string(task.Status)})
	table.Append([]string{"Progress", task.Progress})
	if task.ImageURL != "" {
		table.Append([]string{"Image", task.ImageURL})
	}
	if task.FinalPrompt != "" {
		table.Append([]string{"Prompt", task.FinalPrompt})
	} else if task.Prompt != "" {
		table.Append([]string{"Prompt", task.Prompt})
	}
	if task.FailReason != "" {
		table.Append([]string{"Fail reason", task.FailReason})
	}

	// Local history only exists with a database.
	if cfg.Database.URL != "" {
		runs, db, err := openRuns(ctx, *cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := runs.GetByJobID(ctx, task.ID)
		switch {
		case errors.Is(err, storage.ErrRunNotFound):
		case err != nil:
			return err
		default:
			table.Append([]string{"Run ID", run.ID})
			table.Append([]string{"Outcome", string(run.Outcome)})
			table.Append([]string{"Recorded", run.CreatedAt.Format(time.RFC3339)})
			table.Append([]string{"Elapsed", fmt.Sprintf("%dms", run.ElapsedMs)})
		}
	}

	table.Render()
	return nil
}
