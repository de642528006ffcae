package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/imagine"
	"github.com/vietddude/imagine/internal/infra/storage"
	"github.com/vietddude/imagine/internal/jobs"
)

var runFlags struct {
	prompt     string
	style      string
	taskID     string
	index      int
	customID   string
	images     []string
	mask       string
	dimensions string
}

var runCmd = &cobra.Command{
	Use:   "run <kind>",
	Short: "Run one job to completion and print the result",
	Long: `Run submits one job, polls it until it finishes and prints the result as JSON.

Kinds: generate, variation, upscale, describe, blend, region_edit.
Images may be file paths or data URLs.`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.prompt, "prompt", "", "prompt text")
	f.StringVar(&runFlags.style, "style", "", "placeholder style used when generation falls back")
	f.StringVar(&runFlags.taskID, "task-id", "", "source job id for variation, upscale and region_edit")
	f.IntVar(&runFlags.index, "index", 0, "grid position 1..4")
	f.StringVar(&runFlags.customID, "custom-id", "", "explicit button id, overrides --index")
	f.StringSliceVar(&runFlags.images, "image", nil, "input image (repeatable)")
	f.StringVar(&runFlags.mask, "mask", "", "region mask image")
	f.StringVar(&runFlags.dimensions, "dimensions", "", "blend dimensions: PORTRAIT, SQUARE or LANDSCAPE")
	rootCmd.AddCommand(runCmd)
}

func runJob(cmd *cobra.Command, args []string) error {
	kind, ok := domain.ParseJobKind(args[0])
	if !ok {
		return fmt.Errorf("unknown kind %q", args[0])
	}

	cfg, err := bootstrap()
	if err != nil {
		return err
	}

	params, err := paramsFromFlags()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runs, db, err := openRuns(ctx, *cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	client := imagine.NewClient(cfg.Service)
	defer client.Close()

	svc := jobs.NewService(client, cfg.Jobs)

	start := time.Now()
	res, runErr := svc.Run(ctx, domain.JobRequest{Kind: kind, Params: params})

	record := newRunRecord(kind, res, runErr, start)
	if err := recordRun(ctx, runs, record); err != nil {
		return err
	}

	if runErr != nil {
		slog.Error("Job failed", "kind", kind, "outcome", record.Outcome, "error", runErr)
		return runErr
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// recordRun saves a finished run. Without a database (nil runs) or after
// cancellation nothing is written.
func recordRun(ctx context.Context, runs storage.RunRepository, record *domain.RunRecord) error {
	if runs == nil || ctx.Err() != nil {
		return nil
	}
	if err := runs.Save(ctx, record); err != nil {
		return fmt.Errorf("job finished but could not be recorded: %w", err)
	}
	return nil
}

func paramsFromFlags() (domain.JobParams, error) {
	p := domain.JobParams{
		Prompt:     runFlags.prompt,
		Style:      runFlags.style,
		TaskID:     runFlags.taskID,
		Index:      runFlags.index,
		CustomID:   runFlags.customID,
		Dimensions: strings.ToUpper(runFlags.dimensions),
	}
	for _, img := range runFlags.images {
		u, err := dataURL(img)
		if err != nil {
			return p, err
		}
		p.Images = append(p.Images, u)
	}
	if runFlags.mask != "" {
		u, err := dataURL(runFlags.mask)
		if err != nil {
			return p, err
		}
		p.Mask = u
	}
	return p, nil
}

// dataURL passes data URLs through and encodes anything else as a file.
func dataURL(src string) (string, error) {
	if strings.HasPrefix(src, "data:") {
		return src, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", src, err)
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func newRunRecord(kind domain.JobKind, res *domain.JobResult, err error, start time.Time) *domain.RunRecord {
	record := &domain.RunRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Outcome:   jobs.Outcome(err),
		ElapsedMs: time.Since(start).Milliseconds(),
		CreatedAt: start.UTC(),
	}
	if err != nil {
		record.Error = err.Error()
		record.JobID = failedJobID(err)
		return record
	}

	record.JobID = res.Metadata.JobID
	record.OutputURI = res.PrimaryOutputURI
	record.Model = res.Metadata.Model
	record.Strategy = res.Metadata.Strategy
	if res.Metadata.Model == jobs.PlaceholderModel {
		record.Outcome = domain.OutcomePlaceholder
		record.Error = res.Metadata.FallbackReason
	}
	return record
}

func failedJobID(err error) string {
	var (
		failed   *domain.JobFailedError
		timedOut *domain.JobTimedOutError
	)
	switch {
	case errors.As(err, &failed):
		return failed.JobID
	case errors.As(err, &timedOut):
		return timedOut.JobID
	}
	return ""
}
