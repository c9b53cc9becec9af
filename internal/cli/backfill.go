package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/diarist/internal/client"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/raphaelgruber/diarist/internal/service"
	"github.com/spf13/cobra"
)

var (
	backfillFrom   string
	backfillTo     string
	backfillRemote bool
	backfillPlain  bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill <user>",
	Short: "Write missing diaries for a range of days",
	Long: `Synthesize one diary per day from --from to --to (inclusive), oldest first.
Days that already have a diary or have no conversations are skipped.

By default the backfill runs in this process. With --remote it runs as a
background job on the server and can be detached with Ctrl+C.

Examples:
  diarist backfill alice --from 2025-06-01 --to 2025-06-30
  diarist backfill alice --from 2025-06-01 --to 2025-06-30 --remote
  diarist backfill alice --from 2025-06-01 --to 2025-06-07 --plain`,
	Args: cobra.ExactArgs(1),
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "first day (YYYY-MM-DD)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "last day (YYYY-MM-DD), default today")
	backfillCmd.Flags().BoolVar(&backfillRemote, "remote", false, "run as a job on the server")
	backfillCmd.Flags().BoolVar(&backfillPlain, "plain", false, "print one line per day instead of a progress bar")
	_ = backfillCmd.MarkFlagRequired("from")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	userID := args[0]
	loc := cfg.Location()
	to := backfillTo
	if to == "" {
		to = models.FormatDay(time.Now(), loc)
	}

	if backfillRemote {
		c := apiClient()
		job, err := c.StartBackfill(cmd.Context(), userID, backfillFrom, to)
		if err != nil {
			return fmt.Errorf("start backfill: %w", err)
		}
		_, err = runJobProgress(c.GetJob, job, true)
		return err
	}

	from, err := models.ParseDay(backfillFrom, loc)
	if err != nil {
		return err
	}
	toDay, err := models.ParseDay(to, loc)
	if err != nil {
		return err
	}

	diaries, err := diaryService(true)
	if err != nil {
		return err
	}

	if backfillPlain {
		return runPlainBackfill(cmd.Context(), diaries, userID, from, toDay)
	}

	jobs := service.NewJobManager(diaries, logger)
	job, err := jobs.StartBackfill(userID, from, toDay)
	if err != nil {
		return err
	}
	fetch := func(_ context.Context, id string) (*client.Job, error) {
		j := jobs.GetJob(id)
		if j == nil {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		cj := toClientJob(j.Snapshot())
		return &cj, nil
	}
	start := toClientJob(job.Snapshot())
	m, err := runJobProgress(fetch, &start, false)
	if err == nil && !m.quitting {
		jobs.Wait()
	}
	return err
}

func runPlainBackfill(ctx context.Context, diaries *service.DiaryService, userID string, from, to time.Time) error {
	loc := diaries.Location()
	res, err := diaries.Backfill(ctx, userID, from, to, func(step service.BackfillStep) {
		day := models.FormatDay(step.Day, loc)
		emotion := ""
		if step.Outcome.Diary != nil {
			emotion = step.Outcome.Diary.Emotion
		}
		line := defaultTheme.renderOutcome(string(step.Outcome.Status), step.Outcome.Reason, day, emotion)
		fmt.Printf("[%d/%d] %s\n", step.Index, step.Total, line)
		if step.Err != nil && verbose {
			fmt.Printf("        %v\n", step.Err)
		}
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nWritten %d, skipped %d, failed %d of %d days\n", res.Written, res.Skipped, res.Failed, res.Days)
	return nil
}

// toClientJob converts an in-process job into the shape the progress UI shows.
func toClientJob(j service.Job) client.Job {
	cj := client.Job{
		ID:          j.ID,
		Type:        j.Type,
		Status:      string(j.Status),
		UserID:      j.UserID,
		From:        j.From,
		To:          j.To,
		Progress:    j.Progress,
		Total:       j.Total,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Result != nil {
		cj.Result = &client.BackfillResult{
			Days:    j.Result.Days,
			Written: j.Result.Written,
			Skipped: j.Result.Skipped,
			Failed:  j.Result.Failed,
		}
	}
	return cj
}
