package cli

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/diarist/internal/service"
	"github.com/spf13/cobra"
)

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one autowriter sweep",
	Long: `Check every user's diary time against now (or --at) and write diaries
for users whose diary time is within the sweep tolerance.

Examples:
  diarist sweep
  diarist sweep --at 03:00
  diarist sweep --at 2025-06-16T03:00:00+09:00`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAt, "at", "", "sweep as of HH:MM today or an RFC 3339 instant")
}

func runSweep(cmd *cobra.Command, args []string) error {
	diaries, err := diaryService(true)
	if err != nil {
		return err
	}
	loc := diaries.Location()

	now, err := parseSweepAt(sweepAt, diaries.Now(), loc)
	if err != nil {
		return err
	}

	aw := service.NewAutowriter(dbClient, diaries, service.AutowriterConfig{
		Interval:    cfg.SweepInterval,
		Tolerance:   cfg.SweepTolerance,
		Concurrency: cfg.SweepConcurrency,
	}, loc, logger, nil)

	report, err := aw.SweepTick(cmd.Context(), now)
	if err != nil {
		return err
	}

	fmt.Printf("Sweep at %s\n", now.In(loc).Format("2006-01-02 15:04"))
	fmt.Printf("  Checked:   %d\n", report.Checked)
	fmt.Printf("  Triggered: %d\n", report.Triggered)
	fmt.Printf("  Written:   %d\n", report.Succeeded)
	fmt.Printf("  Skipped:   %d\n", report.Skipped)
	if report.Failed > 0 {
		fmt.Println(defaultTheme.errorStyle().Render(fmt.Sprintf("  Failed:    %d", report.Failed)))
	}
	if report.Invalid > 0 {
		fmt.Println(defaultTheme.hintStyle().Render(fmt.Sprintf("  Invalid diary times: %d", report.Invalid)))
	}
	return nil
}

// parseSweepAt reads HH:MM as that minute of now's day, or a full RFC 3339 instant.
// An empty value means now.
func parseSweepAt(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.ParseInLocation("15:04", s, loc); err == nil {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: expected HH:MM or RFC 3339", s)
	}
	return t, nil
}
