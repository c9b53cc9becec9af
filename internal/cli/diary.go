package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/spf13/cobra"
)

var writeDate string

var setTimeCmd = &cobra.Command{
	Use:   "set-time <user> <HH:MM>",
	Short: "Set the user's daily diary time",
	Long: `Set the time of day at which the user's diary is written automatically.
Content up to and including this minute belongs to the previous day.

Examples:
  diarist set-time alice 03:00
  diarist set-time bob 22:30`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		diaries, err := diaryService(false)
		if err != nil {
			return err
		}
		dt, err := diaries.SetDiaryTime(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Diary time for %s set to %s\n", args[0], dt)
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <user>",
	Short: "Write the user's diary now",
	Long: `Summarize the user's conversations since their last diary into a new entry.
Without --date the entry is filed under the day derived from the user's diary
time; with --date it covers conversations up to the end of that day.

Examples:
  diarist write alice
  diarist write alice --date 2025-06-15`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

var diaryCmd = &cobra.Command{
	Use:   "diary <user> <YYYY-MM-DD>",
	Short: "Show the diary of a day",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiary,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar <user> [year] [month]",
	Short: "Show a month of diary emotions",
	Long: `Show a month grid marking each day's diary emotion.
Defaults to the current month.

Examples:
  diarist calendar alice
  diarist calendar alice 2025 6`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runCalendar,
}

func init() {
	writeCmd.Flags().StringVar(&writeDate, "date", "", "file the diary under this day (YYYY-MM-DD)")
}

func runWrite(cmd *cobra.Command, args []string) error {
	diaries, err := diaryService(true)
	if err != nil {
		return err
	}

	var requested *time.Time
	if writeDate != "" {
		day, err := models.ParseDay(writeDate, diaries.Location())
		if err != nil {
			return err
		}
		requested = &day
	}

	out, err := diaries.Synthesize(cmd.Context(), args[0], requested)
	emotion := ""
	if out.Diary != nil {
		emotion = out.Diary.Emotion
	}
	day := ""
	if !out.DiaryDate.IsZero() {
		day = models.FormatDay(out.DiaryDate, diaries.Location())
	}
	fmt.Println(defaultTheme.renderOutcome(string(out.Status), out.Reason, day, emotion))
	if err != nil {
		return err
	}
	if out.Diary != nil && verbose {
		fmt.Printf("\n%s\n", out.Diary.Diary)
	}
	return nil
}

func runDiary(cmd *cobra.Command, args []string) error {
	diaries, err := diaryService(false)
	if err != nil {
		return err
	}
	day, err := models.ParseDay(args[1], diaries.Location())
	if err != nil {
		return err
	}

	d, err := diaries.GetDiary(cmd.Context(), args[0], day)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("no diary for %s on %s", args[0], args[1])
	}

	fmt.Printf("%s  %s\n\n%s\n", args[1], defaultTheme.emotionStyle(d.Emotion).Render(d.Emotion), d.Diary)
	return nil
}

func runCalendar(cmd *cobra.Command, args []string) error {
	diaries, err := diaryService(false)
	if err != nil {
		return err
	}

	now := time.Now().In(diaries.Location())
	year, month := now.Year(), now.Month()
	if len(args) >= 2 {
		if year, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid year: %s", args[1])
		}
	}
	if len(args) == 3 {
		m, err := strconv.Atoi(args[2])
		if err != nil || m < 1 || m > 12 {
			return fmt.Errorf("invalid month: %s", args[2])
		}
		month = time.Month(m)
	}

	emotions, err := diaries.CalendarEmotions(cmd.Context(), args[0], year, month)
	if err != nil {
		return err
	}
	fmt.Print(defaultTheme.renderCalendar(year, month, emotions))
	return nil
}
