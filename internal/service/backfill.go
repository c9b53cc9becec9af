package service

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
)

// BackfillStep reports one processed day.
type BackfillStep struct {
	Day     time.Time
	Index   int // 1-based
	Total   int
	Outcome Outcome
	Err     error
}

// BackfillResult summarizes a backfill run.
type BackfillResult struct {
	Days    int `json:"days"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// maxBackfillDays bounds a single backfill request.
const maxBackfillDays = 366

// Backfill synthesizes one diary per day from `from` to `to` inclusive, oldest first,
// so each window starts at the previous day. progress may be nil.
// Per-day failures are counted; only ctx cancellation stops the run early.
func (s *DiaryService) Backfill(ctx context.Context, userID string, from, to time.Time, progress func(BackfillStep)) (BackfillResult, error) {
	days, err := DaysBetween(from, to, s.loc)
	if err != nil {
		return BackfillResult{}, err
	}

	res := BackfillResult{Days: len(days)}
	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, err := s.Synthesize(ctx, userID, &day)
		switch out.Status {
		case StatusSuccess:
			res.Written++
		case StatusSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
		if progress != nil {
			progress(BackfillStep{Day: day, Index: i + 1, Total: len(days), Outcome: out, Err: err})
		}
	}
	return res, nil
}

// DaysBetween lists the calendar days from `from` to `to` inclusive.
func DaysBetween(from, to time.Time, loc *time.Location) ([]time.Time, error) {
	start := models.DateOnly(from, loc)
	end := models.DateOnly(to, loc)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range end %s before start %s", ErrInvalidConfiguration,
			models.FormatDay(end, loc), models.FormatDay(start, loc))
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
		if len(days) > maxBackfillDays {
			return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidConfiguration, maxBackfillDays)
		}
	}
	return days, nil
}
