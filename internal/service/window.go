package service

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
)

// Window is the range of conversations a diary covers and the day it is filed under.
// Conversations with Start < updated_at < End are eligible.
type Window struct {
	Start     time.Time
	End       time.Time
	DiaryDate time.Time
}

// epoch anchors the first diary of a user.
var epoch = time.Unix(0, 0).UTC()

// WindowResolver computes diary windows from the latest diary and the user's diary time.
type WindowResolver struct {
	diaries  DiaryStore
	settings SettingStore
	loc      *time.Location
	now      func() time.Time
}

// NewWindowResolver creates a resolver computing calendar days in loc.
func NewWindowResolver(diaries DiaryStore, settings SettingStore, loc *time.Location, now func() time.Time) *WindowResolver {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &WindowResolver{diaries: diaries, settings: settings, loc: loc, now: now}
}

// Resolve returns the window for the user's next diary as of the resolver's clock.
func (r *WindowResolver) Resolve(ctx context.Context, userID string, requestedDay *time.Time) (Window, error) {
	return r.ResolveAt(ctx, userID, requestedDay, r.now())
}

// ResolveAt returns the window for the user's next diary as of now. A nil
// requestedDay means "up to now", filed under the day derived from the user's
// diary time.
func (r *WindowResolver) ResolveAt(ctx context.Context, userID string, requestedDay *time.Time, now time.Time) (Window, error) {
	latest, err := r.diaries.QueryLatestDiary(ctx, userID)
	if err != nil {
		return Window{}, fmt.Errorf("%w: latest diary: %w", ErrStorage, err)
	}
	start := epoch
	if latest != nil {
		start = latest.DiaryDate
	}

	if requestedDay != nil {
		day := models.DateOnly(*requestedDay, r.loc)
		return Window{Start: start, End: models.EndOfDay(day, r.loc), DiaryDate: day}, nil
	}

	raw, err := r.settings.QueryDiaryTime(ctx, userID)
	if err != nil {
		return Window{}, fmt.Errorf("%w: diary time: %w", ErrStorage, err)
	}
	diaryDate := models.DateOnly(now, r.loc)
	if raw != nil {
		dt, err := models.ParseDiaryTime(*raw)
		if err != nil {
			return Window{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		diaryDate = DiaryDateFor(now, dt, r.loc)
	}

	return Window{Start: start, End: now, DiaryDate: diaryDate}, nil
}

// DiaryDateFor returns the calendar day content written at now belongs to.
// Up to and including the cutoff it is yesterday, after it today.
func DiaryDateFor(now time.Time, cutoff models.DiaryTime, loc *time.Location) time.Time {
	local := now.In(loc)
	today := models.DateOnly(local, loc)
	h, m := local.Hour(), local.Minute()
	if h < cutoff.Hour || (h == cutoff.Hour && m <= cutoff.Minute) {
		return today.AddDate(0, 0, -1)
	}
	return today
}
