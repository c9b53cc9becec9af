package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/diarist/internal/metrics"
	"github.com/raphaelgruber/diarist/internal/models"
	"golang.org/x/sync/errgroup"
)

// Synthesizer runs diary synthesis for one user.
type Synthesizer interface {
	Synthesize(ctx context.Context, userID string, requestedDay *time.Time) (Outcome, error)
}

// TimedSynthesizer runs diary synthesis for one user as of a given instant.
type TimedSynthesizer interface {
	SynthesizeAt(ctx context.Context, userID string, requestedDay *time.Time, now time.Time) (Outcome, error)
}

// SweepReport counts what one sweep tick did.
type SweepReport struct {
	Checked   int
	Triggered int
	Succeeded int
	Skipped   int
	Failed    int
	Invalid   int
}

// AutowriterConfig tunes the sweep.
type AutowriterConfig struct {
	Interval    time.Duration // tick cadence for Run
	Tolerance   time.Duration // max |now - diary time| that triggers synthesis
	Concurrency int           // users synthesized in parallel per tick
}

// Autowriter writes diaries for users whose diary time is near the current instant.
type Autowriter struct {
	settings SettingStore
	diaries  DiaryStore
	synth    TimedSynthesizer
	cfg      AutowriterConfig
	loc      *time.Location
	logger   *slog.Logger
	metrics  *metrics.Collector
	now      func() time.Time
}

// NewAutowriter creates an autowriter. Zero config fields fall back to a one
// minute interval, a ten minute tolerance and a concurrency of one.
func NewAutowriter(store Store, synth TimedSynthesizer, cfg AutowriterConfig, loc *time.Location, logger *slog.Logger, mc *metrics.Collector) *Autowriter {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 10 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Autowriter{
		settings: store,
		diaries:  store,
		synth:    synth,
		cfg:      cfg,
		loc:      loc,
		logger:   logger,
		metrics:  mc,
		now:      time.Now,
	}
}

// Due reports whether now is within tolerance of today's diary time.
func Due(now time.Time, dt models.DiaryTime, tolerance time.Duration, loc *time.Location) bool {
	diff := now.Sub(dt.On(now, loc))
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// SweepTick checks every user with a diary time against now and synthesizes
// diaries for those that are due. A failing user never stops the others.
// The error is only for failing to list users.
func (a *Autowriter) SweepTick(ctx context.Context, now time.Time) (SweepReport, error) {
	log := a.logger.With("sweep_id", uuid.NewString())
	a.metrics.Inc(metrics.CounterSweepTicks, 1)

	rows, err := a.settings.QueryUsersWithDiaryTime(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%w: users with diary time: %w", ErrStorage, err)
	}

	var report SweepReport
	var triggered, succeeded, skipped, failed atomic.Int64
	report.Checked = len(rows)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for _, row := range rows {
		dt, err := models.ParseDiaryTime(row.DiaryTime)
		if err != nil {
			report.Invalid++
			log.Warn("skipping user with invalid diary time", "user_id", row.UserID, "diary_time", row.DiaryTime, "error", fmt.Errorf("%w: %w", ErrInvalidConfiguration, err))
			continue
		}
		if !Due(now, dt, a.cfg.Tolerance, a.loc) {
			continue
		}

		userID := row.UserID
		g.Go(func() error {
			if a.writtenThisWindow(gctx, userID, dt, now) {
				skipped.Add(1)
				return nil
			}
			triggered.Add(1)
			out, err := a.synth.SynthesizeAt(gctx, userID, nil, now)
			switch {
			case err != nil:
				failed.Add(1)
				log.Error("sweep synthesis failed", "user_id", userID, "error", err)
			case out.Status == StatusSuccess:
				succeeded.Add(1)
			default:
				skipped.Add(1)
			}
			// per-user failures are reported, never returned
			return nil
		})
	}
	_ = g.Wait()

	report.Triggered = int(triggered.Load())
	report.Succeeded = int(succeeded.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())
	a.metrics.Inc(metrics.CounterSweepTriggered, int64(report.Triggered))
	a.metrics.Inc(metrics.CounterSweepInvalid, int64(report.Invalid))

	if report.Triggered > 0 || report.Invalid > 0 {
		log.Info("sweep complete",
			"checked", report.Checked,
			"triggered", report.Triggered,
			"succeeded", report.Succeeded,
			"skipped", report.Skipped,
			"failed", report.Failed,
			"invalid", report.Invalid,
		)
	}
	return report, nil
}

// writtenThisWindow reports whether a tick past the cutoff falls in a window
// whose day already has a diary. The window around the cutoff belongs to the
// day that ends there; ticks after the cutoff derive the next day, so they
// stand down once that day is written. Ticks before the cutoff derive the
// window's own day and rely on the synthesis pre-check.
func (a *Autowriter) writtenThisWindow(ctx context.Context, userID string, dt models.DiaryTime, now time.Time) bool {
	windowDay := DiaryDateFor(dt.On(now, a.loc), dt, a.loc)
	if DiaryDateFor(now, dt, a.loc).Equal(windowDay) {
		return false
	}
	existing, err := a.diaries.QueryDiaryByDay(ctx, userID, windowDay)
	return err == nil && existing != nil
}

// Run ticks SweepTick on the configured interval until ctx is done.
func (a *Autowriter) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.logger.Info("autowriter started", "interval", a.cfg.Interval, "tolerance", a.cfg.Tolerance, "concurrency", a.cfg.Concurrency)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("autowriter stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.SweepTick(ctx, a.now()); err != nil {
				a.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
