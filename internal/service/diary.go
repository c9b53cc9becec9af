package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/raphaelgruber/diarist/internal/metrics"
	"github.com/raphaelgruber/diarist/internal/models"
)

// Status is the result kind of a synthesis run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Skip reasons.
const (
	ReasonNoConversation = "no-conversation"
	ReasonAlreadyExists  = "already-exists"
)

// Outcome describes one synthesis run. Diary is set on success.
type Outcome struct {
	Status    Status
	Reason    string
	DiaryDate time.Time
	Diary     *models.Diary
}

// DiaryListener is notified after a diary is written.
type DiaryListener func(models.Diary)

// DiaryService synthesizes diaries and serves diary reads.
type DiaryService struct {
	store      Store
	resolver   *WindowResolver
	summarizer Summarizer
	classifier EmotionClassifier
	loc        *time.Location
	logger     *slog.Logger
	metrics    *metrics.Collector

	mu        sync.RWMutex
	listeners []DiaryListener
}

// DiaryDeps holds the collaborators of a DiaryService.
type DiaryDeps struct {
	Store      Store
	Summarizer Summarizer
	Classifier EmotionClassifier
	Location   *time.Location
	Logger     *slog.Logger
	Metrics    *metrics.Collector
	Now        func() time.Time // defaults to time.Now
}

// NewDiaryService creates a diary service.
func NewDiaryService(deps DiaryDeps) *DiaryService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &DiaryService{
		store:      deps.Store,
		resolver:   NewWindowResolver(deps.Store, deps.Store, loc, deps.Now),
		summarizer: deps.Summarizer,
		classifier: deps.Classifier,
		loc:        loc,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// Location returns the time zone calendar days are computed in.
func (s *DiaryService) Location() *time.Location {
	return s.loc
}

// Now returns the service clock reading.
func (s *DiaryService) Now() time.Time {
	return s.resolver.now()
}

// OnDiaryWritten registers fn to be called after each successful write.
func (s *DiaryService) OnDiaryWritten(fn DiaryListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Synthesize writes the user's next diary. requestedDay files the diary under that
// day and bounds the window at its end; nil uses "now" and the user's diary time.
// Failures return a failed Outcome and an error wrapping ErrStorage,
// ErrUpstreamSummarizer or ErrInvalidConfiguration.
func (s *DiaryService) Synthesize(ctx context.Context, userID string, requestedDay *time.Time) (Outcome, error) {
	return s.SynthesizeAt(ctx, userID, requestedDay, s.Now())
}

// SynthesizeAt is Synthesize as of the instant now: the diary day and the end of
// the window derive from now rather than the service clock. Sweeps pass their
// tick time so a tick near the cutoff cannot drift onto the next day.
func (s *DiaryService) SynthesizeAt(ctx context.Context, userID string, requestedDay *time.Time, now time.Time) (Outcome, error) {
	start := time.Now()
	out, err := s.synthesize(ctx, userID, requestedDay, now)
	s.metrics.RecordTiming(metrics.OpSynthesis, time.Since(start))

	log := s.logger.With("user_id", userID, "diary_date", models.FormatDay(out.DiaryDate, s.loc))
	switch out.Status {
	case StatusSuccess:
		s.metrics.Inc(metrics.CounterDiarySuccess, 1)
		log.Info("diary written", "emotion", out.Diary.Emotion)
		s.notify(*out.Diary)
	case StatusSkipped:
		s.metrics.Inc(metrics.CounterDiarySkipped, 1)
		log.Info("diary skipped", "reason", out.Reason)
	case StatusFailed:
		s.metrics.Inc(metrics.CounterDiaryFailed, 1)
		log.Error("diary failed", "error", err)
	}
	return out, err
}

func (s *DiaryService) synthesize(ctx context.Context, userID string, requestedDay *time.Time, now time.Time) (Outcome, error) {
	w, err := s.resolver.ResolveAt(ctx, userID, requestedDay, now)
	if err != nil {
		return Outcome{Status: StatusFailed}, err
	}
	failed := func(err error) (Outcome, error) {
		return Outcome{Status: StatusFailed, DiaryDate: w.DiaryDate}, err
	}
	skipped := func(reason string) (Outcome, error) {
		return Outcome{Status: StatusSkipped, Reason: reason, DiaryDate: w.DiaryDate}, nil
	}

	// Checked before any LLM call so duplicates cost nothing.
	existing, err := s.store.QueryDiaryByDay(ctx, userID, w.DiaryDate)
	if err != nil {
		return failed(fmt.Errorf("%w: diary by day: %w", ErrStorage, err))
	}
	if existing != nil {
		return skipped(ReasonAlreadyExists)
	}

	convs, err := s.store.QueryConversationsInRange(ctx, userID, w.Start, w.End)
	if err != nil {
		return failed(fmt.Errorf("%w: conversations: %w", ErrStorage, err))
	}
	if len(convs) == 0 {
		return skipped(ReasonNoConversation)
	}

	metadata := ExtractDiaryMetadata(convs)

	text, err := s.summarizer.SummarizeDiary(ctx, metadata)
	if err != nil {
		return failed(fmt.Errorf("%w: summarize: %w", ErrUpstreamSummarizer, err))
	}

	emotion, err := s.classify(ctx, representativeEmotion(EmotionLabels(metadata)))
	if err != nil {
		return failed(fmt.Errorf("%w: classify emotion: %w", ErrUpstreamSummarizer, err))
	}

	diary, err := s.store.InsertDiaryIfAbsent(ctx, models.DiaryInput{
		UserID:    userID,
		DiaryDate: w.DiaryDate,
		Diary:     text,
		Emotion:   emotion,
	})
	switch {
	case err == nil:
		return Outcome{Status: StatusSuccess, DiaryDate: w.DiaryDate, Diary: diary}, nil
	case errors.Is(err, db.ErrAlreadyExists):
		return skipped(ReasonAlreadyExists)
	case errors.Is(err, db.ErrTransactionConflict):
		// A concurrent writer held the key; its result decides the outcome.
		if again, qerr := s.store.QueryDiaryByDay(ctx, userID, w.DiaryDate); qerr == nil && again != nil {
			return skipped(ReasonAlreadyExists)
		}
	}
	return failed(fmt.Errorf("%w: insert diary: %w", ErrStorage, err))
}

// classify maps the aggregated label to the stored three-level emotion.
func (s *DiaryService) classify(ctx context.Context, label string) (string, error) {
	if label == DefaultEmotion {
		return models.EmotionNeutral, nil
	}
	return s.classifier.ClassifyEmotion(ctx, label)
}

func (s *DiaryService) notify(d models.Diary) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.listeners {
		fn(d)
	}
}

// ExtractDiaryMetadata returns the emotion, condition and doneToday messages of
// convs in the given order, keeping message order within each conversation.
func ExtractDiaryMetadata(convs []models.Conversation) []models.Message {
	var out []models.Message
	for _, c := range convs {
		for _, m := range c.Messages {
			switch m.Role {
			case models.RoleEmotion, models.RoleCondition, models.RoleDoneToday:
				out = append(out, m)
			}
		}
	}
	return out
}

// EmotionLabels returns the contents of the emotion messages.
func EmotionLabels(metadata []models.Message) []string {
	var labels []string
	for _, m := range metadata {
		if m.Role == models.RoleEmotion {
			labels = append(labels, m.Content)
		}
	}
	return labels
}

// GetDiary returns the user's diary for day, or nil if there is none.
func (s *DiaryService) GetDiary(ctx context.Context, userID string, day time.Time) (*models.Diary, error) {
	d, err := s.store.QueryDiaryByDay(ctx, userID, models.DateOnly(day, s.loc))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return d, nil
}

// DiariesBetween returns the user's diaries filed on days in [from, to], oldest first.
func (s *DiaryService) DiariesBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Diary, error) {
	start := models.DateOnly(from, s.loc)
	end := models.DateOnly(to, s.loc).AddDate(0, 0, 1)
	diaries, err := s.store.QueryDiariesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return diaries, nil
}

// CalendarEmotions returns the stored emotion of each diary in the month.
func (s *DiaryService) CalendarEmotions(ctx context.Context, userID string, year int, month time.Month) ([]models.DayEmotion, error) {
	start, end := models.MonthRange(year, month, s.loc)
	diaries, err := s.store.QueryDiariesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	out := make([]models.DayEmotion, 0, len(diaries))
	for _, d := range diaries {
		out = append(out, models.DayEmotion{
			Date:         models.FormatDay(d.DiaryDate, s.loc),
			FinalEmotion: d.Emotion,
		})
	}
	return out, nil
}

// SetDiaryTime validates and stores the user's diary time, normalized to HH:MM.
func (s *DiaryService) SetDiaryTime(ctx context.Context, userID, raw string) (models.DiaryTime, error) {
	dt, err := models.ParseDiaryTime(raw)
	if err != nil {
		return models.DiaryTime{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if err := s.store.UpsertDiaryTime(ctx, userID, dt.String()); err != nil {
		return models.DiaryTime{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.logger.Info("diary time set", "user_id", userID, "diary_time", dt.String())
	return dt, nil
}
