package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/raphaelgruber/diarist/internal/models"
)

// ImportDiary stores an externally written diary, such as one restored from an
// export. An existing diary for the same day is kept and the import is skipped.
func (s *DiaryService) ImportDiary(ctx context.Context, input models.DiaryInput) (Outcome, error) {
	input.DiaryDate = models.DateOnly(input.DiaryDate, s.loc)
	out := Outcome{Status: StatusFailed, DiaryDate: input.DiaryDate}

	switch input.Emotion {
	case models.EmotionPositive, models.EmotionNeutral, models.EmotionNegative:
	case "":
		input.Emotion = models.EmotionNeutral
	default:
		return out, fmt.Errorf("%w: unknown emotion %q", ErrInvalidConfiguration, input.Emotion)
	}

	if err := s.store.UpsertUser(ctx, input.UserID); err != nil {
		return out, fmt.Errorf("%w: upsert user: %w", ErrStorage, err)
	}

	d, err := s.store.InsertDiaryIfAbsent(ctx, input)
	if errors.Is(err, db.ErrAlreadyExists) {
		return Outcome{Status: StatusSkipped, Reason: ReasonAlreadyExists, DiaryDate: input.DiaryDate}, nil
	}
	if err != nil {
		return out, fmt.Errorf("%w: insert diary: %w", ErrStorage, err)
	}

	s.logger.Info("diary imported", "user_id", input.UserID, "diary_date", models.FormatDay(input.DiaryDate, s.loc))
	return Outcome{Status: StatusSuccess, DiaryDate: input.DiaryDate, Diary: d}, nil
}
