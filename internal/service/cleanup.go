package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
)

// CleanupService prunes short-lived metadata from old conversations.
type CleanupService struct {
	store  ConversationStore
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewCleanupService creates a cleanup service dropping metadata older than maxAge.
func NewCleanupService(store ConversationStore, maxAge time.Duration, logger *slog.Logger) *CleanupService {
	if maxAge <= 0 {
		maxAge = 48 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{store: store, maxAge: maxAge, logger: logger, now: time.Now}
}

// CleanOldMetadata removes emotion, condition and doneToday messages from the
// user's conversations older than maxAge. Dialogue and long-lived metadata stay.
func (s *CleanupService) CleanOldMetadata(ctx context.Context, userID string) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	n, err := s.store.RemoveMessagesBefore(ctx, userID, models.DiaryRoles, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: remove old metadata: %w", ErrStorage, err)
	}
	s.logger.Info("old metadata removed", "user_id", userID, "conversations", n, "cutoff", cutoff)
	return n, nil
}
