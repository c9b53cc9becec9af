// Package db provides SurrealDB query functions for conversations, diaries and settings.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
)

// DiaryTimeRow is one user with a configured diary time.
type DiaryTimeRow struct {
	UserID    string `json:"user_id"`
	DiaryTime string `json:"diary_time"`
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// QueryConversationsInRange returns the user's conversations with
// start < updated_at < end, oldest first.
func (c *Client) QueryConversationsInRange(ctx context.Context, userID string, start, end time.Time) ([]models.Conversation, error) {
	return queryRows[models.Conversation](ctx, c, "conversations in range", `
		SELECT * FROM conversation
		WHERE user_id = $user_id AND updated_at > $start AND updated_at < $end
		ORDER BY updated_at ASC
	`, map[string]any{
		"user_id": userID,
		"start":   start,
		"end":     end,
	})
}

// QueryConversationsSince returns the user's conversations updated after since, oldest first.
func (c *Client) QueryConversationsSince(ctx context.Context, userID string, since time.Time) ([]models.Conversation, error) {
	return queryRows[models.Conversation](ctx, c, "conversations since", `
		SELECT * FROM conversation
		WHERE user_id = $user_id AND updated_at > $since
		ORDER BY updated_at ASC
	`, map[string]any{
		"user_id": userID,
		"since":   since,
	})
}

// InsertConversation stores one chat turn.
func (c *Client) InsertConversation(ctx context.Context, conv models.Conversation) (*models.Conversation, error) {
	docs := conv.Docs
	if docs == nil {
		docs = []string{}
	}
	messages := conv.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	updatedAt := conv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	rows, err := queryRows[models.Conversation](ctx, c, "insert conversation", `
		CREATE conversation CONTENT {
			user_id: $user_id,
			messages: $messages,
			docs: $docs,
			updated_at: $updated_at
		}
	`, map[string]any{
		"user_id":    conv.UserID,
		"messages":   messages,
		"docs":       docs,
		"updated_at": updatedAt,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert conversation: no result returned")
	}
	return &rows[0], nil
}

// RemoveMessagesBefore strips messages with the given roles from the user's
// conversations updated before cutoff. Returns the number of conversations touched.
func (c *Client) RemoveMessagesBefore(ctx context.Context, userID string, roles []string, cutoff time.Time) (int, error) {
	rows, err := queryRows[struct {
		ID any `json:"id"`
	}](ctx, c, "remove messages", `
		UPDATE conversation
		SET messages = messages[WHERE role NOTINSIDE $roles]
		WHERE user_id = $user_id AND updated_at < $cutoff AND messages.role CONTAINSANY $roles
		RETURN id
	`, map[string]any{
		"user_id": userID,
		"roles":   roles,
		"cutoff":  cutoff,
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// =============================================================================
// DIARIES
// =============================================================================

// QueryLatestDiary returns the user's diary with the greatest diary_date.
// Returns nil if the user has none.
func (c *Client) QueryLatestDiary(ctx context.Context, userID string) (*models.Diary, error) {
	rows, err := queryRows[models.Diary](ctx, c, "latest diary", `
		SELECT * FROM diary WHERE user_id = $user_id ORDER BY diary_date DESC LIMIT 1
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// QueryDiaryByDay returns the user's diary filed under day.
// Returns nil if not found.
func (c *Client) QueryDiaryByDay(ctx context.Context, userID string, day time.Time) (*models.Diary, error) {
	rows, err := queryRows[models.Diary](ctx, c, "diary by day", `
		SELECT * FROM diary WHERE user_id = $user_id AND diary_date = $day LIMIT 1
	`, map[string]any{
		"user_id": userID,
		"day":     day,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// QueryDiariesInRange returns the user's diaries with start <= diary_date < end,
// ordered by day.
func (c *Client) QueryDiariesInRange(ctx context.Context, userID string, start, end time.Time) ([]models.Diary, error) {
	return queryRows[models.Diary](ctx, c, "diaries in range", `
		SELECT * FROM diary
		WHERE user_id = $user_id AND diary_date >= $start AND diary_date < $end
		ORDER BY diary_date ASC
	`, map[string]any{
		"user_id": userID,
		"start":   start,
		"end":     end,
	})
}

// InsertDiaryIfAbsent creates the diary unless one already exists for
// (user_id, diary_date). The unique index decides between concurrent writers;
// the loser gets ErrAlreadyExists.
func (c *Client) InsertDiaryIfAbsent(ctx context.Context, input models.DiaryInput) (*models.Diary, error) {
	rows, err := queryRows[models.Diary](ctx, c, "insert diary", `
		CREATE diary CONTENT {
			user_id: $user_id,
			diary_date: $diary_date,
			diary: $diary,
			emotion: $emotion
		}
	`, map[string]any{
		"user_id":    input.UserID,
		"diary_date": input.DiaryDate,
		"diary":      input.Diary,
		"emotion":    input.Emotion,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert diary: no result returned")
	}
	return &rows[0], nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// UpsertDiaryTime sets the user's diary time. The caller validates the format.
func (c *Client) UpsertDiaryTime(ctx context.Context, userID, diaryTime string) error {
	_, err := queryRows[models.UserSetting](ctx, c, "upsert diary time", `
		UPSERT type::record("user_setting", $user_id) SET
			user_id = $user_id,
			diary_time = $diary_time,
			updated_at = time::now()
	`, map[string]any{
		"user_id":    userID,
		"diary_time": diaryTime,
	})
	return err
}

// QueryUsersWithDiaryTime lists every user that has a diary time configured.
func (c *Client) QueryUsersWithDiaryTime(ctx context.Context) ([]DiaryTimeRow, error) {
	return queryRows[DiaryTimeRow](ctx, c, "users with diary time", `
		SELECT user_id, diary_time FROM user_setting WHERE diary_time != NONE
	`, nil)
}

// QueryDiaryTime returns the user's diary time, or nil if none is configured.
func (c *Client) QueryDiaryTime(ctx context.Context, userID string) (*string, error) {
	rows, err := queryRows[models.UserSetting](ctx, c, "diary time", `
		SELECT * FROM user_setting WHERE user_id = $user_id LIMIT 1
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].DiaryTime, nil
}

// =============================================================================
// USERS
// =============================================================================

// UpsertUser records that the user exists, keeping any stored password.
func (c *Client) UpsertUser(ctx context.Context, userID string) error {
	_, err := queryRows[models.User](ctx, c, "upsert user", `
		UPSERT type::record("user", $user_id) SET user_id = $user_id
	`, map[string]any{"user_id": userID})
	return err
}

// QueryUser returns the user record or ErrNotFound.
func (c *Client) QueryUser(ctx context.Context, userID string) (*models.User, error) {
	rows, err := queryRows[models.User](ctx, c, "get user", `
		SELECT * FROM type::record("user", $user_id)
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("get user %s: %w", userID, ErrNotFound)
	}
	return &rows[0], nil
}

// RegisterUser stores a password hash for the user. Fails with ErrAlreadyExists
// if the user already has a password.
func (c *Client) RegisterUser(ctx context.Context, userID, passwordHash string) error {
	existing, err := c.QueryUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && existing.PasswordHash != nil {
		return fmt.Errorf("register %s: %w", userID, ErrAlreadyExists)
	}

	_, err = queryRows[models.User](ctx, c, "register user", `
		UPSERT type::record("user", $user_id) SET
			user_id = $user_id,
			password_hash = $password_hash
	`, map[string]any{
		"user_id":       userID,
		"password_hash": passwordHash,
	})
	return err
}
