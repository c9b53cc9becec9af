// Package service implements diary synthesis, the autowriter sweep and the
// chat flow on top of the store and LLM collaborators.
package service

import (
	"context"
	"time"

	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/raphaelgruber/diarist/internal/rag"
)

// ConversationStore reads and writes chat turns.
type ConversationStore interface {
	QueryConversationsInRange(ctx context.Context, userID string, start, end time.Time) ([]models.Conversation, error)
	QueryConversationsSince(ctx context.Context, userID string, since time.Time) ([]models.Conversation, error)
	InsertConversation(ctx context.Context, conv models.Conversation) (*models.Conversation, error)
	RemoveMessagesBefore(ctx context.Context, userID string, roles []string, cutoff time.Time) (int, error)
}

// DiaryStore reads and writes diaries. InsertDiaryIfAbsent must fail with
// db.ErrAlreadyExists when (user, day) is taken.
type DiaryStore interface {
	QueryLatestDiary(ctx context.Context, userID string) (*models.Diary, error)
	QueryDiaryByDay(ctx context.Context, userID string, day time.Time) (*models.Diary, error)
	QueryDiariesInRange(ctx context.Context, userID string, start, end time.Time) ([]models.Diary, error)
	InsertDiaryIfAbsent(ctx context.Context, input models.DiaryInput) (*models.Diary, error)
}

// SettingStore reads and writes per-user diary times.
type SettingStore interface {
	QueryUsersWithDiaryTime(ctx context.Context) ([]db.DiaryTimeRow, error)
	QueryDiaryTime(ctx context.Context, userID string) (*string, error)
	UpsertDiaryTime(ctx context.Context, userID, diaryTime string) error
}

// UserStore records users.
type UserStore interface {
	UpsertUser(ctx context.Context, userID string) error
}

// Store is everything the services need from persistence. *db.Client implements it.
type Store interface {
	ConversationStore
	DiaryStore
	SettingStore
	UserStore
}

// Summarizer turns a day's metadata into diary text.
type Summarizer interface {
	SummarizeDiary(ctx context.Context, metadata []models.Message) (string, error)
}

// EmotionClassifier maps an emotion label onto positive, neutral or negative.
type EmotionClassifier interface {
	ClassifyEmotion(ctx context.Context, label string) (string, error)
}

// ChatModel extracts metadata and produces chat replies.
type ChatModel interface {
	ExtractMetadata(ctx context.Context, message string) ([]models.Message, error)
	Reply(ctx context.Context, systemPrompt string, history []models.Message, message string) (string, error)
}

// Retriever answers style-specific requests from the retrieval side-service.
type Retriever interface {
	Query(ctx context.Context, query string) (rag.Result, error)
}

var _ Store = (*db.Client)(nil)
