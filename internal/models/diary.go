package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Emotion levels stored on a diary entry.
const (
	EmotionPositive = "positive"
	EmotionNeutral  = "neutral"
	EmotionNegative = "negative"
)

// Diary is one persisted summary for a user and calendar day.
// (UserID, DiaryDate) is unique.
type Diary struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	DiaryDate time.Time              `json:"diary_date"`
	Diary     string                 `json:"diary"`
	Emotion   string                 `json:"emotion"`
	CreatedAt time.Time              `json:"created_at"`
}

// DiaryInput holds the fields needed to create a diary.
type DiaryInput struct {
	UserID    string
	DiaryDate time.Time
	Diary     string
	Emotion   string
}

// DayEmotion is one cell of the emotion calendar.
type DayEmotion struct {
	Date         string `json:"date"`
	FinalEmotion string `json:"finalEmotion"`
}
