package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ErrInvalidDiaryTime is returned for diary times that are not HH:MM.
var ErrInvalidDiaryTime = errors.New("invalid diary time")

// UserSetting is the per-user configuration row.
// A nil DiaryTime excludes the user from automatic sweeps.
type UserSetting struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	DiaryTime *string                `json:"diary_time,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// User is a registered account.
type User struct {
	ID           surrealmodels.RecordID `json:"id"`
	UserID       string                 `json:"user_id"`
	PasswordHash *string                `json:"password_hash,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// DiaryTime is a wall-clock cutoff in the service time zone.
type DiaryTime struct {
	Hour   int
	Minute int
}

// ParseDiaryTime parses a 24-hour "HH:MM" string. A single-digit hour is accepted.
func ParseDiaryTime(s string) (DiaryTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return DiaryTime{}, fmt.Errorf("%w: %q", ErrInvalidDiaryTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return DiaryTime{}, fmt.Errorf("%w: %q", ErrInvalidDiaryTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return DiaryTime{}, fmt.Errorf("%w: %q", ErrInvalidDiaryTime, s)
	}
	return DiaryTime{Hour: h, Minute: m}, nil
}

// String formats the time as zero-padded "HH:MM".
func (t DiaryTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant of this diary time on the calendar day of ref in loc.
func (t DiaryTime) On(ref time.Time, loc *time.Location) time.Time {
	y, m, d := ref.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}
