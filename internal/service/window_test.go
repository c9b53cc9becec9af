package service

import (
	"context"
	"testing"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiaryDateFor(t *testing.T) {
	cutoff := models.DiaryTime{Hour: 3, Minute: 0}
	x := day(2025, 6, 15)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before cutoff files yesterday", at(2025, 6, 15, 2, 59), x.AddDate(0, 0, -1)},
		{"exactly at cutoff files yesterday", at(2025, 6, 15, 3, 0), x.AddDate(0, 0, -1)},
		{"seconds into cutoff minute still yesterday", at(2025, 6, 15, 3, 0).Add(30 * time.Second), x.AddDate(0, 0, -1)},
		{"after cutoff files today", at(2025, 6, 15, 3, 1), x},
		{"evening files today", at(2025, 6, 15, 22, 0), x},
		{"just after midnight files yesterday", at(2025, 6, 15, 0, 5), x.AddDate(0, 0, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiaryDateFor(tt.now, cutoff, kst)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestDiaryDateForUsesServiceZone(t *testing.T) {
	// 18:30 UTC on the 14th is 03:30 KST on the 15th
	now := time.Date(2025, 6, 14, 18, 30, 0, 0, time.UTC)
	got := DiaryDateFor(now, models.DiaryTime{Hour: 3}, kst)
	assert.True(t, got.Equal(day(2025, 6, 15)), "got %v", got)
}

func TestResolveFirstDiaryStartsAtEpoch(t *testing.T) {
	store := newMemStore()
	store.settings["u1"] = "03:00"
	now := at(2025, 6, 15, 2, 55)
	r := NewWindowResolver(store, store, kst, fixedClock(now))

	w, err := r.Resolve(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.True(t, w.Start.Equal(time.Unix(0, 0)))
	assert.True(t, w.End.Equal(now))
	assert.True(t, w.DiaryDate.Equal(day(2025, 6, 14)))
}

func TestResolveStartsAtLatestDiaryDate(t *testing.T) {
	store := newMemStore()
	store.settings["u1"] = "22:00"
	store.addDiary("u1", day(2025, 6, 10), time.Time{})
	store.addDiary("u1", day(2025, 6, 13), time.Time{})
	store.addDiary("u1", day(2025, 6, 12), time.Time{})
	r := NewWindowResolver(store, store, kst, fixedClock(at(2025, 6, 15, 22, 5)))

	w, err := r.Resolve(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.True(t, w.Start.Equal(day(2025, 6, 13)), "start anchors on the latest diary date, got %v", w.Start)
	assert.True(t, w.DiaryDate.Equal(day(2025, 6, 15)))
}

func TestResolveRequestedDay(t *testing.T) {
	store := newMemStore()
	store.settings["u1"] = "03:00"
	r := NewWindowResolver(store, store, kst, fixedClock(at(2025, 6, 20, 12, 0)))

	// a requested day with a time component is normalized to its calendar day
	requested := at(2025, 6, 15, 14, 30)
	w, err := r.Resolve(context.Background(), "u1", &requested)
	require.NoError(t, err)
	assert.True(t, w.DiaryDate.Equal(day(2025, 6, 15)))
	assert.True(t, w.End.Equal(time.Date(2025, 6, 15, 23, 59, 59, 999_000_000, kst)), "end %v", w.End)
}

func TestResolveWithoutDiaryTimeFilesToday(t *testing.T) {
	store := newMemStore()
	r := NewWindowResolver(store, store, kst, fixedClock(at(2025, 6, 15, 1, 0)))

	w, err := r.Resolve(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.True(t, w.DiaryDate.Equal(day(2025, 6, 15)))
}

func TestResolveErrors(t *testing.T) {
	t.Run("malformed diary time", func(t *testing.T) {
		store := newMemStore()
		store.settings["u1"] = "25:99"
		r := NewWindowResolver(store, store, kst, fixedClock(at(2025, 6, 15, 1, 0)))
		_, err := r.Resolve(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("storage failure", func(t *testing.T) {
		store := newMemStore()
		store.failOn("QueryLatestDiary", errBoom)
		r := NewWindowResolver(store, store, kst, fixedClock(at(2025, 6, 15, 1, 0)))
		_, err := r.Resolve(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, errBoom)
	})
}
