package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/raphaelgruber/diarist/internal/metrics"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type diaryFixture struct {
	store      *memStore
	summarizer *fakeSummarizer
	classifier *fakeClassifier
	metrics    *metrics.Collector
	svc        *DiaryService
}

// newDiaryFixture builds a service whose clock reads now and whose user u1
// writes diaries at 03:00.
func newDiaryFixture(now time.Time) *diaryFixture {
	store := newMemStore()
	store.clock = fixedClock(now)
	store.settings["u1"] = "03:00"
	f := &diaryFixture{
		store:      store,
		summarizer: &fakeSummarizer{text: "A calm day at the park."},
		classifier: defaultClassifier(),
		metrics:    metrics.NewCollector(),
	}
	f.svc = NewDiaryService(DiaryDeps{
		Store:      store,
		Summarizer: f.summarizer,
		Classifier: f.classifier,
		Location:   kst,
		Metrics:    f.metrics,
		Now:        fixedClock(now),
	})
	return f
}

func msg(role, content string) models.Message {
	return models.Message{Role: role, Content: content}
}

func TestSynthesizeWritesDiary(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	f.store.addConversation("u1", at(2025, 6, 15, 10, 0),
		msg(models.RoleUser, "went to the park"),
		msg(models.RoleEmotion, "happy"),
		msg(models.RoleAssistant, "sounds lovely"),
	)

	out, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.True(t, out.DiaryDate.Equal(day(2025, 6, 15)))
	require.NotNil(t, out.Diary)
	assert.Equal(t, "A calm day at the park.", out.Diary.Diary)
	assert.Equal(t, models.EmotionPositive, out.Diary.Emotion)

	stored := f.store.diariesFor("u1")
	require.Len(t, stored, 1)
	assert.True(t, stored[0].DiaryDate.Equal(day(2025, 6, 15)))
	assert.Equal(t, int64(1), f.metrics.Snapshot().Counters[metrics.CounterDiarySuccess])
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	f.store.addConversation("u1", at(2025, 6, 15, 10, 0), msg(models.RoleEmotion, "happy"))
	ctx := context.Background()

	first, err := f.svc.Synthesize(ctx, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, first.Status)

	second, err := f.svc.Synthesize(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status)
	assert.Equal(t, ReasonAlreadyExists, second.Reason)

	assert.Len(t, f.store.diariesFor("u1"), 1)
	assert.Equal(t, 1, f.summarizer.Calls(), "duplicate run must not reach the summarizer")
}

func TestSynthesizeSkipsWithoutConversations(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))

	out, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, ReasonNoConversation, out.Reason)
	assert.Empty(t, f.store.diariesFor("u1"))
	assert.Zero(t, f.summarizer.Calls())
}

func TestSynthesizeWindowBounds(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	f.store.addDiary("u1", day(2025, 6, 13), at(2025, 6, 14, 3, 0))
	// exactly at the start bound and before it: both excluded
	f.store.addConversation("u1", day(2025, 6, 13), msg(models.RoleEmotion, "sad"))
	f.store.addConversation("u1", at(2025, 6, 12, 20, 0), msg(models.RoleEmotion, "depressed"))
	f.store.addConversation("u1", at(2025, 6, 14, 9, 0), msg(models.RoleEmotion, "grateful"))

	out, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, out.Status)

	require.Len(t, f.summarizer.seen, 1)
	assert.Equal(t, []models.Message{msg(models.RoleEmotion, "grateful")}, f.summarizer.seen[0])
	assert.Equal(t, models.EmotionPositive, out.Diary.Emotion)
}

func TestSynthesizeMetadataOrder(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	// inserted out of order; the store returns them by updated_at
	f.store.addConversation("u1", at(2025, 6, 15, 18, 0),
		msg(models.RoleUser, "dinner with friends"),
		msg(models.RoleDoneToday, "dinner"),
		msg(models.RoleEmotion, "happy"),
	)
	f.store.addConversation("u1", at(2025, 6, 15, 9, 0),
		msg(models.RoleCondition, "headache"),
		msg(models.RoleFavorite, "coffee"),
		msg(models.RoleEmotion, "tired"),
	)

	_, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)

	require.Len(t, f.summarizer.seen, 1)
	assert.Equal(t, []models.Message{
		msg(models.RoleCondition, "headache"),
		msg(models.RoleEmotion, "tired"),
		msg(models.RoleDoneToday, "dinner"),
		msg(models.RoleEmotion, "happy"),
	}, f.summarizer.seen[0])
	assert.Equal(t, "tired", f.classifier.last.Load())
}

func TestSynthesizeNeutralSkipsClassifier(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	f.store.addConversation("u1", at(2025, 6, 15, 10, 0),
		msg(models.RoleDoneToday, "laundry"),
	)

	out, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, models.EmotionNeutral, out.Diary.Emotion)
	assert.Zero(t, f.classifier.calls.Load())
}

func TestSynthesizeKoreanEmotion(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	f.store.addConversation("u1", at(2025, 6, 15, 10, 0),
		msg(models.RoleEmotion, "슬픔"),
		msg(models.RoleEmotion, "행복"),
	)

	out, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, models.EmotionNegative, out.Diary.Emotion)
	assert.Equal(t, int64(1), f.classifier.calls.Load())
	assert.Equal(t, "sad", f.classifier.last.Load())
}

func TestSynthesizeUnrankedEmotionStillClassified(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	f.classifier.levels["서운함"] = models.EmotionNegative
	f.store.addConversation("u1", at(2025, 6, 15, 10, 0),
		msg(models.RoleEmotion, "서운함"),
		msg(models.RoleEmotion, "bewildered"),
	)

	out, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, models.EmotionNegative, out.Diary.Emotion)
	assert.Equal(t, "서운함", f.classifier.last.Load())
}

func TestSynthesizeRequestedDay(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 20, 12, 0))
	f.store.addConversation("u1", at(2025, 6, 14, 10, 0), msg(models.RoleEmotion, "sad"))
	f.store.addConversation("u1", at(2025, 6, 16, 10, 0), msg(models.RoleEmotion, "happy"))

	requested := day(2025, 6, 14)
	out, err := f.svc.Synthesize(context.Background(), "u1", &requested)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, out.Status)
	assert.True(t, out.DiaryDate.Equal(requested))
	assert.Equal(t, models.EmotionNegative, out.Diary.Emotion)
}

func TestSynthesizeFailures(t *testing.T) {
	t.Run("summarizer error writes nothing", func(t *testing.T) {
		f := newDiaryFixture(at(2025, 6, 15, 22, 0))
		f.summarizer.err = errBoom
		f.store.addConversation("u1", at(2025, 6, 15, 10, 0), msg(models.RoleEmotion, "happy"))

		out, err := f.svc.Synthesize(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrUpstreamSummarizer)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Empty(t, f.store.diariesFor("u1"))
		assert.Equal(t, int64(1), f.metrics.Snapshot().Counters[metrics.CounterDiaryFailed])
	})

	t.Run("classifier error writes nothing", func(t *testing.T) {
		f := newDiaryFixture(at(2025, 6, 15, 22, 0))
		f.classifier.err = errBoom
		f.store.addConversation("u1", at(2025, 6, 15, 10, 0), msg(models.RoleEmotion, "happy"))

		out, err := f.svc.Synthesize(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrUpstreamSummarizer)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Empty(t, f.store.diariesFor("u1"))
	})

	t.Run("insert error", func(t *testing.T) {
		f := newDiaryFixture(at(2025, 6, 15, 22, 0))
		f.store.failOn("InsertDiaryIfAbsent", errBoom)
		f.store.addConversation("u1", at(2025, 6, 15, 10, 0), msg(models.RoleEmotion, "happy"))

		out, err := f.svc.Synthesize(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, StatusFailed, out.Status)
		assert.True(t, out.DiaryDate.Equal(day(2025, 6, 15)))
	})

	t.Run("conversation read error", func(t *testing.T) {
		f := newDiaryFixture(at(2025, 6, 15, 22, 0))
		f.store.failOn("QueryConversationsInRange", errBoom)

		out, err := f.svc.Synthesize(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrStorage)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Zero(t, f.summarizer.Calls())
	})

	t.Run("transaction conflict without a winner", func(t *testing.T) {
		f := newDiaryFixture(at(2025, 6, 15, 22, 0))
		f.store.failOn("InsertDiaryIfAbsent", db.ErrTransactionConflict)
		f.store.addConversation("u1", at(2025, 6, 15, 10, 0), msg(models.RoleEmotion, "happy"))

		out, err := f.svc.Synthesize(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, db.ErrTransactionConflict)
		assert.Equal(t, StatusFailed, out.Status)
	})

	t.Run("invalid diary time", func(t *testing.T) {
		f := newDiaryFixture(at(2025, 6, 15, 22, 0))
		f.store.settings["u1"] = "7pm"

		out, err := f.svc.Synthesize(context.Background(), "u1", nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Equal(t, StatusFailed, out.Status)
	})
}

func TestSynthesizeConcurrentRunsWriteOnce(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	// every run passes the existence check before any of them inserts
	f.summarizer.delay = 20 * time.Millisecond
	f.store.addConversation("u1", at(2025, 6, 15, 10, 0), msg(models.RoleEmotion, "happy"))

	const runs = 8
	var wg sync.WaitGroup
	outcomes := make([]Outcome, runs)
	errs := make([]error, runs)
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i], errs[i] = f.svc.Synthesize(context.Background(), "u1", nil)
		}()
	}
	wg.Wait()

	success := 0
	for i := range runs {
		require.NoError(t, errs[i])
		switch outcomes[i].Status {
		case StatusSuccess:
			success++
		case StatusSkipped:
			assert.Equal(t, ReasonAlreadyExists, outcomes[i].Reason)
		default:
			t.Fatalf("unexpected status %q", outcomes[i].Status)
		}
	}
	assert.Equal(t, 1, success)
	assert.Len(t, f.store.diariesFor("u1"), 1)
}

func TestOnDiaryWritten(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 22, 0))
	f.store.addConversation("u1", at(2025, 6, 15, 10, 0), msg(models.RoleEmotion, "sad"))

	var got []models.Diary
	f.svc.OnDiaryWritten(func(d models.Diary) { got = append(got, d) })

	_, err := f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)
	_, err = f.svc.Synthesize(context.Background(), "u1", nil)
	require.NoError(t, err)

	require.Len(t, got, 1, "skips are not announced")
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, models.EmotionNegative, got[0].Emotion)
}

func TestExtractDiaryMetadata(t *testing.T) {
	convs := []models.Conversation{
		{Messages: []models.Message{
			msg(models.RoleUser, "hi"),
			msg(models.RoleEmotion, "happy"),
			msg(models.RoleRoutine, "gym"),
		}},
		{Messages: []models.Message{
			msg(models.RoleDoneToday, "cooked"),
			msg(models.RoleAssistant, "nice"),
			msg(models.RoleCondition, "sleepy"),
		}},
	}

	got := ExtractDiaryMetadata(convs)
	assert.Equal(t, []models.Message{
		msg(models.RoleEmotion, "happy"),
		msg(models.RoleDoneToday, "cooked"),
		msg(models.RoleCondition, "sleepy"),
	}, got)
	assert.Equal(t, []string{"happy"}, EmotionLabels(got))
	assert.Empty(t, ExtractDiaryMetadata(nil))
}

func TestDiaryReads(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 30, 12, 0))
	f.store.addDiary("u1", day(2025, 5, 31), time.Time{})
	f.store.addDiary("u1", day(2025, 6, 1), time.Time{})
	f.store.addDiary("u1", day(2025, 6, 15), time.Time{})
	f.store.addDiary("u1", day(2025, 7, 1), time.Time{})
	f.store.addDiary("u2", day(2025, 6, 2), time.Time{})
	ctx := context.Background()

	t.Run("get diary by day", func(t *testing.T) {
		d, err := f.svc.GetDiary(ctx, "u1", at(2025, 6, 15, 18, 0))
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "earlier", d.Diary)

		missing, err := f.svc.GetDiary(ctx, "u1", day(2025, 6, 16))
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("calendar covers the month only", func(t *testing.T) {
		got, err := f.svc.CalendarEmotions(ctx, "u1", 2025, time.June)
		require.NoError(t, err)
		assert.Equal(t, []models.DayEmotion{
			{Date: "2025-06-01", FinalEmotion: models.EmotionNeutral},
			{Date: "2025-06-15", FinalEmotion: models.EmotionNeutral},
		}, got)
	})

	t.Run("empty month is an empty list", func(t *testing.T) {
		got, err := f.svc.CalendarEmotions(ctx, "u1", 2024, time.January)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("between is inclusive", func(t *testing.T) {
		got, err := f.svc.DiariesBetween(ctx, "u1", day(2025, 5, 31), day(2025, 6, 15))
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestSetDiaryTime(t *testing.T) {
	f := newDiaryFixture(at(2025, 6, 15, 12, 0))
	ctx := context.Background()

	dt, err := f.svc.SetDiaryTime(ctx, "u2", "7:05")
	require.NoError(t, err)
	assert.Equal(t, models.DiaryTime{Hour: 7, Minute: 5}, dt)
	assert.Equal(t, "07:05", f.store.settings["u2"])

	for _, raw := range []string{"", "24:00", "12:60", "noon", "12-30"} {
		_, err := f.svc.SetDiaryTime(ctx, "u2", raw)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "input %q", raw)
	}
	assert.Equal(t, "07:05", f.store.settings["u2"], "rejected input leaves the setting alone")
}
