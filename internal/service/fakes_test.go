package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/raphaelgruber/diarist/internal/rag"
)

var kst = time.FixedZone("KST", 9*60*60)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, kst)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, kst)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// memStore is an in-memory Store that enforces one diary per (user, day).
type memStore struct {
	mu            sync.Mutex
	conversations []models.Conversation
	diaries       []models.Diary
	settings      map[string]string
	users         map[string]bool
	clock         func() time.Time

	// failures injected per method name
	fail map[string]error
	// insertDelay widens race windows in concurrency tests
	insertDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		settings: map[string]string{},
		users:    map[string]bool{},
		fail:     map[string]error{},
		clock:    time.Now,
	}
}

func (s *memStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

func (s *memStore) injected(method string) error {
	return s.fail[method]
}

func (s *memStore) addConversation(userID string, updatedAt time.Time, msgs ...models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, models.Conversation{UserID: userID, Messages: msgs, UpdatedAt: updatedAt})
}

func (s *memStore) addDiary(userID string, d time.Time, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diaries = append(s.diaries, models.Diary{UserID: userID, DiaryDate: d, Diary: "earlier", Emotion: models.EmotionNeutral, CreatedAt: createdAt})
}

func (s *memStore) diariesFor(userID string) []models.Diary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Diary
	for _, d := range s.diaries {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out
}

func (s *memStore) QueryConversationsInRange(_ context.Context, userID string, start, end time.Time) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("QueryConversationsInRange"); err != nil {
		return nil, err
	}
	var out []models.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID && c.UpdatedAt.After(start) && c.UpdatedAt.Before(end) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *memStore) QueryConversationsSince(_ context.Context, userID string, since time.Time) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID && c.UpdatedAt.After(since) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *memStore) InsertConversation(_ context.Context, conv models.Conversation) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("InsertConversation"); err != nil {
		return nil, err
	}
	s.conversations = append(s.conversations, conv)
	return &conv, nil
}

func (s *memStore) RemoveMessagesBefore(_ context.Context, userID string, roles []string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i, c := range s.conversations {
		if c.UserID != userID || !c.UpdatedAt.Before(cutoff) {
			continue
		}
		kept := slices.DeleteFunc(slices.Clone(c.Messages), func(m models.Message) bool {
			return slices.Contains(roles, m.Role)
		})
		if len(kept) != len(c.Messages) {
			s.conversations[i].Messages = kept
			n++
		}
	}
	return n, nil
}

func (s *memStore) QueryLatestDiary(_ context.Context, userID string) (*models.Diary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("QueryLatestDiary"); err != nil {
		return nil, err
	}
	var latest *models.Diary
	for i := range s.diaries {
		d := s.diaries[i]
		if d.UserID == userID && (latest == nil || d.DiaryDate.After(latest.DiaryDate)) {
			latest = &d
		}
	}
	return latest, nil
}

func (s *memStore) QueryDiaryByDay(_ context.Context, userID string, day time.Time) (*models.Diary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("QueryDiaryByDay"); err != nil {
		return nil, err
	}
	for _, d := range s.diaries {
		if d.UserID == userID && d.DiaryDate.Equal(day) {
			return &d, nil
		}
	}
	return nil, nil
}

func (s *memStore) QueryDiariesInRange(_ context.Context, userID string, start, end time.Time) ([]models.Diary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Diary
	for _, d := range s.diaries {
		if d.UserID == userID && !d.DiaryDate.Before(start) && d.DiaryDate.Before(end) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiaryDate.Before(out[j].DiaryDate) })
	return out, nil
}

func (s *memStore) InsertDiaryIfAbsent(_ context.Context, input models.DiaryInput) (*models.Diary, error) {
	if s.insertDelay > 0 {
		time.Sleep(s.insertDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("InsertDiaryIfAbsent"); err != nil {
		return nil, err
	}
	for _, d := range s.diaries {
		if d.UserID == input.UserID && d.DiaryDate.Equal(input.DiaryDate) {
			return nil, db.ErrAlreadyExists
		}
	}
	d := models.Diary{
		UserID:    input.UserID,
		DiaryDate: input.DiaryDate,
		Diary:     input.Diary,
		Emotion:   input.Emotion,
		CreatedAt: s.clock(),
	}
	s.diaries = append(s.diaries, d)
	return &d, nil
}

func (s *memStore) QueryUsersWithDiaryTime(_ context.Context) ([]db.DiaryTimeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("QueryUsersWithDiaryTime"); err != nil {
		return nil, err
	}
	var rows []db.DiaryTimeRow
	for u, t := range s.settings {
		rows = append(rows, db.DiaryTimeRow{UserID: u, DiaryTime: t})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

func (s *memStore) QueryDiaryTime(_ context.Context, userID string) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memStore) UpsertDiaryTime(_ context.Context, userID, diaryTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[userID] = diaryTime
	return nil
}

func (s *memStore) UpsertUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = true
	return nil
}

// fakeSummarizer returns canned text and records its inputs.
type fakeSummarizer struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	seen  [][]models.Message
	delay time.Duration
}

func (f *fakeSummarizer) SummarizeDiary(_ context.Context, metadata []models.Message) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, metadata)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeSummarizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeClassifier maps labels through a table.
type fakeClassifier struct {
	levels map[string]string
	err    error
	calls  atomic.Int64
	last   atomic.Value
}

func (f *fakeClassifier) ClassifyEmotion(_ context.Context, label string) (string, error) {
	f.calls.Add(1)
	f.last.Store(label)
	if f.err != nil {
		return "", f.err
	}
	if lvl, ok := f.levels[label]; ok {
		return lvl, nil
	}
	return models.EmotionNeutral, nil
}

func defaultClassifier() *fakeClassifier {
	return &fakeClassifier{levels: map[string]string{
		"happy":     models.EmotionPositive,
		"grateful":  models.EmotionPositive,
		"sad":       models.EmotionNegative,
		"depressed": models.EmotionNegative,
		"tired":     models.EmotionNeutral,
		"anxious":   models.EmotionNegative,
	}}
}

// fakeChatModel returns canned extraction and replies.
type fakeChatModel struct {
	extracted  []models.Message
	extractErr error
	reply      string
	replyErr   error

	mu          sync.Mutex
	lastSystem  string
	lastHistory []models.Message
	replies     int
}

func (f *fakeChatModel) ExtractMetadata(context.Context, string) ([]models.Message, error) {
	return f.extracted, f.extractErr
}

func (f *fakeChatModel) Reply(_ context.Context, systemPrompt string, history []models.Message, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies++
	f.lastSystem = systemPrompt
	f.lastHistory = history
	return f.reply, f.replyErr
}

// fakeRetriever answers from a canned result.
type fakeRetriever struct {
	res     rag.Result
	err     error
	queries []string
}

func (f *fakeRetriever) Query(_ context.Context, q string) (rag.Result, error) {
	f.queries = append(f.queries, q)
	return f.res, f.err
}

// fakeSynth records SynthesizeAt calls for sweep tests.
type fakeSynth struct {
	mu     sync.Mutex
	calls  []string
	at     []time.Time
	errFor map[string]error
}

func (f *fakeSynth) SynthesizeAt(_ context.Context, userID string, requestedDay *time.Time, now time.Time) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	f.at = append(f.at, now)
	if err := f.errFor[userID]; err != nil {
		return Outcome{Status: StatusFailed}, err
	}
	return Outcome{Status: StatusSuccess}, nil
}

func (f *fakeSynth) Synthesize(ctx context.Context, userID string, requestedDay *time.Time) (Outcome, error) {
	return f.SynthesizeAt(ctx, userID, requestedDay, time.Time{})
}

func (f *fakeSynth) Called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.calls)
	slices.Sort(out)
	return out
}

func (f *fakeSynth) Instants() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.at)
}

var errBoom = errors.New("boom")

var _ Store = (*memStore)(nil)
