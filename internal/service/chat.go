package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/raphaelgruber/diarist/internal/metrics"
	"github.com/raphaelgruber/diarist/internal/models"
)

var diaryRequest = regexp.MustCompile(`일기.*(써|작성)`)

// ChatResult is the reply to one user message.
type ChatResult struct {
	Reply    string
	Metadata []models.Message
	Docs     []string
	Diary    *Outcome // set when the message asked for a diary
}

// UserContext is what the assistant knows about the user from recent conversations.
type UserContext struct {
	History   []models.Message // dialogue turns, oldest first
	Emotion   []string         // today only
	Condition []string         // today only
	DoneToday []string         // today only
	Prompt    string           // latest requested tone
	Favorite  []string
	Hate      []string
	Routine   []string
}

// ChatService handles chat turns: context, metadata extraction, reply and storage.
type ChatService struct {
	store     Store
	model     ChatModel
	retriever Retriever
	diaries   Synthesizer
	window    time.Duration
	loc       *time.Location
	logger    *slog.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// ChatDeps holds the collaborators of a ChatService.
type ChatDeps struct {
	Store         Store
	Model         ChatModel
	Retriever     Retriever
	Diaries       Synthesizer
	ContextWindow time.Duration // defaults to 48h
	Location      *time.Location
	Logger        *slog.Logger
	Metrics       *metrics.Collector
	Now           func() time.Time
}

// NewChatService creates a chat service.
func NewChatService(deps ChatDeps) *ChatService {
	s := &ChatService{
		store:     deps.Store,
		model:     deps.Model,
		retriever: deps.Retriever,
		diaries:   deps.Diaries,
		window:    deps.ContextWindow,
		loc:       deps.Location,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
	if s.window <= 0 {
		s.window = 48 * time.Hour
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Chat answers message and stores the turn with its extracted metadata.
// A message asking for a diary also runs diary synthesis.
func (s *ChatService) Chat(ctx context.Context, userID, message string) (ChatResult, error) {
	log := s.logger.With("user_id", userID)
	s.metrics.Inc(metrics.CounterChatMessages, 1)

	if err := s.store.UpsertUser(ctx, userID); err != nil {
		return ChatResult{}, fmt.Errorf("%w: upsert user: %w", ErrStorage, err)
	}

	uc, err := s.Context(ctx, userID)
	if err != nil {
		return ChatResult{}, err
	}

	extracted, err := s.model.ExtractMetadata(ctx, message)
	if err != nil {
		log.Warn("metadata extraction failed", "error", err)
		extracted = nil
	}

	var reply string
	docs := []string{}
	if wantsStyledReply(extracted) && s.retriever != nil {
		res, err := s.retriever.Query(ctx, message)
		if err != nil {
			log.Warn("rag query failed", "error", err)
		} else {
			reply, docs = res.Response, res.RelatedTexts
		}
	} else {
		reply, err = s.model.Reply(ctx, BuildSystemPrompt(uc), uc.History, message)
		if err != nil {
			return ChatResult{}, fmt.Errorf("%w: reply: %w", ErrUpstreamSummarizer, err)
		}
	}

	messages := make([]models.Message, 0, len(extracted)+2)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: message})
	messages = append(messages, extracted...)
	messages = append(messages, models.Message{Role: models.RoleAssistant, Content: reply})

	if _, err := s.store.InsertConversation(ctx, models.Conversation{
		UserID:    userID,
		Messages:  messages,
		UpdatedAt: s.now(),
		Docs:      docs,
	}); err != nil {
		return ChatResult{}, fmt.Errorf("%w: insert conversation: %w", ErrStorage, err)
	}

	result := ChatResult{Reply: reply, Metadata: extracted, Docs: docs}
	if wantsDiary(extracted, message) && s.diaries != nil {
		out, err := s.diaries.Synthesize(ctx, userID, nil)
		if err != nil {
			log.Warn("diary requested in chat failed", "error", err)
		}
		result.Diary = &out
	}
	return result, nil
}

// Context gathers the user's recent dialogue and metadata. Emotion, condition and
// doneToday count only from conversations updated today.
func (s *ChatService) Context(ctx context.Context, userID string) (UserContext, error) {
	now := s.now()
	convs, err := s.store.QueryConversationsSince(ctx, userID, now.Add(-s.window))
	if err != nil {
		return UserContext{}, fmt.Errorf("%w: recent conversations: %w", ErrStorage, err)
	}

	todayStart := models.DateOnly(now, s.loc)
	var uc UserContext
	for _, c := range convs {
		isToday := !c.UpdatedAt.Before(todayStart)
		for _, m := range c.Messages {
			switch m.Role {
			case models.RoleUser, models.RoleAssistant:
				uc.History = append(uc.History, m)
			case models.RoleEmotion:
				if isToday {
					uc.Emotion = append(uc.Emotion, m.Content)
				}
			case models.RoleCondition:
				if isToday {
					uc.Condition = append(uc.Condition, m.Content)
				}
			case models.RoleDoneToday:
				if isToday {
					uc.DoneToday = append(uc.DoneToday, m.Content)
				}
			case models.RolePrompt:
				uc.Prompt = m.Content
			case models.RoleFavorite:
				uc.Favorite = append(uc.Favorite, m.Content)
			case models.RoleHate:
				uc.Hate = append(uc.Hate, m.Content)
			case models.RoleRoutine:
				uc.Routine = append(uc.Routine, m.Content)
			}
		}
	}
	return uc, nil
}

// BuildSystemPrompt describes the assistant persona and what is known about the user.
func BuildSystemPrompt(uc UserContext) string {
	var b strings.Builder
	b.WriteString("You are a warm companion who chats with the user about their day and helps them keep a diary.\n")
	b.WriteString("Reply in the user's language, briefly and naturally.\n")

	tone := uc.Prompt
	if tone == "" {
		tone = "friendly"
	}
	fmt.Fprintf(&b, "Speaking tone: %s\n", tone)

	section := func(title string, items []string) {
		if len(items) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", title, strings.Join(items, ", "))
		}
	}
	section("Emotions today", uc.Emotion)
	section("Condition today", uc.Condition)
	section("Done today", uc.DoneToday)
	section("Likes", uc.Favorite)
	section("Dislikes", uc.Hate)
	section("Routines", uc.Routine)
	return b.String()
}

// wantsStyledReply reports whether a tone request needs the retrieval service
// (dialect or meme style).
func wantsStyledReply(extracted []models.Message) bool {
	for _, m := range extracted {
		if m.Role == models.RolePrompt && (strings.Contains(m.Content, "사투리") || strings.Contains(m.Content, "밈")) {
			return true
		}
	}
	return false
}

func wantsDiary(extracted []models.Message, message string) bool {
	for _, m := range extracted {
		if m.Role == models.RolePrompt && strings.Contains(m.Content, "일기") {
			return true
		}
	}
	return diaryRequest.MatchString(message)
}
