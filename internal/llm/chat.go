package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/tmc/langchaingo/llms"
)

const extractPrompt = `You extract emotional and situational signals from a user's utterance.

Return ONLY a JSON array of {"role": "...", "content": "..."} objects using these roles:
- emotion: the user's current emotional state, one of depressed, sad, tired, anxious, grateful, happy, neutral when one fits
- condition: the user's physical state, e.g. "tired", "energetic"
- doneToday: something the user did today
- favorite: something the user likes
- hate: something the user dislikes
- routine: something the user does repeatedly
- prompt: a requested speaking tone, e.g. "cute tone", "tsundere tone", "dialect (사투리)", "use memes (밈)"

Infer implicit signals too:
"I was so embarrassed" -> emotion: embarrassed
"I got caught in the rain and fell" -> doneToday: fell over, condition: sore
"say it in a fun way" -> prompt: use memes (밈)

Write emotion content with those English words when one fits. Keep the user's language in all other content. Output [] if nothing applies. No explanation.`

// ExtractMetadata tags the utterance with metadata entries.
// Unparseable model output yields no entries rather than an error.
func (m *Model) ExtractMetadata(ctx context.Context, message string) ([]models.Message, error) {
	raw, err := m.GenerateWithSystem(ctx, extractPrompt, "User utterance:\n"+message)
	if err != nil {
		return nil, err
	}
	return parseMetadata(raw), nil
}

// parseMetadata reads the JSON array between the first '[' and the last ']'
// and keeps entries with a known metadata role.
func parseMetadata(raw string) []models.Message {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return []models.Message{}
	}

	var entries []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &entries); err != nil {
		return []models.Message{}
	}

	out := make([]models.Message, 0, len(entries))
	for _, e := range entries {
		role := normalizeRole(e.Role)
		if !models.IsMetadataRole(role) {
			continue
		}
		content := contentString(e.Content)
		if content == "" {
			continue
		}
		out = append(out, models.Message{Role: role, Content: content})
	}
	return out
}

// normalizeRole accepts the spellings models commonly produce for doneToday.
func normalizeRole(role string) string {
	switch strings.TrimSpace(role) {
	case "doneToday", "done_today", "done today", "한 일":
		return models.RoleDoneToday
	}
	return strings.TrimSpace(role)
}

// contentString flattens string or string-array content into one string.
func contentString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, ", "))
	}
	return ""
}

// Reply answers the user with the system prompt and prior dialogue as context.
func (m *Model) Reply(ctx context.Context, systemPrompt string, history []models.Message, message string) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, h := range history {
		switch h.Role {
		case models.RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, h.Content))
		case models.RoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, h.Content))
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	reply, err := m.generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
