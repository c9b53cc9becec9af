package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/diarist/internal/models"
)

// SummarizeDiary writes a short diary from the day's metadata entries.
func (m *Model) SummarizeDiary(ctx context.Context, metadata []models.Message) (string, error) {
	systemPrompt := `The following is a summary of the user's day as tagged metadata.
Write a short three-line diary in the first person that reflects their emotions and condition.
Keep the tone natural and warm. Write in the language the metadata is written in.
Output only the diary text.`

	payload, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	text, err := m.GenerateWithSystem(ctx, systemPrompt, "Metadata:\n"+string(payload))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summarizer returned empty diary")
	}
	return text, nil
}

// ClassifyEmotion maps a free-text emotion label onto positive, neutral or negative.
func (m *Model) ClassifyEmotion(ctx context.Context, label string) (string, error) {
	systemPrompt := `You classify an emotion word into exactly one of three levels:
positive
neutral
negative

Output only the level, no explanation. Examples:
"happy" -> positive
"annoyed" -> negative
"tired" -> neutral`

	raw, err := m.GenerateWithSystem(ctx, systemPrompt, "Emotion word: "+label)
	if err != nil {
		return "", err
	}
	level, ok := parseEmotionLevel(raw)
	if !ok {
		return "", fmt.Errorf("unrecognized emotion level %q", raw)
	}
	return level, nil
}

// parseEmotionLevel normalizes classifier output, accepting Korean level names.
func parseEmotionLevel(raw string) (string, bool) {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'.-`))
	switch {
	case strings.Contains(s, models.EmotionPositive), strings.Contains(s, "긍정"):
		return models.EmotionPositive, true
	case strings.Contains(s, models.EmotionNegative), strings.Contains(s, "부정"):
		return models.EmotionNegative, true
	case strings.Contains(s, models.EmotionNeutral), strings.Contains(s, "보통"):
		return models.EmotionNeutral, true
	}
	return "", false
}
