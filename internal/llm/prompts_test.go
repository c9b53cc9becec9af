package llm

import (
	"context"
	"testing"

	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []models.Message
	}{
		{
			name: "plain array",
			raw:  `[{"role":"emotion","content":"happy"},{"role":"condition","content":"tired"}]`,
			want: []models.Message{{Role: "emotion", Content: "happy"}, {Role: "condition", Content: "tired"}},
		},
		{
			name: "wrapped in prose and code fence",
			raw:  "Here you go:\n```json\n[{\"role\":\"favorite\",\"content\":\"coffee\"}]\n```",
			want: []models.Message{{Role: "favorite", Content: "coffee"}},
		},
		{
			name: "korean done-today role normalized",
			raw:  `[{"role":"한 일","content":"넘어짐"}]`,
			want: []models.Message{{Role: models.RoleDoneToday, Content: "넘어짐"}},
		},
		{
			name: "array content joined",
			raw:  `[{"role":"emotion","content":["embarrassed","annoyed"]}]`,
			want: []models.Message{{Role: "emotion", Content: "embarrassed, annoyed"}},
		},
		{
			name: "unknown roles and empty content dropped",
			raw:  `[{"role":"diary","content":"x"},{"role":"user","content":"y"},{"role":"hate","content":""},{"role":"routine","content":"run"}]`,
			want: []models.Message{{Role: "routine", Content: "run"}},
		},
		{name: "no array", raw: "nothing to extract", want: []models.Message{}},
		{name: "malformed json", raw: `[{"role":"emotion",]`, want: []models.Message{}},
		{name: "empty array", raw: `[]`, want: []models.Message{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseMetadata(tt.raw))
		})
	}
}

func TestParseEmotionLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"positive", models.EmotionPositive, true},
		{" Negative.\n", models.EmotionNegative, true},
		{`"neutral"`, models.EmotionNeutral, true},
		{"긍정", models.EmotionPositive, true},
		{"부정", models.EmotionNegative, true},
		{"보통", models.EmotionNeutral, true},
		{"ecstatic", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseEmotionLevel(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSummarizeDiary(t *testing.T) {
	fake := &fakeLLM{reply: "  Today was long but good.\n"}
	m := newModel(fake, "m", 0, nil)

	text, err := m.SummarizeDiary(context.Background(), []models.Message{
		{Role: models.RoleEmotion, Content: "happy"},
		{Role: models.RoleDoneToday, Content: "went hiking"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Today was long but good.", text)

	require.Len(t, fake.received, 1)
	user := textOf(t, fake.received[0][1])
	assert.Contains(t, user, `"went hiking"`)
	assert.Contains(t, user, `"doneToday"`)

	_, err = newModel(&fakeLLM{reply: "   "}, "m", 0, nil).SummarizeDiary(context.Background(), nil)
	assert.Error(t, err, "blank diary is unusable")
}

func TestClassifyEmotion(t *testing.T) {
	level, err := newModel(&fakeLLM{reply: "negative"}, "m", 0, nil).ClassifyEmotion(context.Background(), "sad")
	require.NoError(t, err)
	assert.Equal(t, models.EmotionNegative, level)

	_, err = newModel(&fakeLLM{reply: "I cannot tell"}, "m", 0, nil).ClassifyEmotion(context.Background(), "sad")
	assert.Error(t, err)
}

func TestExtractMetadata(t *testing.T) {
	fake := &fakeLLM{reply: `[{"role":"prompt","content":"사투리"}]`}
	got, err := newModel(fake, "m", 0, nil).ExtractMetadata(context.Background(), "사투리로 말해줘")
	require.NoError(t, err)
	assert.Equal(t, []models.Message{{Role: models.RolePrompt, Content: "사투리"}}, got)
	assert.Contains(t, textOf(t, fake.received[0][1]), "사투리로 말해줘")
	assert.Contains(t, textOf(t, fake.received[0][0]), "depressed, sad, tired, anxious, grateful, happy, neutral")
}

func TestReplyMapsHistoryRoles(t *testing.T) {
	fake := &fakeLLM{reply: " hey! "}
	m := newModel(fake, "m", 0, nil)

	reply, err := m.Reply(context.Background(), "be kind", []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleEmotion, Content: "happy"},
		{Role: models.RoleAssistant, Content: "hello"},
	}, "how are you")
	require.NoError(t, err)
	assert.Equal(t, "hey!", reply)

	msgs := fake.received[0]
	require.Len(t, msgs, 4, "metadata is not replayed as dialogue")
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, "how are you", textOf(t, msgs[3]))
}
