package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

func sampleDiary() models.Diary {
	return models.Diary{
		UserID:    "alice",
		DiaryDate: time.Date(2025, 6, 15, 0, 0, 0, 0, kst),
		Diary:     "A calm day at the park.\n\nDinner with Minji.",
		Emotion:   models.EmotionPositive,
		CreatedAt: time.Date(2025, 6, 16, 3, 0, 12, 0, kst),
	}
}

func TestRender(t *testing.T) {
	out, err := Render(sampleDiary(), kst)
	require.NoError(t, err)

	content := string(out)
	assert.Contains(t, content, "---\nuser_id: alice\n")
	assert.Regexp(t, `(?m)^date: "?2025-06-15"?$`, content)
	assert.Contains(t, content, "emotion: positive\n")
	assert.Contains(t, content, "---\n\n# 2025-06-15\n\nA calm day at the park.\n\nDinner with Minji.\n")
}

func TestParseRendered(t *testing.T) {
	d := sampleDiary()
	out, err := Render(d, kst)
	require.NoError(t, err)

	entry, err := Parse(string(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", entry.UserID)
	assert.Equal(t, "2025-06-15", entry.Date)
	assert.Equal(t, models.EmotionPositive, entry.Emotion)
	assert.True(t, entry.CreatedAt.Equal(d.CreatedAt))
	assert.Equal(t, d.Diary, entry.Body)

	in, err := entry.Input(kst)
	require.NoError(t, err)
	assert.True(t, in.DiaryDate.Equal(d.DiaryDate))
	assert.Equal(t, d.Diary, in.Diary)
}

func TestParseHandwritten(t *testing.T) {
	content := "---\r\nuser_id: bob\r\ndate: 2025-01-02\r\nemotion: neutral\r\n---\r\nJust a note, no heading.\r\n"

	entry, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "bob", entry.UserID)
	assert.Equal(t, "Just a note, no heading.", entry.Body)
	assert.True(t, entry.CreatedAt.IsZero())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "# 2025-06-15\n\nhello\n"},
		{"unterminated", "---\nuser_id: alice\n"},
		{"bad yaml", "---\nuser_id: [alice\n---\nbody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			assert.Error(t, err)
		})
	}
	_, err := Parse("plain")
	assert.ErrorIs(t, err, ErrNoFrontmatter)
}

func TestEntryInputValidation(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing user", Entry{Frontmatter: Frontmatter{Date: "2025-06-15"}, Body: "x"}},
		{"bad date", Entry{Frontmatter: Frontmatter{UserID: "a", Date: "15/06/2025"}, Body: "x"}},
		{"empty body", Entry{Frontmatter: Frontmatter{UserID: "a", Date: "2025-06-15"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.entry.Input(kst)
			assert.Error(t, err)
		})
	}
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("backup", "alice", "2025", "2025-06-15.md"), Path("backup", sampleDiary(), kst))
}
