package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/diarist/internal/models"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color

	Positive lipgloss.Color
	Neutral  lipgloss.Color
	Negative lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray

	Positive: lipgloss.Color("#FFD75F"), // warm yellow
	Neutral:  lipgloss.Color("#AFAFAF"),
	Negative: lipgloss.Color("#5F87FF"), // blue
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) emotionStyle(emotion string) lipgloss.Style {
	switch emotion {
	case models.EmotionPositive:
		return lipgloss.NewStyle().Foreground(t.Positive).Bold(true)
	case models.EmotionNegative:
		return lipgloss.NewStyle().Foreground(t.Negative).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(t.Neutral)
	}
}

// emotionMark is the one-character calendar glyph for an emotion.
func emotionMark(emotion string) string {
	switch emotion {
	case models.EmotionPositive:
		return "+"
	case models.EmotionNegative:
		return "-"
	case models.EmotionNeutral:
		return "o"
	default:
		return "."
	}
}

// renderOutcome formats a synthesis result line.
func (t Theme) renderOutcome(status, reason, diaryDate, emotion string) string {
	switch status {
	case "success":
		return fmt.Sprintf("%s diary for %s written (%s)",
			t.completedStyle().Render("✓"), diaryDate, t.emotionStyle(emotion).Render(emotion))
	case "skipped":
		return fmt.Sprintf("%s diary for %s skipped: %s",
			t.hintStyle().Render("•"), diaryDate, reason)
	default:
		return fmt.Sprintf("%s diary for %s failed", t.errorStyle().Render("✗"), diaryDate)
	}
}

// renderCalendar draws a Monday-first month grid marking each day's emotion.
func (t Theme) renderCalendar(year int, month time.Month, emotions []models.DayEmotion) string {
	byDay := make(map[int]string, len(emotions))
	for _, e := range emotions {
		day, err := time.Parse(models.DateLayout, e.Date)
		if err == nil && day.Year() == year && day.Month() == month {
			byDay[day.Day()] = e.FinalEmotion
		}
	}

	var b strings.Builder
	b.WriteString(t.statusStyle().Render(fmt.Sprintf("%s %d", month, year)))
	b.WriteString("\n Mo  Tu  We  Th  Fr  Sa  Su\n")

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	b.WriteString(strings.Repeat("    ", offset))

	days := first.AddDate(0, 1, -1).Day()
	for d := 1; d <= days; d++ {
		cell := fmt.Sprintf("%2d%s", d, emotionMark(byDay[d]))
		if e, ok := byDay[d]; ok {
			cell = t.emotionStyle(e).Render(cell)
		}
		b.WriteString(" " + cell)
		if (offset+d)%7 == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	if (offset+days)%7 != 0 {
		b.WriteString("\n")
	}
	b.WriteString(t.hintStyle().Render("+ positive  o neutral  - negative  . no diary"))
	b.WriteString("\n")
	return b.String()
}
