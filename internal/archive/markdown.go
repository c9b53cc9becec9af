// Package archive reads and writes diaries as Markdown files with YAML frontmatter.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/raphaelgruber/diarist/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrNoFrontmatter is returned for files that do not start with a YAML block.
var ErrNoFrontmatter = errors.New("missing frontmatter")

var titleLine = regexp.MustCompile(`^#\s+.+\n+`)

// Frontmatter is the YAML header of an archived diary.
type Frontmatter struct {
	UserID    string    `yaml:"user_id"`
	Date      string    `yaml:"date"`
	Emotion   string    `yaml:"emotion"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
}

// Entry is one parsed diary file.
type Entry struct {
	Frontmatter
	Body string
}

// Render formats d as Markdown: frontmatter, a date heading, then the diary text.
func Render(d models.Diary, loc *time.Location) ([]byte, error) {
	day := models.FormatDay(d.DiaryDate, loc)
	fm, err := yaml.Marshal(Frontmatter{
		UserID:    d.UserID,
		Date:      day,
		Emotion:   d.Emotion,
		CreatedAt: d.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s\n\n", day)
	buf.WriteString(d.Diary)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Parse splits a diary file into its frontmatter and body.
// The leading date heading written by Render is dropped from the body.
func Parse(content string) (*Entry, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return nil, ErrNoFrontmatter
	}
	endIdx := strings.Index(content[4:], "\n---")
	if endIdx < 0 {
		return nil, ErrNoFrontmatter
	}

	var entry Entry
	if err := yaml.Unmarshal([]byte(content[4:4+endIdx+1]), &entry.Frontmatter); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	body := strings.TrimLeft(content[4+endIdx+4:], "\n")
	body = titleLine.ReplaceAllString(body, "")
	entry.Body = strings.TrimSpace(body)
	return &entry, nil
}

// Input validates the entry and converts it to a diary insert in loc.
func (e *Entry) Input(loc *time.Location) (models.DiaryInput, error) {
	if e.UserID == "" {
		return models.DiaryInput{}, errors.New("missing user_id")
	}
	day, err := models.ParseDay(e.Date, loc)
	if err != nil {
		return models.DiaryInput{}, err
	}
	if e.Body == "" {
		return models.DiaryInput{}, errors.New("empty diary")
	}
	return models.DiaryInput{
		UserID:    e.UserID,
		DiaryDate: day,
		Diary:     e.Body,
		Emotion:   e.Emotion,
	}, nil
}

// Path is where Render output for d lives under root: <root>/<user>/<year>/<date>.md.
func Path(root string, d models.Diary, loc *time.Location) string {
	day := models.FormatDay(d.DiaryDate, loc)
	return filepath.Join(root, d.UserID, day[:4], day+".md")
}
