package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/diarist/internal/archive"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/raphaelgruber/diarist/internal/service"
	"github.com/spf13/cobra"
)

var importUser string

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import diaries from Markdown files",
	Long: `Import diaries from Markdown files written by 'diarist export'.
Days that already have a diary are skipped.

Examples:
  diarist import ./backup
  diarist import ./backup/alice/2025 --user alice`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importUser, "user", "", "only import diaries of this user")
}

// importTally counts import results per status.
type importTally struct {
	Imported, Skipped, Failed int
}

func runImport(cmd *cobra.Command, args []string) error {
	diaries, err := diaryService(false)
	if err != nil {
		return err
	}
	loc := diaries.Location()

	files, err := collectMarkdownFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No Markdown files found.")
		return nil
	}

	var tally importTally
	for _, path := range files {
		in, err := readArchivedDiary(path, loc)
		if err != nil {
			tally.Failed++
			fmt.Printf("Warning: %s: %v\n", path, err)
			continue
		}
		if importUser != "" && in.UserID != importUser {
			continue
		}

		out, err := diaries.ImportDiary(cmd.Context(), in)
		switch {
		case err != nil:
			tally.Failed++
			fmt.Printf("Warning: %s: %v\n", path, err)
		case out.Status == service.StatusSkipped:
			tally.Skipped++
		default:
			tally.Imported++
		}
		if verbose {
			fmt.Println(defaultTheme.renderOutcome(string(out.Status), out.Reason, models.FormatDay(in.DiaryDate, loc), in.Emotion))
		}
	}

	fmt.Printf("\nImported %d, skipped %d, failed %d\n", tally.Imported, tally.Skipped, tally.Failed)
	return nil
}

// collectMarkdownFiles lists .md files under root, or root itself if it is a file.
func collectMarkdownFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func readArchivedDiary(path string, loc *time.Location) (models.DiaryInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.DiaryInput{}, err
	}
	entry, err := archive.Parse(string(data))
	if err != nil {
		return models.DiaryInput{}, err
	}
	return entry.Input(loc)
}
