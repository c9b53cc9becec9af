package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/diarist/internal/archive"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/spf13/cobra"
)

var (
	exportMonth string
	exportFrom  string
	exportTo    string
)

var exportCmd = &cobra.Command{
	Use:   "export <user> <path>",
	Short: "Export diaries to Markdown files",
	Long: `Export a user's diaries to Markdown files for backup or migration.

Creates one file per day under <path>/<user>/<year>/, with the diary date,
emotion and creation time in YAML frontmatter.

Examples:
  diarist export alice ./backup
  diarist export alice ./backup --month 2025-06
  diarist export alice ./backup --from 2025-01-01 --to 2025-03-31`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportMonth, "month", "", "export only this month (YYYY-MM)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first day to export (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last day to export (YYYY-MM-DD, default today)")
	exportCmd.MarkFlagsMutuallyExclusive("month", "from")
	exportCmd.MarkFlagsMutuallyExclusive("month", "to")
}

func runExport(cmd *cobra.Command, args []string) error {
	userID, exportPath := args[0], args[1]

	diaries, err := diaryService(false)
	if err != nil {
		return err
	}
	loc := diaries.Location()

	from, to, err := exportRange(exportMonth, exportFrom, exportTo, diaries.Now(), loc)
	if err != nil {
		return err
	}

	entries, err := diaries.DiariesBetween(cmd.Context(), userID, from, to)
	if err != nil {
		return fmt.Errorf("list diaries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No diaries to export.")
		return nil
	}

	fmt.Printf("Exporting %d diaries...\n", len(entries))
	exported, err := exportDiaries(exportPath, entries, loc)
	if err != nil {
		return err
	}
	fmt.Printf("\nExported %d diaries to %s\n", exported, exportPath)
	return nil
}

// exportRange resolves the export flags to an inclusive day range.
// Without flags everything up to today is exported.
func exportRange(month, fromFlag, toFlag string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if month != "" {
		first, err := time.ParseInLocation("2006-01", month, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --month %q: expected YYYY-MM", month)
		}
		return first, first.AddDate(0, 1, -1), nil
	}

	from := time.Unix(0, 0).In(loc)
	to := models.DateOnly(now, loc)
	var err error
	if fromFlag != "" {
		if from, err = models.ParseDay(fromFlag, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if toFlag != "" {
		if to, err = models.ParseDay(toFlag, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", models.FormatDay(to, loc), models.FormatDay(from, loc))
	}
	return from, to, nil
}

// exportDiaries writes one Markdown file per diary and returns how many were written.
func exportDiaries(root string, entries []models.Diary, loc *time.Location) (int, error) {
	exported := 0
	for _, d := range entries {
		filename := archive.Path(root, d, loc)
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return exported, fmt.Errorf("create export directory: %w", err)
		}

		content, err := archive.Render(d, loc)
		if err != nil {
			return exported, err
		}

		if err := os.WriteFile(filename, content, 0644); err != nil {
			fmt.Printf("Warning: failed to write %s: %v\n", filename, err)
			continue
		}
		exported++

		if verbose {
			fmt.Printf("  Exported: %s\n", filename)
		}
	}
	return exported, nil
}
