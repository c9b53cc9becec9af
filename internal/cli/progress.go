package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/diarist/internal/client"
)

const pollInterval = time.Second

// jobFetcher reads the current state of a backfill job.
type jobFetcher func(ctx context.Context, id string) (*client.Job, error)

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job data
type jobUpdateMsg struct {
	job *client.Job
	err error
}

// progressModel is the bubbletea model for backfill progress.
type progressModel struct {
	fetch      jobFetcher
	jobID      string
	job        *client.Job
	progress   progress.Model
	theme      Theme
	background bool // detaching leaves the job running
	done       bool
	quitting   bool
	err        error
}

// newProgressModel creates a new progress model.
func newProgressModel(fetch jobFetcher, job *client.Job, background bool) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		fetch:      fetch,
		jobID:      job.ID,
		job:        job,
		progress:   prog,
		theme:      defaultTheme,
		background: background,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJob()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.job = msg.job

		// Check for terminal states
		switch m.job.Status {
		case "completed":
			m.done = true
			return m, tea.Quit
		case "failed":
			m.done = true
			if m.job.Error != "" {
				m.err = fmt.Errorf("%s", m.job.Error)
			} else {
				m.err = fmt.Errorf("job failed with unknown error")
			}
			return m, tea.Quit
		}

		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.job == nil {
		return "Loading job status...\n"
	}

	var pct float64
	if m.job.Total > 0 {
		pct = float64(m.job.Progress) / float64(m.job.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d days", m.job.Progress, m.job.Total)

	hint := "Press Ctrl+C to stop"
	if m.background {
		hint = "Press Ctrl+C to continue in background"
	}

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, m.theme.hintStyle().Render(hint))
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		if !m.background {
			return m.theme.hintStyle().Render("\nBackfill interrupted.\n")
		}
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'diarist jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Backfill failed: %s\n", m.err))
	}

	if m.job != nil && m.job.Result != nil {
		r := m.job.Result
		var output string
		output += m.theme.completedStyle().Render("✓ Completed") + "\n\n"
		output += fmt.Sprintf("  Days:     %d (%s to %s)\n", r.Days, m.job.From, m.job.To)
		output += fmt.Sprintf("  Written:  %d\n", r.Written)
		output += fmt.Sprintf("  Skipped:  %d\n", r.Skipped)
		if r.Failed > 0 {
			output += m.theme.errorStyle().Render(fmt.Sprintf("  Failed:   %d", r.Failed)) + "\n"
		}
		return output
	}

	return m.theme.completedStyle().Render("✓ Completed\n")
}

// fetchJob fetches the current job status.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := m.fetch(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runJobProgress runs the interactive progress UI for a job.
// Returns nil on success or Ctrl+C, error on job failure.
func runJobProgress(fetch jobFetcher, job *client.Job, background bool) (progressModel, error) {
	p := tea.NewProgram(newProgressModel(fetch, job, background))

	finalModel, err := p.Run()
	if err != nil {
		return progressModel{}, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(progressModel)
	if !ok {
		return progressModel{}, nil
	}
	if m.quitting {
		return m, nil
	}
	return m, m.err
}
