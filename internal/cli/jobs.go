package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/diarist/internal/client"
	"github.com/spf13/cobra"
)

var jobsUser string

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect background jobs",
	Long: `List the server's background backfill jobs or inspect one by ID.

Examples:
  diarist jobs                # List all jobs
  diarist jobs --user alice   # Jobs for one user
  diarist jobs abc123         # Show details for job abc123`,
	Annotations: map[string]string{remoteAnnotation: "true"},
	Args:        cobra.MaximumNArgs(1),
	RunE:        runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsUser, "user", "", "only jobs for this user")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := apiClient()

	// If job ID provided, show that specific job
	if len(args) == 1 {
		return showJob(ctx, c, args[0])
	}

	// List all jobs
	return listJobs(ctx, c)
}

func listJobs(ctx context.Context, c *client.Client) error {
	jobs, err := c.ListJobs(ctx, jobsUser)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-12s %-10s %-23s %-10s %s\n", "ID", "USER", "STATUS", "RANGE", "PROGRESS", "STARTED")
	fmt.Println("--------------------------------------------------------------------------------------")

	for _, job := range jobs {
		progress := ""
		if job.Total > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress, job.Total)
		}
		started := job.StartedAt.Local().Format("15:04:05")
		fmt.Printf("%-10s %-12s %-10s %-23s %-10s %s\n", job.ID, job.UserID, job.Status, job.From+".."+job.To, progress, started)
	}

	return nil
}

func showJob(ctx context.Context, c *client.Client, id string) error {
	job, err := c.GetJob(ctx, id)
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	printJob(*job)
	return nil
}

func printJob(job client.Job) {
	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Type: %s\n", job.Type)
	fmt.Printf("  User: %s\n", job.UserID)
	fmt.Printf("  Range: %s .. %s\n", job.From, job.To)
	fmt.Printf("  Status: %s\n", job.Status)
	if job.Total > 0 {
		fmt.Printf("  Progress: %d/%d\n", job.Progress, job.Total)
	}
	fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", job.CompletedAt.Sub(job.StartedAt).Round(time.Second))
	}

	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}

	if job.Result != nil {
		fmt.Println("\nResult:")
		fmt.Printf("  Days: %d\n", job.Result.Days)
		fmt.Printf("  Written: %d\n", job.Result.Written)
		fmt.Printf("  Skipped: %d\n", job.Result.Skipped)
		if job.Result.Failed > 0 {
			fmt.Printf("  Failed: %d\n", job.Result.Failed)
		}
	}
}
