package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ytcourier/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage download jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobsList(listStatuses)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No jobs found")
					return nil
				}
				rows := buildJobRows(resp.Jobs)
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Owner", "Status", "Title", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show details for a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDescribe(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				job := resp.Job
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "ID:        %s\n", job.ID)
				fmt.Fprintf(stdout, "Owner:     %d\n", job.OwnerID)
				fmt.Fprintf(stdout, "Status:    %s\n", job.Status)
				fmt.Fprintf(stdout, "Title:     %s\n", job.Title)
				fmt.Fprintf(stdout, "URL:       %s\n", job.URL)
				if job.DeliveryKind != "" {
					fmt.Fprintf(stdout, "Delivery:  %s\n", job.DeliveryKind)
				}
				if job.Phase != "" {
					fmt.Fprintf(stdout, "Progress:  %s %.0f%%\n", job.Phase, job.Percent)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(stdout, "Error:     %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(stdout, "Created:   %s\n", job.CreatedAt)
				fmt.Fprintf(stdout, "Updated:   %s\n", job.UpdatedAt)
				return nil
			})
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				id := strings.TrimSpace(args[0])
				resp, err := client.JobCancel(id)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Cancelled {
					fmt.Fprintf(stdout, "Cancellation requested for %s\n", id)
				} else {
					fmt.Fprintf(stdout, "Job %s is not active\n", id)
				}
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobsClear()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Removed == 0 {
					fmt.Fprintln(stdout, "No finished jobs to remove")
					return nil
				}
				fmt.Fprintf(stdout, "Removed %d finished job(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func buildJobRows(jobs []ipc.JobSummary) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		progress := ""
		if job.Phase != "" {
			progress = fmt.Sprintf("%s %.0f%%", job.Phase, job.Percent)
		}
		title := job.Title
		if title == "" {
			title = job.URL
		}
		rows = append(rows, []string{
			job.ID,
			fmt.Sprintf("%d", job.OwnerID),
			job.Status,
			truncate(title, 40),
			progress,
			job.UpdatedAt,
		})
	}
	return rows
}

func truncate(s string, limit int) string {
	if limit <= 3 || len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
