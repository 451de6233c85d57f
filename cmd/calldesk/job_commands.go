package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"calldesk/internal/customers"
	"calldesk/internal/jobs"
	"calldesk/internal/notify"
	"calldesk/internal/services"
	"calldesk/internal/store"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Create and manage work orders",
	}

	jobCmd.AddCommand(newJobCreateCommand(ctx))
	jobCmd.AddCommand(newJobFromExtractionCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobStatusCommand(ctx))
	jobCmd.AddCommand(newJobCostCommand(ctx))
	jobCmd.AddCommand(newJobDeleteCommand(ctx))

	return jobCmd
}

func (c *commandContext) orchestrator() (*jobs.Orchestrator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	logger := c.logger()
	matcher := customers.NewMatcher(cfg, st, logger)
	return jobs.NewOrchestrator(cfg, st, matcher, notify.NewService(cfg), logger), nil
}

func newJobCreateCommand(ctx *commandContext) *cobra.Command {
	var input jobs.CreateJobInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work order manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.orchestrator()
			if err != nil {
				return err
			}

			result, err := orch.CreateJob(cmd.Context(), ctx.userID(), input)
			if err != nil {
				return renderJobError(err)
			}
			printJobResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Title, "title", "", "Job title (required)")
	cmd.Flags().StringVar(&input.Description, "description", "", "Job description")
	cmd.Flags().StringVar(&input.ServiceType, "service", "", "Service type")
	cmd.Flags().StringVar(&input.CustomerName, "name", "", "Customer name (required)")
	cmd.Flags().StringVar(&input.CustomerPhone, "phone", "", "Customer phone")
	cmd.Flags().StringVar(&input.CustomerEmail, "email", "", "Customer email")
	cmd.Flags().StringVar(&input.Address, "address", "", "Job site address")
	cmd.Flags().StringVar(&input.ScheduledDate, "date", "", "Scheduled date (natural language accepted)")
	cmd.Flags().Float64Var(&input.EstimatedCost, "estimate", 0, "Estimated cost")
	cmd.Flags().StringVar(&input.Priority, "priority", "", "Priority: low, normal, high, urgent")
	return cmd
}

func newJobFromExtractionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "from-extraction <extraction-id>",
		Short: "Promote an extraction into a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid extraction id %q", args[0])
			}
			orch, err := ctx.orchestrator()
			if err != nil {
				return err
			}

			result, err := orch.CreateFromExtraction(cmd.Context(), ctx.userID(), id)
			if err != nil {
				return renderJobError(err)
			}
			printJobResult(cmd, result)
			return nil
		},
	}
	return cmd
}

func printJobResult(cmd *cobra.Command, result *jobs.CreateResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created job %d: %s\n", result.Job.ID, result.Job.Title)
	if result.IsNewCustomer {
		fmt.Fprintf(out, "New customer %d: %s\n", result.Customer.ID, result.Customer.Name)
	} else {
		fmt.Fprintf(out, "Matched customer %d: %s\n", result.Customer.ID, result.Customer.Name)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
}

// renderJobError expands multi-violation validation errors so the operator
// sees every problem at once.
func renderJobError(err error) error {
	violations := services.ValidationViolations(err)
	if len(violations) < 2 {
		return err
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(violations, "\n  - "))
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			var statuses []store.JobStatus
			if strings.TrimSpace(statusFilter) != "" {
				status, ok := store.ParseJobStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown job status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			list, err := st.ListJobs(cmd.Context(), ctx.userID(), statuses...)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, job := range list {
				scheduled := ""
				if job.ScheduledDate != nil {
					scheduled = job.ScheduledDate.Local().Format(time.DateOnly)
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					truncate(job.Title, 40),
					string(job.Status),
					string(job.Priority),
					scheduled,
					fmt.Sprintf("%.2f", job.EstimatedCost),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Priority", "Scheduled", "Estimate"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by job status")
	return cmd
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id> <new-status>",
		Short: "Move a job through its state machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			orch, err := ctx.orchestrator()
			if err != nil {
				return err
			}

			job, err := orch.TransitionJob(cmd.Context(), ctx.userID(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d is now %s\n", job.ID, job.Status)
			return nil
		},
	}
	return cmd
}

func newJobCostCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost <job-id> <actual-cost>",
		Short: "Record the actual cost for a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			cost, err := strconv.ParseFloat(args[1], 64)
			if err != nil || cost < 0 {
				return fmt.Errorf("invalid cost %q", args[1])
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if err := st.SetJobActualCost(cmd.Context(), ctx.userID(), id, cost); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d actual cost set to %.2f\n", id, cost)
			return nil
		},
	}
	return cmd
}

func newJobDeleteCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			orch, err := ctx.orchestrator()
			if err != nil {
				return err
			}
			if err := orch.DeleteJob(cmd.Context(), ctx.userID(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %d\n", id)
			return nil
		},
	}
	return cmd
}
