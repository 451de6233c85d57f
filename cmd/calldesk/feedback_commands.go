package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"calldesk/internal/feedback"
	"calldesk/internal/notify"
)

func newFeedbackCommand(ctx *commandContext) *cobra.Command {
	feedbackCmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record corrections and review extraction quality",
	}

	feedbackCmd.AddCommand(newFeedbackSubmitCommand(ctx))
	feedbackCmd.AddCommand(newFeedbackSummaryCommand(ctx))

	return feedbackCmd
}

func (c *commandContext) feedbackEngine() (*feedback.Engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	return feedback.NewEngine(st, notify.NewService(cfg), c.logger()), nil
}

func newFeedbackSubmitCommand(ctx *commandContext) *cobra.Command {
	var input feedback.SubmitInput

	cmd := &cobra.Command{
		Use:   "submit <extraction-id>",
		Short: "Submit a correction against an extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid extraction id %q", args[0])
			}
			input.ExtractionID = id

			engine, err := ctx.feedbackEngine()
			if err != nil {
				return err
			}
			record, err := engine.SubmitFeedback(cmd.Context(), ctx.userID(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded feedback %d (confidence %+.3f)\n", record.ID, record.ConfidenceDelta)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Category, "category", "", "Feedback category, e.g. SERVICE_TYPE_CORRECTION")
	cmd.Flags().IntVar(&input.Rating, "rating", 3, "Extraction quality rating, 1-5")
	cmd.Flags().StringVar(&input.OriginalValue, "original", "", "Value the extraction produced")
	cmd.Flags().StringVar(&input.CorrectedValue, "corrected", "", "Value it should have produced")
	cmd.Flags().StringVar(&input.Comment, "comment", "", "Free-form note")
	return cmd
}

func newFeedbackSummaryCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize feedback over a trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.feedbackEngine()
			if err != nil {
				return err
			}
			summary, err := engine.GetFeedbackSummary(cmd.Context(), ctx.userID(), days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Feedback entries: %d\n", summary.TotalFeedbacks)
			fmt.Fprintf(out, "Average rating:   %.2f\n", summary.AverageRating)
			fmt.Fprintf(out, "Improvement rate: %.0f%%\n", summary.ImprovementRate*100)
			fmt.Fprintf(out, "Confidence impact: %+.3f\n", summary.ConfidenceImpact)
			if len(summary.Categories) > 0 {
				rows := make([][]string, 0, len(summary.Categories))
				for _, entry := range summary.Categories {
					rows = append(rows, []string{entry.Category, strconv.Itoa(entry.Count)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Category", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Window size in days")
	return cmd
}
