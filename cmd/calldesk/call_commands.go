package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"calldesk/internal/logging"
	"calldesk/internal/notify"
	"calldesk/internal/store"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	callCmd := &cobra.Command{
		Use:   "call",
		Short: "Inspect and manage the call queue",
	}

	callCmd.AddCommand(newCallAddCommand(ctx))
	callCmd.AddCommand(newCallListCommand(ctx))
	callCmd.AddCommand(newCallStatsCommand(ctx))
	callCmd.AddCommand(newCallRetryCommand(ctx))
	callCmd.AddCommand(newCallClearCommand(ctx))

	return callCmd
}

func newCallAddCommand(ctx *commandContext) *cobra.Command {
	var audioPath string
	var transcript string
	var confidence float64
	var duration float64
	var language string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Queue a call for processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			audioPath = strings.TrimSpace(audioPath)
			transcript = strings.TrimSpace(transcript)
			if (audioPath == "") == (transcript == "") {
				return fmt.Errorf("provide exactly one of --audio or --transcript")
			}

			var call *store.Call
			if audioPath != "" {
				call, err = st.NewCall(cmd.Context(), ctx.userID(), audioPath)
			} else {
				call, err = st.NewTranscribedCall(cmd.Context(), ctx.userID(), transcript, confidence, duration, language)
			}
			if err != nil {
				return err
			}

			if cfg, cfgErr := ctx.ensureConfig(); cfgErr == nil {
				if notifyErr := notify.NewService(cfg).NotifyCallReceived(cmd.Context(), call.ID); notifyErr != nil {
					ctx.logger().Warn("call notification failed", logging.Error(notifyErr))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued call %d (%s)\n", call.ID, call.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Recording reference to transcribe")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Transcript text, skipping transcription")
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "Transcript confidence for --transcript")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Call duration in seconds for --transcript")
	cmd.Flags().StringVar(&language, "language", "en", "Transcript language for --transcript")
	return cmd
}

func newCallListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calls, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			var statuses []store.CallStatus
			if strings.TrimSpace(statusFilter) != "" {
				status, ok := store.ParseCallStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown call status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			calls, err := st.ListCalls(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(calls) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No calls found")
				return nil
			}

			rows := make([][]string, 0, len(calls))
			for _, call := range calls {
				detail := call.ErrorMessage
				if detail == "" {
					detail = call.ReviewReason
				}
				rows = append(rows, []string{
					strconv.FormatInt(call.ID, 10),
					string(call.Status),
					yesNo(call.NeedsReview),
					call.CreatedAt.Local().Format(time.DateTime),
					truncate(detail, 60),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Review", "Created", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by call status")
	return cmd
}

func newCallStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show call counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			stats, err := st.CallStats(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(stats))
			total := 0
			for _, status := range store.AllCallStatuses() {
				count, ok := stats[status]
				if !ok {
					continue
				}
				total += count
				rows = append(rows, []string{string(status), strconv.Itoa(count)})
			}
			rows = append(rows, []string{"total", strconv.Itoa(total)})
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newCallRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry [call-id...]",
		Short: "Requeue failed calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid call id %q", arg)
				}
				ids = append(ids, id)
			}

			retried, err := st.RetryFailedCalls(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d call(s)\n", retried)
			return nil
		},
	}
	return cmd
}

func newCallClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed calls from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			cleared, err := st.ClearCompletedCalls(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed call(s)\n", cleared)
			return nil
		},
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
