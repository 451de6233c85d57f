package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newCustomerCommand(ctx *commandContext) *cobra.Command {
	customerCmd := &cobra.Command{
		Use:   "customer",
		Short: "Inspect the customer base",
	}

	customerCmd.AddCommand(newCustomerListCommand(ctx))
	customerCmd.AddCommand(newCustomerRemoveCommand(ctx))
	customerCmd.AddCommand(newCustomerRefreshCommand(ctx))

	return customerCmd
}

func newCustomerListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List customers with their job aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			list, err := st.ListCustomers(cmd.Context(), ctx.userID())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No customers found")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, customer := range list {
				lastContact := ""
				if customer.LastContactDate != nil {
					lastContact = customer.LastContactDate.Local().Format(time.DateOnly)
				}
				rows = append(rows, []string{
					strconv.FormatInt(customer.ID, 10),
					truncate(customer.Name, 30),
					customer.Phone,
					string(customer.Status),
					strconv.Itoa(customer.TotalJobs),
					fmt.Sprintf("%.2f", customer.TotalSpent),
					lastContact,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Phone", "Status", "Jobs", "Spent", "Last Contact"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newCustomerRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <customer-id>",
		Short: "Retire a customer, scrubbing contact details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid customer id %q", args[0])
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			removed, err := st.SoftDeleteCustomer(cmd.Context(), ctx.userID(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("customer %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Customer %d retired\n", id)
			return nil
		},
	}
}

func newCustomerRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild customer job aggregates from the jobs table",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			refreshed, err := st.RefreshCustomerAggregates(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed aggregates for %d customer(s)\n", refreshed)
			return nil
		},
	}
}
