package cli

import (
	"github.com/spf13/cobra"
)

func newOrdersCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Review orders and sales reports",
	}
	cmd.AddCommand(
		newOrdersHistoryCommand(app),
		newOrdersGetCommand(app),
		newOrdersAllCommand(app),
		newOrdersStatusCommand(app),
		newOrdersReportCommand(app),
	)
	return cmd
}

func newOrdersHistoryCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your past orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			history, err := app.Orders.History(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, history)
		},
	}
}

func newOrdersGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <order-id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			order, err := app.Orders.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, order)
		},
	}
}

func newOrdersAllCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "List every order in the store (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			all, err := app.Orders.All(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, all)
		},
	}
}

func newOrdersStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Move an order to a new status (admin)",
		Long: `Move an order to a new status. Valid statuses: PENDING, PROCESSING,
SHIPPED, COMPLETED, CANCELLED.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			return app.Orders.UpdateStatus(cmd.Context(), args[0], args[1])
		},
	}
}

func newOrdersReportCommand(app *App) *cobra.Command {
	var from, to string
	var customers, books bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show sales reports (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())

			switch {
			case customers:
				top, err := app.Orders.TopCustomers(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, top)
			case books:
				top, err := app.Orders.TopBooks(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, top)
			default:
				report, err := app.Orders.SalesReport(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			}
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&customers, "top-customers", false, "show the highest-spending customers")
	cmd.Flags().BoolVar(&books, "top-books", false, "show the best-selling books")
	return cmd
}
