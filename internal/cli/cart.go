package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bookhaven/storefront/internal/domain"
)

func newCartCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the shopping cart",
	}
	cmd.AddCommand(
		newCartShowCommand(app),
		newCartAddCommand(app),
		newCartRemoveCommand(app),
		newCartDecrementCommand(app),
		newCartClearCommand(app),
		newCartCheckoutCommand(app),
	)
	return cmd
}

func newCartShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			snap, err := app.Cart.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}
}

func newCartAddCommand(app *App) *cobra.Command {
	var quantity int

	cmd := &cobra.Command{
		Use:   "add <book-id>",
		Short: "Add a book to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			snap, err := app.Cart.AddItem(cmd.Context(), bookID, quantity)
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}

	cmd.Flags().IntVar(&quantity, "quantity", 1, "number of copies to add")
	return cmd
}

func newCartRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book's line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			if _, err := app.Cart.Refresh(cmd.Context()); err != nil {
				return err
			}
			snap, err := app.Cart.RemoveItem(cmd.Context(), bookID)
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}
}

func newCartDecrementCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "decrement <book-id>",
		Short: "Lower a line's quantity by one",
		Long: `Lower a cart line's quantity by one. A line already at quantity one
cannot be decremented; use "storefront cart remove" instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			if _, err := app.Cart.Refresh(cmd.Context()); err != nil {
				return err
			}
			snap, err := app.Cart.DecrementItem(cmd.Context(), bookID)
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}
}

func newCartClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			if err := app.Cart.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared.")
			return nil
		},
	}
}

func newCartCheckoutCommand(app *App) *cobra.Command {
	var payment domain.PaymentDetails

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check out the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			orderID, err := app.Cart.Checkout(cmd.Context(), payment)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order placed: %s\n", orderID)
			return nil
		},
	}

	cmd.Flags().StringVar(&payment.CardHolderName, "card-holder", "", "name on the card")
	cmd.Flags().StringVar(&payment.CardNumber, "card-number", "", "16-digit card number")
	cmd.Flags().StringVar(&payment.CVV, "cvv", "", "3-digit security code")
	cmd.Flags().StringVar(&payment.ExpirationDate, "expiry", "", "card expiry (MM/YY)")
	for _, flag := range []string{"card-holder", "card-number", "cvv", "expiry"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}
