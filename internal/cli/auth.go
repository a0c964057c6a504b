package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookhaven/storefront/internal/session"
)

func newAuthCommands(app *App) []*cobra.Command {
	return []*cobra.Command{
		newLoginCommand(app),
		newSignupCommand(app),
		newVerifyCommand(app),
		newForgotPasswordCommand(app),
		newResetPasswordCommand(app),
	}
}

func newLoginCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials by signing in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			identity, _ := app.Session.Identity()
			defer app.Session.Logout(cmd.Context())
			return printJSON(cmd, identity)
		},
	}
}

func newSignupCommand(app *App) *cobra.Command {
	var in session.SignupInput

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account",
		Long: `Register a new account. A verification code is emailed; complete
registration with "storefront verify" before logging in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Session.Signup(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. Check your email for the verification code.")
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "username (3-30 letters, digits, underscores)")
	cmd.Flags().StringVar(&in.Email, "signup-email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "signup-password", "", "account password")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Role, "role", "CUSTOMER", "account role (CUSTOMER|ADMIN)")
	for _, flag := range []string{"username", "signup-email", "signup-password", "first-name", "last-name"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <otp>",
		Short: "Verify a new account with the emailed code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Session.VerifyEmail(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account verified. You can now log in.")
			return nil
		},
	}
}

func newForgotPasswordCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Request a password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Session.ForgotPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reset code sent. Use \"storefront reset-password\" to set a new password.")
			return nil
		},
	}
}

func newResetPasswordCommand(app *App) *cobra.Command {
	var otp, newPassword string

	cmd := &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Set a new password using the reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Session.ResetPassword(cmd.Context(), args[0], otp, newPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&otp, "otp", "", "6-digit reset code")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "new password")
	_ = cmd.MarkFlagRequired("otp")
	_ = cmd.MarkFlagRequired("new-password")
	return cmd
}
