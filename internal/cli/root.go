package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bookhaven/storefront/internal/cart"
	"github.com/bookhaven/storefront/internal/catalog"
	"github.com/bookhaven/storefront/internal/config"
	"github.com/bookhaven/storefront/internal/orders"
	"github.com/bookhaven/storefront/internal/session"
	"github.com/bookhaven/storefront/internal/transport"
	"github.com/bookhaven/storefront/pkg/logger"
)

// App bundles the wired client stack shared by every command. Each CLI
// invocation is its own process, so stateful commands sign in with the
// --email/--password flags before acting.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Tokens  *transport.TokenStore
	Caller  transport.Caller
	Session *session.Manager
	Cart    *cart.Cache
	Catalog *catalog.Cache
	Orders  *orders.Client

	Email    string
	Password string
}

// NewRootCommand creates the root command for the storefront CLI.
func NewRootCommand() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Bookstore storefront client",
		Long: `Command-line client for the bookstore API: browse and search the
catalog, manage the shopping cart, check out, and review orders.

The session lives for the duration of one invocation. Commands that need a
signed-in user take --email and --password and log in before acting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Email, "email", "", "account email for signed-in commands")
	cmd.PersistentFlags().StringVar(&app.Password, "password", "", "account password for signed-in commands")

	cmd.AddCommand(newAuthCommands(app)...)
	cmd.AddCommand(newBooksCommand(app))
	cmd.AddCommand(newCartCommand(app))
	cmd.AddCommand(newOrdersCommand(app))

	return cmd
}

// init loads configuration and wires the client stack.
func (a *App) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.Config = cfg
	a.Logger = logger.New("storefront", cfg.LogLevel)

	a.Tokens = transport.NewTokenStore()
	tcfg := transport.DefaultConfig(cfg.APIBaseURL)
	tcfg.Timeout = cfg.Timeout()
	t, err := transport.New(tcfg, a.Tokens, a.Logger)
	if err != nil {
		return err
	}

	a.Caller = t
	if cfg.BreakerEnabled {
		a.Caller = transport.NewBreaker(t, transport.DefaultBreakerConfig("bookstore-api"), a.Logger)
	}

	a.Session = session.NewManager(a.Caller, a.Tokens, a.Logger)
	t.OnAuthLost(a.Session.HandleAuthLost)

	a.Cart = cart.NewCache(a.Caller, a.Session, a.Logger)
	a.Catalog = catalog.NewCache(a.Caller, a.Session, a.Logger)
	a.Orders = orders.NewClient(a.Caller, a.Session, a.Logger)
	return nil
}

// signIn logs in with the --email/--password flags. Commands that act on the
// user's data call it first.
func (a *App) signIn(cmd *cobra.Command) error {
	if a.Email == "" || a.Password == "" {
		return fmt.Errorf("this command needs --email and --password")
	}
	_, err := a.Session.Login(cmd.Context(), a.Email, a.Password)
	return err
}

// printJSON renders a result to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
