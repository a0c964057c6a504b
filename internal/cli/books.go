package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bookhaven/storefront/internal/catalog"
	"github.com/bookhaven/storefront/internal/domain"
)

func newBooksCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}
	cmd.AddCommand(
		newBooksListCommand(app),
		newBooksSearchCommand(app),
		newBooksGetCommand(app),
		newBooksCreateCommand(app),
		newBooksUpdateCommand(app),
		newBooksDeleteCommand(app),
	)
	return cmd
}

func newBooksListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every book in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := app.Catalog.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, books)
		},
	}
}

func newBooksSearchCommand(app *App) *cobra.Command {
	var filter domain.SearchFilter

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := app.Catalog.Search(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, books)
		},
	}

	cmd.Flags().StringVar(&filter.Title, "title", "", "match on title")
	cmd.Flags().StringVar(&filter.Category, "category", "", "match on category")
	cmd.Flags().StringVar(&filter.Author, "author", "", "match on author name")
	cmd.Flags().StringVar(&filter.Publisher, "publisher", "", "match on publisher name")
	cmd.Flags().StringVar(&filter.ISBN, "isbn", "", "match on ISBN")
	return cmd
}

func newBooksGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <book-id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			book, err := app.Catalog.GetByID(cmd.Context(), bookID)
			if err != nil {
				return err
			}
			return printJSON(cmd, book)
		},
	}
}

func bookInputFlags(cmd *cobra.Command, in *catalog.BookInput, author, publisher *string) {
	cmd.Flags().StringVar(&in.Title, "title", "", "book title")
	cmd.Flags().StringVar(&in.ISBN, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	cmd.Flags().Float64Var(&in.SellingPrice, "price", 0, "selling price")
	cmd.Flags().IntVar(&in.NumberOfBooks, "stock", 0, "copies in stock")
	cmd.Flags().IntVar(&in.PublicationYear, "year", 0, "publication year")
	cmd.Flags().StringVar(author, "author", "", "author name")
	cmd.Flags().StringVar(publisher, "publisher", "", "publisher name")
}

func applyBookNames(in *catalog.BookInput, author, publisher string) {
	if author != "" {
		in.Authors = []domain.Author{{Name: author}}
	}
	if publisher != "" {
		in.Publisher = &domain.Publisher{Name: publisher}
	}
}

func newBooksCreateCommand(app *App) *cobra.Command {
	var in catalog.BookInput
	var author, publisher string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a book to the catalog (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.signIn(cmd); err != nil {
				return err
			}
			defer app.Session.Logout(cmd.Context())
			applyBookNames(&in, author, publisher)
			book, err := app.Catalog.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, book)
		},
	}

	bookInputFlags(cmd, &in, &author, &publisher)
	for _, flag := range []string{"title", "isbn", "category"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func newBooksUpdateCommand(app *App) *cobra.Command {
	var in catalog.BookInput
	var author, publisher string

	cmd := &cobra.Command{
		Use:   "update <book-id>",
		Short: "Replace a catalog entry (admin)",
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
			applyBookNames(&in, author, publisher)
			book, err := app.Catalog.Update(cmd.Context(), bookID, in)
			if err != nil {
				return err
			}
			return printJSON(cmd, book)
		},
	}

	bookInputFlags(cmd, &in, &author, &publisher)
	return cmd
}

func newBooksDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Remove a book from the catalog (admin)",
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
			return app.Catalog.Delete(cmd.Context(), bookID)
		},
	}
}
