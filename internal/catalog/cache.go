package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/bookhaven/storefront/internal/domain"
	"github.com/bookhaven/storefront/internal/session"
	"github.com/bookhaven/storefront/internal/transport"
	apperrors "github.com/bookhaven/storefront/pkg/errors"
	"github.com/bookhaven/storefront/pkg/validator"
)

// Cache is the read-mostly in-memory mirror of the book catalog. Search
// results live in their own container so a search never destroys the
// unfiltered listing. A failed call surfaces its error and leaves the prior
// cached data intact; there is no retry.
type Cache struct {
	caller  transport.Caller
	session *session.Manager
	logger  *slog.Logger

	mu      sync.RWMutex
	books   []domain.Book
	results []domain.Book
	filter  domain.SearchFilter
}

// NewCache creates an empty catalog cache.
func NewCache(caller transport.Caller, sessions *session.Manager, logger *slog.Logger) *Cache {
	return &Cache{
		caller:  caller,
		session: sessions,
		logger:  logger,
	}
}

// Books returns the cached full listing.
func (c *Cache) Books() []domain.Book {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.books
}

// Results returns the cached search results.
func (c *Cache) Results() []domain.Book {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.results
}

// Filter returns the last-applied search criteria.
func (c *Cache) Filter() domain.SearchFilter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// ClearFilter drops the search results and criteria, leaving the full
// listing untouched.
func (c *Cache) ClearFilter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = nil
	c.filter = domain.SearchFilter{}
}

// ListAll fetches the complete book listing and replaces the cached one.
func (c *Cache) ListAll(ctx context.Context) ([]domain.Book, error) {
	var books []domain.Book
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, "/books", nil, &books); err != nil {
		return c.Books(), err
	}

	c.mu.Lock()
	c.books = books
	c.mu.Unlock()
	return books, nil
}

// Search fetches books matching the filter and replaces the cached search
// results container.
func (c *Cache) Search(ctx context.Context, filter domain.SearchFilter) ([]domain.Book, error) {
	var books []domain.Book
	path := "/books/search?" + searchQuery(filter).Encode()
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, path, nil, &books); err != nil {
		return c.Results(), err
	}

	c.mu.Lock()
	c.results = books
	c.filter = filter
	c.mu.Unlock()
	return books, nil
}

// GetByID fetches a single book.
func (c *Cache) GetByID(ctx context.Context, bookID int64) (domain.Book, error) {
	var book domain.Book
	path := "/books/" + strconv.FormatInt(bookID, 10)
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, path, nil, &book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// BookInput holds the fields for creating or replacing a catalog entry.
type BookInput struct {
	Title           string            `json:"title" validate:"required,min=1,max=500"`
	ISBN            string            `json:"isbn" validate:"required"`
	Category        string            `json:"category" validate:"required"`
	SellingPrice    float64           `json:"sellingPrice" validate:"gte=0"`
	NumberOfBooks   int               `json:"numberOfBooks" validate:"gte=0"`
	PublicationYear int               `json:"publicationYear" validate:"gte=0"`
	Authors         []domain.Author   `json:"authors,omitempty"`
	Publisher       *domain.Publisher `json:"publisher,omitempty"`
}

// Create adds a book to the catalog (admin only) and appends it to the
// cached listing.
func (c *Cache) Create(ctx context.Context, in BookInput) (domain.Book, error) {
	if err := c.requireAdmin("create book"); err != nil {
		return domain.Book{}, err
	}
	if err := validateBookInput(in); err != nil {
		return domain.Book{}, err
	}

	var book domain.Book
	if err := transport.DoJSON(ctx, c.caller, http.MethodPost, "/books", in, &book); err != nil {
		return domain.Book{}, err
	}

	c.mu.Lock()
	c.books = append(c.books, book)
	c.mu.Unlock()
	return book, nil
}

// Update replaces a catalog entry (admin only) and patches the cached
// listing with the server's version.
func (c *Cache) Update(ctx context.Context, bookID int64, in BookInput) (domain.Book, error) {
	if err := c.requireAdmin("update book"); err != nil {
		return domain.Book{}, err
	}
	if err := validateBookInput(in); err != nil {
		return domain.Book{}, err
	}

	var book domain.Book
	path := "/books/" + strconv.FormatInt(bookID, 10)
	if err := transport.DoJSON(ctx, c.caller, http.MethodPut, path, in, &book); err != nil {
		return domain.Book{}, err
	}

	c.mu.Lock()
	for i := range c.books {
		if c.books[i].BookID == bookID {
			c.books[i] = book
			break
		}
	}
	c.mu.Unlock()
	return book, nil
}

// Delete removes a catalog entry (admin only) and drops it from the cached
// listing.
func (c *Cache) Delete(ctx context.Context, bookID int64) error {
	if err := c.requireAdmin("delete book"); err != nil {
		return err
	}

	path := "/books/" + strconv.FormatInt(bookID, 10)
	if err := transport.DoJSON(ctx, c.caller, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.books {
		if c.books[i].BookID == bookID {
			c.books = append(c.books[:i], c.books[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Cache) requireAdmin(operation string) error {
	identity, ok := c.session.Identity()
	if !ok {
		return apperrors.NotAuthenticated(operation)
	}
	if !identity.IsAdmin() {
		return apperrors.Forbidden(fmt.Sprintf("%s requires the admin role", operation))
	}
	return nil
}

func validateBookInput(in BookInput) error {
	if err := validator.Validate(in); err != nil {
		return apperrors.Validation(err.Error())
	}
	if !domain.IsValidCategory(in.Category) {
		return apperrors.Validation(fmt.Sprintf("unknown category %q", in.Category))
	}
	return nil
}

// searchQuery encodes the non-empty filter fields as request parameters.
func searchQuery(f domain.SearchFilter) url.Values {
	q := url.Values{}
	if f.Title != "" {
		q.Set("title", f.Title)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Author != "" {
		q.Set("author", f.Author)
	}
	if f.Publisher != "" {
		q.Set("publisher", f.Publisher)
	}
	if f.ISBN != "" {
		q.Set("isbn", f.ISBN)
	}
	return q
}
