package cart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/bookhaven/storefront/internal/domain"
	"github.com/bookhaven/storefront/internal/session"
	"github.com/bookhaven/storefront/internal/transport"
	apperrors "github.com/bookhaven/storefront/pkg/errors"
	"github.com/bookhaven/storefront/pkg/validator"
)

// Cache is the in-memory mirror of the remote cart for the signed-in user.
//
// Every mutation is mutate-then-refetch: the mutating call is issued, and on
// success the full snapshot is refetched and replaced wholesale. The client
// never computes its own post-mutation totals; the server is the only
// authority on prices. Mutation+refetch pairs are serialized per cache, so
// overlapping mutations resolve last-issued-wins rather than
// last-response-wins.
type Cache struct {
	caller  transport.Caller
	session *session.Manager
	logger  *slog.Logger

	// opMu serializes mutate-then-refetch pairs. snapMu guards snapshot
	// reads so they never block behind an in-flight network call.
	opMu   sync.Mutex
	snapMu sync.RWMutex
	snap   domain.CartSnapshot
}

// NewCache creates an empty cart cache bound to the given session.
func NewCache(caller transport.Caller, sessions *session.Manager, logger *slog.Logger) *Cache {
	return &Cache{
		caller:  caller,
		session: sessions,
		logger:  logger,
		snap:    domain.EmptyCart(),
	}
}

// Snapshot returns the cart as of the last fetch. It may be stale between a
// remote-side change and the next fetch; freshness is "as of the last local
// mutation or refresh", not real time.
func (c *Cache) Snapshot() domain.CartSnapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// IsInCart reports whether the book appears in the last-fetched snapshot.
// No network call is made.
func (c *Cache) IsInCart(bookID int64) bool {
	return c.Snapshot().Contains(bookID)
}

// FindLine returns the cached cart line for the book, if present. No network
// call is made.
func (c *Cache) FindLine(bookID int64) (domain.CartLine, bool) {
	return c.Snapshot().FindLine(bookID)
}

// Refresh refetches the snapshot from the server and replaces the cached one.
func (c *Cache) Refresh(ctx context.Context) (domain.CartSnapshot, error) {
	userID, err := c.userID("refresh cart")
	if err != nil {
		return c.Snapshot(), err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.refetch(ctx, userID)
}

// AddItem adds quantity copies of the book to the remote cart, then
// refetches.
func (c *Cache) AddItem(ctx context.Context, bookID int64, quantity int) (domain.CartSnapshot, error) {
	if quantity < 1 {
		return c.Snapshot(), apperrors.Validation("quantity must be at least 1")
	}
	userID, err := c.userID("add to cart")
	if err != nil {
		return c.Snapshot(), err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	path := fmt.Sprintf("/cart/%s/add?bookId=%d&quantity=%d", url.PathEscape(userID), bookID, quantity)
	if err := transport.DoJSON(ctx, c.caller, http.MethodPost, path, nil, nil); err != nil {
		return c.Snapshot(), err
	}
	return c.refetch(ctx, userID)
}

// RemoveItem removes the book's line from the remote cart, then refetches.
func (c *Cache) RemoveItem(ctx context.Context, bookID int64) (domain.CartSnapshot, error) {
	userID, err := c.userID("remove from cart")
	if err != nil {
		return c.Snapshot(), err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	path := fmt.Sprintf("/cart/%s/remove?bookId=%d", url.PathEscape(userID), bookID)
	if err := transport.DoJSON(ctx, c.caller, http.MethodDelete, path, nil, nil); err != nil {
		return c.Snapshot(), err
	}
	return c.refetch(ctx, userID)
}

// DecrementItem lowers the book's quantity by one, then refetches. It is
// defined only for lines with quantity two or more: decrementing a
// quantity-one line is rejected locally as invalid input, without a network
// call, and callers route that case through RemoveItem instead.
func (c *Cache) DecrementItem(ctx context.Context, bookID int64) (domain.CartSnapshot, error) {
	userID, err := c.userID("decrement cart item")
	if err != nil {
		return c.Snapshot(), err
	}

	line, ok := c.FindLine(bookID)
	if !ok {
		return c.Snapshot(), apperrors.Validation(fmt.Sprintf("book %d is not in the cart", bookID))
	}
	if line.Quantity < 2 {
		return c.Snapshot(), apperrors.Validation("cannot decrement a quantity-one line, remove it instead")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	path := fmt.Sprintf("/cart/%s/decrement?bookId=%d", url.PathEscape(userID), bookID)
	if err := transport.DoJSON(ctx, c.caller, http.MethodPost, path, nil, nil); err != nil {
		return c.Snapshot(), err
	}
	return c.refetch(ctx, userID)
}

// Clear empties the remote cart. On success the snapshot is reset to the
// canonical empty cart without a refetch.
func (c *Cache) Clear(ctx context.Context) error {
	userID, err := c.userID("clear cart")
	if err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	path := fmt.Sprintf("/cart/%s/clear", url.PathEscape(userID))
	if err := transport.DoJSON(ctx, c.caller, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	c.replace(domain.EmptyCart())
	return nil
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
}

// Checkout submits the payment details and consumes the server-side cart.
// On success the snapshot is reset to the canonical empty cart and the
// created order ID is returned.
func (c *Cache) Checkout(ctx context.Context, payment domain.PaymentDetails) (string, error) {
	if err := validator.Validate(payment); err != nil {
		return "", apperrors.Validation(err.Error())
	}
	userID, err := c.userID("checkout")
	if err != nil {
		return "", err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	path := fmt.Sprintf("/cart/%s/checkout", url.PathEscape(userID))
	var resp checkoutResponse
	if err := transport.DoJSON(ctx, c.caller, http.MethodPost, path, payment, &resp); err != nil {
		return "", err
	}

	c.replace(domain.EmptyCart())
	c.logger.InfoContext(ctx, "checkout complete", slog.String("order_id", resp.OrderID))
	return resp.OrderID, nil
}

// Reset drops the cached snapshot back to the canonical empty cart. Called
// on logout; no network call is made.
func (c *Cache) Reset() {
	c.replace(domain.EmptyCart())
}

// userID resolves the identity key, failing fast with a local error when no
// identity is held so anonymous operations never reach the network.
func (c *Cache) userID(operation string) (string, error) {
	identity, ok := c.session.Identity()
	if !ok || identity.UserID == "" {
		return "", apperrors.NotAuthenticated(operation)
	}
	return identity.UserID, nil
}

// refetch pulls the authoritative snapshot after a successful mutation. A
// refetch failure never leaves a half-updated cart visible: the snapshot is
// replaced with the canonical empty cart and the error surfaced.
func (c *Cache) refetch(ctx context.Context, userID string) (domain.CartSnapshot, error) {
	var snap domain.CartSnapshot
	path := "/cart/" + url.PathEscape(userID)
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, path, nil, &snap); err != nil {
		c.replace(domain.EmptyCart())
		return domain.EmptyCart(), err
	}
	if snap.Items == nil {
		snap.Items = []domain.CartLine{}
	}
	c.replace(snap)
	return snap, nil
}

func (c *Cache) replace(snap domain.CartSnapshot) {
	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()
}
