package orders

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bookhaven/storefront/internal/domain"
	"github.com/bookhaven/storefront/internal/session"
	"github.com/bookhaven/storefront/internal/transport"
	apperrors "github.com/bookhaven/storefront/pkg/errors"
)

// Client reads order history and, for admin accounts, manages orders and
// pulls the sales reports. Orders are immutable once fetched, so there is no
// cache to keep consistent; every call is a plain request.
type Client struct {
	caller  transport.Caller
	session *session.Manager
	logger  *slog.Logger
}

// NewClient creates an orders client bound to the given session.
func NewClient(caller transport.Caller, sessions *session.Manager, logger *slog.Logger) *Client {
	return &Client{
		caller:  caller,
		session: sessions,
		logger:  logger,
	}
}

// History returns the signed-in user's past orders.
func (c *Client) History(ctx context.Context) ([]domain.Order, error) {
	identity, ok := c.session.Identity()
	if !ok || identity.UserID == "" {
		return nil, apperrors.NotAuthenticated("order history")
	}

	var out []domain.Order
	path := "/orders/user/" + url.PathEscape(identity.UserID)
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single order's details.
func (c *Client) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if _, ok := c.session.Identity(); !ok {
		return domain.Order{}, apperrors.NotAuthenticated("order details")
	}

	var out domain.Order
	path := "/orders/" + url.PathEscape(orderID)
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, path, nil, &out); err != nil {
		return domain.Order{}, err
	}
	return out, nil
}

// All returns every order in the store (admin only).
func (c *Client) All(ctx context.Context) ([]domain.Order, error) {
	if err := c.requireAdmin("list all orders"); err != nil {
		return nil, err
	}

	var out []domain.Order
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, "/orders/admin/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves an order to a new status (admin only).
func (c *Client) UpdateStatus(ctx context.Context, orderID, status string) error {
	if err := c.requireAdmin("update order status"); err != nil {
		return err
	}
	if !domain.IsValidOrderStatus(status) {
		return apperrors.Validation(fmt.Sprintf("unknown order status %q", status))
	}

	path := "/orders/" + url.PathEscape(orderID) + "/status"
	return transport.DoJSON(ctx, c.caller, http.MethodPut, path, updateStatusRequest{Status: status}, nil)
}

// SalesReport returns the sales summary between two dates (admin only).
// Dates use the YYYY-MM-DD form; either may be empty for an open bound.
func (c *Client) SalesReport(ctx context.Context, from, to string) (domain.SalesReport, error) {
	if err := c.requireAdmin("sales report"); err != nil {
		return domain.SalesReport{}, err
	}

	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	path := "/orders/admin/reports/sales"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out domain.SalesReport
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, path, nil, &out); err != nil {
		return domain.SalesReport{}, err
	}
	return out, nil
}

// TopCustomers returns the highest-spending customers (admin only).
func (c *Client) TopCustomers(ctx context.Context) ([]domain.TopCustomer, error) {
	if err := c.requireAdmin("top customers report"); err != nil {
		return nil, err
	}

	var out []domain.TopCustomer
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, "/orders/admin/reports/top-customers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopBooks returns the best-selling books (admin only).
func (c *Client) TopBooks(ctx context.Context) ([]domain.TopBook, error) {
	if err := c.requireAdmin("top books report"); err != nil {
		return nil, err
	}

	var out []domain.TopBook
	if err := transport.DoJSON(ctx, c.caller, http.MethodGet, "/orders/admin/reports/top-books", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) requireAdmin(operation string) error {
	identity, ok := c.session.Identity()
	if !ok {
		return apperrors.NotAuthenticated(operation)
	}
	if !identity.IsAdmin() {
		return apperrors.Forbidden(fmt.Sprintf("%s requires the admin role", operation))
	}
	return nil
}
