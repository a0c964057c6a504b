package orders

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/storefront/internal/domain"
	"github.com/bookhaven/storefront/internal/session"
	"github.com/bookhaven/storefront/internal/stub"
	"github.com/bookhaven/storefront/internal/transport"
	apperrors "github.com/bookhaven/storefront/pkg/errors"
	"github.com/bookhaven/storefront/pkg/logger"
)

type testEnv struct {
	store      *stub.Store
	session    *session.Manager
	orders     *Client
	customerID string
	orderID    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: stub.NewStore()}
	log := logger.NewWithWriter("test", "error", io.Discard)

	api := stub.NewServer(env.store, log, "test-secret")
	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)

	tokens := transport.NewTokenStore()
	tr, err := transport.New(transport.DefaultConfig(server.URL), tokens, log)
	require.NoError(t, err)

	env.session = session.NewManager(tr, tokens, log)
	env.orders = NewClient(tr, env.session, log)

	admin, err := env.store.CreateUser("admin", "admin@example.com", "Admin@123", "Ada", "Admin", domain.RoleAdmin, "")
	require.NoError(t, err)
	admin.Verified = true
	customer, err := env.store.CreateUser("reader", "reader@example.com", "Reader@123", "Rhea", "Reader", domain.RoleCustomer, "")
	require.NoError(t, err)
	customer.Verified = true
	env.customerID = customer.ID

	book := env.store.AddBook(domain.Book{
		Title: "Sapiens", ISBN: "9780062316097", Category: "History",
		SellingPrice: 20.00, NumberOfBooks: 10,
	})
	require.NoError(t, env.store.AddToCart(customer.ID, book.BookID, 2))
	order, err := env.store.Checkout(customer.ID)
	require.NoError(t, err)
	env.orderID = order.OrderID
	return env
}

func (env *testEnv) loginAs(t *testing.T, email, password string) {
	t.Helper()
	_, err := env.session.Login(context.Background(), email, password)
	require.NoError(t, err)
}

// --- Customer reads ---

func TestHistory_AnonymousFailsFast(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.History(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotAuthenticated))
}

func TestHistory_ReturnsOwnOrders(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "reader@example.com", "Reader@123")

	history, err := env.orders.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, env.orderID, history[0].OrderID)
	assert.Equal(t, 40.00, history[0].TotalPrice)
}

func TestGet_ReturnsOrderDetails(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "reader@example.com", "Reader@123")

	order, err := env.orders.Get(context.Background(), env.orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Sapiens", order.Items[0].BookTitle)
}

func TestGet_UnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "reader@example.com", "Reader@123")

	_, err := env.orders.Get(context.Background(), "no-such-order")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// --- Admin operations ---

func TestAll_RequiresAdminRole(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "reader@example.com", "Reader@123")

	_, err := env.orders.All(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestAll_ReturnsEveryOrder(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "admin@example.com", "Admin@123")

	all, err := env.orders.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "admin@example.com", "Admin@123")

	require.NoError(t, env.orders.UpdateStatus(context.Background(), env.orderID, domain.OrderStatusShipped))

	order, ok := env.store.Order(env.orderID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
}

func TestUpdateStatus_UnknownStatusRejectedLocally(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "admin@example.com", "Admin@123")

	err := env.orders.UpdateStatus(context.Background(), env.orderID, "TELEPORTED")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

// --- Reports ---

func TestSalesReport(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "admin@example.com", "Admin@123")

	report, err := env.orders.SalesReport(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrderCount)
	assert.Equal(t, 40.00, report.TotalSales)
}

func TestSalesReport_OutOfRangeExcluded(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "admin@example.com", "Admin@123")

	report, err := env.orders.SalesReport(context.Background(), "1999-01-01", "1999-12-31")
	require.NoError(t, err)
	assert.Zero(t, report.OrderCount)
	assert.Zero(t, report.TotalSales)
}

func TestTopCustomers(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "admin@example.com", "Admin@123")

	top, err := env.orders.TopCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "reader@example.com", top[0].Email)
	assert.Equal(t, 40.00, top[0].TotalSpent)
}

func TestTopBooks(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "admin@example.com", "Admin@123")

	top, err := env.orders.TopBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Sapiens", top[0].Title)
	assert.Equal(t, 2, top[0].UnitsSold)
}

func TestReports_RequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	env.loginAs(t, "reader@example.com", "Reader@123")

	_, err := env.orders.SalesReport(context.Background(), "", "")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = env.orders.TopCustomers(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = env.orders.TopBooks(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}
