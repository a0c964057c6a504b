package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
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
	store    *stub.Store
	session  *session.Manager
	cart     *Cache
	calls    int32
	bookID   int64
	scarceID int64
	userID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: stub.NewStore()}
	log := logger.NewWithWriter("test", "error", io.Discard)

	api := stub.NewServer(env.store, log, "test-secret")
	router := api.Router()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&env.calls, 1)
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	tokens := transport.NewTokenStore()
	tr, err := transport.New(transport.DefaultConfig(server.URL), tokens, log)
	require.NoError(t, err)

	env.session = session.NewManager(tr, tokens, log)
	tr.OnAuthLost(env.session.HandleAuthLost)
	env.cart = NewCache(tr, env.session, log)

	env.bookID = env.store.AddBook(domain.Book{
		Title: "Sapiens", ISBN: "9780062316097", Category: "History",
		SellingPrice: 20.00, NumberOfBooks: 10,
	}).BookID
	env.scarceID = env.store.AddBook(domain.Book{
		Title: "Cosmos", ISBN: "9780345539434", Category: "Science",
		SellingPrice: 15.00, NumberOfBooks: 1,
	}).BookID

	user, err := env.store.CreateUser("reader", "reader@example.com", "Reader@123", "Rhea", "Reader", domain.RoleCustomer, "")
	require.NoError(t, err)
	user.Verified = true
	env.userID = user.ID
	return env
}

func (env *testEnv) login(t *testing.T) {
	t.Helper()
	_, err := env.session.Login(context.Background(), "reader@example.com", "Reader@123")
	require.NoError(t, err)
}

func validPayment() domain.PaymentDetails {
	return domain.PaymentDetails{
		CardHolderName: "Rhea Reader",
		CardNumber:     "4111111111111111",
		CVV:            "123",
		ExpirationDate: "09/27",
	}
}

// --- Anonymous fail-fast ---

func TestAddItem_AnonymousFailsWithoutNetworkCall(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotAuthenticated))
	assert.Zero(t, atomic.LoadInt32(&env.calls), "anonymous mutations must never reach the network")
}

func TestRefresh_AnonymousFailsWithoutNetworkCall(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.cart.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotAuthenticated))
	assert.Zero(t, atomic.LoadInt32(&env.calls))
}

// --- Mutate-then-refetch ---

func TestAddItem_SnapshotCarriesServerTotals(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	snap, err := env.cart.AddItem(context.Background(), env.bookID, 3)
	require.NoError(t, err)

	require.Len(t, snap.Items, 1)
	line := snap.Items[0]
	assert.Equal(t, env.bookID, line.BookID)
	assert.Equal(t, "Sapiens", line.BookTitle)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 60.00, line.SubTotal)
	assert.Equal(t, 60.00, snap.TotalPrice)

	assert.True(t, env.cart.IsInCart(env.bookID))
	assert.Equal(t, snap, env.cart.Snapshot())
}

func TestAddItem_ZeroQuantityRejectedLocally(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	before := atomic.LoadInt32(&env.calls)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, before, atomic.LoadInt32(&env.calls))
}

func TestAddItem_RejectedMutationPreservesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	snap, err := env.cart.AddItem(context.Background(), env.scarceID, 1)
	require.NoError(t, err)

	// Only one copy in stock: the second add is rejected server-side.
	got, err := env.cart.AddItem(context.Background(), env.scarceID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDomain))
	assert.Equal(t, snap, got, "a failed mutation must leave the snapshot untouched")
	assert.Equal(t, snap, env.cart.Snapshot())
}

func TestRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 2)
	require.NoError(t, err)

	snap, err := env.cart.RemoveItem(context.Background(), env.bookID)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	assert.False(t, env.cart.IsInCart(env.bookID))
}

// --- Decrement ---

func TestDecrementItem_LowersQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 3)
	require.NoError(t, err)

	snap, err := env.cart.DecrementItem(context.Background(), env.bookID)
	require.NoError(t, err)

	line, ok := snap.FindLine(env.bookID)
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 40.00, snap.TotalPrice)
}

func TestDecrementItem_QuantityOneRejectedLocally(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 1)
	require.NoError(t, err)
	before := atomic.LoadInt32(&env.calls)

	_, err = env.cart.DecrementItem(context.Background(), env.bookID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, before, atomic.LoadInt32(&env.calls), "quantity-one decrement must not reach the network")

	line, ok := env.cart.FindLine(env.bookID)
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
}

func TestDecrementItem_NotInCartRejectedLocally(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	before := atomic.LoadInt32(&env.calls)

	_, err := env.cart.DecrementItem(context.Background(), 9999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, before, atomic.LoadInt32(&env.calls))
}

// --- Serialization ---

func TestMutations_SerializedAcrossGoroutines(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.cart.AddItem(context.Background(), env.bookID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Each mutate+refetch pair ran alone, so the final snapshot is the
	// server's authoritative state, not a torn interleaving.
	snap := env.cart.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assert.Equal(t, 100.00, snap.TotalPrice)
	assert.Equal(t, env.store.CartSnapshot(env.userID), snap)
}

// --- Clear and reset ---

func TestClear_ResetsToCanonicalEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 2)
	require.NoError(t, err)

	require.NoError(t, env.cart.Clear(context.Background()))

	snap := env.cart.Snapshot()
	assert.True(t, snap.IsEmpty())
	assert.NotNil(t, snap.Items, "empty cart keeps a non-nil item slice")
	assert.Zero(t, snap.TotalPrice)
}

func TestReset_LocalOnly(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 2)
	require.NoError(t, err)
	before := atomic.LoadInt32(&env.calls)

	env.cart.Reset()
	assert.True(t, env.cart.Snapshot().IsEmpty())
	assert.Equal(t, before, atomic.LoadInt32(&env.calls))
}

// --- Checkout ---

func TestCheckout_CreatesOrderAndEmptiesCart(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 2)
	require.NoError(t, err)

	orderID, err := env.cart.Checkout(context.Background(), validPayment())
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	assert.True(t, env.cart.Snapshot().IsEmpty())

	order, ok := env.store.Order(orderID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 40.00, order.TotalPrice)

	book, _ := env.store.Book(env.bookID)
	assert.Equal(t, 8, book.NumberOfBooks, "checkout consumes stock")
}

func TestCheckout_InvalidPaymentRejectedLocally(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.AddItem(context.Background(), env.bookID, 1)
	require.NoError(t, err)
	before := atomic.LoadInt32(&env.calls)

	payment := validPayment()
	payment.CVV = "12"
	_, err = env.cart.Checkout(context.Background(), payment)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, before, atomic.LoadInt32(&env.calls))
}

func TestCheckout_EmptyCartIsADomainError(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.cart.Checkout(context.Background(), validPayment())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDomain))
}

// --- Refetch failure ---

func TestRefetchFailure_ResetsToCanonicalEmpty(t *testing.T) {
	// The mutation succeeds but the follow-up fetch fails: the cache must not
	// leave a stale pre-mutation snapshot visible.
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/login":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"accessToken": "access-1", "userId": "u1", "email": "reader@example.com", "role": "CUSTOMER",
			})
		case r.Method == http.MethodGet:
			if atomic.AddInt32(&fetches, 1) == 1 {
				_, _ = w.Write([]byte(`{"cartItems":[{"bookId":1,"bookTitle":"Sapiens","price":20,"quantity":1,"subTotal":20}],"totalPrice":20}`))
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	log := logger.NewWithWriter("test", "error", io.Discard)
	tokens := transport.NewTokenStore()
	tr, err := transport.New(transport.DefaultConfig(server.URL), tokens, log)
	require.NoError(t, err)
	sessions := session.NewManager(tr, tokens, log)
	cache := NewCache(tr, sessions, log)

	_, err = sessions.Login(context.Background(), "reader@example.com", "Reader@123")
	require.NoError(t, err)

	snap, err := cache.AddItem(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.False(t, snap.IsEmpty())

	_, err = cache.AddItem(context.Background(), 1, 1)
	require.Error(t, err)
	assert.True(t, cache.Snapshot().IsEmpty(), "failed refetch falls back to the canonical empty cart")
	assert.NotNil(t, cache.Snapshot().Items)
}
