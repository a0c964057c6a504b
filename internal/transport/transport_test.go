package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bookhaven/storefront/pkg/errors"
	"github.com/bookhaven/storefront/pkg/logger"
)

func newTestTransport(t *testing.T, serverURL string) (*Transport, *TokenStore) {
	t.Helper()
	tokens := NewTokenStore()
	tr, err := New(DefaultConfig(serverURL), tokens, logger.NewWithWriter("test", "error", io.Discard))
	require.NoError(t, err)
	return tr, tokens
}

// --- Request basics ---

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, tokens := newTestTransport(t, server.URL)
	tokens.Set("token-1")

	resp, err := tr.Do(context.Background(), http.MethodGet, "/books", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer token-1", gotAuth)
}

func TestDo_NoTokenNoAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, _ := newTestTransport(t, server.URL)

	resp, err := tr.Do(context.Background(), http.MethodGet, "/books", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, gotAuth)
}

func TestDo_NetworkFailureWrapsErrNetwork(t *testing.T) {
	tr, _ := newTestTransport(t, "http://127.0.0.1:1")

	_, err := tr.Do(context.Background(), http.MethodGet, "/books", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNetwork))
}

func TestDo_Non2xxReturnedAsIs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	tr, _ := newTestTransport(t, server.URL)

	resp, err := tr.Do(context.Background(), http.MethodPost, "/cart/u1/add?bookId=1&quantity=1", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// --- Refresh-and-retry recovery ---

func TestDo_401TriggersRefreshAndSingleRetry(t *testing.T) {
	var refreshes, attempts int32
	var retryAuth string
	var retryBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			atomic.AddInt32(&refreshes, 1)
			_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh-token"})
		case "/cart/u1/add":
			n := atomic.AddInt32(&attempts, 1)
			if n == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			retryAuth = r.Header.Get("Authorization")
			retryBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	tr, tokens := newTestTransport(t, server.URL)
	tokens.Set("stale-token")

	resp, err := tr.Do(context.Background(), http.MethodPost, "/cart/u1/add", map[string]int{"quantity": 2})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Equal(t, "Bearer fresh-token", retryAuth, "retry must carry the refreshed token")
	assert.JSONEq(t, `{"quantity":2}`, string(retryBody), "retry must replay the original body")

	stored, ok := tokens.Get()
	assert.True(t, ok)
	assert.Equal(t, "fresh-token", stored)
}

func TestDo_FailedRefreshReturnsOriginal401(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tr, tokens := newTestTransport(t, server.URL)
	tokens.Set("stale-token")

	var authLost bool
	tr.OnAuthLost(func() { authLost = true })

	resp, err := tr.Do(context.Background(), http.MethodGet, "/orders/user/u1", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "no second attempt after a failed refresh")
	assert.True(t, authLost, "failed refresh must notify the session layer")

	_, ok := tokens.Get()
	assert.False(t, ok, "failed refresh must drop the credential")
}

func TestDo_LoginAndRefresh401AreExempt(t *testing.T) {
	var refreshes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			atomic.AddInt32(&refreshes, 1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tr, _ := newTestTransport(t, server.URL)

	resp, err := tr.Do(context.Background(), http.MethodPost, "/auth/login", map[string]string{"email": "a@b.c"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&refreshes), "a 401 from login must not trigger recovery")

	resp, err = tr.Do(context.Background(), http.MethodPost, "/auth/refresh", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes), "refresh itself recovers nothing")
}

func TestIsAuthExempt_IgnoresQueryString(t *testing.T) {
	assert.True(t, isAuthExempt("/auth/login?redirect=1"))
	assert.True(t, isAuthExempt("/auth/refresh"))
	assert.False(t, isAuthExempt("/books"))
}

// --- DoJSON ---

func TestDoJSON_DecodesSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"orderId": "ord-1"})
	}))
	defer server.Close()

	tr, _ := newTestTransport(t, server.URL)

	var out struct {
		OrderID string `json:"orderId"`
	}
	require.NoError(t, DoJSON(context.Background(), tr, http.MethodPost, "/cart/u1/checkout", nil, &out))
	assert.Equal(t, "ord-1", out.OrderID)
}

func TestDoJSON_TranslatesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"CART_ERROR","message":"insufficient stock"}}`))
	}))
	defer server.Close()

	tr, _ := newTestTransport(t, server.URL)

	err := DoJSON(context.Background(), tr, http.MethodPost, "/cart/u1/add", nil, nil)
	require.Error(t, err)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "CART_ERROR", apiErr.Code)
	assert.Equal(t, "insufficient stock", apiErr.Message)
	assert.True(t, errors.Is(err, apperrors.ErrDomain))
}

func TestDoJSON_TranslatesPlainTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("something broke"))
	}))
	defer server.Close()

	tr, _ := newTestTransport(t, server.URL)

	err := DoJSON(context.Background(), tr, http.MethodGet, "/books", nil, nil)
	require.Error(t, err)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "something broke", apiErr.Message)
}

func TestDoJSON_NilOutDiscardsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer server.Close()

	tr, _ := newTestTransport(t, server.URL)
	assert.NoError(t, DoJSON(context.Background(), tr, http.MethodDelete, "/cart/u1/clear", nil, nil))
}
