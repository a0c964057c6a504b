package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	apperrors "github.com/bookhaven/storefront/pkg/errors"
)

// Endpoints that must never trigger the automatic refresh-and-retry
// recovery: a 401 from them is the final answer.
const (
	refreshPath = "/auth/refresh"
	loginPath   = "/auth/login"
)

// Caller is the request interface consumed by the session and cache layers.
type Caller interface {
	Do(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// Config holds transport configuration.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns sensible defaults for the given API base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		Timeout:         30 * time.Second,
		MaxConnsPerHost: 10,
	}
}

// Transport issues JSON requests against the remote bookstore API. It
// attaches the bearer credential held by its TokenStore, carries the refresh
// cookie issued at login, and performs exactly one refresh-and-retry
// recovery on a 401 for any endpoint other than login and refresh itself.
//
// There is no retry beyond that single recovery attempt: network failures
// and non-2xx responses are terminal for the call.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenStore
	logger     *slog.Logger
	onAuthLost func()
}

// New creates a transport bound to the given token store. The cookie jar is
// required so the refresh cookie set by the login response is replayed on
// /auth/refresh calls.
func New(cfg Config, tokens *TokenStore, logger *slog.Logger) (*Transport, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: httpTransport,
			Timeout:   cfg.Timeout,
			Jar:       jar,
		},
		tokens: tokens,
		logger: logger,
	}, nil
}

// OnAuthLost registers a hook invoked when an automatic refresh fails and
// the credential is dropped. The session manager uses it to destroy the
// identity together with the credential.
func (t *Transport) OnAuthLost(fn func()) {
	t.onAuthLost = fn
}

// Do issues a request. The body, if non-nil, is marshaled to JSON once and
// buffered so the single recovery retry can replay it.
//
// Non-2xx responses are returned as-is; only the absence of a response is an
// error, wrapped under apperrors.ErrNetwork. The caller owns resp.Body.
func (t *Transport) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = data
	}

	token, _ := t.tokens.Get()
	resp, err := t.send(ctx, method, path, payload, token)
	if err != nil {
		observeRequest(method, 0)
		return nil, apperrors.Network(err)
	}
	observeRequest(method, resp.StatusCode)

	if resp.StatusCode != http.StatusUnauthorized || isAuthExempt(path) {
		return resp, nil
	}

	newToken, ok := t.refresh(ctx)
	if !ok {
		// Failed recovery surfaces the original 401 unmodified.
		return resp, nil
	}
	_ = resp.Body.Close()

	t.logger.DebugContext(ctx, "retrying request with refreshed token",
		slog.String("method", method),
		slog.String("path", path),
	)

	retryResp, err := t.send(ctx, method, path, payload, newToken)
	if err != nil {
		observeRequest(method, 0)
		return nil, apperrors.Network(err)
	}
	observeRequest(method, retryResp.StatusCode)
	return retryResp, nil
}

// isAuthExempt reports whether a 401 from the path must not trigger recovery.
func isAuthExempt(path string) bool {
	p := path
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p == refreshPath || p == loginPath
}

func (t *Transport) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return t.httpClient.Do(req)
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// refresh performs the one-shot credential refresh. Concurrent 401s may each
// run their own refresh; the server treats refresh as idempotent from the
// client's point of view, so whichever token lands last wins.
func (t *Transport) refresh(ctx context.Context) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+refreshPath, http.NoBody)
	if err != nil {
		observeRefresh("error")
		return "", false
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		observeRefresh("error")
		t.authLost(ctx)
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observeRefresh("rejected")
		t.authLost(ctx)
		return "", false
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		observeRefresh("error")
		t.authLost(ctx)
		return "", false
	}

	t.tokens.Set(out.AccessToken)
	observeRefresh("success")
	return out.AccessToken, true
}

// authLost drops the credential after an unrecoverable refresh failure and
// notifies the session layer so the identity is destroyed with it.
func (t *Transport) authLost(ctx context.Context) {
	t.tokens.Clear()
	t.logger.WarnContext(ctx, "token refresh failed, credential dropped")
	if t.onAuthLost != nil {
		t.onAuthLost()
	}
}

// DoJSON issues a request through c and decodes a 2xx JSON response into
// out (out may be nil). Non-2xx responses are translated into structured
// errors via ResponseError.
func DoJSON(ctx context.Context, c Caller, method, path string, body, out any) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ResponseError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// errorEnvelope matches the JSON error body served by the bookstore API.
type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// ResponseError reads the body of a non-2xx response and translates it into
// an *apperrors.APIError. Both the structured envelope and plain-text bodies
// are handled; the body is fully consumed and closed by the caller's defer.
func ResponseError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.FromStatus(resp.StatusCode, "", "")
	}

	var envelope errorEnvelope
	if json.Unmarshal(bodyBytes, &envelope) == nil {
		if envelope.Error != nil {
			return apperrors.FromStatus(resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
		}
		if envelope.Message != "" {
			return apperrors.FromStatus(resp.StatusCode, "", envelope.Message)
		}
	}
	return apperrors.FromStatus(resp.StatusCode, "", strings.TrimSpace(string(bodyBytes)))
}
