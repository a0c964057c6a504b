package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bookhaven/storefront/internal/domain"
	"github.com/bookhaven/storefront/internal/transport"
	apperrors "github.com/bookhaven/storefront/pkg/errors"
	"github.com/bookhaven/storefront/pkg/validator"
)

// State is the session lifecycle state.
type State string

const (
	StateAnonymous           State = "anonymous"
	StateAuthenticating      State = "authenticating"
	StateAuthenticated       State = "authenticated"
	StateVerificationPending State = "verification_pending"
)

// Manager owns the sign-up, login, logout, verification, and password reset
// flows and derives the authenticated identity from their responses. The
// identity and the credential held by the token store are created together
// at login and destroyed together at logout or unrecoverable refresh
// failure; there is no separate authenticated flag that could diverge.
type Manager struct {
	caller transport.Caller
	tokens *transport.TokenStore
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	identity *domain.Identity
}

// NewManager creates a session manager in the anonymous state. Callers
// should wire Transport.OnAuthLost to HandleAuthLost so a failed automatic
// refresh destroys the identity together with the credential.
func NewManager(caller transport.Caller, tokens *transport.TokenStore, logger *slog.Logger) *Manager {
	return &Manager{
		caller: caller,
		tokens: tokens,
		logger: logger,
		state:  StateAnonymous,
	}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the signed-in identity, if one is held.
func (m *Manager) Identity() (domain.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return domain.Identity{}, false
	}
	return *m.identity, true
}

// IsAuthenticated reports whether an identity is held.
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.Identity()
	return ok
}

type meResponse struct {
	Email  string      `json:"email"`
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role"`
}

// Restore performs the single startup reconciliation call against the
// cookie-derived server session. It never fails past this boundary: any
// error leaves the session anonymous.
func (m *Manager) Restore(ctx context.Context) bool {
	var me meResponse
	if err := transport.DoJSON(ctx, m.caller, http.MethodGet, "/auth/me", nil, &me); err != nil {
		m.logger.DebugContext(ctx, "session restore failed, starting anonymous",
			slog.String("error", err.Error()),
		)
		return false
	}
	m.setAuthenticated(domain.Identity{Email: me.Email, UserID: me.UserID, Role: me.Role})
	m.logger.InfoContext(ctx, "session restored", slog.String("email", me.Email))
	return true
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string      `json:"accessToken"`
	UserID      string      `json:"userId"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
}

// Login authenticates with email and password. On success the credential is
// stored and the identity derived from the response; on failure the session
// remains anonymous and the classified error is returned.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	req := loginRequest{Email: email, Password: password}
	if err := validator.Validate(req); err != nil {
		return domain.Identity{}, apperrors.Validation(err.Error())
	}

	m.setState(StateAuthenticating)

	var resp loginResponse
	if err := transport.DoJSON(ctx, m.caller, http.MethodPost, "/auth/login", req, &resp); err != nil {
		m.setState(StateAnonymous)
		return domain.Identity{}, err
	}

	m.tokens.Set(resp.AccessToken)

	identity := domain.Identity{Email: resp.Email, UserID: resp.UserID, Role: resp.Role}
	if identity.Email == "" {
		identity.Email = email
	}
	if identity.UserID == "" || identity.Role == "" {
		if claims, ok := decodeIdentity(resp.AccessToken); ok {
			if identity.UserID == "" {
				identity.UserID = claims.UserID
			}
			if identity.Role == "" {
				identity.Role = claims.Role
			}
		}
	}

	m.setAuthenticated(identity)
	m.logger.InfoContext(ctx, "signed in", slog.String("email", identity.Email))
	return identity, nil
}

// SignupInput holds the registration form fields. The validation rules
// mirror the storefront's signup form.
type SignupInput struct {
	Username  string `json:"username" validate:"required,min=3,max=30,username"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=64,strongpw"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50,alpha"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,alpha"`
	Role      string `json:"role" validate:"required,oneof=CUSTOMER ADMIN"`
}

// Signup registers a new account. Success moves the session to
// VerificationPending: no credential is issued until the email is verified
// and the user logs in explicitly.
func (m *Manager) Signup(ctx context.Context, in SignupInput) error {
	if err := validator.Validate(in); err != nil {
		return apperrors.Validation(err.Error())
	}
	if err := transport.DoJSON(ctx, m.caller, http.MethodPost, "/auth/signup", in, nil); err != nil {
		return err
	}
	m.setState(StateVerificationPending)
	m.logger.InfoContext(ctx, "account registered, verification pending", slog.String("email", in.Email))
	return nil
}

type verifyRequest struct {
	Token string `json:"token" validate:"required,otp"`
}

// VerifyEmail consumes the emailed OTP. Verification alone does not
// authenticate: the session lands back in Anonymous and the user must log in.
func (m *Manager) VerifyEmail(ctx context.Context, otp string) error {
	req := verifyRequest{Token: otp}
	if err := validator.Validate(req); err != nil {
		return apperrors.Validation(err.Error())
	}
	if err := transport.DoJSON(ctx, m.caller, http.MethodPost, "/auth/verify-user", req, nil); err != nil {
		return err
	}
	m.setState(StateAnonymous)
	return nil
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword triggers remote OTP issuance. Side effect only; the
// session state is unchanged.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	req := forgotPasswordRequest{Email: email}
	if err := validator.Validate(req); err != nil {
		return apperrors.Validation(err.Error())
	}
	return transport.DoJSON(ctx, m.caller, http.MethodPost, "/auth/forgotpassword", req, nil)
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"OTP" validate:"required,otp"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=64,strongpw"`
}

// ResetPassword consumes the OTP and sets a new password. Side effect only.
func (m *Manager) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	req := resetPasswordRequest{Email: email, OTP: otp, NewPassword: newPassword}
	if err := validator.Validate(req); err != nil {
		return apperrors.Validation(err.Error())
	}
	return transport.DoJSON(ctx, m.caller, http.MethodPost, "/auth/checkforgotpassword", req, nil)
}

type logoutRequest struct {
	UserID string `json:"userId"`
}

// Logout signs out. Local cleanup is unconditional: the credential and
// identity are dropped even when the remote call fails, so a dead server
// can never pin a user into a signed-in state. A remote failure is logged
// and not returned.
func (m *Manager) Logout(ctx context.Context) {
	identity, ok := m.Identity()
	if !ok {
		return
	}

	err := transport.DoJSON(ctx, m.caller, http.MethodPost, "/auth/logout", logoutRequest{UserID: identity.UserID}, nil)
	if err != nil {
		m.logger.WarnContext(ctx, "remote logout failed, clearing local session anyway",
			slog.String("error", err.Error()),
		)
	}

	m.clearAuthenticated()
	m.logger.InfoContext(ctx, "signed out", slog.String("email", identity.Email))
}

// HandleAuthLost destroys the identity after the transport dropped the
// credential on an unrecoverable refresh failure.
func (m *Manager) HandleAuthLost() {
	m.clearAuthenticated()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *Manager) setAuthenticated(identity domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = &identity
	m.state = StateAuthenticated
}

func (m *Manager) clearAuthenticated() {
	m.mu.Lock()
	m.identity = nil
	m.state = StateAnonymous
	m.mu.Unlock()
	m.tokens.Clear()
}

// tokenClaims are the JWT claims embedded in the access token. The client
// decodes them without signature verification, purely to enrich the local
// identity; the server remains the authority on the token's validity.
type tokenClaims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func decodeIdentity(token string) (domain.Identity, bool) {
	var claims tokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return domain.Identity{}, false
	}
	return domain.Identity{Email: claims.Email, UserID: claims.UserID, Role: claims.Role}, true
}
