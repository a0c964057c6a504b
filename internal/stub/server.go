package stub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bookhaven/storefront/internal/domain"
	"github.com/bookhaven/storefront/pkg/validator"
)

const (
	refreshCookieName = "refreshToken"
	accessTokenTTL    = 15 * time.Minute
	otpForTesting     = "123456"
)

// Server is an in-process implementation of the bookstore API the storefront
// client talks to. It backs the client's package tests and doubles as a local
// development backend via cmd/stubserver.
type Server struct {
	store  *Store
	logger *slog.Logger
	secret []byte
}

// NewServer creates a server over the given store. The secret signs access
// tokens; any non-empty value works for local use.
func NewServer(store *Store, logger *slog.Logger, secret string) *Server {
	return &Server{
		store:  store,
		logger: logger,
		secret: []byte(secret),
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/verify-user", s.handleVerifyUser)
		r.Post("/forgotpassword", s.handleForgotPassword)
		r.Post("/checkforgotpassword", s.handleResetPassword)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
	})

	r.Route("/books", func(r chi.Router) {
		r.Get("/", s.handleListBooks)
		r.Get("/search", s.handleSearchBooks)
		r.Get("/{bookID}", s.handleGetBook)
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(domain.RoleAdmin))
			r.Post("/", s.handleCreateBook)
			r.Put("/{bookID}", s.handleUpdateBook)
			r.Delete("/{bookID}", s.handleDeleteBook)
		})
	})

	r.Route("/cart/{userID}", func(r chi.Router) {
		r.Use(s.requireUserMatch)
		r.Get("/", s.handleGetCart)
		r.Post("/add", s.handleAddToCart)
		r.Delete("/remove", s.handleRemoveFromCart)
		r.Post("/decrement", s.handleDecrementCartItem)
		r.Delete("/clear", s.handleClearCart)
		r.Post("/checkout", s.handleCheckout)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(domain.RoleAdmin))
			r.Get("/admin/all", s.handleAllOrders)
			r.Get("/admin/reports/sales", s.handleSalesReport)
			r.Get("/admin/reports/top-customers", s.handleTopCustomers)
			r.Get("/admin/reports/top-books", s.handleTopBooks)
			r.Put("/{orderID}/status", s.handleUpdateOrderStatus)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/user/{userID}", s.handleUserOrders)
			r.Get("/{orderID}", s.handleGetOrder)
		})
	})

	return r
}

// Seed loads a small catalog plus a verified admin and customer account, for
// local development.
func (s *Server) Seed() {
	s.store.AddBook(domain.Book{
		Title: "A Brief History of Time", ISBN: "9780553380163", Category: "Science",
		SellingPrice: 18.99, NumberOfBooks: 12, PublicationYear: 1988,
		Authors:   []domain.Author{{Name: "Stephen Hawking"}},
		Publisher: &domain.Publisher{Name: "Bantam"},
	})
	s.store.AddBook(domain.Book{
		Title: "The Story of Art", ISBN: "9780714832470", Category: "Art",
		SellingPrice: 29.95, NumberOfBooks: 5, PublicationYear: 1950,
		Authors:   []domain.Author{{Name: "E.H. Gombrich"}},
		Publisher: &domain.Publisher{Name: "Phaidon"},
	})
	s.store.AddBook(domain.Book{
		Title: "Guns, Germs, and Steel", ISBN: "9780393317558", Category: "History",
		SellingPrice: 15.50, NumberOfBooks: 8, PublicationYear: 1997,
		Authors:   []domain.Author{{Name: "Jared Diamond"}},
		Publisher: &domain.Publisher{Name: "W. W. Norton"},
	})

	admin, _ := s.store.CreateUser("admin", "admin@bookhaven.dev", "Admin@123", "Ada", "Admin", domain.RoleAdmin, "")
	customer, _ := s.store.CreateUser("reader", "reader@bookhaven.dev", "Reader@123", "Rhea", "Reader", domain.RoleCustomer, "")
	admin.Verified = true
	customer.Verified = true
}

// --- Auth handlers ---

type signupRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=30,username"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=64,strongpw"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50,alpha"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,alpha"`
	Role      string `json:"role" validate:"required,oneof=CUSTOMER ADMIN"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	user, err := s.store.CreateUser(req.Username, req.Email, req.Password, req.FirstName, req.LastName, domain.Role(req.Role), otpForTesting)
	if err != nil {
		s.writeError(w, http.StatusConflict, "EMAIL_TAKEN", err.Error())
		return
	}

	s.logger.Info("account created, verification pending",
		slog.String("email", user.Email),
		slog.String("otp", user.SignupOTP),
	)
	s.writeJSON(w, http.StatusCreated, map[string]string{"message": "verification code sent"})
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

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	user, ok := s.store.UserByEmail(req.Email)
	if !ok || user.Password != req.Password {
		s.writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		return
	}
	if !user.Verified {
		s.writeError(w, http.StatusForbidden, "UNVERIFIED", "account is not verified")
		return
	}

	access, err := s.issueAccessToken(user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "could not issue token")
		return
	}
	s.setRefreshCookie(w, s.store.IssueRefreshToken(user.ID))
	s.writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: access,
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
	})
}

type verifyRequest struct {
	Token string `json:"token" validate:"required,otp"`
}

func (s *Server) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if !s.store.VerifyUser(req.Token) {
		s.writeError(w, http.StatusBadRequest, "INVALID_OTP", "verification code is invalid or expired")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "account verified"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	// Whether the account exists is not revealed.
	if s.store.SetResetOTP(req.Email, otpForTesting) {
		s.logger.Info("password reset code issued", slog.String("email", req.Email))
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "reset code sent"})
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"OTP" validate:"required,otp"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=64,strongpw"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if !s.store.ResetPassword(req.Email, req.OTP, req.NewPassword) {
		s.writeError(w, http.StatusBadRequest, "INVALID_OTP", "reset code is invalid or expired")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "NO_REFRESH_TOKEN", "missing refresh token")
		return
	}

	next, userID, ok := s.store.RotateRefreshToken(cookie.Value)
	if !ok {
		s.clearRefreshCookie(w)
		s.writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token is invalid or expired")
		return
	}
	user, ok := s.store.UserByID(userID)
	if !ok {
		s.clearRefreshCookie(w)
		s.writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token is invalid or expired")
		return
	}

	access, err := s.issueAccessToken(user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "could not issue token")
		return
	}
	s.setRefreshCookie(w, next)
	s.writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := s.userFromRequest(r); ok {
		s.store.RevokeRefreshTokens(user.ID)
	}
	s.clearRefreshCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

type meResponse struct {
	Email  string      `json:"email"`
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFromRequest(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "no active session")
		return
	}
	s.writeJSON(w, http.StatusOK, meResponse{Email: user.Email, UserID: user.ID, Role: user.Role})
}

// --- Book handlers ---

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Books())
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.SearchFilter{
		Title:     q.Get("title"),
		Category:  q.Get("category"),
		Author:    q.Get("author"),
		Publisher: q.Get("publisher"),
		ISBN:      q.Get("isbn"),
	}

	matched := make([]domain.Book, 0)
	for _, b := range s.store.Books() {
		if matchesFilter(b, filter) {
			matched = append(matched, b)
		}
	}
	s.writeJSON(w, http.StatusOK, matched)
}

func matchesFilter(b domain.Book, f domain.SearchFilter) bool {
	contains := func(haystack, needle string) bool {
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}
	if f.Title != "" && !contains(b.Title, f.Title) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(b.Category, f.Category) {
		return false
	}
	if f.ISBN != "" && b.ISBN != f.ISBN {
		return false
	}
	if f.Publisher != "" && (b.Publisher == nil || !contains(b.Publisher.Name, f.Publisher)) {
		return false
	}
	if f.Author != "" {
		found := false
		for _, a := range b.Authors {
			if contains(a.Name, f.Author) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_BOOK_ID", "book id must be numeric")
		return
	}
	book, ok := s.store.Book(bookID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "BOOK_NOT_FOUND", "book not found")
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

type bookRequest struct {
	Title           string            `json:"title" validate:"required,min=1,max=500"`
	ISBN            string            `json:"isbn" validate:"required"`
	Category        string            `json:"category" validate:"required"`
	SellingPrice    float64           `json:"sellingPrice" validate:"gte=0"`
	NumberOfBooks   int               `json:"numberOfBooks" validate:"gte=0"`
	PublicationYear int               `json:"publicationYear" validate:"gte=0"`
	Authors         []domain.Author   `json:"authors"`
	Publisher       *domain.Publisher `json:"publisher"`
}

func (req bookRequest) toBook() domain.Book {
	return domain.Book{
		Title:           req.Title,
		ISBN:            req.ISBN,
		Category:        req.Category,
		SellingPrice:    req.SellingPrice,
		NumberOfBooks:   req.NumberOfBooks,
		PublicationYear: req.PublicationYear,
		Authors:         req.Authors,
		Publisher:       req.Publisher,
	}
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if !domain.IsValidCategory(req.Category) {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown category")
		return
	}
	s.writeJSON(w, http.StatusCreated, s.store.AddBook(req.toBook()))
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_BOOK_ID", "book id must be numeric")
		return
	}
	var req bookRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	book, ok := s.store.ReplaceBook(bookID, req.toBook())
	if !ok {
		s.writeError(w, http.StatusNotFound, "BOOK_NOT_FOUND", "book not found")
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_BOOK_ID", "book id must be numeric")
		return
	}
	if !s.store.DeleteBook(bookID) {
		s.writeError(w, http.StatusNotFound, "BOOK_NOT_FOUND", "book not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})
}

// --- Cart handlers ---

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.writeJSON(w, http.StatusOK, s.store.CartSnapshot(userID))
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	bookID, err := strconv.ParseInt(r.URL.Query().Get("bookId"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_BOOK_ID", "bookId must be numeric")
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity < 1 {
		s.writeError(w, http.StatusBadRequest, "BAD_QUANTITY", "quantity must be a positive integer")
		return
	}
	if err := s.store.AddToCart(userID, bookID, quantity); err != nil {
		s.writeError(w, http.StatusConflict, "CART_ERROR", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "added to cart"})
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	bookID, err := strconv.ParseInt(r.URL.Query().Get("bookId"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_BOOK_ID", "bookId must be numeric")
		return
	}
	if !s.store.RemoveFromCart(userID, bookID) {
		s.writeError(w, http.StatusNotFound, "NOT_IN_CART", "book is not in the cart")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "removed from cart"})
}

func (s *Server) handleDecrementCartItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	bookID, err := strconv.ParseInt(r.URL.Query().Get("bookId"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_BOOK_ID", "bookId must be numeric")
		return
	}
	if !s.store.DecrementCartItem(userID, bookID) {
		s.writeError(w, http.StatusNotFound, "NOT_IN_CART", "book is not in the cart")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "quantity decremented"})
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s.store.ClearCart(chi.URLParam(r, "userID"))
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var payment domain.PaymentDetails
	if err := validator.DecodeAndValidate(r, &payment); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	order, err := s.store.Checkout(chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "CHECKOUT_ERROR", err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, checkoutResponse{OrderID: order.OrderID})
}

// --- Order handlers ---

func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	user, ok := s.userFromRequest(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "no active session")
		return
	}
	if user.ID != userID && user.Role != domain.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "FORBIDDEN", "cannot read another user's orders")
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.OrdersForUser(userID))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.store.Order(chi.URLParam(r, "orderID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
		return
	}
	user, ok := s.userFromRequest(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "no active session")
		return
	}
	if order.UserID != user.ID && user.Role != domain.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "FORBIDDEN", "cannot read another user's order")
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.AllOrders())
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if !domain.IsValidOrderStatus(req.Status) {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown order status")
		return
	}
	if !s.store.UpdateOrderStatus(chi.URLParam(r, "orderID"), req.Status) {
		s.writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}

func (s *Server) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.writeJSON(w, http.StatusOK, s.store.SalesReport(q.Get("from"), q.Get("to")))
}

func (s *Server) handleTopCustomers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.TopCustomers(10))
}

func (s *Server) handleTopBooks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.TopBooks(10))
}

// --- Auth plumbing ---

type accessClaims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (s *Server) issueAccessToken(user *User) (string, error) {
	now := time.Now()
	claims := accessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verifyAccessToken(token string) (*accessClaims, bool) {
	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, false
	}
	return &claims, true
}

// userFromRequest resolves the caller from a bearer token, falling back to
// the refresh cookie so cookie-only session restore works.
func (s *Server) userFromRequest(r *http.Request) (*User, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		claims, ok := s.verifyAccessToken(strings.TrimPrefix(header, "Bearer "))
		if !ok {
			return nil, false
		}
		return s.store.UserByID(claims.UserID)
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		if userID, ok := s.store.UserIDForRefreshToken(cookie.Value); ok {
			return s.store.UserByID(userID)
		}
	}
	return nil, false
}

// requireAuth admits only requests carrying a valid bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			return
		}
		if _, ok := s.verifyAccessToken(strings.TrimPrefix(header, "Bearer ")); !ok {
			s.writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token is invalid or expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole admits only bearer tokens carrying the given role.
func (s *Server) requireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
				return
			}
			claims, ok := s.verifyAccessToken(strings.TrimPrefix(header, "Bearer "))
			if !ok {
				s.writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token is invalid or expired")
				return
			}
			if claims.Role != role {
				s.writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireUserMatch admits a bearer token whose user matches the {userID}
// path segment, or any admin.
func (s *Server) requireUserMatch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			return
		}
		claims, ok := s.verifyAccessToken(strings.TrimPrefix(header, "Bearer "))
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token is invalid or expired")
			return
		}
		if claims.UserID != chi.URLParam(r, "userID") && claims.Role != domain.RoleAdmin {
			s.writeError(w, http.StatusForbidden, "FORBIDDEN", "cannot act on another user's cart")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Response helpers ---

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": {Code: code, Message: message}})
}
