package stub

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/storefront/internal/domain"
)

// User is a registered account in the stub store.
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
	Verified  bool

	// Pending one-time codes. A real backend emails these; the stub keeps
	// them readable so tests and local development can complete the flows.
	SignupOTP string
	ResetOTP  string
}

// Store is the in-memory state behind the stub bookstore API. It plays the
// "remote source of truth" role: cart lines are kept as bare quantities and
// every snapshot, subtotal, and total is computed server-side on read.
type Store struct {
	mu sync.Mutex

	usersByEmail map[string]*User
	usersByID    map[string]*User

	books      map[int64]*domain.Book
	nextBookID int64

	carts  map[string]map[int64]int // userID -> bookID -> quantity
	orders map[string]*domain.Order

	refreshTokens map[string]string // refresh token -> userID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		usersByEmail:  make(map[string]*User),
		usersByID:     make(map[string]*User),
		books:         make(map[int64]*domain.Book),
		carts:         make(map[string]map[int64]int),
		orders:        make(map[string]*domain.Order),
		refreshTokens: make(map[string]string),
	}
}

// --- Users ---

// CreateUser registers a new account with a pending signup OTP.
func (s *Store) CreateUser(username, email, password, firstName, lastName string, role domain.Role, otp string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[email]; exists {
		return nil, fmt.Errorf("email already registered")
	}

	u := &User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		Role:      role,
		SignupOTP: otp,
	}
	s.usersByEmail[email] = u
	s.usersByID[u.ID] = u
	return u, nil
}

// UserByEmail looks up an account by email.
func (s *Store) UserByEmail(email string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByEmail[email]
	return u, ok
}

// UserByID looks up an account by ID.
func (s *Store) UserByID(id string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[id]
	return u, ok
}

// VerifyUser consumes a signup OTP, marking the matching account verified.
func (s *Store) VerifyUser(otp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.usersByEmail {
		if !u.Verified && u.SignupOTP != "" && u.SignupOTP == otp {
			u.Verified = true
			u.SignupOTP = ""
			return true
		}
	}
	return false
}

// SetResetOTP records a password reset OTP for the account.
func (s *Store) SetResetOTP(email, otp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByEmail[email]
	if !ok {
		return false
	}
	u.ResetOTP = otp
	return true
}

// ResetPassword consumes a reset OTP and replaces the account password.
func (s *Store) ResetPassword(email, otp, newPassword string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByEmail[email]
	if !ok || u.ResetOTP == "" || u.ResetOTP != otp {
		return false
	}
	u.Password = newPassword
	u.ResetOTP = ""
	return true
}

// --- Refresh tokens ---

// IssueRefreshToken mints a refresh token for the user.
func (s *Store) IssueRefreshToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.New().String()
	s.refreshTokens[token] = userID
	return token
}

// RotateRefreshToken consumes a refresh token and mints its replacement.
func (s *Store) RotateRefreshToken(token string) (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refreshTokens[token]
	if !ok {
		return "", "", false
	}
	delete(s.refreshTokens, token)
	next := uuid.New().String()
	s.refreshTokens[next] = userID
	return next, userID, true
}

// UserIDForRefreshToken resolves a refresh token without consuming it.
func (s *Store) UserIDForRefreshToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refreshTokens[token]
	return userID, ok
}

// RevokeRefreshTokens drops every refresh token held for the user.
func (s *Store) RevokeRefreshTokens(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, id := range s.refreshTokens {
		if id == userID {
			delete(s.refreshTokens, token)
		}
	}
}

// --- Books ---

// AddBook inserts a catalog entry, assigning the next book ID.
func (s *Store) AddBook(book domain.Book) domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookID++
	book.BookID = s.nextBookID
	s.books[book.BookID] = &book
	return book
}

// Book returns a catalog entry by ID.
func (s *Store) Book(bookID int64) (domain.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[bookID]
	if !ok {
		return domain.Book{}, false
	}
	return *b, true
}

// Books returns the full catalog ordered by book ID.
func (s *Store) Books() []domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out
}

// ReplaceBook overwrites a catalog entry, keeping its ID.
func (s *Store) ReplaceBook(bookID int64, book domain.Book) (domain.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return domain.Book{}, false
	}
	book.BookID = bookID
	s.books[bookID] = &book
	return book, true
}

// DeleteBook removes a catalog entry.
func (s *Store) DeleteBook(bookID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return false
	}
	delete(s.books, bookID)
	return true
}

// --- Carts ---

// AddToCart adds quantity copies of a book to the user's cart, enforcing
// the stock bound across what is already in the cart.
func (s *Store) AddToCart(userID string, bookID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return fmt.Errorf("book %d not found", bookID)
	}
	cart := s.carts[userID]
	if cart == nil {
		cart = make(map[int64]int)
		s.carts[userID] = cart
	}
	if cart[bookID]+quantity > book.NumberOfBooks {
		return fmt.Errorf("insufficient stock for %q", book.Title)
	}
	cart[bookID] += quantity
	return nil
}

// RemoveFromCart drops a book's line from the user's cart.
func (s *Store) RemoveFromCart(userID string, bookID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[userID]
	if _, ok := cart[bookID]; !ok {
		return false
	}
	delete(cart, bookID)
	return true
}

// DecrementCartItem lowers a line's quantity by one, removing the line when
// it reaches zero.
func (s *Store) DecrementCartItem(userID string, bookID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[userID]
	qty, ok := cart[bookID]
	if !ok {
		return false
	}
	if qty <= 1 {
		delete(cart, bookID)
	} else {
		cart[bookID] = qty - 1
	}
	return true
}

// ClearCart empties the user's cart.
func (s *Store) ClearCart(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
}

// CartSnapshot computes the user's cart with server-side pricing.
func (s *Store) CartSnapshot(userID string) domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartSnapshotLocked(userID)
}

func (s *Store) cartSnapshotLocked(userID string) domain.CartSnapshot {
	snap := domain.EmptyCart()
	ids := make([]int64, 0, len(s.carts[userID]))
	for bookID := range s.carts[userID] {
		ids = append(ids, bookID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, bookID := range ids {
		book, ok := s.books[bookID]
		if !ok {
			continue
		}
		qty := s.carts[userID][bookID]
		line := domain.CartLine{
			BookID:    bookID,
			BookTitle: book.Title,
			Price:     book.SellingPrice,
			Quantity:  qty,
			SubTotal:  book.SellingPrice * float64(qty),
		}
		snap.Items = append(snap.Items, line)
		snap.TotalPrice += line.SubTotal
	}
	return snap
}

// --- Orders ---

// Checkout consumes the user's cart into a new order, decrementing stock.
func (s *Store) Checkout(userID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.cartSnapshotLocked(userID)
	if snap.IsEmpty() {
		return nil, fmt.Errorf("cart is empty")
	}

	for _, line := range snap.Items {
		book := s.books[line.BookID]
		if book.NumberOfBooks < line.Quantity {
			return nil, fmt.Errorf("insufficient stock for %q", book.Title)
		}
	}
	for _, line := range snap.Items {
		s.books[line.BookID].NumberOfBooks -= line.Quantity
	}

	order := &domain.Order{
		OrderID:    uuid.New().String(),
		UserID:     userID,
		Status:     domain.OrderStatusPending,
		Items:      make([]domain.OrderLine, 0, len(snap.Items)),
		TotalPrice: snap.TotalPrice,
		CreatedAt:  time.Now().UTC(),
	}
	for _, line := range snap.Items {
		order.Items = append(order.Items, domain.OrderLine(line))
	}
	s.orders[order.OrderID] = order
	delete(s.carts, userID)
	return order, nil
}

// Order returns a single order.
func (s *Store) Order(orderID string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// OrdersForUser returns the user's orders, newest first.
func (s *Store) OrdersForUser(userID string) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// AllOrders returns every order, newest first.
func (s *Store) AllOrders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// UpdateOrderStatus moves an order to a new status.
func (s *Store) UpdateOrderStatus(orderID, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false
	}
	o.Status = status
	return true
}

// SalesReport summarizes orders created inside the date range. Bounds use
// the YYYY-MM-DD form; an empty bound is open.
func (s *Store) SalesReport(from, to string) domain.SalesReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := domain.SalesReport{From: from, To: to}
	for _, o := range s.orders {
		day := o.CreatedAt.Format("2006-01-02")
		if from != "" && day < from {
			continue
		}
		if to != "" && day > to {
			continue
		}
		report.OrderCount++
		report.TotalSales += o.TotalPrice
	}
	return report
}

// TopCustomers ranks customers by total spend.
func (s *Store) TopCustomers(limit int) []domain.TopCustomer {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser := make(map[string]*domain.TopCustomer)
	for _, o := range s.orders {
		email := o.UserID
		if u, ok := s.usersByID[o.UserID]; ok {
			email = u.Email
		}
		row, ok := byUser[email]
		if !ok {
			row = &domain.TopCustomer{Email: email}
			byUser[email] = row
		}
		row.OrderCount++
		row.TotalSpent += o.TotalPrice
	}

	out := make([]domain.TopCustomer, 0, len(byUser))
	for _, row := range byUser {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalSpent > out[j].TotalSpent })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopBooks ranks books by units sold.
func (s *Store) TopBooks(limit int) []domain.TopBook {
	s.mu.Lock()
	defer s.mu.Unlock()

	byBook := make(map[int64]*domain.TopBook)
	for _, o := range s.orders {
		for _, line := range o.Items {
			row, ok := byBook[line.BookID]
			if !ok {
				row = &domain.TopBook{BookID: line.BookID, Title: line.BookTitle}
				byBook[line.BookID] = row
			}
			row.UnitsSold += line.Quantity
		}
	}

	out := make([]domain.TopBook, 0, len(byBook))
	for _, row := range byBook {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitsSold > out[j].UnitsSold })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
