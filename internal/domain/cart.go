package domain

// CartLine is a single line of the remote cart. Price, SubTotal, and the
// snapshot's TotalPrice are computed by the server and trusted as-is; the
// client never recomputes them.
type CartLine struct {
	BookID    int64   `json:"bookId"`
	BookTitle string  `json:"bookTitle"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	SubTotal  float64 `json:"subTotal"`
}

// CartSnapshot is the full cart state as of the last fetch from the server.
// It is always replaced wholesale, never patched field by field.
type CartSnapshot struct {
	Items      []CartLine `json:"cartItems"`
	TotalPrice float64    `json:"totalPrice"`
}

// EmptyCart returns the canonical empty snapshot.
func EmptyCart() CartSnapshot {
	return CartSnapshot{Items: []CartLine{}}
}

// FindLine returns the cart line for the given book, if present.
func (c CartSnapshot) FindLine(bookID int64) (CartLine, bool) {
	for _, line := range c.Items {
		if line.BookID == bookID {
			return line, true
		}
	}
	return CartLine{}, false
}

// Contains reports whether the given book is in the cart.
func (c CartSnapshot) Contains(bookID int64) bool {
	_, ok := c.FindLine(bookID)
	return ok
}

// ItemCount returns the total number of copies across all lines.
func (c CartSnapshot) ItemCount() int {
	var count int
	for _, line := range c.Items {
		count += line.Quantity
	}
	return count
}

// IsEmpty reports whether the cart holds no lines.
func (c CartSnapshot) IsEmpty() bool {
	return len(c.Items) == 0
}

// PaymentDetails holds the card details submitted at checkout. Validated
// client-side before any request is issued.
type PaymentDetails struct {
	CardHolderName string `json:"cardHolderName" validate:"required,min=2,max=100"`
	CardNumber     string `json:"cardNumber" validate:"required,cardnumber"`
	CVV            string `json:"cvv" validate:"required,cvv"`
	ExpirationDate string `json:"expirationDate" validate:"required,cardexpiry"`
}
