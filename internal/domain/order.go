package domain

import "time"

// Order status constants, as reported by the remote API.
const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

// Order represents a placed order.
type Order struct {
	OrderID    string      `json:"orderId"`
	UserID     string      `json:"userId"`
	Status     string      `json:"status"`
	Items      []OrderLine `json:"items"`
	TotalPrice float64     `json:"totalPrice"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// OrderLine is a single line of an order, frozen at checkout time.
type OrderLine struct {
	BookID    int64   `json:"bookId"`
	BookTitle string  `json:"bookTitle"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	SubTotal  float64 `json:"subTotal"`
}

// ValidOrderStatuses returns all valid order statuses.
func ValidOrderStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
}

// IsValidOrderStatus checks if a status string is valid.
func IsValidOrderStatus(status string) bool {
	for _, s := range ValidOrderStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// SalesReport is the admin sales summary over a date range.
type SalesReport struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	OrderCount int     `json:"orderCount"`
	TotalSales float64 `json:"totalSales"`
}

// TopCustomer is a single row of the top-customers report.
type TopCustomer struct {
	Email      string  `json:"email"`
	OrderCount int     `json:"orderCount"`
	TotalSpent float64 `json:"totalSpent"`
}

// TopBook is a single row of the top-books report.
type TopBook struct {
	BookID    int64  `json:"bookId"`
	Title     string `json:"title"`
	UnitsSold int    `json:"unitsSold"`
}
