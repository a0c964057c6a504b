package domain

// Book categories offered by the store.
var BookCategories = []string{"Science", "Art", "Religion", "History", "Geography"}

// Book represents a title in the store catalog, as served by the remote API.
type Book struct {
	BookID          int64     `json:"bookID"`
	Title           string    `json:"title"`
	ISBN            string    `json:"isbn"`
	Category        string    `json:"category"`
	SellingPrice    float64   `json:"sellingPrice"`
	NumberOfBooks   int       `json:"numberOfBooks"`
	PublicationYear int       `json:"publicationYear"`
	Authors         []Author  `json:"authors,omitempty"`
	Publisher       *Publisher `json:"publisher,omitempty"`
}

// Author is a book author.
type Author struct {
	Name string `json:"name"`
}

// Publisher is a book publisher.
type Publisher struct {
	Name string `json:"name"`
}

// InStock reports whether the store currently holds copies of the book.
func (b Book) InStock() bool {
	return b.NumberOfBooks > 0
}

// IsValidCategory checks a category against the store's fixed set.
func IsValidCategory(category string) bool {
	for _, c := range BookCategories {
		if c == category {
			return true
		}
	}
	return false
}

// SearchFilter holds the last-applied catalog search criteria. All fields are
// optional; empty fields are omitted from the search request.
type SearchFilter struct {
	Title     string
	Category  string
	Author    string
	Publisher string
	ISBN      string
}

// IsZero reports whether no criteria are set.
func (f SearchFilter) IsZero() bool {
	return f == SearchFilter{}
}
