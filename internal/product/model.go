package product

import (
	"errors"
	"strings"
	"time"
)

// Conditions a listing may be in, as shown in the create-listing form.
var Conditions = []string{
	"New",
	"Like new",
	"Good condition",
	"Fair condition",
	"Poor condition",
}

// Categories of the marketplace.
var Categories = []string{
	"Laptops & Accessories",
	"Textbooks & Study Guides",
	"Dorm & Apartment Essentials",
	"Bicycles & Scooters",
	"Electronics & Gadgets",
	"Furniture & Storage",
	"Clothing & Fashion",
	"School Supplies",
}

type Product struct {
	ID          int       `json:"id"`
	SellerID    int       `json:"seller_id"`
	SellerEmail string    `json:"seller_email,omitempty"`
	Name        string    `json:"name"`
	Details     string    `json:"details"`
	Price       float64   `json:"price"`
	Condition   string    `json:"condition"`
	Category    string    `json:"category"`
	ImagePath   string    `json:"image_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateRequest struct {
	Name      string  `json:"name"`
	Details   string  `json:"details"`
	Price     float64 `json:"price"`
	Condition string  `json:"condition"`
	Category  string  `json:"category"`
	ImagePath string  `json:"image_path"`
}

var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidInput = errors.New("invalid product")
)

// Validate checks the request against the listing rules: non-empty name and
// details, non-negative price, condition and category from the fixed sets.
func (req *CreateRequest) Validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(req.Details) == "" {
		return errors.New("details are required")
	}
	if req.Price < 0 {
		return errors.New("price must be non-negative")
	}
	if !contains(Conditions, req.Condition) {
		return errors.New("unknown condition")
	}
	if !contains(Categories, req.Category) {
		return errors.New("unknown category")
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
