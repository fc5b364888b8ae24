package domain

import "time"

// Cart is the remote cart as returned by the storefront backend.
type Cart struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerId,omitempty"`
	Currency   string     `json:"currency"`
	TotalCents int64      `json:"totalCents"`
	Items      []CartLine `json:"items"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type CartLine struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	Name           string `json:"name,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
}

// MergeResult is the outcome of folding a guest cart into a customer cart.
type MergeResult struct {
	MergedItemsCount int `json:"mergedItemsCount"`
}
