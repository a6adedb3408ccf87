package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money is encoded as JSON numbers by every package that marshals models.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Colors      []string        `json:"colors"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Rating struct {
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
	Rating    int    `json:"rating"`
}

// OrderLineItem keeps the product name and price as they were at checkout.
type OrderLineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (i OrderLineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is written once and never updated.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	UserEmail string          `json:"userEmail"`
	UserPhone string          `json:"userPhone"`
	Items     []OrderLineItem `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"date"`
}

type VerificationCode struct {
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c VerificationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

const (
	DefaultCategory = "Other"
	DefaultImage    = "/products/placeholder.jpg"
)
