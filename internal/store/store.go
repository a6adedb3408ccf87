// Package store defines the persistence contracts shared by the Postgres and
// in-memory backends. Business logic depends only on these interfaces.
package store

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/hive-store/internal/models"
	"github.com/shopspring/decimal"
)

type SortOrder int

const (
	OldestFirst SortOrder = iota
	NewestFirst
)

type NewProduct struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Image       string
	Description string
	Category    string
	Colors      []string
	Stock       int
}

type NewUser struct {
	ID    string
	Email string
	Name  string
	Phone string
	Role  string
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, p NewProduct) (*models.Product, error)
	SetStock(ctx context.Context, id string, stock int) (*models.Product, error)
	UpsertRating(ctx context.Context, productID, userID string, rating int) error
	GetRatings(ctx context.Context, productID string) ([]models.Rating, error)
}

type Orders interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, order SortOrder) ([]models.Order, error)
}

type Users interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u NewUser) (*models.User, error)
}

// Codes holds at most one pending verification code per phone.
type Codes interface {
	PutCode(ctx context.Context, code models.VerificationCode) error
	// TakeCode atomically returns and deletes the code for phone.
	// It returns (nil, nil) when no code is stored.
	TakeCode(ctx context.Context, phone string) (*models.VerificationCode, error)
}

// Tx is the unit of work used by checkout. Reads through LockProduct see the
// writes made earlier in the same Tx; nothing is visible to other callers
// until the callback passed to InTx returns nil.
type Tx interface {
	LockProduct(ctx context.Context, id string) (*models.Product, error)
	DeductStock(ctx context.Context, id string, quantity int) error
	InsertOrder(ctx context.Context, order *models.Order) error
}

type Store interface {
	Catalog
	Orders
	Users
	Codes
	InTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Column limits shared by every backend: stock is an INTEGER, prices are
// NUMERIC(12,2) and order totals NUMERIC(14,2).
const MaxStock = math.MaxInt32

var (
	MaxPrice      = decimal.RequireFromString("9999999999.99")
	MaxOrderTotal = decimal.RequireFromString("999999999999.99")
)

func ClampStock(stock int) int {
	return max(0, min(MaxStock, stock))
}

func ClampRating(rating int) int {
	return max(1, min(5, rating))
}

// ClampQuantity mirrors the cart's lenient quantity parsing: fractional input is
// floored and anything below one (including NaN) becomes one.
func ClampQuantity(q float64) int {
	if math.IsNaN(q) || q < 1 {
		return 1
	}
	if q >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(q))
}

// ApplyProductDefaults fills the optional fields of a new product.
func ApplyProductDefaults(p NewProduct) (NewProduct, error) {
	if p.Name == "" {
		return p, NewValidationError("name", "is required")
	}
	if p.Price.IsNegative() {
		return p, NewValidationError("price", "must not be negative")
	}
	if p.Price.Round(2).GreaterThan(MaxPrice) {
		return p, NewValidationError("price", "exceeds "+MaxPrice.String())
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = models.DefaultCategory
	}
	if p.Image == "" {
		p.Image = models.DefaultImage
	}
	if p.Colors == nil {
		p.Colors = []string{}
	}
	p.Price = p.Price.Round(2)
	p.Stock = ClampStock(p.Stock)
	return p, nil
}

func ApplyUserDefaults(u NewUser) (NewUser, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return u, NewValidationError("email", "is required")
	}
	if u.ID == "" {
		u.ID = "u-" + uuid.NewString()
	}
	if u.Name == "" {
		u.Name, _, _ = strings.Cut(u.Email, "@")
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	return u, nil
}
