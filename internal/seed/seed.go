// Package seed loads the demo catalog and accounts into any store backend.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Seeder interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p store.NewProduct) (*models.Product, error)
	CreateUser(ctx context.Context, u store.NewUser) (*models.User, error)
}

func Products() []store.NewProduct {
	return []store.NewProduct{
		{ID: "1", Name: "AITCHBEE Hive Tee", Price: decimal.RequireFromString("49.99"), Image: "/products/tee-1.jpg", Description: "Premium black cotton tee with golden bee logo. Limited edition.", Category: "T-Shirts", Colors: []string{"Black", "White", "Yellow"}, Stock: 50},
		{ID: "2", Name: "AITCHBEE Hoodie", Price: decimal.RequireFromString("89.99"), Image: "/products/hoodie-1.jpg", Description: "Oversized hoodie with embroidered bee. Heavyweight fleece.", Category: "Hoodies", Colors: []string{"Black", "Yellow"}, Stock: 30},
		{ID: "3", Name: "AITCHBEE Cap", Price: decimal.RequireFromString("34.99"), Image: "/products/cap-1.jpg", Description: "Structured cap with metallic bee patch. One size fits all.", Category: "Accessories", Colors: []string{"Black", "White"}, Stock: 100},
		{ID: "4", Name: "AITCHBEE Crewneck", Price: decimal.RequireFromString("64.99"), Image: "/products/crew-1.jpg", Description: "Classic crewneck with subtle hive pattern. Soft cotton blend.", Category: "Sweatshirts", Colors: []string{"Black", "White", "Yellow"}, Stock: 40},
		{ID: "5", Name: "AITCHBEE Tote Bag", Price: decimal.RequireFromString("29.99"), Image: "/products/tote-1.jpg", Description: "Canvas tote with screen-printed bee. Eco-friendly.", Category: "Accessories", Colors: []string{"Black", "Yellow"}, Stock: 80},
	}
}

func Users() []store.NewUser {
	return []store.NewUser{
		{ID: "admin-1", Email: "admin@aitchbee.com", Name: "Admin", Role: models.RoleAdmin},
		{ID: "buyer-1", Email: "buyer@test.com", Name: "Test Buyer", Phone: "+216123456789", Role: models.RoleUser},
	}
}

// Run is idempotent: existing products and accounts are left untouched.
func Run(ctx context.Context, s Seeder, log logrus.FieldLogger) error {
	var created int
	for _, p := range Products() {
		_, err := s.GetProduct(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check product %s: %w", p.ID, err)
		}
		if _, err := s.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		created++
	}

	for _, u := range Users() {
		_, err := s.CreateUser(ctx, u)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		log.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email, "role": u.Role}).Info("seeded account")
	}

	log.WithField("products", created).Info("seeded catalog")
	return nil
}
