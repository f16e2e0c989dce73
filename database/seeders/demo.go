package seeders

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
)

func init() {
	Register("menu", SeedMenu)
	Register("settings", SeedSettings)
}

var demoMenu = []struct {
	name, category, description string
	price                       string
	stock                       int
}{
	{"Carne Asada Taco", "mains", "Grilled steak, onion, cilantro", "3.50", 40},
	{"Al Pastor Taco", "mains", "Marinated pork with pineapple", "3.50", 40},
	{"Veggie Burrito", "mains", "Black beans, rice, pico de gallo", "9.25", 20},
	{"Elote", "sides", "Street corn with cotija", "4.00", 25},
	{"Horchata", "drinks", "", "3.00", 30},
	{"Jarritos", "drinks", "", "2.50", 48},
}

// SeedMenu adds the demo menu when the catalog is empty.
func SeedMenu(ctx context.Context, store repositories.Store) error {
	existing, err := store.ListMenuItems(ctx, false)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	tax := decimal.RequireFromString("0.0825")
	for _, d := range demoMenu {
		item := models.MenuItem{
			Name:        d.name,
			Description: d.description,
			Category:    d.category,
			Price:       decimal.RequireFromString(d.price),
			TaxRate:     tax,
			Stock:       d.stock,
			Available:   true,
		}
		if err := store.CreateMenuItem(ctx, &item); err != nil {
			return err
		}
	}
	return nil
}

var demoSettings = map[string]string{
	"store_open":     "true",
	"pickup_message": "Show your order number at the window.",
}

// SeedSettings writes storefront switches that are not set yet.
func SeedSettings(ctx context.Context, store repositories.Store) error {
	current, err := store.ListSettings(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(current))
	for _, s := range current {
		have[s.Key] = true
	}
	for k, v := range demoSettings {
		if have[k] {
			continue
		}
		if _, err := store.PutSetting(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}
