package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
)

// CartLine is one line of a client cart. Only the item id and quantity are
// taken from the client.
type CartLine struct {
	ItemID   uint `json:"id" validate:"required"`
	Quantity int  `json:"quantity" validate:"required,min=1,max=99"`
}

// Quote is a server-side price for a cart.
type Quote struct {
	Items    []models.OrderItem
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Pricer prices a cart.
type Pricer interface {
	Quote(ctx context.Context, lines []CartLine) (Quote, error)
}

// CatalogPricer prices carts from the live menu. Unknown, unavailable and
// understocked items are rejected.
type CatalogPricer struct {
	menu repositories.MenuStore
}

func NewCatalogPricer(menu repositories.MenuStore) *CatalogPricer {
	return &CatalogPricer{menu: menu}
}

func (p *CatalogPricer) Quote(ctx context.Context, lines []CartLine) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, apperr.New(apperr.KindValidation, apperr.CodeValidation, "cart is empty")
	}

	ids := make([]uint, 0, len(lines))
	wanted := make(map[uint]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Quote{}, apperr.New(apperr.KindValidation, apperr.CodeValidation, "quantity must be positive").
				With("itemId", l.ItemID)
		}
		if _, seen := wanted[l.ItemID]; !seen {
			ids = append(ids, l.ItemID)
		}
		wanted[l.ItemID] += l.Quantity
	}

	items, err := p.menu.FindMenuItems(ctx, ids)
	if err != nil {
		return Quote{}, apperr.Internal(err)
	}

	for _, id := range ids {
		m, ok := items[id]
		if !ok || !m.Available {
			return Quote{}, apperr.New(apperr.KindValidation, apperr.CodeItemUnavailable, "item is not available").
				With("itemId", id)
		}
		if m.Stock < wanted[id] {
			return Quote{}, apperr.New(apperr.KindValidation, apperr.CodeInsufficientStock, "not enough stock").
				With("itemId", id).With("available", m.Stock)
		}
	}

	q := Quote{Subtotal: decimal.Zero, Tax: decimal.Zero}
	for _, l := range lines {
		m := items[l.ItemID]
		line := m.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		q.Subtotal = q.Subtotal.Add(line)
		q.Tax = q.Tax.Add(line.Mul(m.TaxRate))
		q.Items = append(q.Items, models.OrderItem{
			ID:        m.ID,
			Name:      m.Name,
			UnitPrice: m.Price,
			TaxRate:   m.TaxRate,
			Quantity:  l.Quantity,
		})
	}
	q.Subtotal = q.Subtotal.Round(2)
	q.Tax = q.Tax.Round(2)
	q.Total = q.Subtotal.Add(q.Tax)
	return q, nil
}
