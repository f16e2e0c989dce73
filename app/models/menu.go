package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is a sellable catalog entry. TaxRate is a fraction (0.0825).
type MenuItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:255;not null;index" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"size:100;index" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"taxRate"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Available   bool            `gorm:"not null;default:true" json:"available"`
	ImageURL    string          `gorm:"size:500" json:"imageUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
