package models

import "time"

type Event struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Location    string     `gorm:"size:255" json:"location"`
	StartsAt    time.Time  `gorm:"index" json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Ad struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	ImageURL  string    `gorm:"size:500" json:"imageUrl,omitempty"`
	LinkURL   string    `gorm:"size:500" json:"linkUrl,omitempty"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	SortOrder int       `gorm:"not null;default:0" json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TruckLocation is a single row (ID 1) holding the truck's last position.
type TruckLocation struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	Address   string    `gorm:"size:255" json:"address"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Setting is a free-form key/value switch for the storefront.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
