package models

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is created on first successful email verification.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role          string    `gorm:"size:20;not null;default:customer" json:"role"`
	PointsEnabled bool      `gorm:"not null;default:false" json:"pointsEnabled"`
	TotalPoints   int       `gorm:"not null;default:0" json:"totalPoints"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
