// Package repositories holds the storage interface used by every service,
// with a gorm implementation for production and an in-memory one for tests
// and local runs.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
)

var (
	ErrNotFound = errors.New("repositories: record not found")
	// ErrStaleStatus means a conditional update found a different prior state.
	ErrStaleStatus       = errors.New("repositories: record changed concurrently")
	ErrInvalidTransition = errors.New("repositories: illegal payment status transition")
	ErrAttemptsExhausted = errors.New("repositories: verification attempts exhausted")
	ErrDuplicate         = errors.New("repositories: duplicate record")
)

// Transition is a compare-and-swap on an order's payment state. The write
// only lands when both the stored status equals From and the stored attempt
// counter equals Attempt.
type Transition struct {
	From    models.PaymentStatus
	To      models.PaymentStatus
	Attempt int

	TransactionID string
	PaymentMethod string
	// NewAttempt increments the attempt counter in the same write.
	NewAttempt bool
}

// OrderFilter narrows back-office order listings.
type OrderFilter struct {
	PaymentStatus models.PaymentStatus
	Limit         int
}

type UserStore interface {
	FindUserByID(ctx context.Context, id uint) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	AddPoints(ctx context.Context, id uint, points int) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

type VerificationStore interface {
	CreateVerification(ctx context.Context, v *models.EmailVerification) error
	// LatestVerification returns the newest challenge for email in any state.
	LatestVerification(ctx context.Context, email string) (models.EmailVerification, error)
	// PendingVerification returns an unverified, unexpired challenge.
	PendingVerification(ctx context.Context, email string, now time.Time) (models.EmailVerification, error)
	// IncrementAttempts atomically bumps the counter while it is below max
	// and returns the new value, or ErrAttemptsExhausted.
	IncrementAttempts(ctx context.Context, id uint, max int) (int, error)
	// MarkVerified flips verified once; a second call gets ErrStaleStatus.
	MarkVerified(ctx context.Context, id uint) error
	DeleteVerification(ctx context.Context, id uint) error
	PurgeExpiredVerifications(ctx context.Context, now time.Time) (int64, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	FindOrder(ctx context.Context, id uint) (models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uint) ([]models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	TransitionPaymentStatus(ctx context.Context, id uint, t Transition) (models.Order, error)
	UpdateFulfillmentStatus(ctx context.Context, id uint, from, to string) (models.Order, error)
	// StaleProcessing lists orders stuck in processing since before cutoff.
	StaleProcessing(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type MenuStore interface {
	ListMenuItems(ctx context.Context, onlyAvailable bool) ([]models.MenuItem, error)
	FindMenuItem(ctx context.Context, id uint) (models.MenuItem, error)
	FindMenuItems(ctx context.Context, ids []uint) (map[uint]models.MenuItem, error)
	CreateMenuItem(ctx context.Context, m *models.MenuItem) error
	UpdateMenuItem(ctx context.Context, m *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id uint) error
	SetStock(ctx context.Context, id uint, stock int) (models.MenuItem, error)
	// DecrementStock subtracts qty, flooring at zero.
	DecrementStock(ctx context.Context, id uint, qty int) (models.MenuItem, error)
}

type ContentStore interface {
	ListEvents(ctx context.Context, activeOnly bool) ([]models.Event, error)
	FindEvent(ctx context.Context, id uint) (models.Event, error)
	CreateEvent(ctx context.Context, e *models.Event) error
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id uint) error

	ListAds(ctx context.Context, activeOnly bool) ([]models.Ad, error)
	FindAd(ctx context.Context, id uint) (models.Ad, error)
	CreateAd(ctx context.Context, a *models.Ad) error
	UpdateAd(ctx context.Context, a *models.Ad) error
	DeleteAd(ctx context.Context, id uint) error

	GetLocation(ctx context.Context) (models.TruckLocation, error)
	SaveLocation(ctx context.Context, l *models.TruckLocation) error

	ListSettings(ctx context.Context) ([]models.Setting, error)
	PutSetting(ctx context.Context, key, value string) (models.Setting, error)
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	VerificationStore
	OrderStore
	MenuStore
	ContentStore
}

// Models lists every table the gorm store needs, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.EmailVerification{},
		&models.MenuItem{},
		&models.Order{},
		&models.Event{},
		&models.Ad{},
		&models.TruckLocation{},
		&models.Setting{},
	}
}
