package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
)

// GormStore implements Store on a relational database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (s *GormStore) FindUserByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	err := s.tx(ctx).First(&u, id).Error
	return u, notFound(err)
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.tx(ctx).Where("email = ?", email).First(&u).Error
	return u, notFound(err)
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return duplicate(s.tx(ctx).Create(u).Error)
}

func (s *GormStore) UpdateUser(ctx context.Context, u *models.User) error {
	res := s.tx(ctx).Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"email":          u.Email,
		"role":           u.Role,
		"points_enabled": u.PointsEnabled,
		"updated_at":     time.Now(),
	})
	if res.Error != nil {
		return duplicate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AddPoints(ctx context.Context, id uint, points int) error {
	res := s.tx(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", points))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.tx(ctx).Order("id asc").Find(&users).Error
	return users, err
}

// ─── Verification challenges ──────────────────────────────────────────────────

func (s *GormStore) CreateVerification(ctx context.Context, v *models.EmailVerification) error {
	return s.tx(ctx).Create(v).Error
}

func (s *GormStore) LatestVerification(ctx context.Context, email string) (models.EmailVerification, error) {
	var v models.EmailVerification
	err := s.tx(ctx).Where("email = ?", email).Order("id desc").First(&v).Error
	return v, notFound(err)
}

func (s *GormStore) PendingVerification(ctx context.Context, email string, now time.Time) (models.EmailVerification, error) {
	var v models.EmailVerification
	err := s.tx(ctx).
		Where("email = ? AND verified = ? AND expires_at > ?", email, false, now).
		Order("id desc").
		First(&v).Error
	return v, notFound(err)
}

func (s *GormStore) IncrementAttempts(ctx context.Context, id uint, max int) (int, error) {
	res := s.tx(ctx).Model(&models.EmailVerification{}).
		Where("id = ? AND attempts < ?", id, max).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var v models.EmailVerification
		if err := s.tx(ctx).Select("id").First(&v, id).Error; err != nil {
			return 0, notFound(err)
		}
		return max, ErrAttemptsExhausted
	}

	var v models.EmailVerification
	if err := s.tx(ctx).Select("attempts").First(&v, id).Error; err != nil {
		return 0, notFound(err)
	}
	return v.Attempts, nil
}

func (s *GormStore) MarkVerified(ctx context.Context, id uint) error {
	res := s.tx(ctx).Model(&models.EmailVerification{}).
		Where("id = ? AND verified = ?", id, false).
		UpdateColumn("verified", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (s *GormStore) DeleteVerification(ctx context.Context, id uint) error {
	return s.tx(ctx).Delete(&models.EmailVerification{}, id).Error
}

func (s *GormStore) PurgeExpiredVerifications(ctx context.Context, now time.Time) (int64, error) {
	res := s.tx(ctx).Where("expires_at <= ?", now).Delete(&models.EmailVerification{})
	return res.RowsAffected, res.Error
}

// ─── Orders ───────────────────────────────────────────────────────────────────

func (s *GormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentPending
	}
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	return s.tx(ctx).Create(o).Error
}

func (s *GormStore) FindOrder(ctx context.Context, id uint) (models.Order, error) {
	var o models.Order
	err := s.tx(ctx).First(&o, id).Error
	return o, notFound(err)
}

func (s *GormStore) ListOrdersByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.tx(ctx).Where("user_id = ?", userID).Order("id desc").Find(&orders).Error
	return orders, err
}

func (s *GormStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := s.tx(ctx).Order("id desc")
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var orders []models.Order
	err := q.Find(&orders).Error
	return orders, err
}

func (s *GormStore) TransitionPaymentStatus(ctx context.Context, id uint, t Transition) (models.Order, error) {
	if !models.CanTransition(t.From, t.To) {
		return models.Order{}, ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"payment_status": t.To,
		"updated_at":     time.Now(),
	}
	if t.TransactionID != "" {
		updates["transaction_id"] = t.TransactionID
	}
	if t.PaymentMethod != "" {
		updates["payment_method"] = t.PaymentMethod
	}
	if t.NewAttempt {
		updates["payment_attempts"] = gorm.Expr("payment_attempts + 1")
	}

	res := s.tx(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND payment_attempts = ?", id, t.From, t.Attempt).
		Updates(updates)
	if res.Error != nil {
		return models.Order{}, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.FindOrder(ctx, id); err != nil {
			return models.Order{}, err
		}
		return models.Order{}, ErrStaleStatus
	}
	return s.FindOrder(ctx, id)
}

func (s *GormStore) UpdateFulfillmentStatus(ctx context.Context, id uint, from, to string) (models.Order, error) {
	res := s.tx(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return models.Order{}, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.FindOrder(ctx, id); err != nil {
			return models.Order{}, err
		}
		return models.Order{}, ErrStaleStatus
	}
	return s.FindOrder(ctx, id)
}

func (s *GormStore) StaleProcessing(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := s.tx(ctx).
		Where("payment_status = ? AND updated_at < ?", models.PaymentProcessing, cutoff).
		Find(&orders).Error
	return orders, err
}

// ─── Menu ─────────────────────────────────────────────────────────────────────

func (s *GormStore) ListMenuItems(ctx context.Context, onlyAvailable bool) ([]models.MenuItem, error) {
	q := s.tx(ctx).Order("category asc, name asc")
	if onlyAvailable {
		q = q.Where("available = ?", true)
	}
	var items []models.MenuItem
	err := q.Find(&items).Error
	return items, err
}

func (s *GormStore) FindMenuItem(ctx context.Context, id uint) (models.MenuItem, error) {
	var m models.MenuItem
	err := s.tx(ctx).First(&m, id).Error
	return m, notFound(err)
}

func (s *GormStore) FindMenuItems(ctx context.Context, ids []uint) (map[uint]models.MenuItem, error) {
	out := make(map[uint]models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.MenuItem
	if err := s.tx(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (s *GormStore) CreateMenuItem(ctx context.Context, m *models.MenuItem) error {
	return s.tx(ctx).Create(m).Error
}

func (s *GormStore) UpdateMenuItem(ctx context.Context, m *models.MenuItem) error {
	res := s.tx(ctx).Model(&models.MenuItem{}).Where("id = ?", m.ID).Select("*").Omit("id", "created_at").Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteMenuItem(ctx context.Context, id uint) error {
	res := s.tx(ctx).Delete(&models.MenuItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetStock(ctx context.Context, id uint, stock int) (models.MenuItem, error) {
	res := s.tx(ctx).Model(&models.MenuItem{}).Where("id = ?", id).
		Updates(map[string]interface{}{"stock": stock, "updated_at": time.Now()})
	if res.Error != nil {
		return models.MenuItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.MenuItem{}, ErrNotFound
	}
	return s.FindMenuItem(ctx, id)
}

func (s *GormStore) DecrementStock(ctx context.Context, id uint, qty int) (models.MenuItem, error) {
	res := s.tx(ctx).Model(&models.MenuItem{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("CASE WHEN stock > ? THEN stock - ? ELSE 0 END", qty, qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return models.MenuItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.MenuItem{}, ErrNotFound
	}
	return s.FindMenuItem(ctx, id)
}

// ─── Content ──────────────────────────────────────────────────────────────────

func (s *GormStore) ListEvents(ctx context.Context, activeOnly bool) ([]models.Event, error) {
	q := s.tx(ctx).Order("starts_at asc")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var events []models.Event
	return events, q.Find(&events).Error
}

func (s *GormStore) FindEvent(ctx context.Context, id uint) (models.Event, error) {
	var e models.Event
	return e, notFound(s.tx(ctx).First(&e, id).Error)
}

func (s *GormStore) CreateEvent(ctx context.Context, e *models.Event) error {
	return s.tx(ctx).Create(e).Error
}

func (s *GormStore) UpdateEvent(ctx context.Context, e *models.Event) error {
	return updateRow(s.tx(ctx), &models.Event{}, e.ID, e)
}

func (s *GormStore) DeleteEvent(ctx context.Context, id uint) error {
	return deleteRow(s.tx(ctx), &models.Event{}, id)
}

func (s *GormStore) ListAds(ctx context.Context, activeOnly bool) ([]models.Ad, error) {
	q := s.tx(ctx).Order("sort_order asc, id asc")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var ads []models.Ad
	return ads, q.Find(&ads).Error
}

func (s *GormStore) FindAd(ctx context.Context, id uint) (models.Ad, error) {
	var a models.Ad
	return a, notFound(s.tx(ctx).First(&a, id).Error)
}

func (s *GormStore) CreateAd(ctx context.Context, a *models.Ad) error {
	return s.tx(ctx).Create(a).Error
}

func (s *GormStore) UpdateAd(ctx context.Context, a *models.Ad) error {
	return updateRow(s.tx(ctx), &models.Ad{}, a.ID, a)
}

func (s *GormStore) DeleteAd(ctx context.Context, id uint) error {
	return deleteRow(s.tx(ctx), &models.Ad{}, id)
}

func (s *GormStore) GetLocation(ctx context.Context) (models.TruckLocation, error) {
	var l models.TruckLocation
	return l, notFound(s.tx(ctx).First(&l, 1).Error)
}

func (s *GormStore) SaveLocation(ctx context.Context, l *models.TruckLocation) error {
	l.ID = 1
	l.UpdatedAt = time.Now()
	return s.tx(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(l).Error
}

func (s *GormStore) ListSettings(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	return settings, s.tx(ctx).Order("key asc").Find(&settings).Error
}

func (s *GormStore) PutSetting(ctx context.Context, key, value string) (models.Setting, error) {
	setting := models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.tx(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&setting).Error
	return setting, err
}

func updateRow(db *gorm.DB, model interface{}, id uint, values interface{}) error {
	res := db.Model(model).Where("id = ?", id).Select("*").Omit("id", "created_at").Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteRow(db *gorm.DB, model interface{}, id uint) error {
	res := db.Delete(model, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
