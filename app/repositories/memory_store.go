package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
)

// MemoryStore implements Store in process. Used for tests and for
// DB_DRIVER=memory local runs.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time

	seq           uint
	users         map[uint]models.User
	verifications map[uint]models.EmailVerification
	orders        map[uint]models.Order
	menu          map[uint]models.MenuItem
	events        map[uint]models.Event
	ads           map[uint]models.Ad
	location      *models.TruckLocation
	settings      map[string]models.Setting
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:           time.Now,
		users:         map[uint]models.User{},
		verifications: map[uint]models.EmailVerification{},
		orders:        map[uint]models.Order{},
		menu:          map[uint]models.MenuItem{},
		events:        map[uint]models.Event{},
		ads:           map[uint]models.Ad{},
		settings:      map[string]models.Setting{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) nextID() uint {
	s.seq++
	return s.seq
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if o.DeliveryData != nil {
		dd := make(map[string]any, len(o.DeliveryData))
		for k, v := range o.DeliveryData {
			dd[k] = v
		}
		o.DeliveryData = dd
	}
	if o.TransactionID != nil {
		v := *o.TransactionID
		o.TransactionID = &v
	}
	if o.PaymentMethod != nil {
		v := *o.PaymentMethod
		o.PaymentMethod = &v
	}
	return o
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (s *MemoryStore) FindUserByID(_ context.Context, id uint) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if u.Role == "" {
		u.Role = models.RoleCustomer
	}
	u.ID = s.nextID()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	cur.Email = u.Email
	cur.Role = u.Role
	cur.PointsEnabled = u.PointsEnabled
	cur.UpdatedAt = s.now()
	s.users[u.ID] = cur
	*u = cur
	return nil
}

func (s *MemoryStore) AddPoints(_ context.Context, id uint, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TotalPoints += points
	s.users[id] = u
	return nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── Verification challenges ──────────────────────────────────────────────────

func (s *MemoryStore) CreateVerification(_ context.Context, v *models.EmailVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.nextID()
	v.CreatedAt = s.now()
	s.verifications[v.ID] = *v
	return nil
}

func (s *MemoryStore) LatestVerification(_ context.Context, email string) (models.EmailVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  models.EmailVerification
		found bool
	)
	for _, v := range s.verifications {
		if v.Email == email && (!found || v.ID > best.ID) {
			best, found = v, true
		}
	}
	if !found {
		return models.EmailVerification{}, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) PendingVerification(_ context.Context, email string, now time.Time) (models.EmailVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  models.EmailVerification
		found bool
	)
	for _, v := range s.verifications {
		if v.Email != email || v.Verified || v.Expired(now) {
			continue
		}
		if !found || v.ID > best.ID {
			best, found = v, true
		}
	}
	if !found {
		return models.EmailVerification{}, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) IncrementAttempts(_ context.Context, id uint, max int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[id]
	if !ok {
		return 0, ErrNotFound
	}
	if v.Attempts >= max {
		return v.Attempts, ErrAttemptsExhausted
	}
	v.Attempts++
	s.verifications[id] = v
	return v.Attempts, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[id]
	if !ok {
		return ErrNotFound
	}
	if v.Verified {
		return ErrStaleStatus
	}
	v.Verified = true
	s.verifications[id] = v
	return nil
}

func (s *MemoryStore) DeleteVerification(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifications, id)
	return nil
}

func (s *MemoryStore) PurgeExpiredVerifications(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, v := range s.verifications {
		if v.Expired(now) {
			delete(s.verifications, id)
			n++
		}
	}
	return n, nil
}

// ─── Orders ───────────────────────────────────────────────────────────────────

func (s *MemoryStore) CreateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentPending
	}
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	o.ID = s.nextID()
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	s.orders[o.ID] = copyOrder(*o)
	return nil
}

func (s *MemoryStore) FindOrder(_ context.Context, id uint) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID uint) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, f OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) TransitionPaymentStatus(_ context.Context, id uint, t Transition) (models.Order, error) {
	if !models.CanTransition(t.From, t.To) {
		return models.Order{}, ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	if o.PaymentStatus != t.From || o.PaymentAttempts != t.Attempt {
		return models.Order{}, ErrStaleStatus
	}

	o.PaymentStatus = t.To
	if t.TransactionID != "" {
		v := t.TransactionID
		o.TransactionID = &v
	}
	if t.PaymentMethod != "" {
		v := t.PaymentMethod
		o.PaymentMethod = &v
	}
	if t.NewAttempt {
		o.PaymentAttempts++
	}
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return copyOrder(o), nil
}

func (s *MemoryStore) UpdateFulfillmentStatus(_ context.Context, id uint, from, to string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	if o.Status != from {
		return models.Order{}, ErrStaleStatus
	}
	o.Status = to
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return copyOrder(o), nil
}

func (s *MemoryStore) StaleProcessing(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.PaymentStatus == models.PaymentProcessing && o.UpdatedAt.Before(cutoff) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── Menu ─────────────────────────────────────────────────────────────────────

func (s *MemoryStore) ListMenuItems(_ context.Context, onlyAvailable bool) ([]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MenuItem, 0, len(s.menu))
	for _, m := range s.menu {
		if onlyAvailable && !m.Available {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *MemoryStore) FindMenuItem(_ context.Context, id uint) (models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menu[id]
	if !ok {
		return models.MenuItem{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) FindMenuItems(_ context.Context, ids []uint) (map[uint]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]models.MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := s.menu[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateMenuItem(_ context.Context, m *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID()
	m.CreatedAt = s.now()
	m.UpdatedAt = m.CreatedAt
	s.menu[m.ID] = *m
	return nil
}

func (s *MemoryStore) UpdateMenuItem(_ context.Context, m *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.menu[m.ID]
	if !ok {
		return ErrNotFound
	}
	m.CreatedAt = cur.CreatedAt
	m.UpdatedAt = s.now()
	s.menu[m.ID] = *m
	return nil
}

func (s *MemoryStore) DeleteMenuItem(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.menu[id]; !ok {
		return ErrNotFound
	}
	delete(s.menu, id)
	return nil
}

func (s *MemoryStore) SetStock(_ context.Context, id uint, stock int) (models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menu[id]
	if !ok {
		return models.MenuItem{}, ErrNotFound
	}
	m.Stock = stock
	m.UpdatedAt = s.now()
	s.menu[id] = m
	return m, nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, id uint, qty int) (models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menu[id]
	if !ok {
		return models.MenuItem{}, ErrNotFound
	}
	m.Stock -= qty
	if m.Stock < 0 {
		m.Stock = 0
	}
	m.UpdatedAt = s.now()
	s.menu[id] = m
	return m, nil
}

// ─── Content ──────────────────────────────────────────────────────────────────

func (s *MemoryStore) ListEvents(_ context.Context, activeOnly bool) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(s.events))
	for _, e := range s.events {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *MemoryStore) FindEvent(_ context.Context, id uint) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return models.Event{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt
	s.events[e.ID] = *e
	return nil
}

func (s *MemoryStore) UpdateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = s.now()
	s.events[e.ID] = *e
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *MemoryStore) ListAds(_ context.Context, activeOnly bool) ([]models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Ad, 0, len(s.ads))
	for _, a := range s.ads {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) FindAd(_ context.Context, id uint) (models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.ads[id]
	if !ok {
		return models.Ad{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) CreateAd(_ context.Context, a *models.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextID()
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	s.ads[a.ID] = *a
	return nil
}

func (s *MemoryStore) UpdateAd(_ context.Context, a *models.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.ads[a.ID]
	if !ok {
		return ErrNotFound
	}
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = s.now()
	s.ads[a.ID] = *a
	return nil
}

func (s *MemoryStore) DeleteAd(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ads[id]; !ok {
		return ErrNotFound
	}
	delete(s.ads, id)
	return nil
}

func (s *MemoryStore) GetLocation(_ context.Context) (models.TruckLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return models.TruckLocation{}, ErrNotFound
	}
	return *s.location, nil
}

func (s *MemoryStore) SaveLocation(_ context.Context, l *models.TruckLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = 1
	l.UpdatedAt = s.now()
	cp := *l
	s.location = &cp
	return nil
}

func (s *MemoryStore) ListSettings(_ context.Context) ([]models.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Setting, 0, len(s.settings))
	for _, st := range s.settings {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) PutSetting(_ context.Context, key, value string) (models.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := models.Setting{Key: key, Value: value, UpdatedAt: s.now()}
	s.settings[key] = st
	return st, nil
}
