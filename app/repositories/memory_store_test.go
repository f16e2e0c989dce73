package repositories_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
)

var _ repositories.Store = (*repositories.MemoryStore)(nil)
var _ repositories.Store = (*repositories.GormStore)(nil)

func newOrder(t *testing.T, s *repositories.MemoryStore) models.Order {
	t.Helper()
	o := models.Order{UserID: 7, Total: decimal.RequireFromString("12.50")}
	require.NoError(t, s.CreateOrder(context.Background(), &o))
	return o
}

func TestCreateOrderDefaults(t *testing.T) {
	s := repositories.NewMemoryStore()
	o := newOrder(t, s)

	assert.NotZero(t, o.ID)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.Zero(t, o.PaymentAttempts)
}

func TestTransitionPaymentStatusCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	o := newOrder(t, s)

	got, err := s.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
		From: models.PaymentPending, To: models.PaymentProcessing, Attempt: 0, NewAttempt: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentProcessing, got.PaymentStatus)
	assert.Equal(t, 1, got.PaymentAttempts)

	// Replaying the same swap finds a different prior state.
	_, err = s.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
		From: models.PaymentPending, To: models.PaymentProcessing, Attempt: 0, NewAttempt: true,
	})
	assert.ErrorIs(t, err, repositories.ErrStaleStatus)

	// Right status, wrong attempt.
	_, err = s.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
		From: models.PaymentProcessing, To: models.PaymentCompleted, Attempt: 0,
	})
	assert.ErrorIs(t, err, repositories.ErrStaleStatus)

	got, err = s.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
		From: models.PaymentProcessing, To: models.PaymentCompleted, Attempt: 1,
		TransactionID: "txn_1", PaymentMethod: models.MethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, "txn_1", *got.TransactionID)
	assert.Equal(t, models.MethodCard, *got.PaymentMethod)
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	o := newOrder(t, s)

	_, err := s.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
		From: models.PaymentPending, To: models.PaymentCompleted,
	})
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)

	_, err = s.TransitionPaymentStatus(ctx, 9999, repositories.Transition{
		From: models.PaymentPending, To: models.PaymentProcessing,
	})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	o := newOrder(t, s)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
				From: models.PaymentPending, To: models.PaymentProcessing, NewAttempt: true,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, err := s.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PaymentAttempts)
}

func TestFindOrderReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	o := models.Order{UserID: 1, Items: []models.OrderItem{{ID: 1, Name: "Taco", Quantity: 2}}}
	require.NoError(t, s.CreateOrder(ctx, &o))

	got, err := s.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	got.Items[0].Quantity = 99

	again, err := s.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)
}

func TestStaleProcessing(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := repositories.NewMemoryStore(repositories.WithClock(func() time.Time { return clock }))

	o := newOrder(t, s)
	_, err := s.TransitionPaymentStatus(ctx, o.ID, repositories.Transition{
		From: models.PaymentPending, To: models.PaymentProcessing, NewAttempt: true,
	})
	require.NoError(t, err)

	stale, err := s.StaleProcessing(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = s.StaleProcessing(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, o.ID, stale[0].ID)
}

func TestIncrementAttemptsStopsAtMax(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	v := models.EmailVerification{Email: "a@b.com", CodeHash: "x", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateVerification(ctx, &v))

	for want := 1; want <= 3; want++ {
		n, err := s.IncrementAttempts(ctx, v.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	_, err := s.IncrementAttempts(ctx, v.ID, 3)
	assert.ErrorIs(t, err, repositories.ErrAttemptsExhausted)
}

func TestMarkVerifiedOnce(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	v := models.EmailVerification{Email: "a@b.com", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateVerification(ctx, &v))

	require.NoError(t, s.MarkVerified(ctx, v.ID))
	assert.ErrorIs(t, s.MarkVerified(ctx, v.ID), repositories.ErrStaleStatus)
}

func TestPendingAndPurgeVerifications(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := repositories.NewMemoryStore()

	old := models.EmailVerification{Email: "a@b.com", ExpiresAt: now.Add(-time.Minute)}
	fresh := models.EmailVerification{Email: "a@b.com", ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, s.CreateVerification(ctx, &old))
	require.NoError(t, s.CreateVerification(ctx, &fresh))

	p, err := s.PendingVerification(ctx, "a@b.com", now)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, p.ID)

	n, err := s.PurgeExpiredVerifications(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.PendingVerification(ctx, "other@b.com", now)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDecrementStockFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	m := models.MenuItem{Name: "Burrito", Price: decimal.NewFromInt(9), Stock: 2, Available: true}
	require.NoError(t, s.CreateMenuItem(ctx, &m))

	got, err := s.DecrementStock(ctx, m.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "a@b.com"}))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Email: "a@b.com"}), repositories.ErrDuplicate)
}
