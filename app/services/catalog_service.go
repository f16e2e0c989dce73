package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/cache"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/storage"
)

const (
	menuCacheKey = "menu:available"
	menuCacheTTL = 5 * time.Minute
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// MenuItemInput is the admin payload for creating or replacing a menu item.
type MenuItemInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"max=100"`
	Price       decimal.Decimal `json:"price"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	Stock       int             `json:"stock" validate:"min=0"`
	Available   *bool           `json:"available"`
}

func (in MenuItemInput) check() error {
	if !in.Price.IsPositive() {
		return apperr.New(apperr.KindValidation, apperr.CodeValidation, "price must be positive")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apperr.New(apperr.KindValidation, apperr.CodeValidation, "taxRate must be a fraction between 0 and 1")
	}
	return nil
}

// CatalogService manages the menu. Public reads go through the Redis cache;
// every write invalidates it and is pushed to realtime subscribers.
type CatalogService struct {
	menu repositories.MenuStore
	hub  Publisher
	disk storage.Disk
}

func NewCatalogService(menu repositories.MenuStore, hub Publisher, disk storage.Disk) *CatalogService {
	if hub == nil {
		hub = nopPublisher{}
	}
	return &CatalogService{menu: menu, hub: hub, disk: disk}
}

// Menu returns the items customers can order.
func (s *CatalogService) Menu(ctx context.Context) ([]models.MenuItem, error) {
	items, err := cache.Remember(ctx, menuCacheKey, menuCacheTTL, func(ctx context.Context) ([]models.MenuItem, error) {
		return s.menu.ListMenuItems(ctx, true)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}

// AllMenuItems includes unavailable items, uncached.
func (s *CatalogService) AllMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	items, err := s.menu.ListMenuItems(ctx, false)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}

func (s *CatalogService) MenuItem(ctx context.Context, id uint) (models.MenuItem, error) {
	m, err := s.menu.FindMenuItem(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.MenuItem{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.MenuItem{}, apperr.Internal(err)
	}
	return m, nil
}

func (s *CatalogService) CreateMenuItem(ctx context.Context, in MenuItemInput) (models.MenuItem, error) {
	if err := in.check(); err != nil {
		return models.MenuItem{}, err
	}
	m := models.MenuItem{Available: true}
	apply(&m, in)
	if err := s.menu.CreateMenuItem(ctx, &m); err != nil {
		return models.MenuItem{}, apperr.Internal(err)
	}
	s.changed(ctx, MsgItemCreated, m)
	return m, nil
}

func (s *CatalogService) UpdateMenuItem(ctx context.Context, id uint, in MenuItemInput) (models.MenuItem, error) {
	if err := in.check(); err != nil {
		return models.MenuItem{}, err
	}
	m, err := s.MenuItem(ctx, id)
	if err != nil {
		return models.MenuItem{}, err
	}
	apply(&m, in)
	if err := s.menu.UpdateMenuItem(ctx, &m); err != nil {
		return models.MenuItem{}, apperr.Internal(err)
	}
	s.changed(ctx, MsgItemUpdated, m)
	return m, nil
}

func (s *CatalogService) DeleteMenuItem(ctx context.Context, id uint) error {
	err := s.menu.DeleteMenuItem(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return apperr.Internal(err)
	}
	s.changed(ctx, MsgItemDeleted, map[string]any{"id": id})
	return nil
}

// SetStock overwrites an item's stock count.
func (s *CatalogService) SetStock(ctx context.Context, id uint, stock int) (models.MenuItem, error) {
	if stock < 0 {
		return models.MenuItem{}, apperr.New(apperr.KindValidation, apperr.CodeValidation, "stock cannot be negative")
	}
	m, err := s.menu.SetStock(ctx, id, stock)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.MenuItem{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.MenuItem{}, apperr.Internal(err)
	}
	s.changed(ctx, MsgStockUpdated, stockPayload(m))
	return m, nil
}

// ApplySale takes sold quantities out of stock.
func (s *CatalogService) ApplySale(ctx context.Context, items []models.OrderItem) error {
	var errs []error
	for _, it := range items {
		m, err := s.menu.DecrementStock(ctx, it.ID, it.Quantity)
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("item %d: %w", it.ID, err))
			continue
		}
		s.hub.Publish(MsgStockUpdated, stockPayload(m))
	}
	s.invalidate(ctx)
	return errors.Join(errs...)
}

// UploadImage stores a menu photo and points the item at it.
func (s *CatalogService) UploadImage(ctx context.Context, id uint, contentType string, r io.Reader) (models.MenuItem, error) {
	if s.disk == nil {
		return models.MenuItem{}, apperr.New(apperr.KindServiceUnavailable, apperr.CodeInternal, "file storage is not configured")
	}
	ext, ok := imageTypes[strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))]
	if !ok {
		return models.MenuItem{}, apperr.New(apperr.KindValidation, apperr.CodeValidation, "unsupported image type")
	}

	m, err := s.MenuItem(ctx, id)
	if err != nil {
		return models.MenuItem{}, err
	}

	key := path.Join("menu", fmt.Sprint(id), uuid.NewString()+ext)
	if err := s.disk.Put(ctx, key, r, contentType); err != nil {
		return models.MenuItem{}, apperr.Internal(err)
	}

	old := m.ImageURL
	m.ImageURL = s.disk.URL(key)
	if err := s.menu.UpdateMenuItem(ctx, &m); err != nil {
		_ = s.disk.Delete(context.WithoutCancel(ctx), key)
		return models.MenuItem{}, apperr.Internal(err)
	}
	if old != "" {
		logger.WithCtx(ctx).Debug("catalog: replaced menu image", "item_id", id, "previous", old)
	}
	s.changed(ctx, MsgItemUpdated, m)
	return m, nil
}

func (s *CatalogService) changed(ctx context.Context, msgType string, data any) {
	s.invalidate(ctx)
	s.hub.Publish(msgType, data)
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := cache.Del(ctx, menuCacheKey); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache invalidation failed", "error", err)
	}
}

func apply(m *models.MenuItem, in MenuItemInput) {
	m.Name = strings.TrimSpace(in.Name)
	m.Description = in.Description
	m.Category = in.Category
	m.Price = in.Price.Round(2)
	m.TaxRate = in.TaxRate
	m.Stock = in.Stock
	if in.Available != nil {
		m.Available = *in.Available
	}
}

func stockPayload(m models.MenuItem) map[string]any {
	return map[string]any{"id": m.ID, "stock": m.Stock, "available": m.Available}
}
