package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
)

type EventInput struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=5000"`
	Location    string     `json:"location" validate:"max=255"`
	StartsAt    time.Time  `json:"startsAt" validate:"required"`
	EndsAt      *time.Time `json:"endsAt"`
	Active      *bool      `json:"active"`
}

type AdInput struct {
	Title     string `json:"title" validate:"required,max=255"`
	Body      string `json:"body" validate:"max=2000"`
	ImageURL  string `json:"imageUrl" validate:"omitempty,url,max=500"`
	LinkURL   string `json:"linkUrl" validate:"omitempty,url,max=500"`
	Active    *bool  `json:"active"`
	SortOrder int    `json:"sortOrder"`
}

type LocationInput struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Address   string  `json:"address" validate:"max=255"`
}

// ContentService covers the back-office content around the menu: events,
// ads, the truck's location and storefront settings.
type ContentService struct {
	store repositories.ContentStore
	hub   Publisher
}

func NewContentService(store repositories.ContentStore, hub Publisher) *ContentService {
	if hub == nil {
		hub = nopPublisher{}
	}
	return &ContentService{store: store, hub: hub}
}

func classify(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.ErrNotFound
	}
	return apperr.Internal(err)
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (s *ContentService) Events(ctx context.Context, activeOnly bool) ([]models.Event, error) {
	out, err := s.store.ListEvents(ctx, activeOnly)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *ContentService) CreateEvent(ctx context.Context, in EventInput) (models.Event, error) {
	if err := checkWindow(in); err != nil {
		return models.Event{}, err
	}
	e := models.Event{Active: true}
	applyEvent(&e, in)
	if err := s.store.CreateEvent(ctx, &e); err != nil {
		return models.Event{}, apperr.Internal(err)
	}
	s.hub.Publish(MsgEventCreated, e)
	return e, nil
}

func (s *ContentService) UpdateEvent(ctx context.Context, id uint, in EventInput) (models.Event, error) {
	if err := checkWindow(in); err != nil {
		return models.Event{}, err
	}
	e, err := s.store.FindEvent(ctx, id)
	if err != nil {
		return models.Event{}, classify(err)
	}
	applyEvent(&e, in)
	if err := s.store.UpdateEvent(ctx, &e); err != nil {
		return models.Event{}, classify(err)
	}
	s.hub.Publish(MsgEventUpdated, e)
	return e, nil
}

func (s *ContentService) DeleteEvent(ctx context.Context, id uint) error {
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return classify(err)
	}
	s.hub.Publish(MsgEventDeleted, map[string]any{"id": id})
	return nil
}

func checkWindow(in EventInput) error {
	if in.EndsAt != nil && in.EndsAt.Before(in.StartsAt) {
		return apperr.New(apperr.KindValidation, apperr.CodeValidation, "endsAt must not be before startsAt")
	}
	return nil
}

func applyEvent(e *models.Event, in EventInput) {
	e.Title = strings.TrimSpace(in.Title)
	e.Description = in.Description
	e.Location = in.Location
	e.StartsAt = in.StartsAt
	e.EndsAt = in.EndsAt
	if in.Active != nil {
		e.Active = *in.Active
	}
}

// ─── Ads ──────────────────────────────────────────────────────────────────────

func (s *ContentService) Ads(ctx context.Context, activeOnly bool) ([]models.Ad, error) {
	out, err := s.store.ListAds(ctx, activeOnly)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *ContentService) CreateAd(ctx context.Context, in AdInput) (models.Ad, error) {
	a := models.Ad{Active: true}
	applyAd(&a, in)
	if err := s.store.CreateAd(ctx, &a); err != nil {
		return models.Ad{}, apperr.Internal(err)
	}
	s.hub.Publish(MsgAdCreated, a)
	return a, nil
}

func (s *ContentService) UpdateAd(ctx context.Context, id uint, in AdInput) (models.Ad, error) {
	a, err := s.store.FindAd(ctx, id)
	if err != nil {
		return models.Ad{}, classify(err)
	}
	applyAd(&a, in)
	if err := s.store.UpdateAd(ctx, &a); err != nil {
		return models.Ad{}, classify(err)
	}
	s.hub.Publish(MsgAdUpdated, a)
	return a, nil
}

func (s *ContentService) DeleteAd(ctx context.Context, id uint) error {
	if err := s.store.DeleteAd(ctx, id); err != nil {
		return classify(err)
	}
	s.hub.Publish(MsgAdDeleted, map[string]any{"id": id})
	return nil
}

func applyAd(a *models.Ad, in AdInput) {
	a.Title = strings.TrimSpace(in.Title)
	a.Body = in.Body
	a.ImageURL = in.ImageURL
	a.LinkURL = in.LinkURL
	a.SortOrder = in.SortOrder
	if in.Active != nil {
		a.Active = *in.Active
	}
}

// ─── Location ─────────────────────────────────────────────────────────────────

func (s *ContentService) Location(ctx context.Context) (models.TruckLocation, error) {
	l, err := s.store.GetLocation(ctx)
	if err != nil {
		return models.TruckLocation{}, classify(err)
	}
	return l, nil
}

func (s *ContentService) SaveLocation(ctx context.Context, in LocationInput) (models.TruckLocation, error) {
	l := models.TruckLocation{Latitude: in.Latitude, Longitude: in.Longitude, Address: strings.TrimSpace(in.Address)}
	if err := s.store.SaveLocation(ctx, &l); err != nil {
		return models.TruckLocation{}, apperr.Internal(err)
	}
	s.hub.Publish(MsgLocationUpdated, l)
	return l, nil
}

// ─── Settings ─────────────────────────────────────────────────────────────────

func (s *ContentService) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *ContentService) PutSetting(ctx context.Context, key, value string) (models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 100 {
		return models.Setting{}, apperr.New(apperr.KindValidation, apperr.CodeValidation, "invalid setting key")
	}
	st, err := s.store.PutSetting(ctx, key, value)
	if err != nil {
		return models.Setting{}, apperr.Internal(err)
	}
	s.hub.Publish(MsgSettingsUpdated, map[string]string{st.Key: st.Value})
	return st, nil
}
