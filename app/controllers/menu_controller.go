package controllers

import (
	"net/http"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
)

// maxImageBytes caps menu photo uploads.
const maxImageBytes = 5 << 20

type MenuController struct {
	catalog *services.CatalogService
}

func NewMenuController(catalog *services.CatalogService) *MenuController {
	return &MenuController{catalog: catalog}
}

// Index is the public menu.
func (m *MenuController) Index(c *ctx.Context) {
	items, err := m.catalog.Menu(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(items)
}

// Show returns an orderable item; unavailable items are hidden.
func (m *MenuController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	item, err := m.catalog.MenuItem(c.Context(), id)
	if err == nil && !item.Available {
		err = apperr.ErrNotFound
	}
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(item)
}

// AdminIndex lists every item, including unavailable ones.
func (m *MenuController) AdminIndex(c *ctx.Context) {
	items, err := m.catalog.AllMenuItems(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(items)
}

func (m *MenuController) Store(c *ctx.Context) {
	var in services.MenuItemInput
	if !c.BindJSON(&in) {
		return
	}
	item, err := m.catalog.CreateMenuItem(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(item)
}

func (m *MenuController) Update(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.MenuItemInput
	if !c.BindJSON(&in) {
		return
	}
	item, err := m.catalog.UpdateMenuItem(c.Context(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(item)
}

func (m *MenuController) Destroy(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := m.catalog.DeleteMenuItem(c.Context(), id); err != nil {
		c.Fail(err)
		return
	}
	c.NoContent()
}

type stockInput struct {
	Stock *int `json:"stock" validate:"required,min=0"`
}

func (m *MenuController) UpdateStock(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in stockInput
	if !c.BindJSON(&in) {
		return
	}
	item, err := m.catalog.SetStock(c.Context(), id, *in.Stock)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(item)
}

// UploadImage takes a multipart "image" field.
func (m *MenuController) UploadImage(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, maxImageBytes)
	file, header, err := c.R.FormFile("image")
	if err != nil {
		c.Fail(apperr.New(apperr.KindValidation, apperr.CodeValidation, "an image file is required"))
		return
	}
	defer file.Close()

	item, err := m.catalog.UploadImage(c.Context(), id, header.Header.Get("Content-Type"), file)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(item)
}
