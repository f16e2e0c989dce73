package controllers

import (
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
)

// ContentController serves events, ads, the truck location and settings.
// Reads are public; writes sit behind the admin guard.
type ContentController struct {
	content *services.ContentService
}

func NewContentController(content *services.ContentService) *ContentController {
	return &ContentController{content: content}
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (cc *ContentController) Events(c *ctx.Context) {
	events, err := cc.content.Events(c.Context(), c.Query("all") != "true")
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(events)
}

func (cc *ContentController) StoreEvent(c *ctx.Context) {
	var in services.EventInput
	if !c.BindJSON(&in) {
		return
	}
	e, err := cc.content.CreateEvent(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(e)
}

func (cc *ContentController) UpdateEvent(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.EventInput
	if !c.BindJSON(&in) {
		return
	}
	e, err := cc.content.UpdateEvent(c.Context(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(e)
}

func (cc *ContentController) DestroyEvent(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := cc.content.DeleteEvent(c.Context(), id); err != nil {
		c.Fail(err)
		return
	}
	c.NoContent()
}

// ─── Ads ──────────────────────────────────────────────────────────────────────

func (cc *ContentController) Ads(c *ctx.Context) {
	ads, err := cc.content.Ads(c.Context(), c.Query("all") != "true")
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(ads)
}

func (cc *ContentController) StoreAd(c *ctx.Context) {
	var in services.AdInput
	if !c.BindJSON(&in) {
		return
	}
	a, err := cc.content.CreateAd(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(a)
}

func (cc *ContentController) UpdateAd(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.AdInput
	if !c.BindJSON(&in) {
		return
	}
	a, err := cc.content.UpdateAd(c.Context(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(a)
}

func (cc *ContentController) DestroyAd(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := cc.content.DeleteAd(c.Context(), id); err != nil {
		c.Fail(err)
		return
	}
	c.NoContent()
}

// ─── Location & settings ──────────────────────────────────────────────────────

func (cc *ContentController) Location(c *ctx.Context) {
	l, err := cc.content.Location(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(l)
}

func (cc *ContentController) UpdateLocation(c *ctx.Context) {
	var in services.LocationInput
	if !c.BindJSON(&in) {
		return
	}
	l, err := cc.content.SaveLocation(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(l)
}

func (cc *ContentController) Settings(c *ctx.Context) {
	s, err := cc.content.Settings(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(s)
}

type settingInput struct {
	Value string `json:"value" validate:"max=10000"`
}

func (cc *ContentController) PutSetting(c *ctx.Context) {
	var in settingInput
	if !c.BindJSON(&in) {
		return
	}
	s, err := cc.content.PutSetting(c.Context(), c.Param("key"), in.Value)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(s)
}
