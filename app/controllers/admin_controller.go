package controllers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tealeg/xlsx"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

const (
	defaultOrderPage = 100
	maxOrderPage     = 500
)

// AdminController is the back office for users and orders. Every route is
// mounted behind rbac.RequireAdmin.
type AdminController struct {
	users  *services.UserService
	orders *services.OrderService
}

func NewAdminController(users *services.UserService, orders *services.OrderService) *AdminController {
	return &AdminController{users: users, orders: orders}
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (a *AdminController) Users(c *ctx.Context) {
	users, err := a.users.List(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(users)
}

// UpdateUser changes a user's email or role. A new email invalidates every
// token issued for the old one.
func (a *AdminController) UpdateUser(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.UserUpdate
	if !c.BindJSON(&in) {
		return
	}
	u, err := a.users.Update(c.Context(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(u)
}

// ─── Orders ───────────────────────────────────────────────────────────────────

func (a *AdminController) orderFilter(c *ctx.Context) (repositories.OrderFilter, bool) {
	f := repositories.OrderFilter{Limit: defaultOrderPage}
	switch s := models.PaymentStatus(c.Query("paymentStatus")); s {
	case "":
	case models.PaymentPending, models.PaymentProcessing, models.PaymentCompleted, models.PaymentFailed:
		f.PaymentStatus = s
	default:
		c.Fail(apperr.New(apperr.KindValidation, apperr.CodeValidation, "unknown paymentStatus"))
		return f, false
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.Fail(apperr.New(apperr.KindValidation, apperr.CodeValidation, "limit must be a positive integer"))
			return f, false
		}
		f.Limit = min(n, maxOrderPage)
	}
	return f, true
}

func (a *AdminController) Orders(c *ctx.Context) {
	f, ok := a.orderFilter(c)
	if !ok {
		return
	}
	orders, err := a.orders.List(c.Context(), f)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(orders)
}

func (a *AdminController) ShowOrder(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	o, err := a.orders.GetOrder(c.Context(), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(o)
}

type fulfillmentInput struct {
	Status string `json:"status" validate:"required,oneof=preparing ready picked_up cancelled"`
}

// AdvanceOrder moves the kitchen status along pending → preparing → ready
// → picked_up, or to cancelled before pickup.
func (a *AdminController) AdvanceOrder(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in fulfillmentInput
	if !c.BindJSON(&in) {
		return
	}
	o, err := a.orders.AdvanceFulfillment(c.Context(), id, in.Status)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(o)
}

var exportHeader = []string{
	"Order", "User", "Created", "Items", "Subtotal", "Tax", "Total",
	"Payment", "Attempts", "Method", "Transaction", "Fulfillment", "Delivery",
}

// ExportOrders downloads the filtered order list as a spreadsheet.
func (a *AdminController) ExportOrders(c *ctx.Context) {
	f, ok := a.orderFilter(c)
	if !ok {
		return
	}
	if c.Query("limit") == "" {
		f.Limit = maxOrderPage
	}
	orders, err := a.orders.List(c.Context(), f)
	if err != nil {
		c.Fail(err)
		return
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		c.Fail(apperr.Internal(err))
		return
	}
	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetValue(h)
	}
	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.UserID)
		row.AddCell().SetValue(o.CreatedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetValue(itemCount(o))
		row.AddCell().SetValue(o.Subtotal.StringFixed(2))
		row.AddCell().SetValue(o.Tax.StringFixed(2))
		row.AddCell().SetValue(o.Total.StringFixed(2))
		row.AddCell().SetValue(string(o.PaymentStatus))
		row.AddCell().SetValue(o.PaymentAttempts)
		row.AddCell().SetValue(deref(o.PaymentMethod))
		row.AddCell().SetValue(deref(o.TransactionID))
		row.AddCell().SetValue(o.Status)
		row.AddCell().SetValue(o.DeliveryMethod)
	}

	c.Attachment(fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102-150405")),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(c.W); err != nil {
		logger.WithCtx(c.Context()).Error("admin: order export failed", "error", err)
	}
}

func itemCount(o models.Order) int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
