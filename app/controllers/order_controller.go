package controllers

import (
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Store prices the cart from the catalog and records a pending order.
func (o *OrderController) Store(c *ctx.Context) {
	var in services.CreateOrderInput
	if !c.BindJSON(&in) {
		return
	}
	order, err := o.orders.CreateOrder(c.Context(), c.Principal().UserID, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(order)
}

// Index lists the caller's orders, newest first.
func (o *OrderController) Index(c *ctx.Context) {
	orders, err := o.orders.ListForUser(c.Context(), c.Principal().UserID)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(orders)
}

// Show returns one of the caller's orders. Someone else's order is a 404.
func (o *OrderController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	order, err := o.orders.GetOwnedOrder(c.Context(), c.Principal().UserID, id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(order)
}
