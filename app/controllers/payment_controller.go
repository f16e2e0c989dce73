package controllers

import (
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
)

type PaymentController struct {
	payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

type paymentMethodInput struct {
	Method string `json:"method" validate:"omitempty,oneof=card apple_pay google_pay"`
	Nonce  string `json:"nonce" validate:"omitempty,max=512"`
}

// payInput accepts {paymentMethod:{method,nonce}} or the older {sourceId},
// which is treated as a card nonce. Any amount the client sends is ignored.
type payInput struct {
	OrderID           uint                `json:"orderId" validate:"required"`
	PaymentMethod     *paymentMethodInput `json:"paymentMethod"`
	SourceID          string              `json:"sourceId" validate:"omitempty,max=512"`
	VerificationToken string              `json:"verificationToken" validate:"omitempty,max=1024"`
	Currency          string              `json:"currency" validate:"omitempty,len=3"`
}

func (in payInput) request() services.PayRequest {
	req := services.PayRequest{
		OrderID:           in.OrderID,
		VerificationToken: in.VerificationToken,
		Currency:          in.Currency,
		Nonce:             in.SourceID,
	}
	if in.PaymentMethod != nil {
		req.Method = in.PaymentMethod.Method
		req.Nonce = in.PaymentMethod.Nonce
	}
	return req
}

// Pay charges the order's stored total. The token is re-checked by the
// payment service itself, not only by middleware.
func (p *PaymentController) Pay(c *ctx.Context) {
	var in payInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := p.payments.Pay(c.Context(), c.BearerToken(), in.request())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]any{
		"success": true,
		"payment": res.Payment,
		"order":   res.Order,
	})
}
