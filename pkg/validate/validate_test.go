package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/validate"
)

type verifyInput struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required,len=6,numeric"`
}

type cartLine struct {
	ID       uint `json:"id"       validate:"required"`
	Quantity int  `json:"quantity" validate:"required,gte=1,lte=50"`
}

type cartInput struct {
	Items  []cartLine `json:"items"  validate:"required,min=1,dive"`
	Method string     `json:"method" validate:"omitempty,oneof=card apple_pay google_pay"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(verifyInput{Email: "a@b.com", Code: "482913"})
	assert.False(t, validate.HasErrors(errs), "%v", errs)
}

func TestRequiredUsesJSONNames(t *testing.T) {
	errs := validate.Struct(verifyInput{})
	assert.Equal(t, "The email field is required.", errs["email"])
	assert.Equal(t, "The code field is required.", errs["code"])
}

func TestCodeShape(t *testing.T) {
	errs := validate.Struct(verifyInput{Email: "a@b.com", Code: "12345"})
	assert.Contains(t, errs["code"], "exactly 6")

	errs = validate.Struct(verifyInput{Email: "a@b.com", Code: "12a456"})
	assert.Contains(t, errs, "code")
}

func TestEmailRule(t *testing.T) {
	errs := validate.Struct(verifyInput{Email: "not-an-email", Code: "123456"})
	assert.Equal(t, "The email must be a valid email address.", errs["email"])
}

func TestDiveReportsNestedPath(t *testing.T) {
	errs := validate.Struct(cartInput{Items: []cartLine{{ID: 1, Quantity: 0}, {ID: 2, Quantity: 99}}})
	assert.Contains(t, errs, "items[0].quantity")
	assert.Contains(t, errs["items[1].quantity"], "less than or equal to 50")
}

func TestEmptyCart(t *testing.T) {
	errs := validate.Struct(cartInput{})
	assert.Contains(t, errs, "items")
}

func TestOneOf(t *testing.T) {
	errs := validate.Struct(cartInput{Items: []cartLine{{ID: 1, Quantity: 1}}, Method: "bitcoin"})
	assert.Equal(t, "The selected method is invalid.", errs["method"])

	errs = validate.Struct(cartInput{Items: []cartLine{{ID: 1, Quantity: 1}}, Method: "apple_pay"})
	assert.False(t, validate.HasErrors(errs), "%v", errs)
}

func TestNonStructIsIgnored(t *testing.T) {
	assert.Empty(t, validate.Struct(42))
}
