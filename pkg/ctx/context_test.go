package ctx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	appctx "github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

func init() { logger.Discard() }

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
	Details map[string]any    `json:"details"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func serve(h appctx.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	appctx.Wrap(h)(rec, req)
	return rec
}

func TestSuccessEnvelope(t *testing.T) {
	rec := serve(func(c *appctx.Context) {
		c.Success(map[string]any{"id": 1})
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.JSONEq(t, `{"id":1}`, string(env.Data))
}

func TestBindJSON(t *testing.T) {
	type input struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required,len=6,numeric"`
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","code":"123456"}`))
		req.Header.Set("Content-Type", "application/json")
		var got input
		rec := serve(func(c *appctx.Context) {
			if c.BindJSON(&got) {
				c.Success(nil)
			}
		}, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "123456", got.Code)
	})

	t.Run("rule failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","code":"12"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(func(c *appctx.Context) {
			var in input
			assert.False(t, c.BindJSON(&in))
		}, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, apperr.CodeValidation, env.Code)
		assert.Contains(t, env.Errors, "email")
		assert.Contains(t, env.Errors, "code")
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(func(c *appctx.Context) {
			var in input
			assert.False(t, c.BindJSON(&in))
		}, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFailHidesInternalCause(t *testing.T) {
	rec := serve(func(c *appctx.Context) {
		c.Fail(apperr.Internal(assert.AnError))
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	assert.Equal(t, apperr.CodeInternal, decode(t, rec).Code)
}

func TestFailSetsRetryAfter(t *testing.T) {
	rec := serve(func(c *appctx.Context) {
		c.Fail(apperr.New(apperr.KindRateLimited, apperr.CodeVerificationPending, "pending").With("retryAfter", 90))
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.EqualValues(t, 90, decode(t, rec).Details["retryAfter"])
}

func TestParamUintTreatsGarbageAsMissing(t *testing.T) {
	r := chi.NewRouter()
	var got uint
	r.Get("/orders/{id}", appctx.Wrap(func(c *appctx.Context) {
		id, ok := c.ParamUint("id")
		if !ok {
			return
		}
		got = id
		c.Success(nil)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/17", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 17, got)

	for _, bad := range []string{"abc", "0", "-1"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+bad, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, bad)
	}
}

func TestStoreValues(t *testing.T) {
	serve(func(c *appctx.Context) {
		c.Set("user_id", uint(42))
		assert.EqualValues(t, 42, c.GetUint("user_id"))
		assert.Zero(t, c.GetUint("missing"))
		c.Success(nil)
	}, httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestClientIPHonoursProxyOnlyWhenTrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")

	var ip string
	serve(func(c *appctx.Context) { ip = c.ClientIP() }, req)
	assert.Equal(t, "10.0.0.9", ip)

	config.Set("TRUST_PROXY", "true")
	t.Cleanup(func() { config.Set("TRUST_PROXY", "false") })
	serve(func(c *appctx.Context) { ip = c.ClientIP() }, req)
	assert.Equal(t, "1.2.3.4", ip)
}

func TestAttachmentStripsQuotes(t *testing.T) {
	rec := serve(func(c *appctx.Context) {
		c.Attachment(`orders"2026.xlsx`, "application/octet-stream")
		c.Status(http.StatusOK)
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, `attachment; filename="orders2026.xlsx"`, rec.Header().Get("Content-Disposition"))
}
