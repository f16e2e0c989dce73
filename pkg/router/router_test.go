package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/router"
)

func TestGroupsComposePrefixAndMiddleware(t *testing.T) {
	r := router.New()
	var order []string
	tag := func(name string) router.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}

	admin := r.Group("/admin", tag("guard"))
	admin.Group("/menu").Patch("/{id}/stock", "admin.menu.stock", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, tag("route"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/menu/3/stock", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"guard", "route"}, order)
}

func TestURLAndRoutes(t *testing.T) {
	r := router.New()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.Get("/orders/{id}", "orders.show", noop)
	r.Group("/admin").Delete("/menu/{id}", "admin.menu.delete", noop)

	u, err := r.URL("orders.show", map[string]string{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/orders/42", u)

	_, err = r.URL("orders.show", nil)
	assert.Error(t, err)

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, router.Route{Name: "admin.menu.delete", Method: http.MethodDelete, Path: "/admin/menu/{id}"}, routes[0])
}
