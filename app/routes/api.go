package routes

import (
	"net/http"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/controllers"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/middleware"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/router"
)

// API holds everything the route table needs.
type API struct {
	Auth     *controllers.AuthController
	Orders   *controllers.OrderController
	Payments *controllers.PaymentController
	Menu     *controllers.MenuController
	Content  *controllers.ContentController
	Admin    *controllers.AdminController
	Realtime *controllers.RealtimeController
	Health   *controllers.HealthController

	// Authenticate resolves the bearer token into a Principal.
	Authenticate router.Middleware
	// RequireAdmin runs the full admin check on each request.
	RequireAdmin router.Middleware
	// Limiter builds a named per-IP limiter.
	Limiter func(name string, max int, window time.Duration) middleware.Limiter

	GraphQL http.HandlerFunc
	Metrics http.HandlerFunc
}

func (a API) limit(name string, max int, window time.Duration) router.Middleware {
	return middleware.RateLimit(a.Limiter(name, max, window))
}

func RegisterAPI(r *router.Router, a API) {
	r.Get("/health", "health", ctx.Wrap(a.Health.Show))
	r.Get("/metrics", "metrics", a.Metrics)

	api := r.Group("/api")

	// ─── Auth ─────────────────────────────────────────────────────────────────
	authGroup := api.Group("/auth")
	authGroup.Post("/request-verification", "auth.request", ctx.Wrap(a.Auth.RequestVerification),
		a.limit("request-verification", 5, 15*time.Minute))
	authGroup.Post("/verify-email", "auth.verify_email", ctx.Wrap(a.Auth.VerifyEmail),
		a.limit("verify-email", 3, 10*time.Minute))
	authGroup.Get("/verify", "auth.verify", ctx.Wrap(a.Auth.Verify))
	authGroup.Patch("/me", "auth.me", ctx.Wrap(a.Auth.UpdateMe), a.Authenticate)

	// ─── Storefront (public) ──────────────────────────────────────────────────
	api.Get("/menu", "menu.index", ctx.Wrap(a.Menu.Index))
	api.Get("/menu/{id}", "menu.show", ctx.Wrap(a.Menu.Show))
	api.Get("/events", "events.index", ctx.Wrap(a.Content.Events))
	api.Get("/ads", "ads.index", ctx.Wrap(a.Content.Ads))
	api.Get("/location", "location.show", ctx.Wrap(a.Content.Location))
	api.Get("/settings", "settings.index", ctx.Wrap(a.Content.Settings))
	api.Post("/graphql", "graphql", a.GraphQL)

	// ─── Realtime ─────────────────────────────────────────────────────────────
	r.Get("/ws", "realtime.ws", ctx.Wrap(a.Realtime.Socket))
	api.Get("/events/stream", "realtime.sse", ctx.Wrap(a.Realtime.Stream))

	// ─── Customer ─────────────────────────────────────────────────────────────
	customer := api.Group("", a.Authenticate)
	customer.Post("/orders", "orders.store", ctx.Wrap(a.Orders.Store))
	customer.Get("/orders", "orders.index", ctx.Wrap(a.Orders.Index))
	customer.Get("/orders/{id}", "orders.show", ctx.Wrap(a.Orders.Show))
	// Authenticate runs ahead of body validation. The service still checks
	// the token against the store before charging.
	api.Post("/payments", "payments.store", ctx.Wrap(a.Payments.Pay),
		a.Authenticate, a.limit("payments", 20, time.Minute))

	// ─── Back office ──────────────────────────────────────────────────────────
	admin := api.Group("/admin", a.RequireAdmin)

	admin.Get("/users", "admin.users.index", ctx.Wrap(a.Admin.Users))
	admin.Patch("/users/{id}", "admin.users.update", ctx.Wrap(a.Admin.UpdateUser))

	admin.Get("/orders", "admin.orders.index", ctx.Wrap(a.Admin.Orders))
	admin.Get("/orders/export", "admin.orders.export", ctx.Wrap(a.Admin.ExportOrders))
	admin.Get("/orders/{id}", "admin.orders.show", ctx.Wrap(a.Admin.ShowOrder))
	admin.Patch("/orders/{id}/status", "admin.orders.status", ctx.Wrap(a.Admin.AdvanceOrder))

	admin.Get("/menu", "admin.menu.index", ctx.Wrap(a.Menu.AdminIndex))
	admin.Post("/menu", "admin.menu.store", ctx.Wrap(a.Menu.Store))
	admin.Put("/menu/{id}", "admin.menu.update", ctx.Wrap(a.Menu.Update))
	admin.Delete("/menu/{id}", "admin.menu.destroy", ctx.Wrap(a.Menu.Destroy))
	admin.Patch("/menu/{id}/stock", "admin.menu.stock", ctx.Wrap(a.Menu.UpdateStock))
	admin.Post("/menu/{id}/image", "admin.menu.image", ctx.Wrap(a.Menu.UploadImage))

	admin.Post("/events", "admin.events.store", ctx.Wrap(a.Content.StoreEvent))
	admin.Put("/events/{id}", "admin.events.update", ctx.Wrap(a.Content.UpdateEvent))
	admin.Delete("/events/{id}", "admin.events.destroy", ctx.Wrap(a.Content.DestroyEvent))

	admin.Post("/ads", "admin.ads.store", ctx.Wrap(a.Content.StoreAd))
	admin.Put("/ads/{id}", "admin.ads.update", ctx.Wrap(a.Content.UpdateAd))
	admin.Delete("/ads/{id}", "admin.ads.destroy", ctx.Wrap(a.Content.DestroyAd))

	admin.Put("/location", "admin.location.update", ctx.Wrap(a.Content.UpdateLocation))
	admin.Put("/settings/{key}", "admin.settings.update", ctx.Wrap(a.Content.PutSetting))
}
