package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/controllers"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/services"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/database/seeders"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/cache"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/database"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/mail"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/notification"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/queue"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/square"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/storage"
)

// Runtime is a booted App plus the connections it owns.
type Runtime struct {
	*App
	closers []func()
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// Boot validates config, connects every configured backend and assembles
// the App. Optional backends (Redis, Mongo logging, Square) only log when
// they are unavailable.
func Boot(ctx context.Context) (*Runtime, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}

	if uri := config.LogMongoURI(); uri != "" {
		sink, err := logger.NewMongoSink(uri, config.LogMongoDB(), config.LogMongoCollection())
		if err != nil {
			logger.Warn("boot: mongo log sink disabled", "error", err)
		} else {
			logger.Tee(sink)
			rt.closers = append(rt.closers, sink.Close)
		}
	}

	checks := map[string]controllers.Check{}

	var store repositories.Store
	if config.DatabaseDriver() == "memory" {
		mem := repositories.NewMemoryStore()
		ran, err := seeders.RunAll(ctx, mem)
		if err != nil {
			return fail(err)
		}
		logger.Warn("boot: using the in-memory store; data is lost on exit", "seeders", ran)
		store = mem
	} else {
		if err := database.Connect(); err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, func() { _ = database.Close() })
		store = repositories.NewGormStore(database.DB)
		checks["database"] = database.Ping
		if _, err := seeders.EnsureAdmins(ctx, store, config.AdminEmails()); err != nil {
			logger.Warn("boot: could not sync admin accounts", "error", err)
		}
	}

	if err := cache.Connect(ctx); err != nil {
		logger.Warn("boot: redis unavailable; cache and shared rate limits disabled", "error", err)
	} else {
		rt.closers = append(rt.closers, func() { _ = cache.Close() })
		rdb := cache.RDB
		checks["cache"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	q := queue.NewManager(queue.NewMemoryDriver())
	if cache.RDB != nil {
		q.SetDriver(queue.NewRedisDriver(ctx, cache.RDB))
	}
	if database.DB != nil {
		if err := q.UseDB(database.DB); err != nil {
			return fail(err)
		}
	}

	if err := storage.Connect(ctx); err != nil {
		return fail(err)
	}
	disk := storage.Default()

	mailer, err := mail.FromConfig(disk)
	if err != nil {
		if config.IsProduction() {
			return fail(err)
		}
		logger.Warn("boot: mail not configured; writing messages to the outbox disk", "error", err)
		mailer = mail.New(config.Get("MAIL_FROM", "orders@foodtruck.local"), config.Get("MAIL_FROM_NAME", "Food Truck"),
			mail.NewOutboxTransport(disk))
	}

	tokens, err := auth.FromConfig()
	if err != nil {
		return fail(err)
	}

	d := Deps{
		Store:       store,
		Tokens:      tokens,
		Mailer:      mailer,
		Disk:        disk,
		Notifier:    notification.New(mailer, config.SlackWebhookURL()),
		Redis:       cache.RDB,
		Queue:       q,
		AdminEmails: config.AdminEmails(),
		CORSOrigins: config.CORSOrigins(),
		Payment: services.PaymentOptions{
			Currency:   config.Currency(),
			Timeout:    config.PaymentTimeout(),
			StaleAfter: config.PaymentStaleAfter(),
		},
		EventWorkers: 4,
		Checks:       checks,
	}

	// Assigned only on success so a nil *square.Client never becomes a
	// non-nil Processor.
	sq, err := square.FromConfig()
	switch {
	case err == nil:
		d.Processor = sq
	case errors.Is(err, square.ErrNotConfigured):
		logger.Warn("boot: square credentials missing; payments will answer 503")
	default:
		return fail(err)
	}

	app, err := New(d)
	if err != nil {
		return fail(err)
	}
	rt.App = app
	return rt, nil
}
