// Package database opens the relational store behind the order ledger.
// DB_DRIVER picks the dialect; "memory" is handled by the kernel and never
// reaches this package.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/metrics"
)

var DB *gorm.DB

// slowQuery is the threshold above which a statement is logged at WARN.
const slowQuery = 200 * time.Millisecond

// Connect opens the configured database into DB.
func Connect() error {
	db, err := Open(config.DatabaseDriver(), config.DatabaseDSN())
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects, sizes the pool and pings.
func Open(driver, dsn string) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         queryLogger{},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	if err := instrument(db); err != nil {
		return nil, fmt.Errorf("database: callbacks: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: get sql.DB: %w", err)
	}
	if driver == "sqlite" {
		// one writer keeps conditional updates serialised
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return db, nil
}

// Close releases DB.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}

// Ping reports whether DB is reachable.
func Ping(ctx context.Context) error {
	if DB == nil {
		return errors.New("database: not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlserver":
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (supported: sqlite, postgres, mysql, sqlserver)", driver)
	}
}

// ─── Instrumentation ──────────────────────────────────────────────────────────

const startKey = "foodtruck:query_start"

func instrument(db *gorm.DB) error {
	cb := db.Callback()
	regs := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, r := range regs {
		op := r.op
		if err := r.before("metrics:before_"+op, func(db *gorm.DB) {
			db.InstanceSet(startKey, time.Now())
		}); err != nil {
			return err
		}
		if err := r.after("metrics:after_"+op, func(db *gorm.DB) {
			if v, ok := db.InstanceGet(startKey); ok {
				metrics.ObserveDBQuery(op, v.(time.Time))
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// queryLogger routes gorm's own logging through pkg/logger. Only errors
// and slow statements are reported.
type queryLogger struct{}

func (l queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (queryLogger) Info(ctx context.Context, msg string, args ...any) {
	logger.WithCtx(ctx).Debug(fmt.Sprintf(msg, args...))
}

func (queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	logger.WithCtx(ctx).Warn(fmt.Sprintf(msg, args...))
}

func (queryLogger) Error(ctx context.Context, msg string, args ...any) {
	logger.WithCtx(ctx).Error(fmt.Sprintf(msg, args...))
}

func (queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		logger.WithCtx(ctx).Error("database: query failed", "sql", sql, "rows", rows, "elapsed", elapsed.String(), "error", err)
	case elapsed > slowQuery:
		sql, rows := fc()
		logger.WithCtx(ctx).Warn("database: slow query", "sql", sql, "rows", rows, "elapsed", elapsed.String())
	}
}
