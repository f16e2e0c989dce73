// Package migration runs versioned schema changes and records them in the
// schema_migrations table. Migrations register themselves from init():
//
//	func init() {
//	    migration.Register("20260101000000_create_users", &CreateUsers{})
//	}
//
// Each Run applies every pending migration as one batch; Rollback undoes
// the latest batch in reverse order.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

// Migration is one reversible schema change.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "schema_migrations" }

type entry struct {
	name string
	m    Migration
}

var (
	mu       sync.Mutex
	registry []entry
)

// Register adds m under name. Names sort chronologically.
func Register(name string, m Migration) {
	mu.Lock()
	defer mu.Unlock()
	registry = append(registry, entry{name: name, m: m})
}

func registered() []entry {
	mu.Lock()
	defer mu.Unlock()
	out := append([]entry(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ErrUnknownMigration means the table records a migration this binary does
// not know how to reverse.
var ErrUnknownMigration = errors.New("migration: not registered")

// Status is one row of Runner.Status.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

// Runner applies registered migrations to one database.
type Runner struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Runner { return &Runner{db: db} }

func (r *Runner) ensure(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}
	return nil
}

func (r *Runner) ran(ctx context.Context) (map[string]record, error) {
	var rows []record
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]record, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

func (r *Runner) lastBatch(ctx context.Context) (int, error) {
	var batch int
	err := r.db.WithContext(ctx).Model(&record{}).Select("COALESCE(MAX(batch), 0)").Row().Scan(&batch)
	return batch, err
}

// Run applies every pending migration and returns their names.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}
	done, err := r.ran(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: load history: %w", err)
	}
	last, err := r.lastBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: load history: %w", err)
	}
	batch := last + 1

	var applied []string
	for _, e := range registered() {
		if _, ok := done[e.name]; ok {
			continue
		}
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := e.m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&record{Name: e.name, Batch: batch}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migration: %s up: %w", e.name, err)
		}
		logger.Info("migration: applied", "name", e.name, "batch", batch)
		applied = append(applied, e.name)
	}
	return applied, nil
}

// Rollback reverses the most recent batch and returns what it undid.
func (r *Runner) Rollback(ctx context.Context) ([]string, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}
	batch, err := r.lastBatch(ctx)
	if err != nil || batch == 0 {
		return nil, err
	}

	var rows []record
	if err := r.db.WithContext(ctx).Where("batch = ?", batch).Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	known := make(map[string]Migration)
	for _, e := range registered() {
		known[e.name] = e.m
	}

	var undone []string
	for _, row := range rows {
		m, ok := known[row.Name]
		if !ok {
			return undone, fmt.Errorf("%w: %s", ErrUnknownMigration, row.Name)
		}
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&record{}, row.ID).Error
		})
		if err != nil {
			return undone, fmt.Errorf("migration: %s down: %w", row.Name, err)
		}
		logger.Info("migration: rolled back", "name", row.Name, "batch", batch)
		undone = append(undone, row.Name)
	}
	return undone, nil
}

// Status lists every registered migration with its state.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}
	done, err := r.ran(ctx)
	if err != nil {
		return nil, err
	}
	var out []Status
	for _, e := range registered() {
		row, ok := done[e.name]
		out = append(out, Status{Name: e.name, Ran: ok, Batch: row.Batch})
	}
	return out, nil
}
