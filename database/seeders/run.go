// Package seeders fills a fresh store with demo data. Seeders register
// from init() and run through `foodtruck seed` or on boot with the memory
// driver:
//
//	func init() {
//	    seeders.Register("menu", SeedMenu)
//	}
package seeders

import (
	"context"
	"fmt"
	"sync"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
)

// SeederFunc writes demo rows through the store. It must be safe to run
// more than once.
type SeederFunc func(ctx context.Context, store repositories.Store) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder. Seeders run in registration order.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// RunAll executes every registered seeder and returns the names it ran.
// It stops on the first error.
func RunAll(ctx context.Context, store repositories.Store) ([]string, error) {
	mu.Lock()
	current := make([]seederEntry, len(entries))
	copy(current, entries)
	mu.Unlock()

	var ran []string
	for _, e := range current {
		if err := e.fn(ctx, store); err != nil {
			return ran, fmt.Errorf("seeder %q: %w", e.name, err)
		}
		ran = append(ran, e.name)
	}
	return ran, nil
}
