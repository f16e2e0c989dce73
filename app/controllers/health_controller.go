package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
)

// Check pings one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

type HealthController struct {
	checks map[string]Check
}

func NewHealthController(checks map[string]Check) *HealthController {
	return &HealthController{checks: checks}
}

// Show reports each dependency as "ok" or "down". Any failure makes the
// whole response a 503. Error text is never returned.
func (h *HealthController) Show(c *ctx.Context) {
	checkCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](checkCtx); err != nil {
			components[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, map[string]any{
		"status":     overall,
		"components": components,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
