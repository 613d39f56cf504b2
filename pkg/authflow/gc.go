package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// GCScheduler removes stale login sessions on a cron schedule so the session
// map does not grow without bound under abandoned logins.
type GCScheduler struct {
	controller *Controller
	schedule   string
	cron       *cron.Cron
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewGCScheduler creates a session garbage collector. The TTL comes from the
// controller's configuration; schedule is a cron expression (robfig/cron
// syntax, "@every 1m" style descriptors included).
func NewGCScheduler(controller *Controller, schedule string) *GCScheduler {
	return &GCScheduler{
		controller: controller,
		schedule:   schedule,
		cron:       cron.New(),
		logger:     slog.Default().With("component", "authflow.gc"),
	}
}

// Start begins scheduled collection. An empty schedule disables the GC.
func (g *GCScheduler) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.schedule == "" {
		g.logger.Info("session GC schedule not configured, skipping")
		return nil
	}

	if _, err := g.cron.AddFunc(g.schedule, g.run); err != nil {
		return fmt.Errorf("invalid session GC schedule %q: %w", g.schedule, err)
	}

	g.cron.Start()
	g.running = true

	g.logger.Info("session GC started",
		"schedule", g.schedule,
		"ttl", g.controller.cfg.SessionTTL)

	go func() {
		<-ctx.Done()
		g.Stop()
	}()

	return nil
}

func (g *GCScheduler) run() {
	removed := g.controller.GC(g.controller.cfg.SessionTTL)
	if removed > 0 {
		g.logger.Info("collected stale login sessions", "removed", removed)
	} else {
		g.logger.Debug("session GC pass completed, nothing to remove")
	}
}

// Stop stops the scheduler and waits for a running pass to finish.
func (g *GCScheduler) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cron != nil && g.running {
		ctx := g.cron.Stop()
		<-ctx.Done()
		g.running = false
		g.logger.Info("session GC stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (g *GCScheduler) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
