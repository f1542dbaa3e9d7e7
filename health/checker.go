// Package health polls the backend health endpoint in the background and
// reports status transitions.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Gateway is the probe the checker runs.
type Gateway interface {
	Health(ctx context.Context) error
}

// Listener is notified only on transitions, not on every probe.
type Listener interface {
	OnHealthChange(healthy bool)
}

type Checker struct {
	gw       Gateway
	interval time.Duration
	listener Listener

	mu      sync.RWMutex
	healthy bool
	known   bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewChecker(gw Gateway, interval time.Duration, listener Listener) *Checker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{gw: gw, interval: interval, listener: listener, ctx: ctx, cancel: cancel}
}

// Start probes immediately, then on every tick until Stop.
func (c *Checker) Start() {
	go func() {
		c.probe()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.probe()
			}
		}
	}()
}

func (c *Checker) Stop() {
	c.cancel()
}

// Healthy returns the last observed backend status.
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Checker) probe() {
	ctx, cancel := context.WithTimeout(c.ctx, c.interval)
	err := c.gw.Health(ctx)
	cancel()

	healthy := err == nil

	c.mu.Lock()
	changed := !c.known || c.healthy != healthy
	c.healthy = healthy
	c.known = true
	c.mu.Unlock()

	if !changed {
		return
	}
	if healthy {
		slog.Info("backend is reachable")
	} else {
		slog.Warn("backend is unreachable", "error", err)
	}
	if c.listener != nil {
		c.listener.OnHealthChange(healthy)
	}
}
