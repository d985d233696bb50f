package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"herowatch/internal/hero"
)

// Refresher runs one data refresh cycle
type Refresher interface {
	Refresh(ctx context.Context) (*hero.Snapshot, error)
}

// Status reports the poller's health for the status endpoint.
type Status struct {
	AuthRequired bool      `json:"auth_required"`
	LastError    string    `json:"last_error,omitempty"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
}

// Poller drives periodic refresh cycles. Cycles run strictly one at a time;
// the coordinator relies on that.
type Poller struct {
	coordinator Refresher
	interval    time.Duration
	stopChan    chan struct{}
	logger      *slog.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a new poller
func New(coordinator Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		coordinator: coordinator,
		interval:    interval,
		stopChan:    make(chan struct{}),
		logger:      logger,
	}
}

// Start begins the polling loop. The first cycle runs immediately so the
// service has data before the first interval elapses.
func (p *Poller) Start() {
	p.logger.Info("Poller started", "interval", p.interval.String())
	p.tick()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stopChan:
			p.logger.Info("Poller stopped")
			return
		}
	}
}

// Stop stops the poller
func (p *Poller) Stop() {
	close(p.stopChan)
}

// Status returns the current poller health
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// tick performs one refresh cycle
func (p *Poller) tick() {
	ctx := context.Background()
	_, err := p.coordinator.Refresh(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if hero.IsAuthError(err) {
			// The credential itself is dead; polling again will not recover.
			// Stays latched until a cycle with a fresh credential succeeds.
			p.status.AuthRequired = true
			p.logger.Error("Refresh failed: re-authentication required", "error", err)
		} else {
			p.logger.Error("Refresh failed", "error", err)
		}
		p.status.LastError = err.Error()
		return
	}

	p.status.AuthRequired = false
	p.status.LastError = ""
	p.status.LastSuccess = time.Now()
}
