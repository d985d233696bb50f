package hero

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Coordinator orchestrates one refresh cycle: a concurrent batch of
// independent reads, per-call failure isolation, normalization, the dependent
// per-slot fan-out, and snapshot assembly. Cycles are driven one at a time by
// the poller; only the latest-snapshot holder is read concurrently.
type Coordinator struct {
	client *Client
	store  CredentialStore
	logger *slog.Logger

	lastPersisted string

	mu     sync.RWMutex
	latest *Snapshot
}

// NewCoordinator creates a refresh coordinator. The store receives the
// refresh token whenever the server rotates it.
func NewCoordinator(client *Client, store CredentialStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		client:        client,
		store:         store,
		logger:        logger,
		lastPersisted: client.RefreshToken(),
	}
}

// Latest returns the most recent snapshot, or nil before the first cycle.
func (c *Coordinator) Latest() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// outcome is one settled batch call: a name for logging plus either the
// payload or the captured failure.
type outcome struct {
	name  string
	value any
	err   error
}

type batchCall struct {
	name string
	fn   func(context.Context) (any, error)
}

// gather runs the batch concurrently and collects every outcome. No failure
// aborts a sibling call; escalation is decided afterwards over the full set.
func gather(ctx context.Context, calls []batchCall) []outcome {
	outcomes := make([]outcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call batchCall) {
			defer wg.Done()
			value, err := call.fn(ctx)
			outcomes[i] = outcome{name: call.name, value: value, err: err}
		}(i, call)
	}
	wg.Wait()
	return outcomes
}

// allFailedWith reports whether every outcome failed and every failure
// matches the predicate.
func allFailedWith(outcomes []outcome, match func(error) bool) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.err == nil || !match(o.err) {
			return false
		}
	}
	return true
}

// Refresh runs one refresh cycle and returns the resulting snapshot.
//
// An auth escalation from the batch is returned as-is: it means the
// credential is dead and the caller must surface a re-authentication
// requirement. Any other whole-cycle failure is answered with the previous
// snapshot when one exists; slightly stale medication data beats an error
// state. Only a first-ever cycle propagates a non-auth failure.
func (c *Coordinator) Refresh(ctx context.Context) (*Snapshot, error) {
	snapshot, err := c.fetchAll(ctx)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		if prev := c.Latest(); prev != nil {
			c.logger.Warn("refresh cycle failed, serving last known snapshot", "error", err)
			return prev, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.latest = snapshot
	c.mu.Unlock()

	c.persistRefreshToken(ctx)
	return snapshot, nil
}

// fetchAll performs the concurrent batch, normalization and the dependent
// per-slot fan-out, and assembles the snapshot.
func (c *Coordinator) fetchAll(ctx context.Context) (*Snapshot, error) {
	calls := []batchCall{
		{"home-screen-doses", c.client.HomeScreenDoses},
		{"home-screen-events", c.client.HomeScreenEvents},
		{"pills-by-schedules", c.client.PillsBySchedules},
		{"pill-stats", c.client.PillStats},
		{"stats", c.client.Stats},
		{"check-offline", c.client.CheckDeviceOffline},
		{"device-config", c.client.DeviceConfig},
		{"taken-slots", c.client.TakenSlots},
	}
	outcomes := gather(ctx, calls)

	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			c.logger.Warn("api call failed", "call", o.name, "error", o.err)
		}
	}

	if failed == len(outcomes) {
		// Every call rejected the credential: the token is dead, not one
		// endpoint flaky. Anything short of that is defaulted per call.
		if allFailedWith(outcomes, IsAuthError) {
			return nil, outcomes[0].err
		}
		// Nothing reachable at all: there is no real data in this cycle, so
		// let the caller decide between stale data and a first-time failure.
		if allFailedWith(outcomes, IsConnectionError) {
			return nil, outcomes[0].err
		}
	}

	value := func(i int) any {
		if outcomes[i].err != nil {
			return nil
		}
		return outcomes[i].value
	}

	snapshot := emptySnapshot()
	snapshot.Doses = normalizeDoses(value(0))
	snapshot.Events = normalizeEvents(value(1))
	snapshot.PillsBySchedule = asMapSlice(value(2))
	if m := asMap(value(3)); m != nil {
		snapshot.PillStats = m
	}
	snapshot.Stats = normalizeStats(value(4))
	snapshot.DeviceOnline = deviceOnline(value(5))
	if m := asMap(value(6)); m != nil {
		snapshot.DeviceConfig = m
	}
	snapshot.TakenSlots = joinTakenSlots(normalizeSlotIndexes(value(7)), pillsFromConfig(snapshot.DeviceConfig))

	// Dependent fan-out: one remaining-supply call per occupied slot. These
	// depend on the batch's normalized output, so they run after it, each
	// failure caught individually and simply omitted.
	for _, slot := range snapshot.TakenSlots {
		payload, err := c.client.PillRemainingDays(ctx, slot.SlotIndex)
		if err != nil {
			c.logger.Debug("failed to fetch remaining supply",
				"slot", slot.SlotIndex,
				"error", err,
			)
			continue
		}
		snapshot.RemainingSupply[slot.SlotIndex] = normalizeSupply(payload)
	}

	snapshot.UpdatedAt = time.Now()

	c.logger.Debug("refresh cycle complete",
		"doses", len(snapshot.Doses),
		"events", len(snapshot.Events),
		"slots", len(snapshot.TakenSlots),
		"device_online", snapshot.DeviceOnline,
	)
	return snapshot, nil
}

// persistRefreshToken writes the refresh token back to the store, but only
// when the server actually rotated it. Rotation is opportunistic, not a
// per-cycle write.
func (c *Coordinator) persistRefreshToken(ctx context.Context) {
	current := c.client.RefreshToken()
	if current == c.lastPersisted {
		return
	}

	creds, err := c.store.GetCredentials(ctx)
	if err != nil {
		c.logger.Warn("failed to load stored credentials", "error", err)
		return
	}
	if creds == nil {
		creds = &Credentials{}
	}
	creds.RefreshToken = current

	if err := c.store.SaveCredentials(ctx, creds); err != nil {
		c.logger.Warn("failed to persist rotated refresh token", "error", err)
		return
	}
	c.lastPersisted = current
	c.logger.Debug("persisted rotated refresh token")
}
