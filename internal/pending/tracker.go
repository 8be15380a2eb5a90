package pending

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfabric/pipeliner/internal/metrics"
	"github.com/openfabric/pipeliner/internal/models"
)

// BindingStore persists the next-id to group-key mapping so that later
// forwarding objectives can resolve the group without asking the tracker.
type BindingStore interface {
	Put(ctx context.Context, binding models.NextGroupBinding) error
}

type entry struct {
	obj        *models.NextObjective
	registered time.Time
	lease      *time.Timer
}

// Tracker holds in-flight next objectives keyed by the group key they wait
// on. Each entry leaves the tracker through exactly one of three paths: a
// backend creation event, a sweep that observed the group, or lease
// expiry. Whichever path takes the entry first wins, the others become
// no-ops.
type Tracker struct {
	mu      sync.Mutex
	pending map[models.GroupKey]*entry

	bindings BindingStore
	lease    time.Duration
	metrics  metrics.Metrics
}

func NewTracker(bindings BindingStore, lease time.Duration, m metrics.Metrics) *Tracker {
	return &Tracker{
		pending:  make(map[models.GroupKey]*entry, 64),
		bindings: bindings,
		lease:    lease,
		metrics:  m,
	}
}

// Register puts the objective into the pending set and arms its lease.
// A key may hold at most one pending objective; a second registration for
// a live key is rejected.
func (t *Tracker) Register(key models.GroupKey, obj *models.NextObjective) error {
	t.mu.Lock()
	if _, exists := t.pending[key]; exists {
		t.mu.Unlock()
		return fmt.Errorf("pending entry already exists for key %s", key)
	}
	e := &entry{
		obj:        obj,
		registered: time.Now(),
	}
	e.lease = time.AfterFunc(t.lease, func() {
		t.expire(key)
	})
	t.pending[key] = e
	size := len(t.pending)
	t.mu.Unlock()

	t.metrics.Gauge("pending.size", size)
	return nil
}

// take removes and returns the entry for key. The first caller wins, any
// later caller gets nil.
func (t *Tracker) take(key models.GroupKey) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, exists := t.pending[key]
	if !exists {
		return nil
	}
	delete(t.pending, key)
	e.lease.Stop()
	t.metrics.Gauge("pending.size", len(t.pending))
	return e
}

// NotifyCreated resolves the key to success. Safe to call for unknown or
// already resolved keys: late and duplicate backend events are expected
// under the race between event, sweep and lease, and are swallowed.
func (t *Tracker) NotifyCreated(ctx context.Context, key models.GroupKey) {
	e := t.take(key)
	if e == nil {
		return
	}
	t.metrics.Increment("pending.resolved.success")
	t.metrics.Duration("pending.resolution", time.Since(e.registered))

	// The binding must be visible before the success callback fires, a
	// forwarding objective submitted from the callback already looks it up.
	binding := models.NextGroupBinding{NextID: e.obj.ID, Key: key}
	if err := t.bindings.Put(ctx, binding); err != nil {
		log.Error().Err(err).Msgf("failed to persist next group binding for key %s", key)
		e.obj.Context.Fail(err)
		return
	}
	log.Info().Msgf("group %s confirmed, next %d resolved", key, e.obj.ID)
	e.obj.Context.Pass()
}

// expire fires when the lease runs out. Loses any race against
// NotifyCreated: if the entry is already gone this is a no-op.
func (t *Tracker) expire(key models.GroupKey) {
	e := t.take(key)
	if e == nil {
		return
	}
	t.metrics.Increment("pending.resolved.expired")
	log.Warn().Msgf("lease expired for key %s, next %d never confirmed", key, e.obj.ID)
	e.obj.Context.Fail(models.ErrGroupInstallationFailed)
}

// Unregister withdraws a pending entry without resolving it. Used by the
// orchestrator to unwind a registration whose group submission failed at
// the transport, before the backend could have seen it.
func (t *Tracker) Unregister(key models.GroupKey) *models.NextObjective {
	e := t.take(key)
	if e == nil {
		return nil
	}
	return e.obj
}

// PendingKeys snapshots the keys currently waiting on the backend.
func (t *Tracker) PendingKeys() []models.GroupKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]models.GroupKey, 0, len(t.pending))
	for key := range t.pending {
		keys = append(keys, key)
	}
	return keys
}
