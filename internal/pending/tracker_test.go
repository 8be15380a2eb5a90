package pending

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfabric/pipeliner/internal/bindings/inmemory"
	"github.com/openfabric/pipeliner/internal/metrics"
	"github.com/openfabric/pipeliner/internal/models"
)

type failingBindings struct {
	err error
}

func (f *failingBindings) Put(ctx context.Context, binding models.NextGroupBinding) error {
	return f.err
}

type outcome struct {
	mu        sync.Mutex
	successes int
	failures  []error
}

func (o *outcome) context() *models.ObjectiveContext {
	return &models.ObjectiveContext{
		OnSuccess: func() {
			o.mu.Lock()
			o.successes++
			o.mu.Unlock()
		},
		OnError: func(err error) {
			o.mu.Lock()
			o.failures = append(o.failures, err)
			o.mu.Unlock()
		},
	}
}

func (o *outcome) snapshot() (int, []error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.successes, append([]error(nil), o.failures...)
}

func nextObj(id uint32, o *outcome) *models.NextObjective {
	return &models.NextObjective{
		ID:         id,
		Type:       models.NextSimple,
		Treatments: []models.TrafficTreatment{{Output: 1}},
		Context:    o.context(),
	}
}

func TestTracker_RegisterRejectsDuplicateKey(t *testing.T) {
	tr := NewTracker(inmemory.NewStore(), time.Minute, metrics.Noop{})
	key := models.GroupKey("dev1/next/1")

	o := &outcome{}
	require.NoError(t, tr.Register(key, nextObj(1, o)))
	err := tr.Register(key, nextObj(1, o))
	require.Error(t, err, "second registration for a live key must be rejected")

	// The original entry is untouched.
	assert.Len(t, tr.PendingKeys(), 1)
}

func TestTracker_EventResolvesSuccessAndPersistsBinding(t *testing.T) {
	store := inmemory.NewStore()
	tr := NewTracker(store, time.Minute, metrics.Noop{})
	key := models.GroupKey("dev1/next/7")

	var bindingAtCallback *models.NextGroupBinding
	obj := &models.NextObjective{
		ID:         7,
		Type:       models.NextSimple,
		Treatments: []models.TrafficTreatment{{Output: 1}},
	}
	done := make(chan struct{})
	obj.Context = &models.ObjectiveContext{
		OnSuccess: func() {
			// The binding must already be readable from inside the success
			// callback.
			bindingAtCallback, _ = store.Get(context.Background(), 7)
			close(done)
		},
		OnError: func(err error) {
			t.Errorf("unexpected failure: %v", err)
		},
	}

	require.NoError(t, tr.Register(key, obj))
	tr.NotifyCreated(context.Background(), key)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("success callback never fired")
	}
	require.NotNil(t, bindingAtCallback)
	assert.Equal(t, key, bindingAtCallback.Key)
	assert.Empty(t, tr.PendingKeys())
}

func TestTracker_DuplicateEventFiresOneCallback(t *testing.T) {
	tr := NewTracker(inmemory.NewStore(), time.Minute, metrics.Noop{})
	key := models.GroupKey("dev1/next/2")

	o := &outcome{}
	require.NoError(t, tr.Register(key, nextObj(2, o)))

	tr.NotifyCreated(context.Background(), key)
	tr.NotifyCreated(context.Background(), key)
	tr.NotifyCreated(context.Background(), key)

	successes, failures := o.snapshot()
	assert.Equal(t, 1, successes)
	assert.Empty(t, failures)
}

func TestTracker_EventForUnknownKeyIsNoop(t *testing.T) {
	tr := NewTracker(inmemory.NewStore(), time.Minute, metrics.Noop{})
	assert.NotPanics(t, func() {
		tr.NotifyCreated(context.Background(), models.GroupKey("never-registered"))
	})
}

func TestTracker_LeaseExpiryFailsWithGroupInstallationFailed(t *testing.T) {
	tr := NewTracker(inmemory.NewStore(), 30*time.Millisecond, metrics.Noop{})
	key := models.GroupKey("dev1/next/3")

	o := &outcome{}
	require.NoError(t, tr.Register(key, nextObj(3, o)))

	require.Eventually(t, func() bool {
		_, failures := o.snapshot()
		return len(failures) == 1
	}, time.Second, 5*time.Millisecond)

	_, failures := o.snapshot()
	assert.ErrorIs(t, failures[0], models.ErrGroupInstallationFailed)
	assert.Empty(t, tr.PendingKeys(), "no residual pending entry after expiry")
}

func TestTracker_ExactlyOneResolutionUnderExpiryRace(t *testing.T) {
	// Keep the lease short and fire the event at the same moment many
	// times over; whatever interleaving happens, exactly one callback
	// fires per key.
	for i := range 50 {
		tr := NewTracker(inmemory.NewStore(), time.Millisecond, metrics.Noop{})
		key := models.GroupKeyForNext("dev1", uint32(i))

		o := &outcome{}
		require.NoError(t, tr.Register(key, nextObj(uint32(i), o)))

		time.Sleep(time.Millisecond)
		tr.NotifyCreated(context.Background(), key)

		require.Eventually(t, func() bool {
			successes, failures := o.snapshot()
			return successes+len(failures) >= 1
		}, time.Second, time.Millisecond)

		// Give the losing path a chance to misfire before counting.
		time.Sleep(5 * time.Millisecond)
		successes, failures := o.snapshot()
		require.Equal(t, 1, successes+len(failures),
			"exactly one resolution per key, got %d successes and %d failures", successes, len(failures))
	}
}

func TestTracker_ConcurrentRegistrationSameKey(t *testing.T) {
	tr := NewTracker(inmemory.NewStore(), time.Minute, metrics.Noop{})
	key := models.GroupKey("dev1/next/9")

	var rejected atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := &outcome{}
			if err := tr.Register(key, nextObj(9, o)); err != nil {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(15), rejected.Load(), "all but one concurrent registration must be rejected")
	assert.Len(t, tr.PendingKeys(), 1)
}

func TestTracker_BindingWriteFailureFailsObjective(t *testing.T) {
	writeErr := errors.New("etcd down")
	tr := NewTracker(&failingBindings{err: writeErr}, time.Minute, metrics.Noop{})
	key := models.GroupKey("dev1/next/4")

	o := &outcome{}
	require.NoError(t, tr.Register(key, nextObj(4, o)))
	tr.NotifyCreated(context.Background(), key)

	successes, failures := o.snapshot()
	assert.Zero(t, successes)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], writeErr)
}

func TestTracker_UnregisterWithdrawsSilently(t *testing.T) {
	tr := NewTracker(inmemory.NewStore(), time.Minute, metrics.Noop{})
	key := models.GroupKey("dev1/next/5")

	o := &outcome{}
	require.NoError(t, tr.Register(key, nextObj(5, o)))

	obj := tr.Unregister(key)
	require.NotNil(t, obj)
	assert.Nil(t, tr.Unregister(key))

	successes, failures := o.snapshot()
	assert.Zero(t, successes)
	assert.Empty(t, failures)
}
