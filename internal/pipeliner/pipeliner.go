package pipeliner

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog/log"

	"github.com/openfabric/pipeliner/internal/metrics"
	"github.com/openfabric/pipeliner/internal/models"
	"github.com/openfabric/pipeliner/internal/pending"
	"github.com/openfabric/pipeliner/internal/translator"
)

// FlowRuleService applies a batch of table entries to the device. The
// batch is all-or-nothing from our side, its Done callback fires once.
type FlowRuleService interface {
	Apply(ctx context.Context, batch models.FlowRuleBatch) error
}

// GroupService submits group descriptions to the backend. CreateGroup is
// fire-and-forget, completion arrives out of band. GetGroup is the
// passive existence query.
type GroupService interface {
	CreateGroup(ctx context.Context, key models.GroupKey, buckets []models.GroupBucket) error
	GetGroup(ctx context.Context, key models.GroupKey) (*models.GroupRecord, error)
}

// BindingReader resolves a next ID to its persisted group key.
type BindingReader interface {
	Get(ctx context.Context, nextID uint32) (*models.NextGroupBinding, error)
}

// Pipeliner dispatches forwarding objectives onto the device pipeline:
// filtering and forwarding objectives become flow-rule batches, next
// objectives become groups tracked to completion by the pending tracker.
type Pipeliner struct {
	deviceID string
	appID    string

	flows    FlowRuleService
	groups   GroupService
	tracker  *pending.Tracker
	bindings BindingReader
	metrics  metrics.Metrics
}

func New(
	deviceID string,
	appID string,
	flows FlowRuleService,
	groups GroupService,
	tracker *pending.Tracker,
	bindings BindingReader,
	m metrics.Metrics,
) *Pipeliner {
	return &Pipeliner{
		deviceID: deviceID,
		appID:    appID,
		flows:    flows,
		groups:   groups,
		tracker:  tracker,
		bindings: bindings,
		metrics:  m,
	}
}

// Filter admits or removes ingress traffic. Translation failures are per
// condition: the objective's failure callback fires for the bad condition
// and the error is returned, while entries for the remaining conditions
// are still submitted as one batch whose completion drives the callback.
func (p *Pipeliner) Filter(ctx context.Context, obj *models.FilteringObjective) error {
	p.metrics.Increment("objectives.filtering")

	if obj.Type != models.FilterPermit {
		obj.Context.Fail(models.ErrUnsupportedObjective)
		return models.ErrUnsupportedObjective
	}
	ops, translateErr := translator.Filter(obj)
	if translateErr != nil {
		obj.Context.Fail(translateErr)
	}
	if len(ops) == 0 {
		return translateErr
	}
	err := p.apply(ctx, ops, func(err error) {
		if err != nil {
			log.Warn().Err(err).Msgf("failed to install admission entries for app %s", obj.AppID)
			obj.Context.Fail(models.ErrFlowInstallationFailed)
			return
		}
		obj.Context.Pass()
	})
	if err != nil {
		obj.Context.Fail(models.ErrFlowInstallationFailed)
		return err
	}
	return translateErr
}

// Forward installs a FIB entry pointing at an already resolved group. The
// binding lookup fails fast without touching the rule backend: a missing
// binding is a normal transient state while the next objective is still
// pending.
func (p *Pipeliner) Forward(ctx context.Context, obj *models.ForwardingObjective) error {
	p.metrics.Increment("objectives.forwarding")

	binding, err := p.bindings.Get(ctx, obj.NextID)
	if err != nil {
		obj.Context.Fail(models.ErrGroupMissing)
		return models.ErrGroupMissing
	}
	record, err := p.groups.GetGroup(ctx, binding.Key)
	if err != nil {
		obj.Context.Fail(models.ErrGroupMissing)
		return fmt.Errorf("failed to query group %s: %w", binding.Key, err)
	}
	if record == nil {
		log.Warn().Msgf("group %s bound to next %d left the backend", binding.Key, obj.NextID)
		obj.Context.Fail(models.ErrGroupMissing)
		return models.ErrGroupMissing
	}

	ops, err := translator.Forward(obj, binding.Key)
	if err != nil {
		obj.Context.Fail(err)
		return err
	}
	err = p.apply(ctx, ops, func(err error) {
		if err != nil {
			log.Warn().Err(err).Msgf("failed to install fib entry for next %d", obj.NextID)
			obj.Context.Fail(models.ErrFlowInstallationFailed)
			return
		}
		obj.Context.Pass()
	})
	if err != nil {
		obj.Context.Fail(models.ErrFlowInstallationFailed)
		return err
	}
	return nil
}

// Next materializes a next objective as an indirect group. Only the
// simple single-treatment form is expressible in this pipeline. The key
// is registered with the tracker before the group is submitted so a fast
// backend event cannot race past an unknown key.
func (p *Pipeliner) Next(ctx context.Context, obj *models.NextObjective) error {
	p.metrics.Increment("objectives.next")

	switch obj.Type {
	case models.NextSimple:
	case models.NextHashed, models.NextBroadcast, models.NextFailover:
		log.Warn().Msgf("unsupported next objective type %d", obj.Type)
		obj.Context.Fail(models.ErrUnsupportedObjective)
		return models.ErrUnsupportedObjective
	default:
		log.Warn().Msgf("unknown next objective type %d", obj.Type)
		obj.Context.Fail(models.ErrUnsupportedObjective)
		return models.ErrUnsupportedObjective
	}
	if len(obj.Treatments) != 1 {
		obj.Context.Fail(models.ErrUnsupportedObjective)
		return models.ErrUnsupportedObjective
	}

	key := models.GroupKeyForNext(p.deviceID, obj.ID)
	err := p.tracker.Register(key, obj)
	if err != nil {
		obj.Context.Fail(err)
		return fmt.Errorf("failed to register pending group %s: %w", key, err)
	}
	buckets := []models.GroupBucket{{Treatment: obj.Treatments[0]}}
	err = p.groups.CreateGroup(ctx, key, buckets)
	if err != nil {
		// The backend never saw the request, unwind instead of waiting out
		// the lease.
		p.tracker.Unregister(key)
		obj.Context.Fail(models.ErrGroupInstallationFailed)
		return fmt.Errorf("failed to submit group %s: %w", key, err)
	}
	log.Info().Msgf("submitted group %s for next %d", key, obj.ID)
	return nil
}

// InstallDefaultProgram pushes the static per-stage default entries.
// The program is identical on every call, so re-running it after a
// restart or reconnect is safe.
func (p *Pipeliner) InstallDefaultProgram(ctx context.Context) error {
	var firstErr error
	for _, stage := range translator.DefaultProgram(p.appID) {
		ops := make([]models.FlowRuleOp, 0, len(stage.Rules))
		for _, rule := range stage.Rules {
			ops = append(ops, models.FlowRuleOp{Rule: rule})
		}
		stageName := stage.Stage.String()
		err := p.apply(ctx, ops, func(err error) {
			if err != nil {
				log.Error().Err(err).Msgf("failed to provision %s table", stageName)
				return
			}
			log.Info().Msgf("provisioned %s table", stageName)
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to apply %s stage defaults: %w", stageName, err)
		}
	}
	return firstErr
}

func (p *Pipeliner) apply(ctx context.Context, ops []models.FlowRuleOp, done func(error)) error {
	batchID, err := uuid.GenerateUUID()
	if err != nil {
		return fmt.Errorf("failed to generate batch id: %w", err)
	}
	err = p.flows.Apply(ctx, models.FlowRuleBatch{
		ID:   batchID,
		Ops:  ops,
		Done: done,
	})
	if err != nil {
		return fmt.Errorf("failed to submit batch %s: %w", batchID, err)
	}
	log.Debug().Msgf("submitted flow rule batch %s with %d ops", batchID, len(ops))
	return nil
}
