package translator

import (
	"github.com/rs/zerolog/log"

	"github.com/openfabric/pipeliner/internal/models"
)

// Filter translates the conditions of a filtering objective into admission
// entries for the ingress stages. Translation is per condition: a condition
// this pipeline cannot express is skipped and reported, the remaining
// conditions still produce entries. The returned ops are valid even when
// err is non-nil.
func Filter(obj *models.FilteringObjective) ([]models.FlowRuleOp, error) {
	if obj.Key.Type != models.CriterionInPort {
		log.Warn().Msgf("filtering objective from app %s has no in-port key", obj.AppID)
		return nil, models.ErrUnsupportedCondition
	}
	remove := obj.Op == models.OpRemove

	var (
		ops     []models.FlowRuleOp
		condErr error
	)
	for _, c := range obj.Conditions {
		rule, err := filterCondition(obj, c)
		if err != nil {
			log.Warn().Msgf("pipeline does not handle filtering condition of type %d", c.Type)
			condErr = err
			continue
		}
		ops = append(ops, models.FlowRuleOp{Rule: rule, Remove: remove})
	}
	return ops, condErr
}

func filterCondition(obj *models.FilteringObjective, c models.Criterion) (models.FlowRule, error) {
	switch c.Type {
	case models.CriterionEthDst:
		log.Debug().Msgf("adding admission rule for MAC %s", c.Mac)
		return models.FlowRule{
			Table:     models.TableFirst,
			Selector:  models.TrafficSelector{c},
			Treatment: models.TrafficTreatment{Transition: models.TableVlanMPLS},
			Priority:  models.PriorityController,
			AppID:     obj.AppID,
			Permanent: true,
		}, nil
	case models.CriterionVlanID:
		log.Debug().Msgf("adding admission rule for VLAN %d", c.VlanID)
		return models.FlowRule{
			Table: models.TableVlan,
			Selector: models.TrafficSelector{
				c,
				models.InPortCriterion(obj.Key.Port),
			},
			Treatment: models.TrafficTreatment{
				Transition: models.TableEther,
				PopVlan:    true,
			},
			Priority:  models.PriorityController,
			AppID:     obj.AppID,
			Permanent: true,
		}, nil
	case models.CriterionIPv4Dst:
		if !c.Prefix.IsValid() {
			return models.FlowRule{}, models.ErrUnsupportedCondition
		}
		log.Debug().Msgf("adding host route admission rule for %s", c.Prefix)
		return models.FlowRule{
			Table: models.TableIP,
			Selector: models.TrafficSelector{
				models.EthTypeCriterion(models.EthTypeIPv4),
				c,
			},
			Treatment: models.TrafficTreatment{Transition: models.TableACL},
			Priority:  models.PriorityHighest,
			AppID:     obj.AppID,
			Permanent: true,
		}, nil
	}
	return models.FlowRule{}, models.ErrUnsupportedCondition
}

// Forward translates a forwarding objective into the single FIB entry that
// points matched traffic at the resolved group. Only specific IPv4
// destination matching is expressible in this pipeline.
func Forward(obj *models.ForwardingObjective, key models.GroupKey) ([]models.FlowRuleOp, error) {
	if obj.Flag != models.ForwardSpecific {
		return nil, models.ErrUnsupportedObjective
	}
	ethType, ok := obj.Selector.Criterion(models.CriterionEthType)
	if !ok || ethType.EthType != models.EthTypeIPv4 {
		return nil, models.ErrUnsupportedMatch
	}
	ipDst, ok := obj.Selector.Criterion(models.CriterionIPv4Dst)
	if !ok || !ipDst.Prefix.IsValid() {
		return nil, models.ErrUnsupportedMatch
	}

	rule := models.FlowRule{
		Table: models.TableIP,
		Selector: models.TrafficSelector{
			models.EthTypeCriterion(models.EthTypeIPv4),
			ipDst,
		},
		Treatment: models.TrafficTreatment{Group: key},
		Priority:  obj.Priority,
		AppID:     obj.AppID,
		Permanent: obj.Permanent,
	}
	return []models.FlowRuleOp{{Rule: rule, Remove: obj.Op == models.OpRemove}}, nil
}
