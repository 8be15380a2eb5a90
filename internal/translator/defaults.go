package translator

import (
	"net"

	"github.com/openfabric/pipeliner/internal/models"
)

// VlanAny matches any VLAN tag in the vlan-mpls classification stage.
const VlanAny uint16 = 0xffff

var broadcastMac = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// StageProgram is the default table program of one pipeline stage.
type StageProgram struct {
	Stage models.TableStage
	Rules []models.FlowRule
}

// DefaultProgram returns the static per-stage default entries: broadcast
// admission, default drops, ARP punt and the transition wiring between
// stages. Installed once at startup, identical on every call, so
// re-installation is idempotent.
func DefaultProgram(appID string) []StageProgram {
	return []StageProgram{
		{
			Stage: models.TableFirst,
			Rules: []models.FlowRule{
				{
					Table:     models.TableFirst,
					Selector:  models.TrafficSelector{models.EthDstCriterion(broadcastMac)},
					Treatment: models.TrafficTreatment{Transition: models.TableVlanMPLS},
					Priority:  models.PriorityController,
					AppID:     appID,
					Permanent: true,
				},
				{
					Table:     models.TableFirst,
					Treatment: models.TrafficTreatment{Drop: true},
					Priority:  models.PriorityDrop,
					AppID:     appID,
					Permanent: true,
				},
			},
		},
		{
			Stage: models.TableVlanMPLS,
			Rules: []models.FlowRule{
				{
					Table:     models.TableVlanMPLS,
					Selector:  models.TrafficSelector{models.VlanCriterion(VlanAny)},
					Treatment: models.TrafficTreatment{Transition: models.TableVlan},
					Priority:  models.PriorityController,
					AppID:     appID,
					Permanent: true,
				},
			},
		},
		{
			Stage: models.TableVlan,
			Rules: []models.FlowRule{
				{
					Table:     models.TableVlan,
					Treatment: models.TrafficTreatment{Drop: true},
					Priority:  models.PriorityDrop,
					AppID:     appID,
					Permanent: true,
				},
			},
		},
		{
			Stage: models.TableEther,
			Rules: []models.FlowRule{
				{
					Table:     models.TableEther,
					Selector:  models.TrafficSelector{models.EthTypeCriterion(models.EthTypeARP)},
					Treatment: models.TrafficTreatment{Punt: true},
					Priority:  models.PriorityController,
					AppID:     appID,
					Permanent: true,
				},
				{
					Table:     models.TableEther,
					Selector:  models.TrafficSelector{models.EthTypeCriterion(models.EthTypeIPv4)},
					Treatment: models.TrafficTreatment{Transition: models.TableCos},
					Priority:  models.PriorityController,
					AppID:     appID,
					Permanent: true,
				},
				{
					Table:     models.TableEther,
					Treatment: models.TrafficTreatment{Drop: true},
					Priority:  models.PriorityDrop,
					AppID:     appID,
					Permanent: true,
				},
			},
		},
		{
			Stage: models.TableCos,
			Rules: []models.FlowRule{
				{
					Table:     models.TableCos,
					Treatment: models.TrafficTreatment{Transition: models.TableIP},
					Priority:  models.PriorityDrop,
					AppID:     appID,
					Permanent: true,
				},
			},
		},
		{
			Stage: models.TableIP,
			Rules: []models.FlowRule{
				{
					Table:     models.TableIP,
					Treatment: models.TrafficTreatment{Drop: true},
					Priority:  models.PriorityDrop,
					AppID:     appID,
					Permanent: true,
				},
			},
		},
		{
			Stage: models.TableLocal,
			Rules: []models.FlowRule{
				{
					Table:     models.TableLocal,
					Treatment: models.TrafficTreatment{Punt: true},
					Priority:  models.PriorityController,
					AppID:     appID,
					Permanent: true,
				},
			},
		},
	}
}
