package objserver

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/openfabric/pipeliner/internal/models"
)

type criterionDto struct {
	Type    string `json:"type"`
	Port    uint32 `json:"port,omitempty"`
	Mac     string `json:"mac,omitempty"`
	EthType uint16 `json:"eth_type,omitempty"`
	VlanID  uint16 `json:"vlan_id,omitempty"`
	Prefix  string `json:"prefix,omitempty"`
}

type treatmentDto struct {
	Transition string `json:"transition,omitempty"`
	Drop       bool   `json:"drop,omitempty"`
	Punt       bool   `json:"punt,omitempty"`
	PopVlan    bool   `json:"pop_vlan,omitempty"`
	Output     uint32 `json:"output,omitempty"`
}

type filterRequest struct {
	AppID      string         `json:"app_id"`
	Op         string         `json:"op"`
	Type       string         `json:"type"`
	Key        criterionDto   `json:"key"`
	Conditions []criterionDto `json:"conditions"`
}

type forwardRequest struct {
	AppID     string         `json:"app_id"`
	Op        string         `json:"op"`
	Flag      string         `json:"flag"`
	Selector  []criterionDto `json:"selector"`
	NextID    uint32         `json:"next_id"`
	Priority  uint32         `json:"priority"`
	Permanent bool           `json:"permanent"`
}

type nextRequest struct {
	AppID      string         `json:"app_id"`
	Op         string         `json:"op"`
	ID         uint32         `json:"id"`
	Type       string         `json:"type"`
	Treatments []treatmentDto `json:"treatments"`
}

func operationToModel(op string) (models.Operation, error) {
	switch op {
	case "add", "":
		return models.OpAdd, nil
	case "remove":
		return models.OpRemove, nil
	}
	return models.OpAdd, fmt.Errorf("unknown operation %q", op)
}

func criterionToModel(c criterionDto) (models.Criterion, error) {
	switch c.Type {
	case "in_port":
		return models.InPortCriterion(c.Port), nil
	case "eth_dst":
		mac, err := net.ParseMAC(c.Mac)
		if err != nil {
			return models.Criterion{}, fmt.Errorf("failed to parse mac %q: %w", c.Mac, err)
		}
		return models.EthDstCriterion(mac), nil
	case "eth_type":
		return models.EthTypeCriterion(c.EthType), nil
	case "vlan_id":
		return models.VlanCriterion(c.VlanID), nil
	case "ipv4_dst":
		prefix, err := netip.ParsePrefix(c.Prefix)
		if err != nil {
			// Deliberately pass the malformed criterion through: translation
			// reports it per condition without dropping its siblings.
			return models.Criterion{Type: models.CriterionIPv4Dst}, nil
		}
		return models.IPv4DstCriterion(prefix), nil
	}
	return models.Criterion{}, nil
}

func criteriaToModel(dtos []criterionDto) (models.TrafficSelector, error) {
	selector := make(models.TrafficSelector, 0, len(dtos))
	for _, dto := range dtos {
		c, err := criterionToModel(dto)
		if err != nil {
			return nil, err
		}
		selector = append(selector, c)
	}
	return selector, nil
}

func treatmentToModel(t treatmentDto) models.TrafficTreatment {
	treatment := models.TrafficTreatment{
		Drop:    t.Drop,
		Punt:    t.Punt,
		PopVlan: t.PopVlan,
		Output:  t.Output,
	}
	switch t.Transition {
	case "first":
		treatment.Transition = models.TableFirst
	case "vlan-mpls":
		treatment.Transition = models.TableVlanMPLS
	case "vlan":
		treatment.Transition = models.TableVlan
	case "ether":
		treatment.Transition = models.TableEther
	case "cos":
		treatment.Transition = models.TableCos
	case "ip":
		treatment.Transition = models.TableIP
	case "acl":
		treatment.Transition = models.TableACL
	case "local":
		treatment.Transition = models.TableLocal
	}
	return treatment
}

func nextTypeToModel(t string) models.NextType {
	switch t {
	case "simple", "":
		return models.NextSimple
	case "hashed":
		return models.NextHashed
	case "broadcast":
		return models.NextBroadcast
	case "failover":
		return models.NextFailover
	}
	return models.NextType(-1)
}
