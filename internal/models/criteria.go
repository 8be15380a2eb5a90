package models

import (
	"net"
	"net/netip"
)

type CriterionType int8

const (
	CriterionUnknown CriterionType = iota
	CriterionInPort
	CriterionEthDst
	CriterionEthType
	CriterionVlanID
	CriterionIPv4Dst
)

const (
	EthTypeIPv4 uint16 = 0x0800
	EthTypeARP  uint16 = 0x0806
)

// Criterion is one match field. Only the field selected by Type is
// meaningful.
type Criterion struct {
	Type    CriterionType
	Port    uint32
	Mac     net.HardwareAddr
	EthType uint16
	VlanID  uint16
	Prefix  netip.Prefix
}

func InPortCriterion(port uint32) Criterion {
	return Criterion{Type: CriterionInPort, Port: port}
}

func EthDstCriterion(mac net.HardwareAddr) Criterion {
	return Criterion{Type: CriterionEthDst, Mac: mac}
}

func EthTypeCriterion(ethType uint16) Criterion {
	return Criterion{Type: CriterionEthType, EthType: ethType}
}

func VlanCriterion(vlan uint16) Criterion {
	return Criterion{Type: CriterionVlanID, VlanID: vlan}
}

func IPv4DstCriterion(prefix netip.Prefix) Criterion {
	return Criterion{Type: CriterionIPv4Dst, Prefix: prefix}
}

// TrafficSelector is an ordered set of match criteria.
type TrafficSelector []Criterion

// Criterion returns the first criterion of the requested type.
func (s TrafficSelector) Criterion(t CriterionType) (Criterion, bool) {
	for _, c := range s {
		if c.Type == t {
			return c, true
		}
	}
	return Criterion{}, false
}

// TrafficTreatment describes what happens to a matched packet.
type TrafficTreatment struct {
	// Transition sends the packet to the next table stage.
	Transition TableStage
	// Drop and Punt are terminal actions.
	Drop bool
	Punt bool
	// PopVlan is applied deferred, after the transition.
	PopVlan bool
	// Group points the packet at an indirection group.
	Group GroupKey
	// Output forwards out of a switch port.
	Output uint32
}
