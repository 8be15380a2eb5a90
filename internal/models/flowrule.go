package models

// TableStage identifies one stage of the device pipeline.
type TableStage int8

const (
	TableNone TableStage = iota
	TableFirst
	TableVlanMPLS
	TableVlan
	TableEther
	TableCos
	TableIP
	TableACL
	TableLocal
)

func (t TableStage) String() string {
	switch t {
	case TableFirst:
		return "first"
	case TableVlanMPLS:
		return "vlan-mpls"
	case TableVlan:
		return "vlan"
	case TableEther:
		return "ether"
	case TableCos:
		return "cos"
	case TableIP:
		return "ip"
	case TableACL:
		return "acl"
	case TableLocal:
		return "local"
	}
	return "none"
}

// Priority tiers used by this pipeline.
const (
	PriorityDrop       uint32 = 0
	PriorityController uint32 = 255
	PriorityHighest    uint32 = 0xffff
)

// FlowRule is one match/action table entry.
type FlowRule struct {
	Table     TableStage
	Selector  TrafficSelector
	Treatment TrafficTreatment
	Priority  uint32
	AppID     string
	Permanent bool
}

// FlowRuleOp is one add or remove inside a batch.
type FlowRuleOp struct {
	Rule   FlowRule
	Remove bool
}

// FlowRuleBatch is applied all-or-nothing by the rule backend; Done is
// invoked exactly once with nil on success or the backend error.
type FlowRuleBatch struct {
	ID   string
	Ops  []FlowRuleOp
	Done func(err error)
}
