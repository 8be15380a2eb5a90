package models

// Operation says whether an objective installs or uninstalls forwarding
// state.
type Operation int8

const (
	OpAdd Operation = iota
	OpRemove
)

// ObjectiveContext carries the completion callbacks of an objective.
// Either callback fires at most once, from whatever goroutine resolved
// the objective. A nil context means the submitter does not care.
type ObjectiveContext struct {
	OnSuccess func()
	OnError   func(err error)
}

// Pass invokes the success callback if one is attached.
func (c *ObjectiveContext) Pass() {
	if c != nil && c.OnSuccess != nil {
		c.OnSuccess()
	}
}

// Fail invokes the failure callback if one is attached.
func (c *ObjectiveContext) Fail(err error) {
	if c != nil && c.OnError != nil {
		c.OnError(err)
	}
}

type FilteringType int8

const (
	FilterPermit FilteringType = iota
	FilterDeny
)

// FilteringObjective admits traffic at an ingress port. Key must be an
// in-port criterion; each condition yields one admission entry.
type FilteringObjective struct {
	AppID      string
	Op         Operation
	Type       FilteringType
	Key        Criterion
	Conditions []Criterion
	Context    *ObjectiveContext
}

type ForwardingFlag int8

const (
	ForwardSpecific ForwardingFlag = iota
	ForwardVersatile
)

// ForwardingObjective maps a selector onto a previously resolved next
// group.
type ForwardingObjective struct {
	AppID     string
	Op        Operation
	Flag      ForwardingFlag
	Selector  TrafficSelector
	NextID    uint32
	Priority  uint32
	Permanent bool
	Context   *ObjectiveContext
}

type NextType int8

const (
	NextSimple NextType = iota
	NextHashed
	NextBroadcast
	NextFailover
)

// NextObjective defines candidate egress treatments, materialized as a
// group by the backend.
type NextObjective struct {
	AppID      string
	Op         Operation
	ID         uint32
	Type       NextType
	Treatments []TrafficTreatment
	Context    *ObjectiveContext
}
