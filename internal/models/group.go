package models

import "fmt"

// GroupKey correlates a pending next objective with the group the backend
// is asked to create. Plain value equality, round-trips through the
// binding store unchanged.
type GroupKey string

// GroupKeyForNext derives the programming key for a next objective.
// Deterministic so a resubmitted objective maps onto the same group.
func GroupKeyForNext(deviceID string, nextID uint32) GroupKey {
	return GroupKey(fmt.Sprintf("%s/next/%d", deviceID, nextID))
}

// GroupBucket is a single egress treatment inside an indirect group.
type GroupBucket struct {
	Treatment TrafficTreatment
}

// GroupRecord is the backend's view of an installed group.
type GroupRecord struct {
	Key     GroupKey
	Buckets []GroupBucket
}

// GroupEvent is the backend's out-of-band creation notification. Delivery
// is best effort, the reconciliation sweep covers missed events.
type GroupEvent struct {
	Key GroupKey
}

// NextGroupBinding maps a next objective ID onto its resolved group key.
type NextGroupBinding struct {
	NextID uint32   `json:"next_id"`
	Key    GroupKey `json:"group_key"`
}
