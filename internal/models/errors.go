package models

import "errors"

// Objective completion errors. Every failed objective reports exactly one
// of these through its context callback.
var (
	// ErrUnsupportedObjective rejects a structurally unsupported request
	// shape before any state is created.
	ErrUnsupportedObjective = errors.New("unsupported objective")

	// ErrUnsupportedCondition marks a filtering condition this pipeline
	// cannot express. Other conditions in the same objective still
	// translate.
	ErrUnsupportedCondition = errors.New("unsupported filtering condition")

	// ErrUnsupportedMatch marks a forwarding selector this pipeline cannot
	// express.
	ErrUnsupportedMatch = errors.New("unsupported match criteria")

	// ErrGroupMissing means the next-group binding (or the group itself)
	// is not there yet. Transient, the caller may resubmit later.
	ErrGroupMissing = errors.New("group missing")

	// ErrGroupInstallationFailed means the pending lease expired without
	// the backend ever confirming the group.
	ErrGroupInstallationFailed = errors.New("group installation failed")

	// ErrFlowInstallationFailed means the rule backend rejected the batch.
	ErrFlowInstallationFailed = errors.New("flow installation failed")
)
