package model

import (
	"atrium/shared/failure"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionEdit    Action = "edit"
)

// transitions is the whole state machine: a missing entry means the action is
// not permitted from that status. REJECTED and CANCELLED have no entries at
// all, which is what makes them terminal.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusRejected,
		ActionCancel:  StatusCancelled,
		ActionEdit:    StatusPending,
	},
	StatusApproved: {
		ActionCancel: StatusCancelled,
		ActionEdit:   StatusApproved,
	},
}

// Active reports whether the reservation still occupies its window and must be
// counted by the conflict check.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Next returns the status reached by applying action, or the invalid
// transition failure when the action is not permitted from s.
func (s Status) Next(action Action) (Status, error) {
	next, ok := transitions[s][action]
	if !ok {
		return s, failure.InvalidTransitionError
	}

	return next, nil
}

// ActiveStatuses returns the statuses counted by the conflict check, in the
// form the filter DSL expects.
func ActiveStatuses() []string {
	return []string{string(StatusPending), string(StatusApproved)}
}
