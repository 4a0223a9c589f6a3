package model

import (
	"atrium/shared/model"
	"time"
)

const (
	TableName  = "reservations"
	EntityName = "reservation"

	FieldID           = "id"
	FieldSpaceID      = "space_id"
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldStartAt      = "start_at"
	FieldEndAt        = "end_at"
	FieldStatus       = "status"
	FieldApprovedBy   = "approved_by"
	FieldDecisionAt   = "decision_at"
	FieldDecisionNote = "decision_note"
	FieldCreatedBy    = "created_by"
)

// Reservation is a claim on a space over the half-open window [StartAt, EndAt).
// The requester identity lives in Metadata.CreatedBy and never changes after
// creation. ApprovedBy, DecisionAt and DecisionNote are set by approve/reject
// only; cancel leaves them untouched.
type Reservation struct {
	ID           string     `db:"id"`
	SpaceID      string     `db:"space_id"`
	Title        string     `db:"title"`
	Description  string     `db:"description"`
	StartAt      time.Time  `db:"start_at"`
	EndAt        time.Time  `db:"end_at"`
	Status       Status     `db:"status"`
	ApprovedBy   *string    `db:"approved_by"`
	DecisionAt   *time.Time `db:"decision_at"`
	DecisionNote *string    `db:"decision_note"`
	model.Metadata
}

func (r *Reservation) Window() Window {
	return Window{StartAt: r.StartAt, EndAt: r.EndAt}
}

// OwnedBy reports whether the given user created this reservation.
func (r *Reservation) OwnedBy(userID string) bool {
	return r.CreatedBy == userID
}
