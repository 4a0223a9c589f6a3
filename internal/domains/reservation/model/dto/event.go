package dto

import (
	"time"

	"atrium/internal/domains/reservation/model"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationUpdated   = "reservation.updated"
	EventReservationApproved  = "reservation.approved"
	EventReservationRejected  = "reservation.rejected"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is the lifecycle record published to the event stream for
// downstream consumers (audit, dashboards). It is not a notification channel.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	SpaceID       string    `json:"space_id"`
	Status        string    `json:"status"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Actor         string    `json:"actor"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewReservationEvent(eventType string, m model.Reservation, actor string, occurredAt time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          eventType,
		ReservationID: m.ID,
		SpaceID:       m.SpaceID,
		Status:        string(m.Status),
		StartAt:       m.StartAt,
		EndAt:         m.EndAt,
		Actor:         actor,
		OccurredAt:    occurredAt,
	}
}
