package dto

import (
	"time"

	"github.com/google/uuid"

	"atrium/internal/domains/reservation/model"
	"atrium/shared"
	"atrium/shared/constant"
	gDto "atrium/shared/dto"
	gModel "atrium/shared/model"
	"atrium/shared/timezone"
)

type CreateReservationRequest struct {
	SpaceID     string `json:"space_id"    validate:"required"`
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	StartAt     string `json:"start_at"    validate:"required"`
	EndAt       string `json:"end_at"      validate:"required"`
}

func (c *CreateReservationRequest) ToModel(user string, now time.Time) (model.Reservation, error) {
	startAt, err := time.Parse(time.RFC3339, c.StartAt)
	if err != nil {
		return model.Reservation{}, err
	}

	endAt, err := time.Parse(time.RFC3339, c.EndAt)
	if err != nil {
		return model.Reservation{}, err
	}

	return model.Reservation{
		ID:          uuid.NewString(),
		SpaceID:     c.SpaceID,
		Title:       c.Title,
		Description: c.Description,
		StartAt:     startAt,
		EndAt:       endAt,
		Status:      model.StatusPending,
		Metadata: gModel.Metadata{
			CreatedAt:  now,
			ModifiedAt: now,
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}, nil
}

// UpdateReservationRequest carries the owner/admin editable fields. Title and
// description go through the generic field transform; window and space changes
// are handled explicitly by the service because they re-trigger the conflict
// check.
type UpdateReservationRequest struct {
	Title       string `db:"title"       json:"title"       validate:"omitempty,max=200"`
	Description string `db:"description" json:"description" validate:"omitempty,max=1000"`
	SpaceID     string `json:"space_id" validate:"omitempty"`
	StartAt     string `json:"start_at" validate:"omitempty"`
	EndAt       string `json:"end_at"   validate:"omitempty"`
}

// DecisionRequest is the optional note attached to an approve or reject.
type DecisionRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

// RangeQuery bounds a listing to windows intersecting [Start, End). Nil bounds
// fall back to the configured default window at the service layer.
type RangeQuery struct {
	SpaceID string
	Start   *time.Time
	End     *time.Time
}

type ReservationResponse struct {
	ID           string `json:"id"`
	SpaceID      string `json:"space_id"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	Status       string `json:"status"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	DecisionAt   string `json:"decision_at,omitempty"`
	DecisionNote string `json:"decision_note,omitempty"`
	Label        string `json:"label,omitempty"`
	gDto.Metadata
}

func (r *ReservationResponse) FromModel(m model.Reservation) {
	r.ID = m.ID
	r.SpaceID = m.SpaceID
	r.Title = m.Title
	r.Description = m.Description
	r.StartAt = timezone.Format(m.StartAt, constant.DateFormat)
	r.EndAt = timezone.Format(m.EndAt, constant.DateFormat)
	r.Status = string(m.Status)

	if m.ApprovedBy != nil {
		r.ApprovedBy = *m.ApprovedBy
	}

	if m.DecisionAt != nil {
		r.DecisionAt = timezone.Format(*m.DecisionAt, constant.DateFormat)
	}

	if m.DecisionNote != nil {
		r.DecisionNote = *m.DecisionNote
	}

	r.Metadata.FromModel(m.Metadata)
}

// FromModelPublic keeps only what an unprivileged viewer may see: the space,
// the occupied window and the status, labelled as busy.
func (r *ReservationResponse) FromModelPublic(m model.Reservation) {
	r.ID = m.ID
	r.SpaceID = m.SpaceID
	r.StartAt = timezone.Format(m.StartAt, constant.DateFormat)
	r.EndAt = timezone.Format(m.EndAt, constant.DateFormat)
	r.Status = string(m.Status)
	r.Label = "busy"
}

type GetReservationsResponse struct {
	Reservations []ReservationResponse `json:"reservations"`
	TotalPage    int                   `json:"total_page"`
	TotalData    int                   `json:"total_data"`
}

func (r *GetReservationsResponse) FromModels(models []model.Reservation, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Reservations = make([]ReservationResponse, len(models))
	for i, mod := range models {
		r.Reservations[i].FromModel(mod)
	}
}

func (r *GetReservationsResponse) FromModelsPublic(models []model.Reservation, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Reservations = make([]ReservationResponse, len(models))
	for i, mod := range models {
		r.Reservations[i].FromModelPublic(mod)
	}
}
