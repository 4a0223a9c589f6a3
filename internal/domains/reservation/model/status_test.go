package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"atrium/internal/domains/reservation/model"
	"atrium/shared/failure"
)

func TestStatus_Next(t *testing.T) {
	tests := []struct {
		name    string
		status  model.Status
		action  model.Action
		want    model.Status
		wantErr bool
	}{
		{name: "approve pending", status: model.StatusPending, action: model.ActionApprove, want: model.StatusApproved},
		{name: "reject pending", status: model.StatusPending, action: model.ActionReject, want: model.StatusRejected},
		{name: "cancel pending", status: model.StatusPending, action: model.ActionCancel, want: model.StatusCancelled},
		{name: "edit pending", status: model.StatusPending, action: model.ActionEdit, want: model.StatusPending},
		{name: "cancel approved", status: model.StatusApproved, action: model.ActionCancel, want: model.StatusCancelled},
		{name: "edit approved", status: model.StatusApproved, action: model.ActionEdit, want: model.StatusApproved},
		{name: "approve approved", status: model.StatusApproved, action: model.ActionApprove, wantErr: true},
		{name: "reject approved", status: model.StatusApproved, action: model.ActionReject, wantErr: true},
		{name: "approve rejected", status: model.StatusRejected, action: model.ActionApprove, wantErr: true},
		{name: "cancel rejected", status: model.StatusRejected, action: model.ActionCancel, wantErr: true},
		{name: "edit cancelled", status: model.StatusCancelled, action: model.ActionEdit, wantErr: true},
		{name: "cancel cancelled", status: model.StatusCancelled, action: model.ActionCancel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.status.Next(tt.action)

			if tt.wantErr {
				assert.ErrorIs(t, err, failure.InvalidTransitionError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, next)
			}
		})
	}
}

func TestStatus_ActiveAndTerminal(t *testing.T) {
	assert.True(t, model.StatusPending.Active())
	assert.True(t, model.StatusApproved.Active())
	assert.False(t, model.StatusRejected.Active())
	assert.False(t, model.StatusCancelled.Active())

	assert.False(t, model.StatusPending.Terminal())
	assert.False(t, model.StatusApproved.Terminal())
	assert.True(t, model.StatusRejected.Terminal())
	assert.True(t, model.StatusCancelled.Terminal())
}

func TestActiveStatuses(t *testing.T) {
	assert.ElementsMatch(t, []string{"PENDING", "APPROVED"}, model.ActiveStatuses())
}
