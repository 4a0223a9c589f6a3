package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"atrium/internal/domains/reservation/model"
	"atrium/shared/failure"
)

func window(startHour, endHour int) model.Window {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	return model.Window{
		StartAt: base.Add(time.Duration(startHour) * time.Hour),
		EndAt:   base.Add(time.Duration(endHour) * time.Hour),
	}
}

func TestWindow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		window  model.Window
		wantErr bool
	}{
		{name: "start before end", window: window(9, 10), wantErr: false},
		{name: "zero length", window: window(9, 9), wantErr: true},
		{name: "inverted", window: window(10, 9), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()

			if tt.wantErr {
				assert.ErrorIs(t, err, failure.InvalidWindowError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWindow_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a    model.Window
		b    model.Window
		want bool
	}{
		{name: "identical windows", a: window(9, 10), b: window(9, 10), want: true},
		{name: "contained window", a: window(9, 12), b: window(10, 11), want: true},
		{name: "partial overlap front", a: window(9, 11), b: window(10, 12), want: true},
		{name: "partial overlap back", a: window(10, 12), b: window(9, 11), want: true},
		{name: "back to back", a: window(9, 10), b: window(10, 11), want: false},
		{name: "back to back reversed", a: window(10, 11), b: window(9, 10), want: false},
		{name: "disjoint", a: window(9, 10), b: window(14, 15), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))

			// Overlap is symmetric.
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestWindow_Duration(t *testing.T) {
	assert.Equal(t, 2*time.Hour, window(9, 11).Duration())
}

func TestWindow_Equal(t *testing.T) {
	assert.True(t, window(9, 10).Equal(window(9, 10)))
	assert.False(t, window(9, 10).Equal(window(9, 11)))

	// Equal instants in different locations still match.
	shifted := window(9, 10)
	shifted.StartAt = shifted.StartAt.In(time.FixedZone("UTC+7", 7*3600))
	assert.True(t, window(9, 10).Equal(shifted))
}
