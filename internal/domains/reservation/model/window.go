package model

import (
	"atrium/shared/failure"
	"time"
)

// Window is the half-open interval [StartAt, EndAt) a reservation occupies.
type Window struct {
	StartAt time.Time
	EndAt   time.Time
}

// Validate fails unless StartAt is strictly before EndAt.
func (w Window) Validate() error {
	if !w.StartAt.Before(w.EndAt) {
		return failure.InvalidWindowError
	}

	return nil
}

func (w Window) Duration() time.Duration {
	return w.EndAt.Sub(w.StartAt)
}

// Overlaps implements the half-open interval test: two windows conflict iff
// each starts before the other ends. Back-to-back windows (A.EndAt ==
// B.StartAt) do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.StartAt.Before(other.EndAt) && other.StartAt.Before(w.EndAt)
}

// Equal reports whether both bounds match to the instant.
func (w Window) Equal(other Window) bool {
	return w.StartAt.Equal(other.StartAt) && w.EndAt.Equal(other.EndAt)
}
