package timezone

import "time"

// Clock abstracts the current time so services that stamp decisions can be
// tested with fixed timestamps.
type Clock interface {
	Now() time.Time
}

type appClock struct{}

func (appClock) Now() time.Time { return Now() }

// NewClock returns a Clock backed by the application timezone.
func NewClock() Clock { return appClock{} }

// FixedClock always reports the same instant.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }
