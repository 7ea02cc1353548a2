package engine

import "time"

// Clock abstracts time so the unhedged-exposure grace period can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
