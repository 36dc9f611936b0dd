package timer

import (
	"math/rand"
	"time"

	"github.com/5jayarama/raftkv/src/config"
)

// Clock abstracts monotonic time so tests can control it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ElectionTimeout samples a fresh randomized timeout from the configured
// range. Re-sampled on every timer reset to reduce split votes.
func ElectionTimeout() time.Duration {
	min := config.Config.ElectionTimeoutMin
	max := config.Config.ElectionTimeoutMax
	if max <= min {
		return time.Duration(min) * time.Millisecond
	}
	return time.Duration(min+rand.Intn(max-min)) * time.Millisecond
}
