package mafic

import (
	"math/rand"
	"time"
)

// expBackoff produces exponentially growing, jittered reconnect delays. A
// fresh value is used per connection attempt sequence; a long enough quiet
// period resets the exponent.
type expBackoff struct {
	base    time.Duration
	exp     int
	maxExp  int
	resetAt time.Duration
	last    time.Time
	rng     *rand.Rand
}

func newExpBackoff() *expBackoff {
	base := time.Second
	maxExp := 10
	return &expBackoff{
		base:    base,
		maxExp:  maxExp,
		resetAt: base * (1 << (maxExp + 1)),
		last:    time.Now(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the next sleep interval, at most base * 2^maxExp.
func (b *expBackoff) Delay() time.Duration {
	now := time.Now()
	if now.Sub(b.last) > b.resetAt {
		b.exp = 0
	}
	b.last = now

	if b.exp < b.maxExp {
		b.exp++
	}

	ceiling := b.base * (1 << b.exp)
	return time.Duration(b.rng.Int63n(int64(ceiling)))
}
