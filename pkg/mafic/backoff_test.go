package mafic

import (
	"testing"
	"time"
)

func TestExpBackoffGrows(t *testing.T) {
	b := newExpBackoff()

	prev := time.Duration(0)
	capped := b.base << b.maxExp
	for i := 0; i < b.maxExp+5; i++ {
		delay := b.Delay()
		if delay < 0 || delay > capped {
			t.Fatalf("delay %v out of range on attempt %d", delay, i)
		}
		_ = prev
		prev = delay
	}
}

func TestExpBackoffResetsAfterQuietPeriod(t *testing.T) {
	b := newExpBackoff()
	for i := 0; i < 5; i++ {
		b.Delay()
	}
	if b.exp == 0 {
		t.Fatal("expected the exponent to have grown")
	}

	// A long quiet period means the last outage is over and the next
	// delay starts small again.
	b.last = time.Now().Add(-b.resetAt - time.Second)
	b.Delay()
	if b.exp > 1 {
		t.Fatalf("expected the exponent to reset, got %d", b.exp)
	}
}
