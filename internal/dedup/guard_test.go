package dedup

import (
	"testing"
	"time"
)

func TestGuard_BeginFinishCycle(t *testing.T) {
	g := NewGuard(5*time.Minute, nil)

	if !g.Begin("id-1") {
		t.Fatal("first Begin should admit")
	}
	if g.Begin("id-1") {
		t.Error("Begin while in flight should refuse")
	}

	g.Finish("id-1")
	if g.Begin("id-1") {
		t.Error("Begin after Finish within TTL should refuse")
	}

	if !g.Begin("id-2") {
		t.Error("unrelated identity should be admitted")
	}
}

func TestGuard_TTLExpiry(t *testing.T) {
	clock := time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC)
	g := NewGuard(5*time.Minute, func() time.Time { return clock })

	if !g.Begin("id-1") {
		t.Fatal("Begin should admit")
	}
	g.Finish("id-1")

	clock = clock.Add(4 * time.Minute)
	if g.Begin("id-1") {
		t.Error("Begin before TTL elapsed should refuse")
	}

	clock = clock.Add(2 * time.Minute)
	if !g.Begin("id-1") {
		t.Error("Begin after TTL elapsed should admit again")
	}
}

func TestGuard_ReleaseReadmits(t *testing.T) {
	g := NewGuard(5*time.Minute, nil)

	if !g.Begin("id-1") {
		t.Fatal("Begin should admit")
	}
	g.Release("id-1")

	if !g.Begin("id-1") {
		t.Error("Begin after Release should admit immediately")
	}
}

func TestGuard_Concurrent(t *testing.T) {
	g := NewGuard(time.Minute, nil)

	admitted := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			admitted <- g.Begin("same-id")
		}()
	}

	wins := 0
	for i := 0; i < 10; i++ {
		if <-admitted {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("admitted %d concurrent Begins for one identity, want 1", wins)
	}
}
