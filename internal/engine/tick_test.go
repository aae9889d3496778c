package engine

import (
	"testing"
	"time"
)

func TestEngine_RunForLayers(t *testing.T) {
	e := NewEngine(0.1)
	var ticks, seconds, minutes int
	e.OnTick = func(uint64) { ticks++ }
	e.OnSecond = func(tick uint64) {
		seconds++
		if tick%10 != 0 {
			t.Errorf("OnSecond at tick %d", tick)
		}
	}
	e.OnMinute = func(uint64) { minutes++ }

	e.RunFor(25)
	if ticks != 25 || seconds != 2 || minutes != 0 {
		t.Fatalf("layers: ticks %d seconds %d minutes %d", ticks, seconds, minutes)
	}
	e.RunFor(575)
	if minutes != 1 {
		t.Fatalf("minutes after 600 ticks: got %d, want 1", minutes)
	}
	if e.Tick != 600 {
		t.Fatalf("tick: got %d, want 600", e.Tick)
	}
}

func TestEngine_Speed(t *testing.T) {
	e := NewEngine(0)
	if e.DT != 0.1 {
		t.Fatalf("default dt: got %g", e.DT)
	}
	e.SetSpeed(-3)
	if e.Speed() != 0 {
		t.Fatalf("negative speed should clamp to 0, got %g", e.Speed())
	}
	e.SetSpeed(4)
	if e.Speed() != 4 {
		t.Fatalf("speed: got %g, want 4", e.Speed())
	}
}

func TestEngine_RunStops(t *testing.T) {
	e := NewEngine(0.1)
	e.Interval = time.Millisecond
	e.OnTick = func(tick uint64) {
		if tick == 3 {
			e.Stop()
		}
	}

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		e.Stop()
		t.Fatalf("Run did not return after Stop")
	}
	if e.Tick != 3 || e.Running() {
		t.Fatalf("tick %d running %v", e.Tick, e.Running())
	}
}

func TestSimTime(t *testing.T) {
	tests := []struct {
		tick uint64
		want string
	}{
		{0, "0:00.0"},
		{5, "0:00.5"},
		{755, "1:15.5"},
	}
	for _, tt := range tests {
		if got := SimTime(tt.tick, 0.1); got != tt.want {
			t.Errorf("SimTime(%d): got %q, want %q", tt.tick, got, tt.want)
		}
	}
}
