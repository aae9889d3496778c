// Package engine provides the fixed-step simulation loop and the Simulation
// that runs the herd through it.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives the simulation forward in fixed steps of DT sim-seconds.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	DT       float64       // Sim-seconds per tick
	Interval time.Duration // Wall-clock time per tick at speed 1

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running atomic.Bool

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnSecond func(tick uint64) // Every sim-second
	OnMinute func(tick uint64) // Every sim-minute
}

// NewEngine creates an engine stepping dt sim-seconds per tick.
func NewEngine(dt float64) *Engine {
	if dt <= 0 {
		dt = 0.1
	}
	return &Engine{
		DT:       dt,
		Interval: time.Duration(dt * float64(time.Second)),
		speed:    1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses the loop.
func (e *Engine) SetSpeed(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = math.Max(0, v)
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool { return e.running.Load() }

// TicksPerSecond is the number of ticks in one sim-second.
func (e *Engine) TicksPerSecond() uint64 {
	return max(1, uint64(math.Round(1/e.DT)))
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick, "dt", e.DT, "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// RunFor advances n ticks as fast as possible, ignoring speed.
func (e *Engine) RunFor(n int) {
	for i := 0; i < n; i++ {
		e.step()
	}
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	perSecond := e.TicksPerSecond()
	if e.Tick%perSecond == 0 && e.OnSecond != nil {
		e.OnSecond(e.Tick)
	}
	if e.Tick%(perSecond*60) == 0 && e.OnMinute != nil {
		e.OnMinute(e.Tick)
	}
}

// SimTime formats the sim clock at tick as minutes and seconds.
func SimTime(tick uint64, dt float64) string {
	total := float64(tick) * dt
	minutes := int(total / 60)
	seconds := total - float64(minutes)*60
	return fmt.Sprintf("%d:%04.1f", minutes, seconds)
}
