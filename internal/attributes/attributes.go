// Package attributes implements the per-agent scalar state of a herd animal,
// the hierarchical tag set, and the effect pipeline that mutates both.
//
// Every write goes through a clamp so that the invariants hold before any
// value is observable: 0 <= Fear <= MaxFear, MaxFear >= 1, CalmLevel >= 0,
// 0.1 <= SpeedModifier <= 3 and 0 <= HerdAffinity <= 1.
package attributes

import (
	"errors"
	"fmt"
)

// ErrInvalidAttribute is returned when an effect references an unknown attribute.
var ErrInvalidAttribute = errors.New("invalid attribute")

// ID identifies an attribute.
type ID uint8

const (
	Fear ID = iota
	MaxFear
	FearDecayRate // Fear units removed per second
	CalmLevel
	LureSusceptibility // Scales incoming calm
	HerdAffinity
	HerdRadius
	SpeedModifier
	IncomingFear // Meta: routed into Fear
	IncomingCalm // Meta: routed into Fear and CalmLevel
	numIDs
)

var idNames = [numIDs]string{
	"Fear", "MaxFear", "FearDecayRate", "CalmLevel", "LureSusceptibility",
	"HerdAffinity", "HerdRadius", "SpeedModifier", "IncomingFear", "IncomingCalm",
}

func (id ID) String() string {
	if id < numIDs {
		return idNames[id]
	}
	return fmt.Sprintf("ID(%d)", uint8(id))
}

// Valid reports whether id names a known attribute.
func (id ID) Valid() bool { return id < numIDs }

// IsMeta reports whether id is a transient input channel.
func (id ID) IsMeta() bool { return id == IncomingFear || id == IncomingCalm }

// Value is the base and effective value of one attribute.
type Value struct {
	Base    float32 `json:"base"`
	Current float32 `json:"current"`
}

// Defaults seeds a new Set.
type Defaults struct {
	Fear               float32 `yaml:"fear"`
	MaxFear            float32 `yaml:"max_fear"`
	FearDecayRate      float32 `yaml:"fear_decay_rate"`
	CalmLevel          float32 `yaml:"calm_level"`
	LureSusceptibility float32 `yaml:"lure_susceptibility"`
	HerdAffinity       float32 `yaml:"herd_affinity"`
	HerdRadius         float32 `yaml:"herd_radius"`
	SpeedModifier      float32 `yaml:"speed_modifier"`
	PanicThreshold     float32 `yaml:"panic_threshold"`
}

// DefaultValues returns the stock cattle attribute values.
func DefaultValues() Defaults {
	return Defaults{
		Fear:               0,
		MaxFear:            100,
		FearDecayRate:      5,
		CalmLevel:          0,
		LureSusceptibility: 1,
		HerdAffinity:       0.5,
		HerdRadius:         1000,
		SpeedModifier:      1,
		PanicThreshold:     0.7,
	}
}

// modAgg is the aggregate of active modifiers on one attribute.
type modAgg struct {
	add         float32
	override    float32
	hasOverride bool
}

// Set holds one agent's attributes.
type Set struct {
	values [numIDs]Value
	mods   [numIDs]modAgg

	PanicThreshold float32
}

// NewSet creates a Set from d.
func NewSet(d Defaults) *Set {
	s := &Set{PanicThreshold: d.PanicThreshold}
	if s.PanicThreshold <= 0 {
		s.PanicThreshold = 0.7
	}
	// MaxFear first so the Fear clamp sees it.
	s.SetBase(MaxFear, d.MaxFear)
	s.SetBase(Fear, d.Fear)
	s.SetBase(FearDecayRate, d.FearDecayRate)
	s.SetBase(CalmLevel, d.CalmLevel)
	s.SetBase(LureSusceptibility, d.LureSusceptibility)
	s.SetBase(HerdAffinity, d.HerdAffinity)
	s.SetBase(HerdRadius, d.HerdRadius)
	s.SetBase(SpeedModifier, d.SpeedModifier)
	return s
}

// Get returns the effective value of id.
func (s *Set) Get(id ID) float32 {
	if !id.Valid() {
		return 0
	}
	return s.values[id].Current
}

// Base returns the base value of id.
func (s *Set) Base(id ID) float32 {
	if !id.Valid() {
		return 0
	}
	return s.values[id].Base
}

// Value returns both values of id.
func (s *Set) Value(id ID) Value {
	if !id.Valid() {
		return Value{}
	}
	return s.values[id]
}

// SetBase writes the base value of id through the clamp and recomputes the
// effective value.
func (s *Set) SetBase(id ID, v float32) {
	if !id.Valid() {
		return
	}
	s.values[id].Base = s.clamp(id, v)
	s.recalc(id)
}

func (s *Set) recalc(id ID) {
	v := s.values[id].Base
	m := s.mods[id]
	if m.hasOverride {
		v = m.override
	} else {
		v += m.add
	}
	s.values[id].Current = s.clamp(id, v)

	if id == MaxFear {
		// A lowered ceiling pulls Fear down with it.
		s.values[Fear].Base = s.clamp(Fear, s.values[Fear].Base)
		s.recalc(Fear)
	}
}

func (s *Set) setMods(id ID, m modAgg) {
	s.mods[id] = m
	s.recalc(id)
}

func (s *Set) clamp(id ID, v float32) float32 {
	switch id {
	case Fear:
		return clamp32(v, 0, s.values[MaxFear].Current)
	case MaxFear:
		return max32(v, 1)
	case SpeedModifier:
		return clamp32(v, 0.1, 3)
	case HerdAffinity:
		return clamp32(v, 0, 1)
	case CalmLevel, FearDecayRate, LureSusceptibility, HerdRadius:
		return max32(v, 0)
	}
	return v
}

// FearPercent returns Fear / MaxFear in [0, 1].
func (s *Set) FearPercent() float32 {
	maxFear := s.Get(MaxFear)
	if maxFear <= 0 {
		return 0
	}
	return s.Get(Fear) / maxFear
}

// IsPanicked reports whether FearPercent has reached PanicThreshold.
func (s *Set) IsPanicked() bool {
	return s.FearPercent() >= s.PanicThreshold
}

// addPending accumulates into a meta attribute.
func (s *Set) addPending(id ID, v float32) {
	s.values[id].Base += v
	s.values[id].Current = s.values[id].Base
}

// Drain routes any pending meta values into base attributes and zeroes them.
func (s *Set) Drain() {
	if in := s.values[IncomingFear].Base; in != 0 {
		s.values[IncomingFear] = Value{}
		s.SetBase(Fear, clamp32(s.Base(Fear)+in, 0, s.Get(MaxFear)))
	}
	if in := s.values[IncomingCalm].Base; in != 0 {
		s.values[IncomingCalm] = Value{}
		scaled := in * s.Get(LureSusceptibility)
		s.SetBase(Fear, max32(0, s.Base(Fear)-scaled))
		s.SetBase(CalmLevel, s.Base(CalmLevel)+scaled)
	}
}

// Snapshot returns every non-meta attribute keyed by name.
func (s *Set) Snapshot() map[string]Value {
	out := make(map[string]Value, numIDs)
	for id := ID(0); id < numIDs; id++ {
		if id.IsMeta() {
			continue
		}
		out[id.String()] = s.values[id]
	}
	return out
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
