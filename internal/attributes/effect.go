package attributes

import "fmt"

// DurationPolicy controls how long an effect stays active.
type DurationPolicy uint8

const (
	Instant     DurationPolicy = iota // Execute once and discard
	HasDuration                       // Active for Effect.Duration seconds
	Infinite                          // Active until removed
)

// Op is how a modifier combines with the attribute.
type Op uint8

const (
	OpAdd Op = iota
	OpOverride
)

// Modifier is one attribute delta carried by an effect.
type Modifier struct {
	Attribute ID
	Op        Op
	Magnitude float32
}

// Effect is a template describing a set of attribute and tag mutations.
type Effect struct {
	Name     string
	Policy   DurationPolicy
	Duration float64 // Seconds, HasDuration only

	// Period > 0 turns a lasting effect into a periodic one: its modifiers
	// execute against base values every Period seconds instead of modifying
	// the current value.
	Period         float64
	ExecuteOnApply bool

	Tags      []string
	Modifiers []Modifier

	FearDecayMultiplier float32 // 0 means no change to decay
	BlocksFearDecay     bool
}

// SourceKind categorizes what applied an effect.
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceZone
	SourceGuide
	SourceActor
	SourceSensor
)

// Source identifies the owner of an effect. Removing the owner must remove
// its effects.
type Source struct {
	Kind SourceKind
	ID   uint64
}

func (s Source) String() string {
	switch s.Kind {
	case SourceZone:
		return fmt.Sprintf("zone:%d", s.ID)
	case SourceGuide:
		return fmt.Sprintf("guide:%d", s.ID)
	case SourceActor:
		return fmt.Sprintf("actor:%d", s.ID)
	case SourceSensor:
		return fmt.Sprintf("sensor:%d", s.ID)
	}
	return "none"
}

// Handle refers to an active effect. Zero is never a valid handle.
type Handle uint64

// InstantFear returns an instant effect that routes amount through IncomingFear.
func InstantFear(amount float32) Effect {
	return Effect{
		Name:      "FearPulse",
		Policy:    Instant,
		Modifiers: []Modifier{{Attribute: IncomingFear, Op: OpAdd, Magnitude: amount}},
	}
}

// InstantCalm returns an instant effect that routes amount through IncomingCalm.
func InstantCalm(amount float32) Effect {
	return Effect{
		Name:      "CalmPulse",
		Policy:    Instant,
		Modifiers: []Modifier{{Attribute: IncomingCalm, Op: OpAdd, Magnitude: amount}},
	}
}

func (e *Effect) validate() error {
	for _, m := range e.Modifiers {
		if !m.Attribute.Valid() {
			return fmt.Errorf("effect %q: %w: %d", e.Name, ErrInvalidAttribute, m.Attribute)
		}
	}
	return nil
}

// execute applies the modifiers to base values and drains meta attributes.
func (e *Effect) execute(s *Set) {
	for _, m := range e.Modifiers {
		if m.Attribute.IsMeta() {
			s.addPending(m.Attribute, m.Magnitude)
			continue
		}
		switch m.Op {
		case OpAdd:
			s.SetBase(m.Attribute, s.Base(m.Attribute)+m.Magnitude)
		case OpOverride:
			s.SetBase(m.Attribute, m.Magnitude)
		}
	}
	s.Drain()
}

// executeMeta runs only the meta deltas. Lasting non-periodic effects use it
// on application since meta attributes cannot be held as modifiers.
func (e *Effect) executeMeta(s *Set) {
	ran := false
	for _, m := range e.Modifiers {
		if m.Attribute.IsMeta() {
			s.addPending(m.Attribute, m.Magnitude)
			ran = true
		}
	}
	if ran {
		s.Drain()
	}
}
