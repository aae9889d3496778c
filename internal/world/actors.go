package world

import "fmt"

// ActorID identifies anything the core can reference: animals, players,
// threats and projectiles. Zero is the null reference.
type ActorID uint64

// None is the null actor reference.
const None ActorID = 0

// ActorClass categorizes actors for sphere queries.
type ActorClass uint8

const (
	ClassAnimal    ActorClass = iota // Herd agents
	ClassPlayer                      // Player characters
	ClassThreat                      // Predators and other configured threat classes
	ClassExplosive                   // Thrown dynamite
)

var classNames = [...]string{"animal", "player", "threat", "explosive"}

func (c ActorClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// ClassMask selects actor classes in a sphere query.
type ClassMask uint8

// Mask returns the mask matching only c.
func (c ActorClass) Mask() ClassMask { return 1 << c }

// MaskAll matches every class.
const MaskAll ClassMask = 0xFF

// Has reports whether the mask selects c.
func (m ClassMask) Has(c ActorClass) bool { return m&c.Mask() != 0 }

// TrumpetMode is what a player's trumpet is currently doing.
type TrumpetMode uint8

const (
	TrumpetSilent TrumpetMode = iota
	TrumpetLure
	TrumpetScare
)

var trumpetNames = [...]string{"silent", "lure", "scare"}

func (m TrumpetMode) String() string {
	if int(m) < len(trumpetNames) {
		return trumpetNames[m]
	}
	return "unknown"
}

// FuseState is the lifecycle of a thrown explosive.
type FuseState uint8

const (
	FuseFlying FuseState = iota // In the air, not yet a threat
	FuseFusing                  // Landed and burning
	FuseSpent
)

var fuseNames = [...]string{"flying", "fusing", "spent"}

func (f FuseState) String() string {
	if int(f) < len(fuseNames) {
		return fuseNames[f]
	}
	return "unknown"
}

// ParseClass maps a config name to an ActorClass.
func ParseClass(s string) (ActorClass, error) {
	for i, n := range classNames {
		if n == s {
			return ActorClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown actor class %q", s)
}

// ParseTrumpet maps a config name to a TrumpetMode. Empty means silent.
func ParseTrumpet(s string) (TrumpetMode, error) {
	if s == "" {
		return TrumpetSilent, nil
	}
	for i, n := range trumpetNames {
		if n == s {
			return TrumpetMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown trumpet mode %q", s)
}

// ParseFuse maps a config name to a FuseState. Empty means flying.
func ParseFuse(s string) (FuseState, error) {
	if s == "" {
		return FuseFlying, nil
	}
	for i, n := range fuseNames {
		if n == s {
			return FuseState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fuse state %q", s)
}

// Actor is the harness view of one actor. Only the fields relevant to the
// actor's class are meaningful.
type Actor struct {
	ID       ActorID    `json:"id"`
	Class    ActorClass `json:"class"`
	Position Vec3       `json:"position"`
	Velocity Vec3       `json:"velocity"`

	// Players
	Trumpet      TrumpetMode `json:"trumpet,omitempty"`
	HasGun       bool        `json:"has_gun,omitempty"`
	HasFired     bool        `json:"has_fired,omitempty"`
	LastFireTime float64     `json:"last_fire_time,omitempty"` // Seconds; meaningful when HasFired

	// Explosives
	Fuse FuseState `json:"fuse,omitempty"`
}
