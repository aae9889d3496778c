// Package blackboard is the typed per-agent key/value store shared by
// behavior tree nodes. Keys are small enums, one enum per value type, so a
// read of the wrong type does not compile.
package blackboard

import (
	"log/slog"

	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/world"
)

// VectorKey names a vector slot.
type VectorKey uint8

const (
	TargetLocation VectorKey = iota
	HomeLocation
	FlowDirection
	HerdDirection
	numVectorKeys
)

// FloatKey names a float slot.
type FloatKey uint8

const (
	WanderRadius FloatKey = iota
	FearLevel             // Fear as a fraction of MaxFear
	ThreatDistance
	numFloatKeys
)

// BoolKey names a bool slot.
type BoolKey uint8

const (
	IsPanicked BoolKey = iota
	IsBeingLured
	IsBeingScared
	IsPlayerShooting
	numBoolKeys
)

// ActorKey names an actor reference slot.
type ActorKey uint8

const (
	TargetActor ActorKey = iota
	NearestThreat
	NearbyExplosive
	LurerActor
	ScarerActor
	ShooterActor
	numActorKeys
)

// IntKey names an int slot.
type IntKey uint8

const (
	HerdCount IntKey = iota
	numIntKeys
)

var (
	vectorNames = [numVectorKeys]string{"TargetLocation", "HomeLocation", "FlowDirection", "HerdDirection"}
	floatNames  = [numFloatKeys]string{"WanderRadius", "FearLevel", "ThreatDistance"}
	boolNames   = [numBoolKeys]string{"IsPanicked", "IsBeingLured", "IsBeingScared", "IsPlayerShooting"}
	actorNames  = [numActorKeys]string{"TargetActor", "NearestThreat", "NearbyExplosive", "LurerActor", "ScarerActor", "ShooterActor"}
	intNames    = [numIntKeys]string{"HerdCount"}
)

func (k VectorKey) String() string { return vectorNames[k] }
func (k FloatKey) String() string  { return floatNames[k] }
func (k BoolKey) String() string   { return boolNames[k] }
func (k ActorKey) String() string  { return actorNames[k] }
func (k IntKey) String() string    { return intNames[k] }

// Blackboard holds one agent's slots. Every slot tracks whether it has been
// written; reads of unwritten slots report ok == false.
type Blackboard struct {
	owner world.ActorID

	vectors    [numVectorKeys]world.Vec3
	vectorsSet [numVectorKeys]bool
	floats     [numFloatKeys]float32
	floatsSet  [numFloatKeys]bool
	bools      [numBoolKeys]bool
	boolsSet   [numBoolKeys]bool
	actors     [numActorKeys]world.ActorID
	ints       [numIntKeys]int
	intsSet    [numIntKeys]bool

	areaType    areas.Kind
	areaTypeSet bool

	reported map[string]bool
}

// New returns an empty blackboard owned by agent id.
func New(owner world.ActorID) *Blackboard {
	return &Blackboard{owner: owner}
}

func (b *Blackboard) Vector(k VectorKey) (world.Vec3, bool) { return b.vectors[k], b.vectorsSet[k] }
func (b *Blackboard) Float(k FloatKey) (float32, bool)      { return b.floats[k], b.floatsSet[k] }
func (b *Blackboard) Bool(k BoolKey) bool                   { return b.bools[k] }
func (b *Blackboard) Int(k IntKey) (int, bool)              { return b.ints[k], b.intsSet[k] }

// Actor returns the referenced actor. ok is false for the null reference.
func (b *Blackboard) Actor(k ActorKey) (world.ActorID, bool) {
	return b.actors[k], b.actors[k] != world.None
}

// AreaType returns the kind of the agent's primary zone.
func (b *Blackboard) AreaType() areas.Kind { return b.areaType }

func (b *Blackboard) SetVector(k VectorKey, v world.Vec3) {
	b.vectors[k] = v
	b.vectorsSet[k] = true
}

func (b *Blackboard) SetFloat(k FloatKey, v float32) {
	b.floats[k] = v
	b.floatsSet[k] = true
}

func (b *Blackboard) SetBool(k BoolKey, v bool) {
	b.bools[k] = v
	b.boolsSet[k] = true
}

func (b *Blackboard) SetActor(k ActorKey, id world.ActorID) {
	b.actors[k] = id
}

func (b *Blackboard) SetInt(k IntKey, v int) {
	b.ints[k] = v
	b.intsSet[k] = true
}

func (b *Blackboard) SetAreaType(k areas.Kind) {
	b.areaType = k
	b.areaTypeSet = true
}

// ClearVector unbinds a vector slot.
func (b *Blackboard) ClearVector(k VectorKey) {
	b.vectors[k] = world.Vec3{}
	b.vectorsSet[k] = false
}

// ClearActor resets a reference slot to null.
func (b *Blackboard) ClearActor(k ActorKey) {
	b.actors[k] = world.None
}

// ReportMissing logs an unbound key once per blackboard.
func (b *Blackboard) ReportMissing(task string, key string) {
	if b.reported == nil {
		b.reported = make(map[string]bool)
	}
	if b.reported[key] {
		return
	}
	b.reported[key] = true
	slog.Warn("blackboard key not set", "agent", b.owner, "task", task, "key", key)
}

// Snapshot returns every written slot keyed by name.
func (b *Blackboard) Snapshot() map[string]any {
	out := make(map[string]any)
	for k := VectorKey(0); k < numVectorKeys; k++ {
		if b.vectorsSet[k] {
			out[k.String()] = b.vectors[k]
		}
	}
	for k := FloatKey(0); k < numFloatKeys; k++ {
		if b.floatsSet[k] {
			out[k.String()] = b.floats[k]
		}
	}
	for k := BoolKey(0); k < numBoolKeys; k++ {
		if b.boolsSet[k] {
			out[k.String()] = b.bools[k]
		}
	}
	for k := ActorKey(0); k < numActorKeys; k++ {
		if b.actors[k] != world.None {
			out[k.String()] = b.actors[k]
		}
	}
	for k := IntKey(0); k < numIntKeys; k++ {
		if b.intsSet[k] {
			out[k.String()] = b.ints[k]
		}
	}
	if b.areaTypeSet {
		out["CurrentAreaType"] = b.areaType.String()
	}
	return out
}
