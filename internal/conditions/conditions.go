// Package conditions holds the decorator checks the herd tree gates its
// branches on. Each reads the agent's blackboard, or its tags for lasso state.
package conditions

import (
	"fmt"
	"strings"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/blackboard"
)

// Ctx is the behavior context conditions run in.
type Ctx = behavior.Context[*agents.Agent]

// Condition is a decorator check over an agent.
type Condition = behavior.Condition[*agents.Agent]

func fearLevel(ctx *Ctx) float32 {
	v, _ := ctx.Board.Float(blackboard.FearLevel)
	return v
}

// FearLevel passes when Min <= fear <= Max.
type FearLevel struct {
	Min, Max float32
}

func (c FearLevel) Name() string { return fmt.Sprintf("FearLevel(%.2g..%.2g)", c.Min, c.Max) }

func (c FearLevel) Check(ctx *Ctx) bool {
	f := fearLevel(ctx)
	return f >= c.Min && f <= c.Max
}

// IsCattlePanicked passes when the agent is panicked. With Direct set it asks
// the attribute set instead of the blackboard snapshot.
type IsCattlePanicked struct {
	Direct bool
}

func (c IsCattlePanicked) Name() string { return "IsCattlePanicked" }

func (c IsCattlePanicked) Check(ctx *Ctx) bool {
	if c.Direct {
		return ctx.Agent.IsPanicked()
	}
	return ctx.Board.Bool(blackboard.IsPanicked)
}

// HasFlowDirection passes when the flow direction is at least MinMagnitude long.
type HasFlowDirection struct {
	MinMagnitude float64
}

func (c HasFlowDirection) Name() string { return "HasFlowDirection" }

func (c HasFlowDirection) Check(ctx *Ctx) bool {
	v, ok := ctx.Board.Vector(blackboard.FlowDirection)
	if !ok || v.IsNearlyZero() {
		return false
	}
	return v.Len() >= c.MinMagnitude
}

// HasNearbyThreat passes when a threat is known within MaxDistance.
type HasNearbyThreat struct {
	MaxDistance float32
}

func (c HasNearbyThreat) Name() string { return fmt.Sprintf("HasNearbyThreat(%g)", c.MaxDistance) }

func (c HasNearbyThreat) Check(ctx *Ctx) bool {
	if _, ok := ctx.Board.Actor(blackboard.NearestThreat); !ok {
		return false
	}
	d, ok := ctx.Board.Float(blackboard.ThreatDistance)
	return ok && d <= c.MaxDistance
}

// IsInAreaType passes when the primary area under the agent is Kind.
type IsInAreaType struct {
	Kind areas.Kind
}

func (c IsInAreaType) Name() string { return "IsInAreaType(" + c.Kind.String() + ")" }

func (c IsInAreaType) Check(ctx *Ctx) bool { return ctx.Board.AreaType() == c.Kind }

// IsBeingLured passes when a lure is playing and the agent is calm enough to
// follow it.
type IsBeingLured struct {
	MaxFear float32
}

func (c IsBeingLured) Name() string { return "IsBeingLured" }

func (c IsBeingLured) Check(ctx *Ctx) bool {
	return ctx.Board.Bool(blackboard.IsBeingLured) && fearLevel(ctx) <= c.MaxFear
}

// IsBeingScared passes while a scare trumpet is playing nearby.
type IsBeingScared struct{}

func (IsBeingScared) Name() string        { return "IsBeingScared" }
func (IsBeingScared) Check(ctx *Ctx) bool { return ctx.Board.Bool(blackboard.IsBeingScared) }

// IsExplosiveNearby passes while a lit explosive is close.
type IsExplosiveNearby struct{}

func (IsExplosiveNearby) Name() string { return "IsExplosiveNearby" }

func (IsExplosiveNearby) Check(ctx *Ctx) bool {
	_, ok := ctx.Board.Actor(blackboard.NearbyExplosive)
	return ok
}

// IsPlayerShooting passes while a player is firing nearby and fear is in
// [MinFear, MaxFear). A MaxFear of zero means no upper bound.
type IsPlayerShooting struct {
	MinFear float32
	MaxFear float32
}

func (c IsPlayerShooting) Name() string { return "IsPlayerShooting" }

func (c IsPlayerShooting) Check(ctx *Ctx) bool {
	if !ctx.Board.Bool(blackboard.IsPlayerShooting) {
		return false
	}
	f := fearLevel(ctx)
	if f < c.MinFear {
		return false
	}
	return c.MaxFear <= 0 || f < c.MaxFear
}

// IsLassoed passes while the agent is caught by a lasso.
type IsLassoed struct{}

func (IsLassoed) Name() string        { return "IsLassoed" }
func (IsLassoed) Check(ctx *Ctx) bool { return ctx.Agent.HasTag(attributes.TagLassoed) }

// AnyOf passes when any of its conditions passes.
type AnyOf []Condition

func (c AnyOf) Name() string { return joinNames([]Condition(c), " | ") }

func (c AnyOf) Check(ctx *Ctx) bool {
	for _, cond := range c {
		if cond.Check(ctx) {
			return true
		}
	}
	return false
}

// AllOf passes when every condition passes.
type AllOf []Condition

func (c AllOf) Name() string { return joinNames([]Condition(c), " & ") }

func (c AllOf) Check(ctx *Ctx) bool {
	for _, cond := range c {
		if !cond.Check(ctx) {
			return false
		}
	}
	return true
}

func joinNames(conds []Condition, sep string) string {
	names := make([]string, len(conds))
	for i, c := range conds {
		names[i] = c.Name()
	}
	return strings.Join(names, sep)
}
