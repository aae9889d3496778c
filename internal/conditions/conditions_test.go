package conditions

import (
	"testing"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/blackboard"
	"github.com/talgya/cattle-herd/internal/steering"
	"github.com/talgya/cattle-herd/internal/world"
)

func newCtx(t *testing.T) *Ctx {
	t.Helper()
	env := &agents.Env{Effects: attributes.NewPipeline()}
	a := agents.NewAgent(7, world.Vec3{}, attributes.DefaultValues(), steering.DefaultConfig(), env)
	return &Ctx{Agent: a, Board: blackboard.New(a.ID)}
}

func TestConditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ctx *Ctx)
		cond  Condition
		want  bool
	}{
		{"fear in range", func(c *Ctx) { c.Board.SetFloat(blackboard.FearLevel, 0.5) }, FearLevel{Min: 0.2, Max: 0.6}, true},
		{"fear above range", func(c *Ctx) { c.Board.SetFloat(blackboard.FearLevel, 0.9) }, FearLevel{Min: 0.2, Max: 0.6}, false},
		{"panicked board", func(c *Ctx) { c.Board.SetBool(blackboard.IsPanicked, true) }, IsCattlePanicked{}, true},
		{"panicked direct ignores board", func(c *Ctx) { c.Board.SetBool(blackboard.IsPanicked, true) }, IsCattlePanicked{Direct: true}, false},
		{"panicked direct", func(c *Ctx) { c.Agent.AddFear(90) }, IsCattlePanicked{Direct: true}, true},
		{"flow set", func(c *Ctx) { c.Board.SetVector(blackboard.FlowDirection, world.V(1, 0, 0)) }, HasFlowDirection{MinMagnitude: 0.1}, true},
		{"flow weak", func(c *Ctx) { c.Board.SetVector(blackboard.FlowDirection, world.V(0.05, 0, 0)) }, HasFlowDirection{MinMagnitude: 0.1}, false},
		{"flow unset", func(c *Ctx) {}, HasFlowDirection{}, false},
		{"threat close", func(c *Ctx) {
			c.Board.SetActor(blackboard.NearestThreat, 9)
			c.Board.SetFloat(blackboard.ThreatDistance, 400)
		}, HasNearbyThreat{MaxDistance: 500}, true},
		{"threat far", func(c *Ctx) {
			c.Board.SetActor(blackboard.NearestThreat, 9)
			c.Board.SetFloat(blackboard.ThreatDistance, 800)
		}, HasNearbyThreat{MaxDistance: 500}, false},
		{"no threat", func(c *Ctx) { c.Board.SetFloat(blackboard.ThreatDistance, 10) }, HasNearbyThreat{MaxDistance: 500}, false},
		{"in graze", func(c *Ctx) { c.Board.SetAreaType(areas.KindGraze) }, IsInAreaType{Kind: areas.KindGraze}, true},
		{"not in graze", func(c *Ctx) { c.Board.SetAreaType(areas.KindPanic) }, IsInAreaType{Kind: areas.KindGraze}, false},
		{"lured calm", func(c *Ctx) {
			c.Board.SetBool(blackboard.IsBeingLured, true)
			c.Board.SetFloat(blackboard.FearLevel, 0.3)
		}, IsBeingLured{MaxFear: 0.3}, true},
		{"lured afraid", func(c *Ctx) {
			c.Board.SetBool(blackboard.IsBeingLured, true)
			c.Board.SetFloat(blackboard.FearLevel, 0.5)
		}, IsBeingLured{MaxFear: 0.3}, false},
		{"scared", func(c *Ctx) { c.Board.SetBool(blackboard.IsBeingScared, true) }, IsBeingScared{}, true},
		{"explosive", func(c *Ctx) { c.Board.SetActor(blackboard.NearbyExplosive, 3) }, IsExplosiveNearby{}, true},
		{"explosive cleared", func(c *Ctx) {
			c.Board.SetActor(blackboard.NearbyExplosive, 3)
			c.Board.ClearActor(blackboard.NearbyExplosive)
		}, IsExplosiveNearby{}, false},
		{"shooting calm", func(c *Ctx) {
			c.Board.SetBool(blackboard.IsPlayerShooting, true)
			c.Board.SetFloat(blackboard.FearLevel, 0.1)
		}, IsPlayerShooting{MaxFear: 0.3}, true},
		{"shooting at bound", func(c *Ctx) {
			c.Board.SetBool(blackboard.IsPlayerShooting, true)
			c.Board.SetFloat(blackboard.FearLevel, 0.3)
		}, IsPlayerShooting{MaxFear: 0.3}, false},
		{"shooting unbounded", func(c *Ctx) {
			c.Board.SetBool(blackboard.IsPlayerShooting, true)
			c.Board.SetFloat(blackboard.FearLevel, 0.9)
		}, IsPlayerShooting{}, true},
		{"lassoed", func(c *Ctx) { c.Agent.OnLassoCaptured(2) }, IsLassoed{}, true},
		{"not lassoed", func(c *Ctx) {}, IsLassoed{}, false},
		{"any of", func(c *Ctx) { c.Board.SetAreaType(areas.KindPanic) },
			AnyOf{IsCattlePanicked{}, IsInAreaType{Kind: areas.KindPanic}}, true},
		{"all of", func(c *Ctx) { c.Board.SetAreaType(areas.KindPanic) },
			AllOf{IsCattlePanicked{}, IsInAreaType{Kind: areas.KindPanic}}, false},
		{"empty any of", func(c *Ctx) {}, AnyOf{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newCtx(t)
			tt.setup(ctx)
			if got := tt.cond.Check(ctx); got != tt.want {
				t.Fatalf("%s: got %v, want %v", tt.cond.Name(), got, tt.want)
			}
		})
	}
}

func TestCompositeNames(t *testing.T) {
	c := AnyOf{IsCattlePanicked{}, HasNearbyThreat{MaxDistance: 500}}
	if got, want := c.Name(), "IsCattlePanicked | HasNearbyThreat(500)"; got != want {
		t.Fatalf("name: got %q, want %q", got, want)
	}
}
