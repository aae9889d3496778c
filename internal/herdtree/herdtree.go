// Package herdtree assembles the cattle behavior tree from tuning values.
//
// Root branches, highest priority first:
//
//	0 lassoed           Idle
//	1 explosive nearby  flee from the explosive
//	2 panicked, threat within range or inside a panic zone: Flee
//	3 scared            flee from the scarer
//	4 shooting, calm    look at the shooter, then wait
//	5 lured, calm       follow the lurer
//	6 in a graze zone   Graze
//	7 flow present      FollowFlow
//	8 otherwise         Wander, or wait when no wander point is found
package herdtree

import (
	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/blackboard"
	"github.com/talgya/cattle-herd/internal/conditions"
	"github.com/talgya/cattle-herd/internal/sensors"
	"github.com/talgya/cattle-herd/internal/tasks"
)

// Tree is the cattle tree type.
type Tree = behavior.Tree[*agents.Agent]

type spec = behavior.Spec[*agents.Agent]

// Root branch indices, as reported by Controller.Branch.
const (
	BranchLassoed = iota
	BranchExplosive
	BranchFlee
	BranchScared
	BranchShooting
	BranchLured
	BranchGraze
	BranchFlow
	BranchWander
)

var branchNames = [...]string{
	"lassoed", "explosive", "flee", "scared", "shooting",
	"lured", "graze", "flow", "wander",
}

// BranchName returns a short label for a root branch index.
func BranchName(b int) string {
	if b >= 0 && b < len(branchNames) {
		return branchNames[b]
	}
	return "none"
}

// Tuning holds every parameter the tree's nodes take.
type Tuning struct {
	State         sensors.UpdateCattleState
	Threats       sensors.CheckNearbyThreats
	PlayerActions sensors.DetectPlayerActions
	Herd          sensors.HerdBehavior

	FleeThreatDistance float32 // Threat range that triggers Flee
	LureThreshold      float32 // Fear level up to which a lure is followed
	CuriosityMaxFear   float32 // Fear level below which gunfire is watched
	MinFlowMagnitude   float64
	PanicZoneFlee      bool // Flee on entering a panic zone before fear peaks
	LookDuration       float64
	WanderRetryDelay   float64

	Wander      tasks.Wander
	Graze       tasks.Graze
	Flee        tasks.Flee
	FollowFlow  tasks.FollowFlow
	FleeActor   tasks.FleeFromActor
	FollowActor tasks.FollowActor
	MoveTo      tasks.MoveTo
}

// DefaultTuning returns the stock cattle tuning.
func DefaultTuning() Tuning {
	return Tuning{
		State:         *sensors.NewUpdateCattleState(),
		Threats:       *sensors.NewCheckNearbyThreats(),
		PlayerActions: *sensors.NewDetectPlayerActions(),
		Herd:          *sensors.NewHerdBehavior(),

		FleeThreatDistance: 500,
		LureThreshold:      0.3,
		CuriosityMaxFear:   0.3,
		MinFlowMagnitude:   0.1,
		PanicZoneFlee:      true,
		LookDuration:       1,
		WanderRetryDelay:   1,

		Wander:      *tasks.NewWander(),
		Graze:       *tasks.NewGraze(),
		Flee:        *tasks.NewFlee(),
		FollowFlow:  *tasks.NewFollowFlow(),
		FleeActor:   *tasks.NewFleeFromActor(blackboard.NearbyExplosive),
		FollowActor: *tasks.NewFollowActor(blackboard.LurerActor),
		MoveTo:      *tasks.NewMoveTo(),
	}
}

func leaf(t behavior.Task[*agents.Agent]) spec { return behavior.Leaf(t) }

// Build assembles the tree.
func Build(t Tuning) (*Tree, error) {
	moveTo := &t.MoveTo
	wander := &t.Wander
	graze := &t.Graze
	flee := &t.Flee
	followFlow := &t.FollowFlow

	fleeExplosive := t.FleeActor
	fleeExplosive.Key = blackboard.NearbyExplosive
	fleeScarer := t.FleeActor
	fleeScarer.Key = blackboard.ScarerActor
	followLurer := t.FollowActor
	followLurer.Key = blackboard.LurerActor

	fleeWhen := conditions.AnyOf{
		conditions.IsCattlePanicked{},
		conditions.HasNearbyThreat{MaxDistance: t.FleeThreatDistance},
	}
	if t.PanicZoneFlee {
		fleeWhen = append(fleeWhen, conditions.IsInAreaType{Kind: areas.KindPanic})
	}

	root := behavior.Selector("Root",
		behavior.Decorate[*agents.Agent](conditions.IsLassoed{},
			leaf(tasks.Idle{})),
		behavior.Decorate[*agents.Agent](conditions.IsExplosiveNearby{},
			behavior.Sequence("EscapeExplosive", leaf(&fleeExplosive), leaf(moveTo))),
		behavior.Decorate[*agents.Agent](fleeWhen,
			behavior.Sequence("Flee", leaf(flee), leaf(moveTo))),
		behavior.Decorate[*agents.Agent](conditions.IsBeingScared{},
			behavior.Sequence("EscapeScarer", leaf(&fleeScarer), leaf(moveTo))),
		behavior.Decorate[*agents.Agent](conditions.IsPlayerShooting{MaxFear: t.CuriosityMaxFear},
			behavior.Sequence("WatchShooter",
				leaf(tasks.NewLookAtActor(blackboard.ShooterActor)),
				leaf(&tasks.Wait{Seconds: t.LookDuration}))),
		behavior.Decorate[*agents.Agent](conditions.IsBeingLured{MaxFear: t.LureThreshold},
			behavior.Sequence("FollowLure", leaf(&followLurer), leaf(moveTo))),
		behavior.Decorate[*agents.Agent](conditions.IsInAreaType{Kind: areas.KindGraze},
			leaf(graze)),
		behavior.Decorate[*agents.Agent](conditions.HasFlowDirection{MinMagnitude: t.MinFlowMagnitude},
			behavior.Sequence("FollowFlow", leaf(followFlow), leaf(moveTo))),
		behavior.Selector("Roam",
			behavior.Sequence("Wander", leaf(wander), leaf(moveTo)),
			leaf(&tasks.Wait{Seconds: t.WanderRetryDelay})),
	).WithServices(&t.PlayerActions, &t.Threats, &t.Herd, &t.State)

	return behavior.Build(root)
}

// MustBuild is Build for stock tunings.
func MustBuild(t Tuning) *Tree {
	tree, err := Build(t)
	if err != nil {
		panic(err)
	}
	return tree
}
