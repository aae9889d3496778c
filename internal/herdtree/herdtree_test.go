package herdtree

import (
	"strings"
	"testing"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/steering"
	"github.com/talgya/cattle-herd/internal/world"
)

func newController(t *testing.T, tree *Tree) *agents.Controller {
	t.Helper()
	effects := attributes.NewPipeline()
	env := &agents.Env{
		Nav:     world.NewOpenPlain(1),
		Space:   world.NewHarness(1000),
		Clock:   &world.ManualClock{},
		Areas:   areas.NewSubsystem(effects, 1),
		Effects: effects,
		Latent:  behavior.NewLatentTable(),
	}
	a := agents.NewAgent(1, world.Vec3{}, attributes.DefaultValues(), steering.DefaultConfig(), env)
	return agents.NewController(a, tree, agents.DefaultControllerConfig(), nil)
}

func TestBuild_Layout(t *testing.T) {
	tree, err := Build(DefaultTuning())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dump := tree.Dump()
	for _, want := range []string{"Root", "IsLassoed", "EscapeExplosive", "IsCattlePanicked | HasNearbyThreat(500) | IsInAreaType(panic)", "FollowLure", "Roam"} {
		if !strings.Contains(dump, want) {
			t.Fatalf("tree dump missing %q:\n%s", want, dump)
		}
	}
	// Graze 8 bytes, Wait 4 bytes twice, MoveTo 4 bytes once per use.
	if tree.MemorySize() == 0 {
		t.Fatal("expected task memory")
	}
}

func TestBuild_PanicZoneFleeOptional(t *testing.T) {
	tun := DefaultTuning()
	tun.PanicZoneFlee = false
	tree := MustBuild(tun)
	if strings.Contains(tree.Dump(), "IsInAreaType(panic)") {
		t.Fatal("panic zone condition should be left out")
	}
}

func TestLassoedAnimalIdles(t *testing.T) {
	c := newController(t, MustBuild(DefaultTuning()))
	c.Agent.OnLassoCaptured(99)

	if s := c.Think(0.1, 0.1); s != behavior.InProgress {
		t.Fatalf("think: got %v", s)
	}
	if c.Branch() != BranchLassoed || c.ActiveTask() != "Idle" {
		t.Fatalf("branch %d task %q, want lassoed idle", c.Branch(), c.ActiveTask())
	}

	c.Agent.OnLassoReleased()
	c.Think(0.2, 0.1)
	if c.Branch() == BranchLassoed {
		t.Fatal("released animal should leave the lasso branch")
	}
}

func TestIdleAnimalWanders(t *testing.T) {
	c := newController(t, MustBuild(DefaultTuning()))
	c.Think(0.1, 0.1)
	if c.Branch() != BranchWander {
		t.Fatalf("branch: got %d, want %d (%s)", c.Branch(), BranchWander, c.ActivePath())
	}
	if c.ActiveTask() != "MoveTo" {
		t.Fatalf("active task: got %q, want MoveTo", c.ActiveTask())
	}
}
