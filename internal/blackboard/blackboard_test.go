package blackboard

import (
	"testing"

	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/world"
)

func TestUnsetSlotsReportMissing(t *testing.T) {
	b := New(1)
	if _, ok := b.Vector(TargetLocation); ok {
		t.Fatalf("fresh blackboard should have no target")
	}
	if _, ok := b.Actor(NearestThreat); ok {
		t.Fatalf("fresh blackboard should have no threat")
	}
	b.SetVector(TargetLocation, world.V(1, 2, 3))
	if v, ok := b.Vector(TargetLocation); !ok || v != world.V(1, 2, 3) {
		t.Fatalf("target: got %v ok=%v", v, ok)
	}
	b.ClearVector(TargetLocation)
	if _, ok := b.Vector(TargetLocation); ok {
		t.Fatalf("cleared slot still bound")
	}
}

func TestSnapshotIncludesWrittenSlots(t *testing.T) {
	b := New(7)
	b.SetFloat(FearLevel, 0.25)
	b.SetBool(IsPanicked, false)
	b.SetActor(LurerActor, 42)
	b.SetAreaType(areas.KindGraze)
	b.SetInt(HerdCount, 4)

	snap := b.Snapshot()
	if snap["FearLevel"] != float32(0.25) {
		t.Fatalf("FearLevel: %v", snap["FearLevel"])
	}
	if snap["IsPanicked"] != false {
		t.Fatalf("IsPanicked should be present and false")
	}
	if snap["LurerActor"] != world.ActorID(42) {
		t.Fatalf("LurerActor: %v", snap["LurerActor"])
	}
	if snap["CurrentAreaType"] != "graze" {
		t.Fatalf("CurrentAreaType: %v", snap["CurrentAreaType"])
	}
	if _, ok := snap["TargetLocation"]; ok {
		t.Fatalf("unwritten slot in snapshot")
	}
}

func TestReportMissingOnce(t *testing.T) {
	b := New(1)
	b.ReportMissing("Wander", "HomeLocation")
	b.ReportMissing("Wander", "HomeLocation")
	if len(b.reported) != 1 {
		t.Fatalf("expected one report, got %d", len(b.reported))
	}
}
