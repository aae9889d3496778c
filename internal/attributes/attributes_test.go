package attributes

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/cattle-herd/internal/world"
)

func approx(a, b, tol float32) bool {
	return float32(math.Abs(float64(a-b))) <= tol
}

func TestSetClampsOnWrite(t *testing.T) {
	s := NewSet(DefaultValues())

	s.SetBase(Fear, 250)
	if got := s.Get(Fear); got != 100 {
		t.Fatalf("fear above max: got %v, want 100", got)
	}
	s.SetBase(Fear, -5)
	if got := s.Get(Fear); got != 0 {
		t.Fatalf("negative fear: got %v, want 0", got)
	}
	s.SetBase(SpeedModifier, 10)
	if got := s.Get(SpeedModifier); got != 3 {
		t.Fatalf("speed modifier: got %v, want 3", got)
	}
	s.SetBase(SpeedModifier, 0)
	if got := s.Get(SpeedModifier); got != 0.1 {
		t.Fatalf("speed modifier: got %v, want 0.1", got)
	}
	s.SetBase(HerdAffinity, 2)
	if got := s.Get(HerdAffinity); got != 1 {
		t.Fatalf("herd affinity: got %v, want 1", got)
	}
	s.SetBase(CalmLevel, -1)
	if got := s.Get(CalmLevel); got != 0 {
		t.Fatalf("calm: got %v, want 0", got)
	}
	s.SetBase(MaxFear, 0.2)
	if got := s.Get(MaxFear); got != 1 {
		t.Fatalf("max fear: got %v, want 1", got)
	}
}

func TestLoweringMaxFearPullsFearDown(t *testing.T) {
	s := NewSet(DefaultValues())
	s.SetBase(Fear, 80)
	s.SetBase(MaxFear, 50)
	if got := s.Get(Fear); got != 50 {
		t.Fatalf("fear after max drop: got %v, want 50", got)
	}
}

func TestIsPanicked(t *testing.T) {
	s := NewSet(DefaultValues())
	s.SetBase(Fear, 69)
	if s.IsPanicked() {
		t.Fatalf("69%% should not be panicked")
	}
	s.SetBase(Fear, 70)
	if !s.IsPanicked() {
		t.Fatalf("70%% should be panicked")
	}
}

func TestIncomingFearAtCeilingIsNoop(t *testing.T) {
	s := NewSet(DefaultValues())
	s.SetBase(Fear, 100)
	e := InstantFear(25)
	e.execute(s)
	if got := s.Get(Fear); got != 100 {
		t.Fatalf("fear: got %v, want 100", got)
	}
	if got := s.Base(IncomingFear); got != 0 {
		t.Fatalf("meta not zeroed: %v", got)
	}
}

func TestIncomingCalmScalesBySusceptibility(t *testing.T) {
	d := DefaultValues()
	d.Fear = 20
	d.LureSusceptibility = 0.5
	s := NewSet(d)
	e := InstantCalm(30)
	e.execute(s)
	if got := s.Get(Fear); got != 5 {
		t.Fatalf("fear: got %v, want 5", got)
	}
	if got := s.Get(CalmLevel); got != 15 {
		t.Fatalf("calm: got %v, want 15", got)
	}
}

func TestTagPrefix(t *testing.T) {
	tags := NewTagSet()
	tags.Add(TagGrazing)
	if !tags.HasPrefix("State.Cattle") {
		t.Fatalf("expected prefix match")
	}
	if tags.HasPrefix("State.Catt") {
		t.Fatalf("partial segment should not match")
	}
	tags.Add(TagGrazing)
	tags.Remove(TagGrazing)
	if !tags.Has(TagGrazing) {
		t.Fatalf("tag granted twice should survive one removal")
	}
	tags.Remove(TagGrazing)
	if tags.Has(TagGrazing) {
		t.Fatalf("tag should be gone")
	}
}

func newPipelineWith(t *testing.T, d Defaults) (*Pipeline, *Set, *TagSet) {
	t.Helper()
	p := NewPipeline()
	s := NewSet(d)
	tags := NewTagSet()
	p.Register(1, s, tags)
	return p, s, tags
}

func TestApplyEffect_InvalidAttribute(t *testing.T) {
	p, _, _ := newPipelineWith(t, DefaultValues())
	_, err := p.ApplyEffect(Effect{Name: "bad", Policy: Instant, Modifiers: []Modifier{{Attribute: ID(99)}}}, Source{}, 1)
	if !errors.Is(err, ErrInvalidAttribute) {
		t.Fatalf("expected ErrInvalidAttribute, got %v", err)
	}
}

func TestApplyEffect_DeadAgentDiscarded(t *testing.T) {
	p := NewPipeline()
	h, err := p.ApplyEffect(InstantFear(10), Source{}, world.ActorID(42))
	if err != nil || h != 0 {
		t.Fatalf("dead agent: handle=%d err=%v", h, err)
	}
	p.RemoveEffect(12345)
}

func TestDurationEffectRoundTrip(t *testing.T) {
	p, s, tags := newPipelineWith(t, DefaultValues())
	before := s.Get(SpeedModifier)

	h, err := p.ApplyEffect(Effect{
		Name:      "Haste",
		Policy:    Infinite,
		Tags:      []string{"State.Test"},
		Modifiers: []Modifier{{Attribute: SpeedModifier, Op: OpAdd, Magnitude: 0.5}},
	}, Source{Kind: SourceZone, ID: 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Get(SpeedModifier); !approx(got, before+0.5, 1e-6) {
		t.Fatalf("modified speed: got %v", got)
	}
	if s.Base(SpeedModifier) != before {
		t.Fatalf("base should be untouched")
	}
	if !tags.Has("State.Test") {
		t.Fatalf("tag not granted")
	}

	p.RemoveEffect(h)
	if got := s.Get(SpeedModifier); got != before {
		t.Fatalf("after removal: got %v, want %v", got, before)
	}
	if tags.Has("State.Test") {
		t.Fatalf("tag not revoked")
	}
}

func TestDurationEffectExpires(t *testing.T) {
	p, s, _ := newPipelineWith(t, DefaultValues())
	_, err := p.ApplyEffect(Effect{
		Name:      "Slow",
		Policy:    HasDuration,
		Duration:  0.3,
		Modifiers: []Modifier{{Attribute: SpeedModifier, Op: OpOverride, Magnitude: 0.5}},
	}, Source{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	p.Tick(0.1)
	p.Tick(0.1)
	if got := s.Get(SpeedModifier); got != 0.5 {
		t.Fatalf("before expiry: got %v", got)
	}
	p.Tick(0.1)
	if got := s.Get(SpeedModifier); got != 1 {
		t.Fatalf("after expiry: got %v", got)
	}
}

func TestFearDecay(t *testing.T) {
	d := DefaultValues()
	d.Fear = 10
	p, s, _ := newPipelineWith(t, d)
	for i := 0; i < 10; i++ {
		p.Tick(0.1)
	}
	if got := s.Get(Fear); !approx(got, 5, 1e-3) {
		t.Fatalf("fear after 1s decay: got %v, want 5", got)
	}
	for i := 0; i < 20; i++ {
		p.Tick(0.1)
	}
	if got := s.Get(Fear); got != 0 {
		t.Fatalf("fear should floor at 0, got %v", got)
	}
}

func TestDecayMultiplierWhileGrazing(t *testing.T) {
	d := DefaultValues()
	d.Fear = 20
	p, s, _ := newPipelineWith(t, d)
	h, _ := p.ApplyEffect(Effect{Name: "Graze", Policy: Infinite, FearDecayMultiplier: 2}, Source{Kind: SourceZone, ID: 3}, 1)
	p.Tick(1)
	if got := s.Get(Fear); !approx(got, 10, 1e-4) {
		t.Fatalf("fear with x2 decay: got %v, want 10", got)
	}
	p.RemoveEffect(h)
	p.Tick(1)
	if got := s.Get(Fear); !approx(got, 5, 1e-4) {
		t.Fatalf("fear after leaving: got %v, want 5", got)
	}
}

func TestPeriodicEffectBlocksDecay(t *testing.T) {
	p, s, _ := newPipelineWith(t, DefaultValues())
	_, err := p.ApplyEffect(Effect{
		Name:            "Panic",
		Policy:          Infinite,
		Period:          0.1,
		BlocksFearDecay: true,
		Modifiers:       []Modifier{{Attribute: IncomingFear, Op: OpAdd, Magnitude: 3}},
	}, Source{Kind: SourceZone, ID: 9}, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		p.Tick(0.1)
	}
	if got := s.Get(Fear); !approx(got, 30, 1e-3) {
		t.Fatalf("fear after 1s in panic: got %v, want 30", got)
	}
}

func TestRemoveBySourceAndOrphans(t *testing.T) {
	p, _, tags := newPipelineWith(t, DefaultValues())
	zone := Source{Kind: SourceZone, ID: 5}
	guide := Source{Kind: SourceGuide, ID: 6}
	p.ApplyEffect(Effect{Name: "A", Policy: Infinite, Tags: []string{TagGrazing}}, zone, 1)
	p.ApplyEffect(Effect{Name: "B", Policy: Infinite, Tags: []string{TagGuided}}, guide, 1)

	if n := p.RemoveBySource(1, zone); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if tags.Has(TagGrazing) {
		t.Fatalf("grazing tag should be gone")
	}

	n := p.SweepOrphans(func(s Source) bool { return s != guide })
	if n != 1 || p.HasEffectFrom(1, guide) {
		t.Fatalf("orphan sweep removed %d", n)
	}
}
