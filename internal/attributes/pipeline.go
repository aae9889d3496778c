package attributes

import (
	"log/slog"
	"sort"

	"github.com/talgya/cattle-herd/internal/world"
)

// periodEpsilon absorbs float drift when accumulating fixed ticks.
const periodEpsilon = 1e-9

type activeEffect struct {
	handle      Handle
	effect      Effect
	source      Source
	elapsed     float64
	sincePeriod float64
}

type target struct {
	set    *Set
	tags   *TagSet
	active []*activeEffect
}

// EffectInfo describes an active effect for inspection.
type EffectInfo struct {
	Handle    Handle  `json:"handle"`
	Name      string  `json:"name"`
	Source    string  `json:"source"`
	Elapsed   float64 `json:"elapsed"`
	Remaining float64 `json:"remaining,omitempty"` // HasDuration only
}

// Pipeline owns every active effect in the simulation.
type Pipeline struct {
	targets map[world.ActorID]*target
	order   []world.ActorID
	owner   map[Handle]world.ActorID
	next    Handle
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		targets: make(map[world.ActorID]*target),
		owner:   make(map[Handle]world.ActorID),
		next:    1,
	}
}

// Register makes an agent's attributes and tags reachable by effects.
func (p *Pipeline) Register(id world.ActorID, set *Set, tags *TagSet) {
	if _, ok := p.targets[id]; !ok {
		p.order = append(p.order, id)
		sort.Slice(p.order, func(i, j int) bool { return p.order[i] < p.order[j] })
	}
	p.targets[id] = &target{set: set, tags: tags}
}

// Unregister drops an agent and all its effects. Later applications to it
// are discarded.
func (p *Pipeline) Unregister(id world.ActorID) {
	t, ok := p.targets[id]
	if !ok {
		return
	}
	for _, a := range t.active {
		delete(p.owner, a.handle)
	}
	delete(p.targets, id)
	for i, o := range p.order {
		if o == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// ApplyEffect applies e from src to the agent id. Instant effects execute
// immediately and return a zero handle. Applying to an unknown or dead agent
// is silently discarded.
func (p *Pipeline) ApplyEffect(e Effect, src Source, id world.ActorID) (Handle, error) {
	if err := e.validate(); err != nil {
		return 0, err
	}
	t, ok := p.targets[id]
	if !ok {
		slog.Debug("effect discarded for missing agent", "effect", e.Name, "agent", id)
		return 0, nil
	}

	if e.Policy == Instant {
		e.execute(t.set)
		return 0, nil
	}

	a := &activeEffect{handle: p.next, effect: e, source: src}
	p.next++
	t.active = append(t.active, a)
	p.owner[a.handle] = id
	for _, tag := range e.Tags {
		t.tags.Add(tag)
	}

	if e.Period > 0 {
		if e.ExecuteOnApply {
			e.execute(t.set)
		}
	} else {
		p.recompute(t)
		e.executeMeta(t.set)
	}
	return a.handle, nil
}

// RemoveEffect removes an active effect. Unknown handles are ignored.
func (p *Pipeline) RemoveEffect(h Handle) {
	id, ok := p.owner[h]
	if !ok {
		return
	}
	t := p.targets[id]
	for i, a := range t.active {
		if a.handle == h {
			p.drop(t, i)
			return
		}
	}
}

// RemoveBySource removes every effect src applied to id and returns how many
// were removed.
func (p *Pipeline) RemoveBySource(id world.ActorID, src Source) int {
	t, ok := p.targets[id]
	if !ok {
		return 0
	}
	n := 0
	for i := len(t.active) - 1; i >= 0; i-- {
		if t.active[i].source == src {
			p.drop(t, i)
			n++
		}
	}
	return n
}

// SweepOrphans removes effects whose source no longer exists. Effects without
// a source are kept.
func (p *Pipeline) SweepOrphans(alive func(Source) bool) int {
	n := 0
	for _, id := range p.order {
		t := p.targets[id]
		for i := len(t.active) - 1; i >= 0; i-- {
			src := t.active[i].source
			if src.Kind == SourceNone || alive(src) {
				continue
			}
			slog.Debug("orphaned effect removed", "agent", id, "effect", t.active[i].effect.Name, "source", src)
			p.drop(t, i)
			n++
		}
	}
	return n
}

// HasEffectFrom reports whether src has an active effect on id.
func (p *Pipeline) HasEffectFrom(id world.ActorID, src Source) bool {
	t, ok := p.targets[id]
	if !ok {
		return false
	}
	for _, a := range t.active {
		if a.source == src {
			return true
		}
	}
	return false
}

// ActiveEffects lists the effects on id in application order.
func (p *Pipeline) ActiveEffects(id world.ActorID) []EffectInfo {
	t, ok := p.targets[id]
	if !ok {
		return nil
	}
	out := make([]EffectInfo, 0, len(t.active))
	for _, a := range t.active {
		info := EffectInfo{Handle: a.handle, Name: a.effect.Name, Source: a.source.String(), Elapsed: a.elapsed}
		if a.effect.Policy == HasDuration {
			info.Remaining = a.effect.Duration - a.elapsed
		}
		out = append(out, info)
	}
	return out
}

// Tick advances every agent's effects by dt: fear decay, then expiry, then
// periodic executions, then any leftover meta drain.
func (p *Pipeline) Tick(dt float64) {
	for _, id := range p.order {
		t := p.targets[id]
		p.decay(t, dt)

		changed := false
		for i := len(t.active) - 1; i >= 0; i-- {
			a := t.active[i]
			a.elapsed += dt
			if a.effect.Policy == HasDuration && a.elapsed >= a.effect.Duration-periodEpsilon {
				t.tags.removeAll(a.effect.Tags)
				delete(p.owner, a.handle)
				t.active = append(t.active[:i], t.active[i+1:]...)
				changed = true
			}
		}
		if changed {
			p.recompute(t)
		}

		for _, a := range t.active {
			if a.effect.Period <= 0 {
				continue
			}
			a.sincePeriod += dt
			for a.sincePeriod >= a.effect.Period-periodEpsilon {
				a.sincePeriod -= a.effect.Period
				a.effect.execute(t.set)
			}
		}

		t.set.Drain()
	}
}

// DecayMultiplier returns the product of active decay multipliers on id and
// whether any active effect blocks decay.
func (p *Pipeline) DecayMultiplier(id world.ActorID) (float32, bool) {
	t, ok := p.targets[id]
	if !ok {
		return 1, false
	}
	return decayFactor(t)
}

func decayFactor(t *target) (float32, bool) {
	mult := float32(1)
	for _, a := range t.active {
		if a.effect.BlocksFearDecay {
			return 0, true
		}
		if a.effect.FearDecayMultiplier > 0 {
			mult *= a.effect.FearDecayMultiplier
		}
	}
	return mult, false
}

func (p *Pipeline) decay(t *target, dt float64) {
	mult, blocked := decayFactor(t)
	if blocked {
		return
	}
	fear := t.set.Base(Fear)
	if fear <= 0 {
		return
	}
	rate := t.set.Get(FearDecayRate)
	t.set.SetBase(Fear, max32(0, fear-rate*mult*float32(dt)))
}

func (p *Pipeline) drop(t *target, i int) {
	a := t.active[i]
	t.tags.removeAll(a.effect.Tags)
	delete(p.owner, a.handle)
	t.active = append(t.active[:i], t.active[i+1:]...)
	p.recompute(t)
}

// recompute rebuilds the modifier aggregates from the lasting non-periodic
// effects. Override wins last by application order.
func (p *Pipeline) recompute(t *target) {
	var aggs [numIDs]modAgg
	for _, a := range t.active {
		if a.effect.Period > 0 {
			continue
		}
		for _, m := range a.effect.Modifiers {
			if m.Attribute.IsMeta() {
				continue
			}
			switch m.Op {
			case OpAdd:
				aggs[m.Attribute].add += m.Magnitude
			case OpOverride:
				aggs[m.Attribute].override = m.Magnitude
				aggs[m.Attribute].hasOverride = true
			}
		}
	}
	// MaxFear first so the Fear clamp sees the new ceiling.
	t.set.setMods(MaxFear, aggs[MaxFear])
	for id := ID(0); id < numIDs; id++ {
		if id == MaxFear || id.IsMeta() {
			continue
		}
		t.set.setMods(id, aggs[id])
	}
}
