// Package areas implements the designer-authored influence field: graze,
// avoid and panic zones matched by overlap, and flow guides matched by
// proximity to a path. The subsystem answers per-location queries and keeps
// each agent's zone effects in step with where it stands.
package areas

import (
	"log/slog"
	"math/rand"
	"sort"

	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/world"
)

// EffectSink receives zone effects. The attribute pipeline implements it.
type EffectSink interface {
	ApplyEffect(e attributes.Effect, src attributes.Source, id world.ActorID) (attributes.Handle, error)
	RemoveEffect(h attributes.Handle)
}

// Occupant is an agent the subsystem tracks for enter/exit.
type Occupant interface {
	ActorID() world.ActorID
	Location() world.Vec3
	EnterSource(src attributes.Source)
	ExitSource(src attributes.Source)
}

type occupancy struct {
	handle attributes.Handle
	occ    Occupant
}

type pendingOp struct {
	addZone    *Zone
	addGuide   *FlowGuide
	removeZone ZoneID
	removeGuid GuideID
}

// Subsystem is the registry of zones and flow guides.
type Subsystem struct {
	zones  []*Zone
	guides []*FlowGuide

	nextZone  ZoneID
	nextGuide GuideID

	inZone  map[ZoneID]map[world.ActorID]occupancy
	inGuide map[GuideID]map[world.ActorID]occupancy

	frozen  bool
	pending []pendingOp

	sink EffectSink
	flee fleeContext
}

// NewSubsystem returns an empty subsystem. seed drives scatter and stampede
// flee directions.
func NewSubsystem(sink EffectSink, seed int64) *Subsystem {
	return &Subsystem{
		nextZone:  1,
		nextGuide: 1,
		inZone:    make(map[ZoneID]map[world.ActorID]occupancy),
		inGuide:   make(map[GuideID]map[world.ActorID]occupancy),
		sink:      sink,
		flee: fleeContext{
			rng:      rand.New(rand.NewSource(seed + 500)),
			stampede: newStampedeField(seed),
		},
	}
}

// RegisterZone adds a zone and returns its id. While the registry is frozen
// the zone becomes visible at the next thaw.
func (s *Subsystem) RegisterZone(z Zone) ZoneID {
	zp := &z
	zp.ID = s.nextZone
	s.nextZone++
	zp.Shape.prepare()
	if err := zp.Validate(); err != nil {
		slog.Warn("zone is inert", "zone", zp.ID, "error", err)
	}

	if s.frozen {
		s.pending = append(s.pending, pendingOp{addZone: zp})
		return zp.ID
	}
	s.addZone(zp)
	return zp.ID
}

// DeregisterZone removes a zone. Every agent it affects exits it.
func (s *Subsystem) DeregisterZone(id ZoneID) {
	if s.frozen {
		s.pending = append(s.pending, pendingOp{removeZone: id})
		return
	}
	s.removeZone(id)
}

// RegisterGuide adds a flow guide and returns its id.
func (s *Subsystem) RegisterGuide(g FlowGuide) GuideID {
	gp := &g
	gp.ID = s.nextGuide
	s.nextGuide++
	gp.prepare()
	if gp.CheckInterval <= 0 {
		gp.CheckInterval = 0.25
	}
	// First poll happens on the next tick.
	gp.timer = gp.CheckInterval
	if err := gp.Validate(); err != nil {
		slog.Warn("flow guide is inert", "guide", gp.ID, "error", err)
	}

	if s.frozen {
		s.pending = append(s.pending, pendingOp{addGuide: gp})
		return gp.ID
	}
	s.addGuide(gp)
	return gp.ID
}

// DeregisterGuide removes a flow guide. Every agent it affects exits it.
func (s *Subsystem) DeregisterGuide(id GuideID) {
	if s.frozen {
		s.pending = append(s.pending, pendingOp{removeGuid: id})
		return
	}
	s.removeGuide(id)
}

// Freeze defers registry mutations until Thaw. The simulation freezes the
// registry while behavior trees evaluate.
func (s *Subsystem) Freeze() { s.frozen = true }

// Thaw applies deferred mutations in the order they were requested.
func (s *Subsystem) Thaw() {
	s.frozen = false
	ops := s.pending
	s.pending = nil
	for _, op := range ops {
		switch {
		case op.addZone != nil:
			s.addZone(op.addZone)
		case op.addGuide != nil:
			s.addGuide(op.addGuide)
		case op.removeZone != 0:
			s.removeZone(op.removeZone)
		case op.removeGuid != 0:
			s.removeGuide(op.removeGuid)
		}
	}
}

func (s *Subsystem) addZone(z *Zone) {
	s.zones = append(s.zones, z)
	s.inZone[z.ID] = make(map[world.ActorID]occupancy)
	slog.Debug("zone registered", "zone", z.ID, "kind", z.Kind, "name", z.Name)
}

func (s *Subsystem) removeZone(id ZoneID) {
	for i, z := range s.zones {
		if z.ID != id {
			continue
		}
		s.exitAll(z.Source(), s.inZone[id])
		delete(s.inZone, id)
		s.zones = append(s.zones[:i], s.zones[i+1:]...)
		slog.Debug("zone deregistered", "zone", id)
		return
	}
}

func (s *Subsystem) addGuide(g *FlowGuide) {
	s.guides = append(s.guides, g)
	s.inGuide[g.ID] = make(map[world.ActorID]occupancy)
	slog.Debug("flow guide registered", "guide", g.ID, "name", g.Name)
}

func (s *Subsystem) removeGuide(id GuideID) {
	for i, g := range s.guides {
		if g.ID != id {
			continue
		}
		s.exitAll(g.Source(), s.inGuide[id])
		delete(s.inGuide, id)
		s.guides = append(s.guides[:i], s.guides[i+1:]...)
		slog.Debug("flow guide deregistered", "guide", id)
		return
	}
}

func (s *Subsystem) exitAll(src attributes.Source, occupants map[world.ActorID]occupancy) {
	ids := make([]world.ActorID, 0, len(occupants))
	for id := range occupants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		o := occupants[id]
		if s.sink != nil {
			s.sink.RemoveEffect(o.handle)
		}
		if o.occ != nil {
			o.occ.ExitSource(src)
		}
	}
}

// SourceAlive reports whether src refers to a registered zone or guide.
// Sources of other kinds are reported alive.
func (s *Subsystem) SourceAlive(src attributes.Source) bool {
	switch src.Kind {
	case attributes.SourceZone:
		_, ok := s.inZone[ZoneID(src.ID)]
		return ok
	case attributes.SourceGuide:
		_, ok := s.inGuide[GuideID(src.ID)]
		return ok
	}
	return true
}

// UpdateOverlaps runs enter/exit for overlap zones against the occupants'
// current positions. Tracked agents missing from occupants are exited.
func (s *Subsystem) UpdateOverlaps(occupants []Occupant) {
	present := make(map[world.ActorID]bool, len(occupants))
	for _, o := range occupants {
		present[o.ActorID()] = true
	}
	for _, z := range s.zones {
		s.transition(z.Source(), z.Effect(), s.inZone[z.ID], occupants, present, z.Contains)
	}
}

// Tick advances guide polling timers and runs enter/exit for each guide
// whose interval elapsed.
func (s *Subsystem) Tick(dt, now float64, occupants []Occupant) {
	s.flee.now = now
	var present map[world.ActorID]bool
	for _, g := range s.guides {
		g.timer += dt
		if g.timer < g.CheckInterval-1e-9 {
			continue
		}
		g.timer = 0
		if present == nil {
			present = make(map[world.ActorID]bool, len(occupants))
			for _, o := range occupants {
				present[o.ActorID()] = true
			}
		}
		inRange := func(p world.Vec3) bool { return g.Weight(p) > 0 }
		s.transition(g.Source(), g.Effect(), s.inGuide[g.ID], occupants, present, inRange)
	}
}

func (s *Subsystem) transition(
	src attributes.Source,
	effect attributes.Effect,
	tracked map[world.ActorID]occupancy,
	occupants []Occupant,
	present map[world.ActorID]bool,
	inside func(world.Vec3) bool,
) {
	for _, o := range occupants {
		id := o.ActorID()
		cur, was := tracked[id]
		now := inside(o.Location())
		switch {
		case now && !was:
			var h attributes.Handle
			if s.sink != nil {
				var err error
				h, err = s.sink.ApplyEffect(effect, src, id)
				if err != nil {
					slog.Warn("zone effect rejected", "source", src, "agent", id, "error", err)
				}
			}
			tracked[id] = occupancy{handle: h, occ: o}
			o.EnterSource(src)
		case !now && was:
			if s.sink != nil {
				s.sink.RemoveEffect(cur.handle)
			}
			delete(tracked, id)
			o.ExitSource(src)
		}
	}
	for id, cur := range tracked {
		if present[id] {
			continue
		}
		if s.sink != nil {
			s.sink.RemoveEffect(cur.handle)
		}
		delete(tracked, id)
	}
}

// Occupants returns the agents currently inside a zone, in id order.
func (s *Subsystem) Occupants(id ZoneID) []world.ActorID {
	tracked := s.inZone[id]
	out := make([]world.ActorID, 0, len(tracked))
	for a := range tracked {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AreasAt returns every influence at p, highest priority first. Equal
// priorities keep registration order with zones ahead of guides.
func (s *Subsystem) AreasAt(p world.Vec3) []Sample {
	var out []Sample
	for _, z := range s.zones {
		if smp, ok := z.sampleAt(p, &s.flee); ok {
			out = append(out, smp)
		}
	}
	for _, g := range s.guides {
		if smp, ok := g.sampleAt(p); ok {
			out = append(out, smp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// PrimaryAreaAt returns the highest-priority influence at p, or an invalid
// sample when nothing applies.
func (s *Subsystem) PrimaryAreaAt(p world.Vec3) Sample {
	var best Sample
	for _, z := range s.zones {
		if best.Valid() && z.Priority+z.Kind.Value() <= best.Priority {
			continue
		}
		if smp, ok := z.sampleAt(p, &s.flee); ok && (!best.Valid() || smp.Priority > best.Priority) {
			best = smp
		}
	}
	for _, g := range s.guides {
		if best.Valid() && g.Priority+KindFlowGuide.Value() <= best.Priority {
			continue
		}
		if smp, ok := g.sampleAt(p); ok && (!best.Valid() || smp.Priority > best.Priority) {
			best = smp
		}
	}
	return best
}

// FlowAt returns the weighted, normalized sum of guide directions at p.
func (s *Subsystem) FlowAt(p world.Vec3) world.Vec3 {
	var sum world.Vec3
	total := 0.0
	for _, g := range s.guides {
		w := g.Weight(p)
		if w <= 0 {
			continue
		}
		sum = sum.Add(g.DirectionAt(p).Scale(w))
		total += w
	}
	if total <= 0 {
		return world.Vec3{}
	}
	return sum.Scale(1 / total).Normalize()
}

// IsLocationInAreaType reports whether any influence of kind applies at p.
func (s *Subsystem) IsLocationInAreaType(p world.Vec3, kind Kind) bool {
	if kind == KindFlowGuide {
		for _, g := range s.guides {
			if g.Weight(p) > 0 {
				return true
			}
		}
		return false
	}
	for _, z := range s.zones {
		if z.Kind == kind && z.Contains(p) {
			return true
		}
	}
	return false
}

// Zones returns copies of the registered zones in registration order.
func (s *Subsystem) Zones() []Zone {
	out := make([]Zone, len(s.zones))
	for i, z := range s.zones {
		out[i] = *z
	}
	return out
}

// Guides returns copies of the registered guides in registration order.
func (s *Subsystem) Guides() []FlowGuide {
	out := make([]FlowGuide, len(s.guides))
	for i, g := range s.guides {
		out[i] = *g
	}
	return out
}
