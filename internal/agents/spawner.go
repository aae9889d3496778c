// Herd spawning: scatters animals across a designer region with minimum
// spacing, projecting every candidate onto walkable ground.
package agents

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/steering"
	"github.com/talgya/cattle-herd/internal/world"
)

// SpawnArea is a region to fill with animals.
type SpawnArea struct {
	Shape       areas.Shape
	Count       int
	MinDistance float64 // Minimum spacing between spawned animals
	MaxAttempts int     // Candidate points tried per animal
}

// SpawnConfig is the template every spawned animal starts from.
type SpawnConfig struct {
	Seed       int64
	Attributes attributes.Defaults
	Movement   steering.Config
}

// Spawner creates agents for the simulation.
type Spawner struct {
	cfg    SpawnConfig
	rng    *rand.Rand
	nav    world.Nav
	nextID world.ActorID
	placed []world.Vec3
}

// NewSpawner creates a spawner with the given template. nav may be nil, in
// which case candidates are used unprojected.
func NewSpawner(cfg SpawnConfig, nav world.Nav) *Spawner {
	return &Spawner{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed + 300)),
		nav:    nav,
		nextID: 1,
	}
}

// SpawnHerd fills area and returns the new agents. Animals that cannot be
// placed within MaxAttempts are skipped.
func (s *Spawner) SpawnHerd(area SpawnArea, env *Env) []*Agent {
	if area.MinDistance <= 0 {
		area.MinDistance = 200
	}
	if area.MaxAttempts <= 0 {
		area.MaxAttempts = 50
	}

	herd := make([]*Agent, 0, area.Count)
	for i := 0; i < area.Count; i++ {
		pos, ok := s.findSpot(area)
		if !ok {
			slog.Warn("spawn area is full", "placed", len(herd), "requested", area.Count)
			break
		}
		herd = append(herd, s.SpawnAt(pos, env))
	}
	return herd
}

// SpawnAt creates one agent at pos.
func (s *Spawner) SpawnAt(pos world.Vec3, env *Env) *Agent {
	id := s.nextID
	s.nextID++
	s.placed = append(s.placed, pos)
	return NewAgent(id, pos, s.cfg.Attributes, s.cfg.Movement, env)
}

func (s *Spawner) findSpot(area SpawnArea) (world.Vec3, bool) {
	extent := world.V(500, 500, 500)
	for attempt := 0; attempt < area.MaxAttempts; attempt++ {
		cand, ok := s.candidate(area.Shape)
		if !ok {
			continue
		}
		if s.nav != nil {
			cand, ok = s.nav.ProjectPoint(cand, extent)
			if !ok {
				continue
			}
		}
		if s.tooClose(cand, area.MinDistance) {
			continue
		}
		return cand, true
	}
	return world.Vec3{}, false
}

func (s *Spawner) tooClose(p world.Vec3, minDist float64) bool {
	for _, q := range s.placed {
		if p.Dist2D(q) < minDist {
			return true
		}
	}
	return false
}

// candidate draws a uniform point inside the shape.
func (s *Spawner) candidate(shape areas.Shape) (world.Vec3, bool) {
	switch shape.Kind {
	case areas.ShapeBox:
		local := world.V(
			(s.rng.Float64()*2-1)*shape.Extent.X,
			(s.rng.Float64()*2-1)*shape.Extent.Y,
			0,
		)
		p := local.RotateZ(shape.Yaw).Add(shape.Center)
		p.Z = shape.Center.Z
		return p, true

	case areas.ShapeSpline:
		if len(shape.Points) < 3 {
			return world.Vec3{}, false
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, p := range shape.Points {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
		c := shape.Centroid()
		// The curve can bulge past its control points; pad the sampling box.
		padX, padY := (maxX-minX)*0.25, (maxY-minY)*0.25
		for i := 0; i < 10; i++ {
			p := world.V(
				minX-padX+s.rng.Float64()*(maxX-minX+2*padX),
				minY-padY+s.rng.Float64()*(maxY-minY+2*padY),
				c.Z,
			)
			if shape.Contains(p) {
				return p, true
			}
		}
	}
	return world.Vec3{}, false
}
