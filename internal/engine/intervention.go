package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/world"
)

// Interventions are the collaborator calls the rest of the game makes on the
// herd. Each takes the write lock, so it lands between ticks.

func (s *Simulation) liveAgent(id world.ActorID) (*agents.Agent, error) {
	c, ok := s.index[id]
	if !ok || !c.Agent.Alive {
		return nil, fmt.Errorf("animal %d: %w", id, ErrUnknownAgent)
	}
	return c.Agent, nil
}

// ApplyImpulse pushes animal id. With velocityChange the impulse is added to
// the velocity as is, otherwise it is scaled by the animal's mass.
func (s *Simulation) ApplyImpulse(id world.ActorID, impulse world.Vec3, velocityChange bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return err
	}
	a.ApplyPhysicsImpulse(impulse, velocityChange)
	s.emit(Event{
		Agent:       id,
		Category:    "intervention",
		Description: fmt.Sprintf("animal %d was shoved", id),
		Meta:        map[string]any{"impulse": impulse, "velocity_change": velocityChange},
	})
	slog.Info("impulse intervention", "agent", id, "impulse", impulse)
	return nil
}

// AddFear scares animal id by amount fear units.
func (s *Simulation) AddFear(id world.ActorID, amount float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return err
	}
	a.AddFear(amount)
	s.emit(Event{
		Agent:       id,
		Category:    "intervention",
		Description: fmt.Sprintf("animal %d was frightened", id),
		Meta:        map[string]any{"fear": amount},
	})
	slog.Info("fear intervention", "agent", id, "amount", amount)
	return nil
}

// AddCalm soothes animal id by amount, scaled by its lure susceptibility.
func (s *Simulation) AddCalm(id world.ActorID, amount float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return err
	}
	a.AddCalm(amount)
	s.emit(Event{
		Agent:       id,
		Category:    "intervention",
		Description: fmt.Sprintf("animal %d was calmed", id),
		Meta:        map[string]any{"calm": amount},
	})
	return nil
}

// Lasso ropes animal id to owner.
func (s *Simulation) Lasso(id, owner world.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return err
	}
	a.OnLassoCaptured(owner)
	s.emit(Event{
		Agent:       id,
		Category:    "lasso",
		Description: fmt.Sprintf("animal %d was lassoed by %d", id, owner),
		Meta:        map[string]any{"owner": owner},
	})
	return nil
}

// ReleaseLasso frees animal id from its lasso.
func (s *Simulation) ReleaseLasso(id world.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return err
	}
	if !a.Lassoed {
		return nil
	}
	a.OnLassoReleased()
	s.emit(Event{
		Agent:       id,
		Category:    "lasso",
		Description: fmt.Sprintf("animal %d was released", id),
	})
	return nil
}

// KillAgent removes animal id from play. Its effects are dropped and zones
// exit it on the next tick.
func (s *Simulation) KillAgent(id world.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return err
	}
	a.Kill()
	s.Space.Remove(id)
	s.emit(Event{
		Agent:       id,
		Category:    "death",
		Description: fmt.Sprintf("animal %d died", id),
	})
	return nil
}

// SpawnActor adds a player, threat or explosive to the harness.
func (s *Simulation) SpawnActor(a world.Actor) world.ActorID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.Space.Spawn(a)
	slog.Debug("actor spawned", "id", id, "class", a.Class)
	return id
}

// UpdateActor mutates a harness actor in place. It reports whether id exists.
func (s *Simulation) UpdateActor(id world.ActorID, fn func(a *world.Actor)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Space.Update(id, fn)
}

// RemoveActor deletes a harness actor.
func (s *Simulation) RemoveActor(id world.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Space.Remove(id)
}

// FireShot records that player id fired its gun now.
func (s *Simulation) FireShot(id world.ActorID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Clock.Now()
	return s.Space.Update(id, func(a *world.Actor) {
		if a.Class == world.ClassPlayer {
			a.HasGun = true
			a.HasFired = true
			a.LastFireTime = now
		}
	})
}

// RegisterZone adds a zone to the influence field.
func (s *Simulation) RegisterZone(z areas.Zone) areas.ZoneID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.Areas.RegisterZone(z)
	s.emit(Event{
		Category:    "zone",
		Description: fmt.Sprintf("%s zone %d registered", z.Kind, id),
		Meta:        map[string]any{"zone": id, "name": z.Name},
	})
	return id
}

// DeregisterZone removes a zone and strips its effects from every occupant.
func (s *Simulation) DeregisterZone(id areas.ZoneID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Areas.DeregisterZone(id)
	s.emit(Event{
		Category:    "zone",
		Description: fmt.Sprintf("zone %d deregistered", id),
		Meta:        map[string]any{"zone": id},
	})
}

// Teleport moves animal id to pos and rewinds its tree, so the next tick
// picks a branch for the new surroundings. Zones see the new position on
// the next tick.
func (s *Simulation) Teleport(id world.ActorID, pos world.Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return err
	}
	s.index[id].Reset(s.Clock.Now())
	a.StopMove()
	a.Position = pos
	s.Space.Move(id, pos, world.Vec3{})
	return nil
}
