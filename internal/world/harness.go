package world

import (
	"sort"
	"sync"
)

// Harness is an in-memory Space holding every actor in the simulation.
// Animals are mirrored into it by the simulation each tick; players, threats
// and explosives are driven by scenario code or the admin API.
type Harness struct {
	mu     sync.RWMutex
	actors map[ActorID]*Actor
	nextID ActorID
}

// NewHarness creates an empty harness. Ids handed out by Spawn start at
// firstID so they never collide with animal ids.
func NewHarness(firstID ActorID) *Harness {
	if firstID == None {
		firstID = 1
	}
	return &Harness{
		actors: make(map[ActorID]*Actor),
		nextID: firstID,
	}
}

// Spawn adds a non-animal actor and returns its id.
func (h *Harness) Spawn(a Actor) ActorID {
	h.mu.Lock()
	defer h.mu.Unlock()

	a.ID = h.nextID
	h.nextID++
	h.actors[a.ID] = &a
	return a.ID
}

// Put inserts or replaces an actor under its own id.
func (h *Harness) Put(a Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cp := a
	h.actors[a.ID] = &cp
	if a.ID >= h.nextID {
		h.nextID = a.ID + 1
	}
}

// Move updates an actor's position and velocity. Unknown ids are ignored.
func (h *Harness) Move(id ActorID, pos, vel Vec3) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if a, ok := h.actors[id]; ok {
		a.Position = pos
		a.Velocity = vel
	}
}

// Update applies fn to the actor under the write lock.
func (h *Harness) Update(id ActorID, fn func(a *Actor)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.actors[id]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// Remove deletes an actor.
func (h *Harness) Remove(id ActorID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.actors, id)
}

// Actor implements Space.
func (h *Harness) Actor(id ActorID) (Actor, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.actors[id]
	if !ok {
		return Actor{}, false
	}
	return *a, true
}

// ActorsInSphere implements Space.
func (h *Harness) ActorsInSphere(center Vec3, radius float64, classes ClassMask) []ActorID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r2 := radius * radius
	var out []ActorID
	for id, a := range h.actors {
		if !classes.Has(a.Class) {
			continue
		}
		if a.Position.Sub(center).LenSq() <= r2 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// All returns a copy of every actor, ordered by id.
func (h *Harness) All() []Actor {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Actor, 0, len(h.actors))
	for _, a := range h.actors {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
