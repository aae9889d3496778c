package world

// Nav is the navigation query surface. Implementations must be cheap enough
// to call from tasks every tick.
type Nav interface {
	// ProjectPoint snaps p onto the walkable surface within an axis-aligned
	// search box of half-size extent.
	ProjectPoint(p, extent Vec3) (Vec3, bool)
	// RandomReachablePoint returns a walkable point within radius of origin.
	RandomReachablePoint(origin Vec3, radius float64) (Vec3, bool)
}

// Space answers spatial queries over every actor in the simulation.
type Space interface {
	// ActorsInSphere returns the ids of actors of the masked classes within
	// radius of center, in ascending id order.
	ActorsInSphere(center Vec3, radius float64, classes ClassMask) []ActorID
	// Actor returns the current state of id.
	Actor(id ActorID) (Actor, bool)
}

// Clock exposes simulation time.
type Clock interface {
	Now() float64 // Seconds since simulation start
	Dt() float64  // Length of the current tick in seconds
}

// ManualClock is a Clock advanced explicitly by the simulation loop.
type ManualClock struct {
	now float64
	dt  float64
}

// Now returns the current simulation time.
func (c *ManualClock) Now() float64 { return c.now }

// Dt returns the length of the last tick.
func (c *ManualClock) Dt() float64 { return c.dt }

// Advance moves the clock forward by dt seconds.
func (c *ManualClock) Advance(dt float64) {
	c.dt = dt
	c.now += dt
}
