// Pasture generation using layered simplex noise.
// Produces a square grid of walkable ground with impassable rock outcrops and
// answers navigation queries against it.
package world

import (
	"math"
	"math/rand"
	"sync"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// PastureConfig holds pasture generation parameters.
type PastureConfig struct {
	HalfSize  float64 `yaml:"half_size"`  // Pasture spans [-HalfSize, HalfSize] on X and Y
	CellSize  float64 `yaml:"cell_size"`  // Grid resolution in world units
	Seed      int64   `yaml:"-"`          // Random seed (0 = random)
	RockLevel float64 `yaml:"rock_level"` // Noise threshold above which a cell is rock (>= 1 disables rocks)
}

// DefaultPastureConfig returns a 200m square pasture with sparse rocks.
func DefaultPastureConfig() PastureConfig {
	return PastureConfig{
		HalfSize:  10000,
		CellSize:  100,
		Seed:      0,
		RockLevel: 0.82,
	}
}

// Pasture is a heightless walkability grid implementing Nav.
type Pasture struct {
	cfg   PastureConfig
	cells int // Cells per side
	rock  []bool

	mu  sync.Mutex
	rng *rand.Rand
}

// GeneratePasture builds a pasture from cfg.
func GeneratePasture(cfg PastureConfig) *Pasture {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = 100
	}

	n := int(math.Ceil(2 * cfg.HalfSize / cfg.CellSize))
	if n < 1 {
		n = 1
	}
	p := &Pasture{
		cfg:   cfg,
		cells: n,
		rock:  make([]bool, n*n),
		rng:   rand.New(rand.NewSource(seed + 7)),
	}

	noise := opensimplex.NewNormalized(seed)
	for iy := 0; iy < n; iy++ {
		for ix := 0; ix < n; ix++ {
			// Sample in metres so outcrops stay a few cells wide at any resolution.
			x := (float64(ix) + 0.5) * cfg.CellSize / 100
			y := (float64(iy) + 0.5) * cfg.CellSize / 100
			h := octaveNoise(noise, x, y, 4, 0.02, 0.5)
			p.rock[iy*n+ix] = h > cfg.RockLevel
		}
	}

	return p
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func (p *Pasture) cellOf(x, y float64) (int, int, bool) {
	ix := int(math.Floor((x + p.cfg.HalfSize) / p.cfg.CellSize))
	iy := int(math.Floor((y + p.cfg.HalfSize) / p.cfg.CellSize))
	if ix < 0 || iy < 0 || ix >= p.cells || iy >= p.cells {
		return 0, 0, false
	}
	return ix, iy, true
}

func (p *Pasture) cellCenter(ix, iy int) Vec3 {
	return Vec3{
		X: -p.cfg.HalfSize + (float64(ix)+0.5)*p.cfg.CellSize,
		Y: -p.cfg.HalfSize + (float64(iy)+0.5)*p.cfg.CellSize,
	}
}

// Walkable reports whether the ground under pos can be walked on.
func (p *Pasture) Walkable(pos Vec3) bool {
	ix, iy, ok := p.cellOf(pos.X, pos.Y)
	return ok && !p.rock[iy*p.cells+ix]
}

// RockCount returns the number of impassable cells.
func (p *Pasture) RockCount() int {
	n := 0
	for _, r := range p.rock {
		if r {
			n++
		}
	}
	return n
}

// ProjectPoint implements Nav. A walkable point projects onto the ground
// directly below it; otherwise the nearest walkable cell centre inside the
// search box wins.
func (p *Pasture) ProjectPoint(pos, extent Vec3) (Vec3, bool) {
	if extent.Z > 0 && math.Abs(pos.Z) > extent.Z {
		return Vec3{}, false
	}
	if p.Walkable(pos) {
		return pos.Horizontal(), true
	}

	minX, minY, _ := p.cellOf(clampF(pos.X-extent.X, -p.cfg.HalfSize, p.cfg.HalfSize-1e-6),
		clampF(pos.Y-extent.Y, -p.cfg.HalfSize, p.cfg.HalfSize-1e-6))
	maxX, maxY, _ := p.cellOf(clampF(pos.X+extent.X, -p.cfg.HalfSize, p.cfg.HalfSize-1e-6),
		clampF(pos.Y+extent.Y, -p.cfg.HalfSize, p.cfg.HalfSize-1e-6))

	best := math.MaxFloat64
	var out Vec3
	found := false
	for iy := minY; iy <= maxY; iy++ {
		for ix := minX; ix <= maxX; ix++ {
			if p.rock[iy*p.cells+ix] {
				continue
			}
			c := p.cellCenter(ix, iy)
			if math.Abs(c.X-pos.X) > extent.X || math.Abs(c.Y-pos.Y) > extent.Y {
				continue
			}
			if d := c.Dist2D(pos); d < best {
				best, out, found = d, c, true
			}
		}
	}
	return out, found
}

// RandomReachablePoint implements Nav.
func (p *Pasture) RandomReachablePoint(origin Vec3, radius float64) (Vec3, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	half := Vec3{X: p.cfg.CellSize, Y: p.cfg.CellSize}
	for i := 0; i < 16; i++ {
		ang := p.rng.Float64() * 2 * math.Pi
		r := radius * math.Sqrt(p.rng.Float64())
		cand := origin.Horizontal().Add(FromAngle(ang).Scale(r))
		if pt, ok := p.ProjectPoint(cand, half); ok {
			return pt, true
		}
	}
	return Vec3{}, false
}

// OpenPlain is an unbounded, fully walkable Nav.
type OpenPlain struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewOpenPlain returns an OpenPlain seeded for reproducible random points.
func NewOpenPlain(seed int64) *OpenPlain {
	return &OpenPlain{rng: rand.New(rand.NewSource(seed + 7))}
}

// ProjectPoint implements Nav.
func (o *OpenPlain) ProjectPoint(pos, extent Vec3) (Vec3, bool) {
	if extent.Z > 0 && math.Abs(pos.Z) > extent.Z {
		return Vec3{}, false
	}
	return pos.Horizontal(), true
}

// RandomReachablePoint implements Nav.
func (o *OpenPlain) RandomReachablePoint(origin Vec3, radius float64) (Vec3, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ang := o.rng.Float64() * 2 * math.Pi
	r := radius * math.Sqrt(o.rng.Float64())
	return origin.Horizontal().Add(FromAngle(ang).Scale(r)), true
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
