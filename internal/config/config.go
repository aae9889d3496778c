// Package config loads simulation settings and scenario layouts from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/steering"
	"github.com/talgya/cattle-herd/internal/world"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full simulation configuration.
type Config struct {
	Seed     int64  `yaml:"seed"`
	LogLevel string `yaml:"log_level"`
	Nav      string `yaml:"nav"` // "pasture" or "plain"

	Tick          Tick                `yaml:"tick"`
	Attributes    attributes.Defaults `yaml:"attributes"`
	Agent         Agent               `yaml:"agent"`
	Herd          Herd                `yaml:"herd"`
	Threats       Threats             `yaml:"threats"`
	PlayerActions PlayerActions       `yaml:"player_actions"`
	Flee          Flee                `yaml:"flee"`
	Wander        Wander              `yaml:"wander"`
	Lure          Lure                `yaml:"lure"`
	Graze         Graze               `yaml:"graze"`
	Move          Move                `yaml:"move"`
	Movement      steering.Config     `yaml:"movement"`
	Pasture       world.PastureConfig `yaml:"pasture"`

	Spawn  []SpawnArea `yaml:"spawn"`
	Zones  []Zone      `yaml:"zones"`
	Guides []Guide     `yaml:"guides"`
	Actors []Actor     `yaml:"actors"`

	API       API       `yaml:"api"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Tick controls the engine loop.
type Tick struct {
	DT       float64       `yaml:"dt"`       // Simulated seconds per tick
	Interval time.Duration `yaml:"interval"` // Wall-clock time per tick at speed 1
	Speed    int           `yaml:"speed"`    // 0 pauses
}

// Agent holds per-controller settings.
type Agent struct {
	AreaUpdateInterval float64 `yaml:"area_update_interval"`
	LassoFear          float32 `yaml:"lasso_fear"`
}

// Herd tunes flocking.
type Herd struct {
	Radius             float64 `yaml:"radius"`
	SeparationDistance float64 `yaml:"separation_distance"`
	CohesionWeight     float64 `yaml:"cohesion_weight"`
	AlignmentWeight    float64 `yaml:"alignment_weight"`
	SeparationWeight   float64 `yaml:"separation_weight"`
}

// Threats tunes the fear-from-threat curve.
type Threats struct {
	DetectionRadius   float64 `yaml:"detection_radius"`
	FearStartDistance float64 `yaml:"fear_start_distance"`
	MaxFearPerSecond  float32 `yaml:"max_fear_per_second"`
	PlayersAreThreats bool    `yaml:"players_are_threats"`
	FleeDistance      float32 `yaml:"flee_distance"` // Threat range that triggers Flee
	PanicZoneFlee     bool    `yaml:"panic_zone_flee"`
}

// PlayerActions tunes explosive, trumpet and gunshot detection.
type PlayerActions struct {
	ExplosiveRadius   float64 `yaml:"explosive_radius"`
	TrumpetRadius     float64 `yaml:"trumpet_radius"`
	GunshotRadius     float64 `yaml:"gunshot_radius"`
	GunshotMemory     float64 `yaml:"gunshot_memory"`
	LureCalmPerPulse  float32 `yaml:"lure_calm_per_pulse"`
	ScareFearPerPulse float32 `yaml:"scare_fear_per_pulse"`
	GunshotFear       float32 `yaml:"gunshot_fear"`
	CuriosityMaxFear  float32 `yaml:"curiosity_max_fear"`
	LookDuration      float64 `yaml:"look_duration"`
}

// Flee shapes flee waypoints.
type Flee struct {
	Distance            float64 `yaml:"distance"`
	AngleVariation      float64 `yaml:"angle_variation"`
	ActorDistance       float64 `yaml:"actor_distance"`
	ActorAngleVariation float64 `yaml:"actor_angle_variation"`
}

// Wander shapes idle roaming.
type Wander struct {
	Radius        float32 `yaml:"radius"`
	MinDistance   float64 `yaml:"min_distance"`
	UseNavigation bool    `yaml:"use_navigation"`
	RetryDelay    float64 `yaml:"retry_delay"`
}

// Lure tunes lure following.
type Lure struct {
	AttractionThreshold float32 `yaml:"attraction_threshold"`
	AcceptableRadius    float64 `yaml:"acceptable_radius"`
}

// Graze tunes the graze task.
type Graze struct {
	MinDuration     float64 `yaml:"min_duration"`
	MaxDuration     float64 `yaml:"max_duration"`
	AnimationChance float64 `yaml:"animation_chance"`
}

// Move tunes MoveTo.
type Move struct {
	AcceptanceRadius float64 `yaml:"acceptance_radius"`
	Timeout          float64 `yaml:"timeout"`
}

// API configures the inspector server.
type API struct {
	Port        int    `yaml:"port"`
	AdminKeyEnv string `yaml:"admin_key_env"`
	RateLimit   int    `yaml:"rate_limit"` // Admin requests per client per minute
}

// Telemetry configures the trace recorder.
type Telemetry struct {
	Path        string `yaml:"path"` // Empty disables recording
	SampleEvery int    `yaml:"sample_every"`
}

// Default returns the stock configuration with no scenario content.
func Default() *Config {
	move := steering.DefaultConfig()
	return &Config{
		Seed:     0,
		LogLevel: "info",
		Nav:      "pasture",
		Tick: Tick{
			DT:       0.1,
			Interval: 100 * time.Millisecond,
			Speed:    1,
		},
		Attributes: attributes.DefaultValues(),
		Agent: Agent{
			AreaUpdateInterval: 0.1,
			LassoFear:          50,
		},
		Herd: Herd{
			Radius:             800,
			SeparationDistance: 150,
			CohesionWeight:     0.3,
			AlignmentWeight:    0.2,
			SeparationWeight:   0.5,
		},
		Threats: Threats{
			DetectionRadius:   1500,
			FearStartDistance: 1000,
			MaxFearPerSecond:  20,
			FleeDistance:      500,
			PanicZoneFlee:     true,
		},
		PlayerActions: PlayerActions{
			ExplosiveRadius:   800,
			TrumpetRadius:     1500,
			GunshotRadius:     1500,
			GunshotMemory:     2,
			LureCalmPerPulse:  30,
			ScareFearPerPulse: 10,
			GunshotFear:       15,
			CuriosityMaxFear:  0.3,
			LookDuration:      1,
		},
		Flee: Flee{
			Distance:            500,
			AngleVariation:      15,
			ActorDistance:       800,
			ActorAngleVariation: 30,
		},
		Wander: Wander{
			Radius:        1000,
			MinDistance:   200,
			UseNavigation: true,
			RetryDelay:    1,
		},
		Lure: Lure{
			AttractionThreshold: 0.3,
			AcceptableRadius:    300,
		},
		Graze: Graze{
			MinDuration:     5,
			MaxDuration:     15,
			AnimationChance: 0.3,
		},
		Move: Move{
			AcceptanceRadius: 50,
			Timeout:          10,
		},
		Movement: move,
		Pasture:  world.DefaultPastureConfig(),
		API: API{
			Port:        8080,
			AdminKeyEnv: "HERDSIM_ADMIN_KEY",
			RateLimit:   30,
		},
		Telemetry: Telemetry{
			SampleEvery: 10,
		},
	}
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks ranges and scenario references.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Tick.DT > 0, "tick.dt must be positive, got %g", c.Tick.DT)
	check(c.Tick.Speed >= 0, "tick.speed must not be negative, got %d", c.Tick.Speed)
	check(c.Nav == "pasture" || c.Nav == "plain", "nav must be pasture or plain, got %q", c.Nav)
	_, err := c.SlogLevel()
	check(err == nil, "log_level: %v", err)

	a := c.Attributes
	check(a.PanicThreshold > 0 && a.PanicThreshold <= 1, "attributes.panic_threshold must be in (0,1], got %g", a.PanicThreshold)
	check(a.MaxFear >= 1, "attributes.max_fear must be at least 1, got %g", a.MaxFear)
	check(a.FearDecayRate >= 0, "attributes.fear_decay_rate must not be negative")
	check(a.SpeedModifier >= 0.1 && a.SpeedModifier <= 3, "attributes.speed_modifier must be in [0.1,3], got %g", a.SpeedModifier)

	check(c.Herd.Radius > 0, "herd.radius must be positive")
	check(c.Herd.SeparationDistance > 0, "herd.separation_distance must be positive")
	check(c.Threats.DetectionRadius > 0, "threats.detection_radius must be positive")
	check(c.Threats.FearStartDistance > 0, "threats.fear_start_distance must be positive")
	check(c.PlayerActions.TrumpetRadius > 0 && c.PlayerActions.GunshotRadius > 0 && c.PlayerActions.ExplosiveRadius > 0,
		"player_actions radii must be positive")
	check(c.Flee.Distance > 0 && c.Flee.ActorDistance > 0, "flee distances must be positive")
	check(c.Wander.Radius >= 0, "wander.radius must not be negative")
	check(c.Graze.MaxDuration >= c.Graze.MinDuration, "graze.max_duration must be at least min_duration")
	check(c.Move.AcceptanceRadius > 0, "move.acceptance_radius must be positive")

	m := c.Movement
	check(m.GrazingSpeed > 0 && m.WalkingSpeed > 0 && m.PanicSpeed > 0, "movement speeds must be positive")
	check(m.Mass > 0, "movement.mass must be positive")
	check(c.Pasture.HalfSize > 0 && c.Pasture.CellSize > 0, "pasture size and cell size must be positive")

	for i, s := range c.Spawn {
		check(s.Count >= 0, "spawn[%d].count must not be negative", i)
		check(s.Shape == "" || s.Shape == "box" || s.Shape == "spline", "spawn[%d]: unknown shape %q", i, s.Shape)
	}
	for i, z := range c.Zones {
		if _, err := z.Build(); err != nil {
			check(false, "zones[%d]: %v", i, err)
		}
	}
	for i, g := range c.Guides {
		check(len(g.Points) >= 2, "guides[%d]: needs at least 2 points, has %d", i, len(g.Points))
		check(g.Radius >= 0, "guides[%d]: radius must not be negative", i)
	}
	for i, act := range c.Actors {
		if _, err := act.Build(); err != nil {
			check(false, "actors[%d]: %v", i, err)
		}
	}
	check(c.API.Port >= 0 && c.API.Port < 65536, "api.port out of range: %d", c.API.Port)
	check(c.Telemetry.SampleEvery >= 0, "telemetry.sample_every must not be negative")

	return errors.Join(errs...)
}

// SlogLevel maps log_level to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.LogLevel)
}
