package agents

import (
	"math/rand"

	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/blackboard"
)

// ControllerConfig tunes per-agent controller behavior.
type ControllerConfig struct {
	WanderRadius       float32 `yaml:"wander_radius"`
	AreaUpdateInterval float64 `yaml:"area_update_interval"`
	LassoFear          float32 `yaml:"lasso_fear"`
}

// DefaultControllerConfig returns the stock controller tuning.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		WanderRadius:       1000,
		AreaUpdateInterval: 0.1,
		LassoFear:          50,
	}
}

// Controller owns an agent's behavior tree instance and drives its steering.
type Controller struct {
	Agent *Agent

	cfg   ControllerConfig
	brain *behavior.Instance[*Agent]
}

// NewController binds tree to a, seeding the blackboard.
func NewController(a *Agent, tree *behavior.Tree[*Agent], cfg ControllerConfig, rng *rand.Rand) *Controller {
	var latent *behavior.LatentTable
	if a.env != nil {
		latent = a.env.Latent
	}
	a.lassoFear = cfg.LassoFear

	b := a.Board
	b.SetVector(blackboard.HomeLocation, a.Home)
	b.SetFloat(blackboard.WanderRadius, cfg.WanderRadius)
	b.SetFloat(blackboard.FearLevel, 0)
	b.SetBool(blackboard.IsPanicked, false)
	b.SetAreaType(areas.KindNone)

	return &Controller{
		Agent: a,
		cfg:   cfg,
		brain: behavior.NewInstance(tree, a.ID, latent, rng),
	}
}

// Think ticks the behavior tree.
func (c *Controller) Think(now, dt float64) behavior.Status {
	if !c.Agent.Alive {
		return behavior.Failed
	}
	return c.brain.Tick(c.Agent, c.Agent.Board, now, dt)
}

// Move refreshes the area cache when due, feeds the blackboard and
// attributes into steering, and integrates one step.
func (c *Controller) Move(dt float64) {
	a := c.Agent
	if !a.Alive {
		return
	}

	a.areaTimer += dt
	if a.areaTimer >= c.cfg.AreaUpdateInterval-1e-9 {
		a.areaTimer = 0
		c.refreshArea()
	}

	if herd, ok := a.Board.Vector(blackboard.HerdDirection); ok {
		a.Movement.SetHerd(herd)
	}
	a.Movement.SetAttributeSpeed(float64(a.Attributes.Get(attributes.SpeedModifier)))

	a.Position, a.Velocity = a.Movement.Integrate(a.Position, dt)
	a.updateFacing()
	a.checkArrival()
}

func (c *Controller) refreshArea() {
	a := c.Agent
	if a.env == nil || a.env.Areas == nil {
		return
	}
	a.Primary = a.env.Areas.PrimaryAreaAt(a.Position)
	a.Flow = a.env.Areas.FlowAt(a.Position)
	if a.Primary.Valid() {
		a.Movement.SetAreaInfluence(a.Primary.Direction, a.Primary.Strength, float64(a.Primary.SpeedModifier))
	} else {
		a.Movement.ClearAreaInfluence()
	}
	a.Movement.SetFlow(a.Flow)
}

// Reset aborts the running task and rewinds the tree.
func (c *Controller) Reset(now float64) {
	c.brain.Reset(c.Agent, c.Agent.Board, now)
}

// ActiveTask returns the name of the in-progress task, or "".
func (c *Controller) ActiveTask() string {
	id := c.brain.Active()
	if id == behavior.NoNode {
		return ""
	}
	return c.brain.Tree().Name(id)
}

// LastTask returns the name and result of the most recent task evaluation.
func (c *Controller) LastTask() (string, behavior.Status) {
	id, s := c.brain.LastTask()
	if id == behavior.NoNode {
		return "", s
	}
	return c.brain.Tree().Name(id), s
}

// ActivePath returns the node names leading to the active task.
func (c *Controller) ActivePath() string {
	id := c.brain.Active()
	if id == behavior.NoNode {
		return ""
	}
	return c.brain.Tree().Path(id)
}

// Branch returns the index of the root child handling the agent.
func (c *Controller) Branch() int { return c.brain.Branch() }
