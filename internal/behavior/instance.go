package behavior

import (
	"math/rand"

	"github.com/talgya/cattle-herd/internal/blackboard"
	"github.com/talgya/cattle-herd/internal/world"
)

// Context is what nodes see while an instance ticks.
type Context[A any] struct {
	Agent A
	Board *blackboard.Blackboard
	Now   float64
	Dt    float64
	Rand  *rand.Rand

	inst *Instance[A]
}

// FinishLatentTask completes the active task with s on the next tick.
func (c *Context[A]) FinishLatentTask(s Status) {
	c.inst.latent.Finish(c.inst.owner, s)
}

// LatentTable collects latent task completions keyed by agent.
type LatentTable struct {
	pending map[world.ActorID]Status
}

// NewLatentTable returns an empty table.
func NewLatentTable() *LatentTable {
	return &LatentTable{pending: make(map[world.ActorID]Status)}
}

// Finish records a completion for the active task of agent id.
func (l *LatentTable) Finish(id world.ActorID, s Status) {
	l.pending[id] = s
}

func (l *LatentTable) take(id world.ActorID) (Status, bool) {
	s, ok := l.pending[id]
	if ok {
		delete(l.pending, id)
	}
	return s, ok
}

// Instance is one agent's run state for a shared tree.
type Instance[A any] struct {
	tree   *Tree[A]
	owner  world.ActorID
	latent *LatentTable
	rng    *rand.Rand

	cursor  []int
	scratch []byte
	active  NodeID

	svcNext    []float64
	svcLast    []float64
	svcStarted []bool

	latentStatus  Status
	latentPending bool

	branch     int
	lastTask   NodeID
	lastStatus Status
}

// NewInstance binds tree to agent owner. A nil latent table gets a private one.
func NewInstance[A any](tree *Tree[A], owner world.ActorID, latent *LatentTable, rng *rand.Rand) *Instance[A] {
	if latent == nil {
		latent = NewLatentTable()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(owner)))
	}
	return &Instance[A]{
		tree:       tree,
		owner:      owner,
		latent:     latent,
		rng:        rng,
		cursor:     make([]int, len(tree.nodes)),
		scratch:    make([]byte, tree.memSize),
		active:     NoNode,
		svcNext:    make([]float64, tree.numServices),
		svcLast:    make([]float64, tree.numServices),
		svcStarted: make([]bool, tree.numServices),
		branch:     -1,
		lastTask:   NoNode,
	}
}

// Tree returns the shared tree.
func (in *Instance[A]) Tree() *Tree[A] { return in.tree }

// Active returns the in-progress task node, or NoNode.
func (in *Instance[A]) Active() NodeID { return in.active }

// LastTask returns the most recently executed task node and its result.
func (in *Instance[A]) LastTask() (NodeID, Status) { return in.lastTask, in.lastStatus }

// Branch returns the index of the root child that handled the last tick, or
// -1 when every branch failed.
func (in *Instance[A]) Branch() int { return in.branch }

// Memory returns the scratch slice of a task node.
func (in *Instance[A]) Memory(id NodeID) Memory {
	n := &in.tree.nodes[id]
	return Memory(in.scratch[n.memOffset : n.memOffset+n.memSize])
}

func (in *Instance[A]) context(agent A, board *blackboard.Blackboard, now, dt float64) *Context[A] {
	return &Context[A]{Agent: agent, Board: board, Now: now, Dt: dt, Rand: in.rng, inst: in}
}

// Tick runs services on the active path, consumes any latent completion,
// aborts the active task if a higher-priority branch became eligible, then
// evaluates the tree.
func (in *Instance[A]) Tick(agent A, board *blackboard.Blackboard, now, dt float64) Status {
	if len(in.tree.nodes) == 0 {
		return Failed
	}
	ctx := in.context(agent, board, now, dt)

	in.runServices(ctx)

	if s, ok := in.latent.take(in.owner); ok && in.active != NoNode {
		in.latentStatus = s
		in.latentPending = true
	}

	in.checkLowerPriorityAbort(ctx)

	return in.eval(ctx, 0)
}

// Reset aborts any active task and rewinds the tree.
func (in *Instance[A]) Reset(agent A, board *blackboard.Blackboard, now float64) {
	if in.active != NoNode {
		in.abortActive(in.context(agent, board, now, 0))
	}
	for i := range in.cursor {
		in.cursor[i] = 0
	}
	in.branch = -1
}

// activePath returns the composites from the root to the active task, or
// just the root when idle.
func (in *Instance[A]) activePath() []NodeID {
	if in.active == NoNode {
		return []NodeID{0}
	}
	var path []NodeID
	for n := in.tree.nodes[in.active].parent; n != NoNode; n = in.tree.nodes[n].parent {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (in *Instance[A]) runServices(ctx *Context[A]) {
	for _, id := range in.activePath() {
		n := &in.tree.nodes[id]
		for i, svc := range n.services {
			slot := n.serviceBase + i
			if in.svcStarted[slot] && ctx.Now < in.svcNext[slot] {
				continue
			}
			elapsed := ctx.Dt
			if in.svcStarted[slot] {
				elapsed = ctx.Now - in.svcLast[slot]
			}
			svc.Tick(ctx, elapsed)
			in.svcStarted[slot] = true
			in.svcLast[slot] = ctx.Now
			dev := svc.Deviation()
			in.svcNext[slot] = ctx.Now + svc.Interval() + (in.rng.Float64()*2-1)*dev
		}
	}
}

// checkLowerPriorityAbort looks for a decorated selector child ahead of the
// one holding the active task whose conditions now pass.
func (in *Instance[A]) checkLowerPriorityAbort(ctx *Context[A]) {
	if in.active == NoNode {
		return
	}
	for _, sel := range in.activePath() {
		n := &in.tree.nodes[sel]
		if n.kind != KindSelector {
			continue
		}
		cur := in.cursor[sel]
		for i := 0; i < cur && i < len(n.children); i++ {
			child := n.children[i]
			if in.tree.nodes[child].kind != KindDecorator || !in.chainPasses(ctx, child) {
				continue
			}
			in.abortActive(ctx)
			in.resetCursors(sel)
			in.cursor[sel] = i
			return
		}
	}
}

// chainPasses evaluates a run of stacked decorators.
func (in *Instance[A]) chainPasses(ctx *Context[A], id NodeID) bool {
	for {
		n := &in.tree.nodes[id]
		if n.kind != KindDecorator {
			return true
		}
		if n.cond.Check(ctx) == n.inverse {
			return false
		}
		id = n.children[0]
	}
}

func (in *Instance[A]) abortActive(ctx *Context[A]) {
	id := in.active
	n := &in.tree.nodes[id]
	mem := in.Memory(id)
	n.task.Abort(ctx, mem)
	mem.zero()
	in.active = NoNode
	in.latentPending = false
	in.lastTask = id
	in.lastStatus = Aborted
}

// resetCursors rewinds every composite in the subtree rooted at id.
func (in *Instance[A]) resetCursors(id NodeID) {
	in.cursor[id] = 0
	for _, c := range in.tree.nodes[id].children {
		in.resetCursors(c)
	}
}

// holdsActive reports whether the active task lies under id.
func (in *Instance[A]) holdsActive(id NodeID) bool {
	for n := in.active; n != NoNode; n = in.tree.nodes[n].parent {
		if n == id {
			return true
		}
	}
	return false
}

func (in *Instance[A]) eval(ctx *Context[A], id NodeID) Status {
	n := &in.tree.nodes[id]
	switch n.kind {
	case KindSelector:
		for i := in.cursor[id]; i < len(n.children); i++ {
			in.cursor[id] = i
			s := in.eval(ctx, n.children[i])
			if s == InProgress || s == Succeeded {
				if id == 0 {
					in.branch = i
				}
				if s == Succeeded {
					in.cursor[id] = 0
				}
				return s
			}
		}
		in.cursor[id] = 0
		if id == 0 {
			in.branch = -1
		}
		return Failed

	case KindSequence:
		for i := in.cursor[id]; i < len(n.children); i++ {
			in.cursor[id] = i
			s := in.eval(ctx, n.children[i])
			if s == InProgress {
				if id == 0 {
					in.branch = i
				}
				return s
			}
			if s != Succeeded {
				in.cursor[id] = 0
				if id == 0 {
					in.branch = -1
				}
				return Failed
			}
		}
		in.cursor[id] = 0
		if id == 0 {
			in.branch = len(n.children) - 1
		}
		return Succeeded

	case KindDecorator:
		if n.cond.Check(ctx) == n.inverse {
			if in.active != NoNode && in.holdsActive(id) {
				in.abortActive(ctx)
				in.resetCursors(id)
			}
			return Failed
		}
		return in.eval(ctx, n.children[0])

	default:
		mem := in.Memory(id)
		var s Status
		if in.active == id {
			if in.latentPending {
				s = in.latentStatus
				in.latentPending = false
			} else {
				s = n.task.Tick(ctx, mem)
			}
		} else {
			if in.active != NoNode {
				in.abortActive(ctx)
			}
			s = n.task.Execute(ctx, mem)
		}
		in.lastTask = id
		in.lastStatus = s
		if s == InProgress {
			in.active = id
		} else {
			if in.active == id {
				in.active = NoNode
			}
			mem.zero()
		}
		return s
	}
}
