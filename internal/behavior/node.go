// Package behavior is a behavior tree executor. A tree is built once from a
// nested Spec into a flat node array and shared by every agent that runs it;
// each agent owns an Instance holding cursors, the active task, per-node
// scratch memory and service timers.
package behavior

import (
	"encoding/binary"
	"math"
)

// Status is the result of evaluating a node.
type Status uint8

const (
	Succeeded Status = iota
	Failed
	InProgress
	Aborted
)

var statusNames = [...]string{"succeeded", "failed", "in_progress", "aborted"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// NodeID indexes the flat node array.
type NodeID uint16

// NoNode is the null node reference.
const NoNode NodeID = math.MaxUint16

// NodeKind is the variant of a node.
type NodeKind uint8

const (
	KindSelector NodeKind = iota
	KindSequence
	KindDecorator
	KindTask
)

var kindNames = [...]string{"selector", "sequence", "decorator", "task"}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Memory is a task's slice of the instance scratch buffer. It is zeroed
// whenever the task finishes or is aborted.
type Memory []byte

// Float32 reads a float at byte offset off.
func (m Memory) Float32(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(m[off:]))
}

// SetFloat32 writes a float at byte offset off.
func (m Memory) SetFloat32(off int, v float32) {
	binary.LittleEndian.PutUint32(m[off:], math.Float32bits(v))
}

// Uint32 reads an integer at byte offset off.
func (m Memory) Uint32(off int) uint32 {
	return binary.LittleEndian.Uint32(m[off:])
}

// SetUint32 writes an integer at byte offset off.
func (m Memory) SetUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(m[off:], v)
}

func (m Memory) zero() {
	for i := range m {
		m[i] = 0
	}
}

// Task is a leaf action.
type Task[A any] interface {
	Name() string
	// MemorySize is the number of scratch bytes the task needs.
	MemorySize() int
	// Execute starts the task. Returning InProgress makes it the active task.
	Execute(ctx *Context[A], mem Memory) Status
	// Tick continues an active task.
	Tick(ctx *Context[A], mem Memory) Status
	// Abort cancels an active task. It must be idempotent.
	Abort(ctx *Context[A], mem Memory)
}

// TaskBase supplies defaults for tasks that need no memory, finish in
// Execute, or rely on FinishLatentTask.
type TaskBase[A any] struct{}

func (TaskBase[A]) MemorySize() int                         { return 0 }
func (TaskBase[A]) Tick(ctx *Context[A], mem Memory) Status { return InProgress }
func (TaskBase[A]) Abort(ctx *Context[A], mem Memory)       {}

// Condition gates a decorator.
type Condition[A any] interface {
	Name() string
	Check(ctx *Context[A]) bool
}

// Service runs periodically while its composite is on the active path.
type Service[A any] interface {
	Name() string
	Interval() float64
	Deviation() float64
	// Tick runs the service. elapsed is the time since its previous run.
	Tick(ctx *Context[A], elapsed float64)
}
