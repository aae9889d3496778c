package behavior

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTreeTooLarge is returned when a tree exceeds the NodeID range.
	ErrTreeTooLarge = errors.New("behavior tree too large")
	// ErrInvalidNode is returned for malformed specs.
	ErrInvalidNode = errors.New("invalid behavior tree node")
)

// Spec describes a subtree. Build flattens it.
type Spec[A any] struct {
	kind     NodeKind
	name     string
	children []Spec[A]
	cond     Condition[A]
	inverse  bool
	task     Task[A]
	services []Service[A]
}

// Selector runs children in order until one does not fail.
func Selector[A any](name string, children ...Spec[A]) Spec[A] {
	return Spec[A]{kind: KindSelector, name: name, children: children}
}

// Sequence runs children in order until one does not succeed.
func Sequence[A any](name string, children ...Spec[A]) Spec[A] {
	return Spec[A]{kind: KindSequence, name: name, children: children}
}

// Decorate gates child on cond.
func Decorate[A any](cond Condition[A], child Spec[A]) Spec[A] {
	name := "?"
	if cond != nil {
		name = cond.Name()
	}
	return Spec[A]{kind: KindDecorator, name: name, cond: cond, children: []Spec[A]{child}}
}

// Invert gates child on cond being false.
func Invert[A any](cond Condition[A], child Spec[A]) Spec[A] {
	s := Decorate(cond, child)
	s.inverse = true
	s.name = "!" + s.name
	return s
}

// Leaf wraps a task.
func Leaf[A any](t Task[A]) Spec[A] {
	name := "?"
	if t != nil {
		name = t.Name()
	}
	return Spec[A]{kind: KindTask, name: name, task: t}
}

// WithServices attaches services to a composite.
func (s Spec[A]) WithServices(svcs ...Service[A]) Spec[A] {
	s.services = append(append([]Service[A](nil), s.services...), svcs...)
	return s
}

type node[A any] struct {
	kind     NodeKind
	name     string
	parent   NodeID
	children []NodeID
	cond     Condition[A]
	inverse  bool
	task     Task[A]

	services    []Service[A]
	serviceBase int // Index of the first service in instance timers

	memOffset int
	memSize   int
}

// Tree is an immutable flattened behavior tree.
type Tree[A any] struct {
	nodes       []node[A]
	memSize     int
	numServices int
}

// Build validates and flattens root.
func Build[A any](root Spec[A]) (*Tree[A], error) {
	t := &Tree[A]{}
	if _, err := t.add(root, NoNode); err != nil {
		return nil, err
	}
	return t, nil
}

// MustBuild is Build for static trees.
func MustBuild[A any](root Spec[A]) *Tree[A] {
	t, err := Build(root)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree[A]) add(s Spec[A], parent NodeID) (NodeID, error) {
	if len(t.nodes) >= int(NoNode) {
		return NoNode, fmt.Errorf("build: %w: more than %d nodes", ErrTreeTooLarge, NoNode)
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node[A]{kind: s.kind, name: s.name, parent: parent})

	switch s.kind {
	case KindSelector, KindSequence:
		if len(s.children) == 0 {
			return NoNode, fmt.Errorf("build: %w: %s %q has no children", ErrInvalidNode, s.kind, s.name)
		}
	case KindDecorator:
		if s.cond == nil || len(s.children) != 1 {
			return NoNode, fmt.Errorf("build: %w: decorator %q needs a condition and one child", ErrInvalidNode, s.name)
		}
	case KindTask:
		if s.task == nil {
			return NoNode, fmt.Errorf("build: %w: task %q is nil", ErrInvalidNode, s.name)
		}
	}
	if len(s.services) > 0 && s.kind != KindSelector && s.kind != KindSequence {
		return NoNode, fmt.Errorf("build: %w: services on %s %q", ErrInvalidNode, s.kind, s.name)
	}

	n := &t.nodes[id]
	n.cond = s.cond
	n.inverse = s.inverse
	n.task = s.task
	n.services = s.services
	n.serviceBase = t.numServices
	t.numServices += len(s.services)
	if s.task != nil {
		n.memOffset = t.memSize
		n.memSize = s.task.MemorySize()
		t.memSize += n.memSize
	}

	children := make([]NodeID, 0, len(s.children))
	for _, c := range s.children {
		cid, err := t.add(c, id)
		if err != nil {
			return NoNode, err
		}
		children = append(children, cid)
	}
	// t.nodes may have grown; index again.
	t.nodes[id].children = children
	return id, nil
}

// Len returns the number of nodes.
func (t *Tree[A]) Len() int { return len(t.nodes) }

// MemorySize returns the scratch bytes one instance needs.
func (t *Tree[A]) MemorySize() int { return t.memSize }

// Name returns a node's display name.
func (t *Tree[A]) Name(id NodeID) string {
	if int(id) >= len(t.nodes) {
		return ""
	}
	return t.nodes[id].name
}

// Kind returns a node's variant.
func (t *Tree[A]) Kind(id NodeID) NodeKind { return t.nodes[id].kind }

// Path returns the node names from the root down to id.
func (t *Tree[A]) Path(id NodeID) string {
	var parts []string
	for n := id; n != NoNode && int(n) < len(t.nodes); n = t.nodes[n].parent {
		parts = append(parts, t.nodes[n].name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// Dump renders the tree one node per line, indented by depth.
func (t *Tree[A]) Dump() string {
	var b strings.Builder
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		n := &t.nodes[id]
		fmt.Fprintf(&b, "%s[%d] %s %s\n", strings.Repeat("  ", depth), id, n.kind, n.name)
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	if len(t.nodes) > 0 {
		walk(0, 0)
	}
	return b.String()
}
