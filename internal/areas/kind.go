package areas

import "fmt"

// Kind is the zone variant. Its value orders samples by priority.
type Kind uint8

const (
	KindNone Kind = iota
	KindGraze
	KindFlowGuide
	KindAvoid
	KindPanic
)

var kindNames = [...]string{"none", "graze", "flow_guide", "avoid", "panic"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is the priority contribution of the variant.
func (k Kind) Value() int {
	return int(k) * 10
}

// ParseKind maps a config name to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return KindNone, fmt.Errorf("unknown zone kind %q", s)
}

// FleeMode selects the direction a panic zone pushes agents.
type FleeMode uint8

const (
	FleeOutward  FleeMode = iota // Away from the zone centre
	FleeScatter                  // Independent random angle per query
	FleeStampede                 // Coherent noise field, neighbours bolt together
)

var fleeModeNames = [...]string{"outward", "scatter", "stampede"}

func (m FleeMode) String() string {
	if int(m) < len(fleeModeNames) {
		return fleeModeNames[m]
	}
	return "unknown"
}

// ParseFleeMode maps a config name to a FleeMode. Empty means outward.
func ParseFleeMode(s string) (FleeMode, error) {
	if s == "" {
		return FleeOutward, nil
	}
	for i, n := range fleeModeNames {
		if n == s {
			return FleeMode(i), nil
		}
	}
	return FleeOutward, fmt.Errorf("unknown flee mode %q", s)
}
