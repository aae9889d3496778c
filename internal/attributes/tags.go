package attributes

import (
	"sort"
	"strings"
)

// Well-known tags.
const (
	TagPanicked    = "State.Animal.Panicked"
	TagGrazing     = "State.Cattle.Grazing"
	TagAvoiding    = "State.Cattle.Avoiding"
	TagGuided      = "State.Cattle.Guided"
	TagThreatened  = "State.Cattle.Threatened"
	TagLassoed     = "State.Lassoed"
	TagLassoTether = "State.Lasso.Tethered"
)

// TagSet is a reference-counted set of dotted hierarchical tags. A tag granted
// twice (say by two overlapping zones) stays present until both grants are
// revoked.
type TagSet struct {
	counts map[string]int
}

// NewTagSet returns an empty tag set.
func NewTagSet() *TagSet {
	return &TagSet{counts: make(map[string]int)}
}

// Add grants tag once.
func (t *TagSet) Add(tag string) {
	t.counts[tag]++
}

// Remove revokes one grant of tag.
func (t *TagSet) Remove(tag string) {
	n := t.counts[tag]
	if n <= 1 {
		delete(t.counts, tag)
		return
	}
	t.counts[tag] = n - 1
}

// Clear drops every grant of tag.
func (t *TagSet) Clear(tag string) {
	delete(t.counts, tag)
}

// Has reports exact membership.
func (t *TagSet) Has(tag string) bool {
	return t.counts[tag] > 0
}

// HasPrefix reports whether tag or any tag beneath it in the hierarchy is
// present. "State.Cattle" matches "State.Cattle.Grazing" but not
// "State.CattleDrive".
func (t *TagSet) HasPrefix(parent string) bool {
	for tag := range t.counts {
		if tag == parent || strings.HasPrefix(tag, parent+".") {
			return true
		}
	}
	return false
}

// List returns the present tags in sorted order.
func (t *TagSet) List() []string {
	out := make([]string, 0, len(t.counts))
	for tag := range t.counts {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (t *TagSet) removeAll(tags []string) {
	for _, tag := range tags {
		t.Remove(tag)
	}
}
