package presence

import (
	"strings"

	"github.com/nerrad567/presence-core/internal/raddec"
)

// EventSet is a set of event kinds.
type EventSet uint8

// NewEventSet returns a set holding kinds.
func NewEventSet(kinds ...raddec.EventKind) EventSet {
	var s EventSet
	for _, k := range kinds {
		s.Add(k)
	}
	return s
}

// Add inserts k.
func (s *EventSet) Add(k raddec.EventKind) {
	*s |= 1 << k
}

// Remove deletes k.
func (s *EventSet) Remove(k raddec.EventKind) {
	*s &^= 1 << k
}

// Clear empties the set.
func (s *EventSet) Clear() {
	*s = 0
}

// Has reports whether k is in the set.
func (s EventSet) Has(k raddec.EventKind) bool {
	return s&(1<<k) != 0
}

// Empty reports whether the set holds nothing.
func (s EventSet) Empty() bool {
	return s == 0
}

// Kinds returns the members in tag order.
func (s EventSet) Kinds() []raddec.EventKind {
	var out []raddec.EventKind
	for _, k := range raddec.AllEventKinds() {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s EventSet) String() string {
	kinds := s.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}
