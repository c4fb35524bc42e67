package raddec

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EventKind is one of the five presence events a compiled raddec can carry.
// The numeric order is the order in which kinds are listed on an event.
type EventKind uint8

// Event kinds, numbered as on the raddec wire format.
const (
	EventAppearance EventKind = iota
	EventDisplacement
	EventNewData
	EventKeepAlive
	EventDisappearance
)

// NumEventKinds is the number of defined event kinds.
const NumEventKinds = 5

var eventNames = [NumEventKinds]string{
	EventAppearance:    "appearance",
	EventDisplacement:  "displacement",
	EventNewData:       "new-data",
	EventKeepAlive:     "keep-alive",
	EventDisappearance: "disappearance",
}

// AllEventKinds returns every event kind in tag order.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventAppearance,
		EventDisplacement,
		EventNewData,
		EventKeepAlive,
		EventDisappearance,
	}
}

// String returns the event name (e.g. "keep-alive").
func (k EventKind) String() string {
	if int(k) < NumEventKinds {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Valid reports whether k is a defined event kind.
func (k EventKind) Valid() bool {
	return int(k) < NumEventKinds
}

// ParseEventKind converts an event name to its kind.
func ParseEventKind(name string) (EventKind, error) {
	for i, n := range eventNames {
		if n == name {
			return EventKind(i), nil
		}
	}
	// Older raddec producers used "packets" for new-data.
	if name == "packets" {
		return EventNewData, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// MarshalJSON encodes the kind as its name.
func (k EventKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, uint8(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts either the event name or its wire number.
func (k *EventKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseEventKind(name)
		if err != nil {
			return err
		}
		*k = parsed
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, string(data))
	}
	if n < 0 || n >= NumEventKinds {
		return fmt.Errorf("%w: %d", ErrUnknownEvent, n)
	}
	*k = EventKind(n)
	return nil
}

// SortEvents orders kinds in tag order and removes duplicates.
func SortEvents(kinds []EventKind) []EventKind {
	if len(kinds) == 0 {
		return kinds
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	out := kinds[:1]
	for _, k := range kinds[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}
