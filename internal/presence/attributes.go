package presence

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/nerrad567/presence-core/internal/raddec"
)

// Reserved keys of the flat dynamb and statid JSON objects.
const (
	keyDeviceID     = "deviceId"
	keyDeviceIDType = "deviceIdType"
	keyTimestamp    = "timestamp"

	// PropertyNearest is the dynamb property listing nearby devices.
	PropertyNearest = "nearest"
)

// Dynamb is a set of dynamic ambient properties decoded for a device at a
// point in time, e.g. temperature or battery voltage.
type Dynamb struct {
	DeviceID     string
	DeviceIDType int
	Timestamp    time.Time
	Properties   map[string]any
}

// Signature returns the device signature.
func (d *Dynamb) Signature() string {
	return raddec.Signature(d.DeviceID, d.DeviceIDType)
}

// Validate checks the identity and timestamp.
func (d *Dynamb) Validate() error {
	if d.DeviceID == "" {
		return fmt.Errorf("%w: missing deviceId", ErrInvalidDynamb)
	}
	if d.DeviceIDType < 0 {
		return fmt.Errorf("%w: negative deviceIdType", ErrInvalidDynamb)
	}
	if d.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidDynamb)
	}
	return nil
}

// MarshalJSON encodes the dynamb as a flat object.
func (d Dynamb) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Properties)+3)
	for k, v := range d.Properties {
		out[k] = v
	}
	out[keyDeviceID] = d.DeviceID
	out[keyDeviceIDType] = d.DeviceIDType
	out[keyTimestamp] = d.Timestamp.UnixMilli()
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat dynamb object. The identity fields and the
// timestamp must be present and well-typed.
func (d *Dynamb) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	id, idType, err := decodeIdentity(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDynamb, err)
	}
	ms, ok := integer(fields[keyTimestamp])
	if !ok {
		return fmt.Errorf("%w: timestamp must be an integer", ErrInvalidDynamb)
	}
	delete(fields, keyTimestamp)

	*d = Dynamb{
		DeviceID:     id,
		DeviceIDType: idType,
		Timestamp:    time.UnixMilli(ms),
		Properties:   fields,
	}
	return nil
}

// Statid is static identification data for a device, e.g. its name or the
// UUIDs it advertises.
type Statid struct {
	DeviceID     string
	DeviceIDType int
	Properties   map[string]any
}

// Signature returns the device signature.
func (s *Statid) Signature() string {
	return raddec.Signature(s.DeviceID, s.DeviceIDType)
}

// Validate checks the identity.
func (s *Statid) Validate() error {
	if s.DeviceID == "" {
		return fmt.Errorf("%w: missing deviceId", ErrInvalidStatid)
	}
	if s.DeviceIDType < 0 {
		return fmt.Errorf("%w: negative deviceIdType", ErrInvalidStatid)
	}
	return nil
}

// MarshalJSON encodes the statid as a flat object.
func (s Statid) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Properties)+2)
	for k, v := range s.Properties {
		out[k] = v
	}
	out[keyDeviceID] = s.DeviceID
	out[keyDeviceIDType] = s.DeviceIDType
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat statid object.
func (s *Statid) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	id, idType, err := decodeIdentity(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatid, err)
	}
	*s = Statid{DeviceID: id, DeviceIDType: idType, Properties: fields}
	return nil
}

// decodeIdentity pulls deviceId and deviceIdType out of fields.
func decodeIdentity(fields map[string]any) (string, int, error) {
	id, ok := fields[keyDeviceID].(string)
	if !ok {
		return "", 0, fmt.Errorf("deviceId must be a string")
	}
	idType, ok := integer(fields[keyDeviceIDType])
	if !ok {
		return "", 0, fmt.Errorf("deviceIdType must be an integer")
	}
	delete(fields, keyDeviceID)
	delete(fields, keyDeviceIDType)
	return id, int(idType), nil
}

// integer converts a decoded JSON number to int64 if it is integral.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// Neighbour is one entry of a context "nearest" list.
type Neighbour struct {
	Device string `json:"device"`
	RSSI   int    `json:"rssi"`
}

// nearestFromProperty reads a "nearest" dynamb property. Entries that are not
// {device, rssi} pairs are skipped.
func nearestFromProperty(v any) []Neighbour {
	switch list := v.(type) {
	case []Neighbour:
		return list
	case []any:
		out := make([]Neighbour, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			dev, ok := m["device"].(string)
			if !ok || dev == "" {
				continue
			}
			var rssi int
			switch n := m["rssi"].(type) {
			case float64:
				rssi = int(math.Round(n))
			case int:
				rssi = n
			default:
				continue
			}
			out = append(out, Neighbour{Device: dev, RSSI: rssi})
		}
		return out
	default:
		return nil
	}
}

// sortNeighbours orders strongest-first, then by signature.
func sortNeighbours(ns []Neighbour) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].RSSI != ns[j].RSSI {
			return ns[i].RSSI > ns[j].RSSI
		}
		return ns[i].Device < ns[j].Device
	})
}

// unionLists merges two list values, keeping order and dropping duplicates.
// It reports false when either value is not a list.
func unionLists(current, incoming any) (any, bool) {
	a, ok := asList(current)
	if !ok {
		return nil, false
	}
	b, ok := asList(incoming)
	if !ok {
		return nil, false
	}
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	for _, v := range b {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out, true
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}
