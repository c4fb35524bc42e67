package presence

import (
	"sort"
	"time"

	"github.com/nerrad567/presence-core/internal/raddec"
)

// attribute is one dynamb property held on a device.
type attribute struct {
	value     any
	timestamp time.Time
	expires   time.Time
}

// device is the state of one transmitter. It does no I/O and no locking; the
// Store serialises every call.
type device struct {
	id        string
	idType    int
	signature string

	// raddecs is ordered newest-first.
	raddecs []*raddec.Raddec

	pending EventSet

	// latest is the last compiled event, compiled at latestAt.
	latest   *raddec.Raddec
	latestAt time.Time

	// heard is set by every raddec and cleared when an event is compiled.
	heard bool

	next          time.Time
	disappearance time.Time

	dynamb map[string]attribute
	statid map[string]any

	// index is the position in the Store's deadline queue, -1 when absent.
	index int
}

func newDevice(id string, idType int) *device {
	return &device{
		id:        id,
		idType:    idType,
		signature: raddec.Signature(id, idType),
		pending:   NewEventSet(raddec.EventAppearance),
		index:     -1,
	}
}

// handleRaddec records r and flags any event it implies.
func (d *device) handleRaddec(r *raddec.Raddec, now time.Time, cfg Config) {
	if d.latest != nil {
		if r.ReceiverSignature() != d.latest.ReceiverSignature() {
			d.pending.Add(raddec.EventDisplacement)
		}
		if len(r.NewPackets(d.latest)) > 0 {
			d.pending.Add(raddec.EventNewData)
		}
	}

	d.insert(r)
	d.heard = true

	if d.raddecs[0] == r {
		if gone := r.Timestamp.Add(cfg.Disappearance); gone.After(d.disappearance) {
			d.disappearance = gone
		}
	}

	if !d.pending.Empty() {
		if soon := now.Add(cfg.Delay); d.next.IsZero() || d.next.After(soon) {
			d.next = soon
		}
	}
	d.clampNext()
}

// insert prepends r, re-sorting only when it arrived out of order.
func (d *device) insert(r *raddec.Raddec) {
	d.raddecs = append(d.raddecs, nil)
	copy(d.raddecs[1:], d.raddecs)
	d.raddecs[0] = r

	if len(d.raddecs) > 1 && r.Timestamp.Before(d.raddecs[1].Timestamp) {
		sort.SliceStable(d.raddecs, func(i, j int) bool {
			return d.raddecs[i].Timestamp.After(d.raddecs[j].Timestamp)
		})
	}
}

// handleDynamb stores each property of dyn unless a newer value is held.
func (d *device) handleDynamb(dyn *Dynamb, cfg Config) {
	if d.dynamb == nil {
		d.dynamb = make(map[string]attribute, len(dyn.Properties))
	}
	expires := dyn.Timestamp.Add(cfg.AttributeRetention)
	for k, v := range dyn.Properties {
		if cur, ok := d.dynamb[k]; ok && cur.timestamp.After(dyn.Timestamp) {
			continue
		}
		d.dynamb[k] = attribute{value: v, timestamp: dyn.Timestamp, expires: expires}
	}
}

// handleStatid replaces scalar properties and unions list properties.
func (d *device) handleStatid(s *Statid) {
	if d.statid == nil {
		d.statid = make(map[string]any, len(s.Properties))
	}
	for k, v := range s.Properties {
		if cur, ok := d.statid[k]; ok {
			if merged, ok := unionLists(cur, v); ok {
				d.statid[k] = merged
				continue
			}
		}
		d.statid[k] = v
	}
}

// determineEvents evaluates the device once its deadline is due. It returns
// the next deadline, or remove=true when the device has disappeared.
func (d *device) determineEvents(now time.Time, cfg Config, emit func(*raddec.Raddec)) (next time.Time, remove bool) {
	if now.Before(d.next) {
		return d.next, false
	}

	d.prune(cfg.History)
	d.expireAttributes(now)

	if !now.Before(d.disappearance) {
		// A device that never produced an event leaves silently.
		if d.latest != nil {
			event := d.compile(cfg)
			event.Events = []raddec.EventKind{raddec.EventDisappearance}
			emit(event)
		}
		return time.Time{}, true
	}

	compiled := d.compile(cfg)
	events := d.classify(compiled, now, cfg)
	d.pending.Clear()

	if events.Empty() {
		d.next = now.Add(cfg.Delay)
	} else {
		compiled.Events = events.Kinds()
		d.latest = compiled
		d.latestAt = now
		d.heard = false
		emit(compiled.Clone())
		d.next = now.Add(cfg.KeepAlive)
	}
	d.clampNext()
	return d.next, false
}

// classify decides which events the compiled raddec carries. Displacement is
// only confirmed when the merged strongest receiver differs from the one of
// the latest event.
func (d *device) classify(compiled *raddec.Raddec, now time.Time, cfg Config) EventSet {
	var events EventSet
	if d.pending.Has(raddec.EventAppearance) {
		events.Add(raddec.EventAppearance)
	}
	if d.pending.Has(raddec.EventDisplacement) && d.latest != nil &&
		compiled.ReceiverSignature() != d.latest.ReceiverSignature() {
		events.Add(raddec.EventDisplacement)
	}
	if d.pending.Has(raddec.EventNewData) {
		events.Add(raddec.EventNewData)
	}
	if events.Empty() && d.latest != nil && d.heard && now.Sub(d.latestAt) >= cfg.KeepAlive {
		events.Add(raddec.EventKeepAlive)
	}
	return events
}

// compile merges the buffer into one raddec. Raddecs within the decoding
// window of the newest are fully merged; older ones within the packet window
// only contribute packets.
func (d *device) compile(cfg Config) *raddec.Raddec {
	if len(d.raddecs) == 0 {
		return d.latest.Clone()
	}
	newest := d.raddecs[0]
	out := newest.Clone()
	out.Events = nil

	decodingCutoff := newest.Timestamp.Add(-cfg.DecodingCompilation)
	packetCutoff := newest.Timestamp.Add(-cfg.PacketCompilation)
	for _, r := range d.raddecs[1:] {
		switch {
		case !r.Timestamp.Before(decodingCutoff):
			out.Merge(r)
		case !r.Timestamp.Before(packetCutoff):
			out.MergePackets(r)
		default:
			return out
		}
	}
	return out
}

// prune drops raddecs older than the history window before the newest.
func (d *device) prune(history time.Duration) {
	if len(d.raddecs) == 0 {
		return
	}
	cutoff := d.raddecs[0].Timestamp.Add(-history)
	for i := 1; i < len(d.raddecs); i++ {
		if d.raddecs[i].Timestamp.Before(cutoff) {
			clear(d.raddecs[i:])
			d.raddecs = d.raddecs[:i]
			return
		}
	}
}

func (d *device) expireAttributes(now time.Time) {
	for k, a := range d.dynamb {
		if !now.Before(a.expires) {
			delete(d.dynamb, k)
		}
	}
}

// clampNext keeps the evaluation deadline at or before disappearance.
func (d *device) clampNext() {
	if d.disappearance.IsZero() {
		return
	}
	if d.next.IsZero() || d.next.After(d.disappearance) {
		d.next = d.disappearance
	}
}

// raddecView returns the latest event, or a compilation of the buffer when
// no event has fired yet.
func (d *device) raddecView(cfg Config) *raddec.Raddec {
	if d.latest != nil {
		return d.latest.Clone()
	}
	if len(d.raddecs) == 0 {
		return nil
	}
	return d.compile(cfg)
}

// dynambView returns the unexpired dynamb properties, or nil.
func (d *device) dynambView(now time.Time) *Dynamb {
	var view *Dynamb
	for k, a := range d.dynamb {
		if !now.Before(a.expires) {
			continue
		}
		if view == nil {
			view = &Dynamb{
				DeviceID:     d.id,
				DeviceIDType: d.idType,
				Properties:   make(map[string]any, len(d.dynamb)),
			}
		}
		view.Properties[k] = a.value
		if a.timestamp.After(view.Timestamp) {
			view.Timestamp = a.timestamp
		}
	}
	return view
}

// statidView returns a copy of the static properties, or nil.
func (d *device) statidView() *Statid {
	if len(d.statid) == 0 {
		return nil
	}
	view := &Statid{
		DeviceID:     d.id,
		DeviceIDType: d.idType,
		Properties:   make(map[string]any, len(d.statid)),
	}
	for k, v := range d.statid {
		view.Properties[k] = v
	}
	return view
}
