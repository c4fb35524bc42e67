package presence

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/presence-core/internal/raddec"
)

// Logger defines the logging interface used by the Store.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Query property names for RetrieveDevices.
const (
	PropertyRaddec = "raddec"
	PropertyDynamb = "dynamb"
	PropertyStatid = "statid"
)

// DeviceFilter narrows RetrieveDevices. Zero fields match everything.
type DeviceFilter struct {
	DeviceID     string
	DeviceIDType *int
}

func (f DeviceFilter) matches(d *device) bool {
	if f.DeviceID != "" && f.DeviceID != d.id {
		return false
	}
	if f.DeviceIDType != nil && *f.DeviceIDType != d.idType {
		return false
	}
	return true
}

// DeviceView is the projection of one device returned by RetrieveDevices.
type DeviceView struct {
	Raddec *raddec.Raddec `json:"raddec,omitempty"`
	Dynamb *Dynamb        `json:"dynamb,omitempty"`
	Statid *Statid        `json:"statid,omitempty"`
}

// Stats is a point-in-time summary of the Store.
type Stats struct {
	Devices      int               `json:"devices"`
	NextDeadline time.Time         `json:"nextDeadline"`
	Events       map[string]uint64 `json:"events"`
}

// Store holds every live device keyed by signature and drives their
// evaluation from a single deadline queue.
//
// Inserts may come from any number of goroutines while Run sweeps. A single
// mutex serialises every device mutation; events are emitted after it is
// released.
//
// All public methods are thread-safe.
type Store struct {
	cfg    Config
	clock  func() time.Time
	logger Logger

	mu      sync.Mutex
	devices map[string]*device
	queue   deadlineQueue
	armed   time.Time // when the Run timer fires next, zero when idle
	emitted [raddec.NumEventKinds]uint64

	wake chan struct{}
}

// NewStore creates an empty Store. Non-positive windows in cfg take their
// defaults.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:     cfg.withDefaults(),
		clock:   time.Now,
		logger:  noopLogger{},
		devices: make(map[string]*device),
		wake:    make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the time source. It must be called before the Store is
// shared.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Config returns the effective timing windows.
func (s *Store) Config() Config {
	return s.cfg
}

// InsertRaddec hands r to the device with r's signature, creating the device
// if needed. Invalid raddecs are dropped and false is returned. A zero
// timestamp is taken as now. The Store keeps its own copy of r.
func (s *Store) InsertRaddec(r *raddec.Raddec) bool {
	if r == nil || r.Validate() != nil {
		return false
	}

	now := s.clock()
	r = r.Clone()
	r.Events = nil
	r.SortRSSISignature()
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}

	sig := r.Signature()

	s.mu.Lock()
	d, ok := s.devices[sig]
	if !ok {
		d = newDevice(r.TransmitterID, r.TransmitterIDType)
		s.devices[sig] = d
	}
	d.handleRaddec(r, now, s.cfg)
	s.queue.schedule(d)
	wake := !s.armed.IsZero() && d.next.Before(s.armed)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("device created", "signature", sig)
	}
	if wake {
		s.signal()
	}
	return true
}

// InsertDynamb merges dyn into its device. Dynambs for unknown devices are
// dropped and false is returned.
func (s *Store) InsertDynamb(dyn *Dynamb) bool {
	if dyn == nil || dyn.Validate() != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[dyn.Signature()]
	if !ok {
		return false
	}
	d.handleDynamb(dyn, s.cfg)
	return true
}

// InsertStatid merges st into its device. Statids for unknown devices are
// dropped and false is returned.
func (s *Store) InsertStatid(st *Statid) bool {
	if st == nil || st.Validate() != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[st.Signature()]
	if !ok {
		return false
	}
	d.handleStatid(st)
	return true
}

// Sweep evaluates every device whose deadline is due at now, removes those
// that have disappeared and passes each resulting event to emit. It returns
// the earliest remaining deadline, or now plus the delay window when the
// Store is empty.
func (s *Store) Sweep(now time.Time, emit func(*raddec.Raddec)) time.Time {
	var events []*raddec.Raddec
	collect := func(e *raddec.Raddec) { events = append(events, e) }

	s.mu.Lock()
	var removed []string
	for d := s.queue.popDue(now); d != nil; d = s.queue.popDue(now) {
		if _, remove := d.determineEvents(now, s.cfg, collect); remove {
			delete(s.devices, d.signature)
			removed = append(removed, d.signature)
			continue
		}
		s.queue.schedule(d)
	}
	for _, e := range events {
		for _, k := range e.Events {
			s.emitted[k]++
		}
	}
	next, ok := s.queue.peek()
	if !ok {
		next = now.Add(s.cfg.Delay)
	}
	s.mu.Unlock()

	for _, sig := range removed {
		s.logger.Debug("device removed", "signature", sig)
	}
	if emit != nil {
		for _, e := range events {
			emit(e)
		}
	}
	return next
}

// Run sweeps the Store until ctx is cancelled. After each sweep the timer is
// re-armed for the earliest deadline, but never sooner than the minimum
// re-arm interval. An insert that brings a deadline forward wakes the loop
// early.
func (s *Store) Run(ctx context.Context, emit func(*raddec.Raddec)) {
	timer := time.NewTimer(s.cfg.MinRearm)
	defer timer.Stop()

	s.logger.Info("presence sweep started")
	defer s.logger.Info("presence sweep stopped")

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.armed = time.Time{}
			s.mu.Unlock()
			return
		case <-timer.C:
		case <-s.wake:
		}

		now := s.clock()
		s.Sweep(now, emit)
		timer.Reset(s.rearm(now))
	}
}

// rearm records when the Run timer will next fire and returns the wait. The
// queue is read again here so that inserts made while events were being
// emitted are not missed.
func (s *Store) rearm(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.queue.peek()
	if !ok {
		next = now.Add(s.cfg.Delay)
	}
	wait := max(next.Sub(now), s.cfg.MinRearm)
	s.armed = now.Add(wait)
	return wait
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of live devices.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// Stats returns a summary of the Store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Devices: len(s.devices),
		Events:  make(map[string]uint64, len(s.emitted)),
	}
	if next, ok := s.queue.peek(); ok {
		st.NextDeadline = next
	}
	for _, k := range raddec.AllEventKinds() {
		st.Events[k.String()] = s.emitted[k]
	}
	return st
}

// RetrieveDevices returns the requested properties of every device matching
// filter, keyed by signature. An empty properties list selects all of them.
func (s *Store) RetrieveDevices(filter DeviceFilter, properties []string) map[string]DeviceView {
	want := selectProperties(properties)
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]DeviceView)
	for sig, d := range s.devices {
		if !filter.matches(d) {
			continue
		}
		var view DeviceView
		if want[PropertyRaddec] {
			view.Raddec = d.raddecView(s.cfg)
		}
		if want[PropertyDynamb] {
			view.Dynamb = d.dynambView(now)
		}
		if want[PropertyStatid] {
			view.Statid = d.statidView()
		}
		out[sig] = view
	}
	return out
}

// RetrieveContext returns the proximity graph of the given devices, or of
// every live device when signatures is empty. Unknown signatures are
// skipped. Only one hop is compiled; depth values above one are treated as
// one.
func (s *Store) RetrieveContext(signatures []string, depth int) map[string]ContextEntry {
	_ = depth
	now := s.clock()

	s.mu.Lock()
	var snaps []deviceSnapshot
	if len(signatures) == 0 {
		snaps = make([]deviceSnapshot, 0, len(s.devices))
		for _, d := range s.devices {
			snaps = append(snaps, s.snapshot(d, now))
		}
	} else {
		snaps = make([]deviceSnapshot, 0, len(signatures))
		for _, sig := range signatures {
			if d, ok := s.devices[sig]; ok {
				snaps = append(snaps, s.snapshot(d, now))
			}
		}
	}
	s.mu.Unlock()

	return assembleContext(snaps)
}

func (s *Store) snapshot(d *device, now time.Time) deviceSnapshot {
	return deviceSnapshot{
		signature: d.signature,
		raddec:    d.raddecView(s.cfg),
		dynamb:    d.dynambView(now),
		statid:    d.statidView(),
	}
}

func selectProperties(properties []string) map[string]bool {
	want := make(map[string]bool, 3)
	if len(properties) == 0 {
		want[PropertyRaddec] = true
		want[PropertyDynamb] = true
		want[PropertyStatid] = true
		return want
	}
	for _, p := range properties {
		want[p] = true
	}
	return want
}
