package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/raddec"
)

// Default settings.
const (
	DefaultQueueSize    = 1024
	DefaultDrainTimeout = 2 * time.Second
)

// Store is the part of *presence.Store the Manager drives.
type Store interface {
	InsertRaddec(r *raddec.Raddec) bool
	InsertDynamb(d *presence.Dynamb) bool
	InsertStatid(s *presence.Statid) bool
	Run(ctx context.Context, emit func(*raddec.Raddec))
}

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls the intake policy.
type Config struct {
	AcceptStaleRaddecs  bool
	AcceptFutureRaddecs bool
	AcceptStaleDynambs  bool
	AcceptFutureDynambs bool

	// RaddecStaleAfter is the age past which a raddec is stale. It is
	// normally the history window.
	RaddecStaleAfter time.Duration

	// DynambStaleAfter is the age past which a dynamb is stale. It is
	// normally the keep-alive window.
	DynambStaleAfter time.Duration

	// DynambProperties and StatidProperties are the allow-lists, replaced by
	// the defaults when empty.
	DynambProperties []string
	StatidProperties []string

	InputFilter  Filter
	OutputFilter Filter

	// QueueSize bounds the number of deliveries waiting for the sinks.
	QueueSize int

	// DrainTimeout bounds how long queued deliveries are still handed to the
	// sinks after Run's context is cancelled.
	DrainTimeout time.Duration
}

// DefaultConfig returns the default intake policy: stale input is rejected
// and future-dated input is accepted at the current time.
func DefaultConfig() Config {
	return Config{
		AcceptFutureRaddecs: true,
		AcceptFutureDynambs: true,
		RaddecStaleAfter:    presence.DefaultHistory,
		DynambStaleAfter:    presence.DefaultKeepAlive,
		QueueSize:           DefaultQueueSize,
		DrainTimeout:        DefaultDrainTimeout,
	}
}

// ConfigFrom builds the intake policy from the application configuration.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.AcceptStaleRaddecs = cfg.Intake.AcceptStaleRaddecs
	c.AcceptFutureRaddecs = cfg.Intake.AcceptFutureRaddecs
	c.AcceptStaleDynambs = cfg.Intake.AcceptStaleDynambs
	c.AcceptFutureDynambs = cfg.Intake.AcceptFutureDynambs
	if cfg.Presence.History > 0 {
		c.RaddecStaleAfter = cfg.Presence.History
	}
	if cfg.Presence.KeepAlive > 0 {
		c.DynambStaleAfter = cfg.Presence.KeepAlive
	}
	c.DynambProperties = cfg.Intake.DynambProperties
	c.StatidProperties = cfg.Intake.StatidProperties
	c.InputFilter = FilterFromConfig(cfg.Intake.InputFilter)
	c.OutputFilter = FilterFromConfig(cfg.Intake.OutputFilter)
	return c
}

// delivery is one queued item for the sinks. Exactly one field is set.
type delivery struct {
	event  *raddec.Raddec
	dynamb *presence.Dynamb
}

// Manager feeds a Store and relays what it emits to the registered sinks.
type Manager struct {
	store   Store
	cfg     Config
	dynambs propertySet
	statids propertySet

	decoder Decoder
	metrics *Metrics
	logger  Logger
	clock   func() time.Time

	mu    sync.RWMutex
	sinks []Sink

	queue   chan delivery
	running atomic.Bool
}

// NewManager creates a Manager for store.
func NewManager(store Store, cfg Config) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.RaddecStaleAfter <= 0 {
		cfg.RaddecStaleAfter = presence.DefaultHistory
	}
	if cfg.DynambStaleAfter <= 0 {
		cfg.DynambStaleAfter = presence.DefaultKeepAlive
	}
	dyn := cfg.DynambProperties
	if len(dyn) == 0 {
		dyn = DefaultDynambProperties
	}
	st := cfg.StatidProperties
	if len(st) == 0 {
		st = DefaultStatidProperties
	}

	return &Manager{
		store:   store,
		cfg:     cfg,
		dynambs: newPropertySet(dyn),
		statids: newPropertySet(st),
		logger:  noopLogger{},
		clock:   time.Now,
		queue:   make(chan delivery, cfg.QueueSize),
	}
}

// SetLogger sets the logger for the Manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetMetrics sets the Prometheus collectors.
func (m *Manager) SetMetrics(metrics *Metrics) {
	m.metrics = metrics
}

// SetDecoder sets the packet decoder. Without one, raddec packets are stored
// but never turned into attributes.
func (m *Manager) SetDecoder(decoder Decoder) {
	m.decoder = decoder
}

// SetClock replaces the time source. It must be called before use.
func (m *Manager) SetClock(clock func() time.Time) {
	m.clock = clock
}

// AddSink registers a sink. Sinks may be added while running.
func (m *Manager) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// HandleRaddec accepts one inbound raddec. The caller keeps ownership of r.
func (m *Manager) HandleRaddec(r *raddec.Raddec) error {
	if r == nil {
		m.metrics.raddec(resultInvalid)
		return fmt.Errorf("%w: nil raddec", ErrInvalid)
	}
	if err := r.Validate(); err != nil {
		m.metrics.raddec(resultInvalid)
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	r = r.Clone()
	ts, err := m.checkTimestamp(r.Timestamp, m.cfg.RaddecStaleAfter,
		m.cfg.AcceptStaleRaddecs, m.cfg.AcceptFutureRaddecs)
	if err != nil {
		m.metrics.raddec(resultFor(err))
		return err
	}
	r.Timestamp = ts

	if !m.cfg.InputFilter.Passes(r) {
		m.metrics.raddec(resultFiltered)
		return ErrFiltered
	}

	if !m.store.InsertRaddec(r) {
		m.metrics.raddec(resultInvalid)
		return ErrInvalid
	}
	m.metrics.raddec(resultAccepted)

	if m.decoder != nil && len(r.Packets) > 0 {
		m.decode(r)
	}
	return nil
}

// decode classifies the decoded properties of r into a dynamb and a statid.
func (m *Manager) decode(r *raddec.Raddec) {
	props := m.decoder.Decode(r)
	if len(props) == 0 {
		return
	}

	if dyn := m.dynambs.keep(props); dyn != nil {
		d := &presence.Dynamb{
			DeviceID:     r.TransmitterID,
			DeviceIDType: r.TransmitterIDType,
			Timestamp:    r.Timestamp,
			Properties:   dyn,
		}
		if err := m.insertDynamb(d); err != nil {
			m.logger.Debug("decoded dynamb dropped", "signature", r.Signature(), "error", err)
		}
	}
	if st := m.statids.keep(props); st != nil {
		s := &presence.Statid{
			DeviceID:     r.TransmitterID,
			DeviceIDType: r.TransmitterIDType,
			Properties:   st,
		}
		if err := m.insertStatid(s); err != nil {
			m.logger.Debug("decoded statid dropped", "signature", r.Signature(), "error", err)
		}
	}
}

// HandleDynamb accepts one inbound dynamb. Properties outside the allow-list
// are removed; a dynamb with none left is rejected. The device must already
// be live.
func (m *Manager) HandleDynamb(d *presence.Dynamb) error {
	if d == nil {
		m.metrics.attribute("dynamb", resultInvalid)
		return fmt.Errorf("%w: nil dynamb", ErrInvalid)
	}
	if err := d.Validate(); err != nil {
		m.metrics.attribute("dynamb", resultInvalid)
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	props := m.dynambs.keep(d.Properties)
	if props == nil {
		m.metrics.attribute("dynamb", resultEmpty)
		return ErrNoProperties
	}

	ts, err := m.checkTimestamp(d.Timestamp, m.cfg.DynambStaleAfter,
		m.cfg.AcceptStaleDynambs, m.cfg.AcceptFutureDynambs)
	if err != nil {
		m.metrics.attribute("dynamb", resultFor(err))
		return err
	}

	return m.insertDynamb(&presence.Dynamb{
		DeviceID:     d.DeviceID,
		DeviceIDType: d.DeviceIDType,
		Timestamp:    ts,
		Properties:   props,
	})
}

func (m *Manager) insertDynamb(d *presence.Dynamb) error {
	if !m.store.InsertDynamb(d) {
		m.metrics.attribute("dynamb", resultUnknown)
		return ErrUnknownDevice
	}
	m.metrics.attribute("dynamb", resultAccepted)
	m.enqueue(delivery{dynamb: d})
	return nil
}

// HandleStatid accepts one inbound statid, filtered by the allow-list like a
// dynamb. The device must already be live.
func (m *Manager) HandleStatid(s *presence.Statid) error {
	if s == nil {
		m.metrics.attribute("statid", resultInvalid)
		return fmt.Errorf("%w: nil statid", ErrInvalid)
	}
	if err := s.Validate(); err != nil {
		m.metrics.attribute("statid", resultInvalid)
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	props := m.statids.keep(s.Properties)
	if props == nil {
		m.metrics.attribute("statid", resultEmpty)
		return ErrNoProperties
	}

	return m.insertStatid(&presence.Statid{
		DeviceID:     s.DeviceID,
		DeviceIDType: s.DeviceIDType,
		Properties:   props,
	})
}

func (m *Manager) insertStatid(s *presence.Statid) error {
	if !m.store.InsertStatid(s) {
		m.metrics.attribute("statid", resultUnknown)
		return ErrUnknownDevice
	}
	m.metrics.attribute("statid", resultAccepted)
	return nil
}

// checkTimestamp applies the timestamp policy and returns the timestamp to
// store. Accepted stale or future input is re-stamped with the current time.
// A zero timestamp is taken as now.
func (m *Manager) checkTimestamp(ts time.Time, staleAfter time.Duration, acceptStale, acceptFuture bool) (time.Time, error) {
	now := m.clock()
	if ts.IsZero() {
		return now, nil
	}

	switch {
	case ts.Before(now.Add(-staleAfter)):
		if !acceptStale {
			return time.Time{}, ErrStale
		}
		return now, nil
	case ts.After(now):
		if !acceptFuture {
			return time.Time{}, ErrFuture
		}
		return now, nil
	default:
		return ts, nil
	}
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, ErrStale):
		return resultStale
	case errors.Is(err, ErrFuture):
		return resultFuture
	default:
		return resultInvalid
	}
}

// Run drives the Store sweep and delivers emitted events to the sinks until
// ctx is cancelled. Deliveries still queued at cancellation are handed to
// the sinks for at most DrainTimeout.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	m.logger.Info("intake started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.dispatch(ctx)
	}()

	m.store.Run(ctx, m.relay)
	<-done

	m.logger.Info("intake stopped")
	return nil
}

// relay is the Store's emit callback. It must not block.
func (m *Manager) relay(r *raddec.Raddec) {
	if !m.cfg.OutputFilter.Passes(r) {
		return
	}
	for _, k := range r.Events {
		m.metrics.event(k.String())
	}
	m.enqueue(delivery{event: r})
}

func (m *Manager) enqueue(d delivery) {
	select {
	case m.queue <- d:
	default:
		m.metrics.drop()
		m.logger.Warn("sink queue full, delivery dropped")
	}
}

func (m *Manager) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.drain(ctx)
			return
		case d := <-m.queue:
			m.deliver(ctx, d)
		}
	}
}

func (m *Manager) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.DrainTimeout)
	defer cancel()

	for {
		select {
		case <-drainCtx.Done():
			return
		case d := <-m.queue:
			m.deliver(drainCtx, d)
		default:
			return
		}
	}
}

func (m *Manager) deliver(ctx context.Context, d delivery) {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()

	for _, s := range sinks {
		var err error
		switch {
		case d.event != nil:
			err = s.HandleEvent(ctx, d.event)
		case d.dynamb != nil:
			ds, ok := s.(DynambSink)
			if !ok {
				continue
			}
			err = ds.HandleDynamb(ctx, d.dynamb)
		}
		if err != nil {
			m.metrics.sinkError(s.Name())
			m.logger.Warn("sink delivery failed", "sink", s.Name(), "error", err)
		}
	}
}
