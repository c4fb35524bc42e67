package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/presence-core/internal/raddec"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500

	// defaultPruneInterval is how often Run deletes expired rows.
	defaultPruneInterval = time.Hour
)

// ErrNoSignature is returned when a query names no device.
var ErrNoSignature = errors.New("eventlog: device signature is required")

// Logger defines the logging interface used by the Log.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DB is the part of *database.DB the Log needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Entry is one logged presence event.
type Entry struct {
	ID              string             `json:"id"`
	DeviceSignature string             `json:"deviceSignature"`
	Events          []raddec.EventKind `json:"events"`
	Receiver        string             `json:"receiver,omitempty"`
	RSSI            *int               `json:"rssi,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
	RecordedAt      time.Time          `json:"recordedAt"`
	Raddec          *raddec.Raddec     `json:"raddec"`
}

// Log writes presence events to the presence_events table.
type Log struct {
	db     DB
	clock  func() time.Time
	logger Logger
}

// New returns a Log over db. The presence_events migration must already be
// applied.
func New(db DB) *Log {
	return &Log{db: db, clock: time.Now, logger: noopLogger{}}
}

// SetLogger sets the logger used by Run.
func (l *Log) SetLogger(logger Logger) {
	l.logger = logger
}

// SetClock replaces the time source used for recorded_at and retention.
func (l *Log) SetClock(clock func() time.Time) {
	l.clock = clock
}

// Name identifies the log as an intake sink.
func (l *Log) Name() string {
	return "eventlog"
}

// HandleEvent records r.
func (l *Log) HandleEvent(ctx context.Context, r *raddec.Raddec) error {
	return l.Record(ctx, r)
}

// Record appends r to the log.
func (l *Log) Record(ctx context.Context, r *raddec.Raddec) error {
	if r == nil || r.TransmitterID == "" {
		return fmt.Errorf("%w: missing transmitterId", raddec.ErrInvalidRaddec)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling raddec: %w", err)
	}

	var receiver sql.NullString
	var rssi sql.NullInt64
	if rx, ok := r.Strongest(); ok {
		receiver = sql.NullString{String: rx.Signature(), Valid: true}
		rssi = sql.NullInt64{Int64: int64(rx.RSSI), Valid: true}
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO presence_events
		 (id, device_signature, transmitter_id, transmitter_id_type, events,
		  receiver, rssi, timestamp, recorded_at, raddec)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		r.Signature(),
		r.TransmitterID,
		r.TransmitterIDType,
		joinEvents(r.Events),
		receiver,
		rssi,
		r.Timestamp.UnixMilli(),
		l.clock().UnixMilli(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting presence event: %w", err)
	}
	return nil
}

// Recent returns the latest events of the device with the given signature,
// newest first. limit defaults to 50 and is capped at 500.
func (l *Log) Recent(ctx context.Context, signature string, limit int) ([]Entry, error) {
	if signature == "" {
		return nil, ErrNoSignature
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	limit = min(limit, maxRecentLimit)

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, device_signature, events, receiver, rssi, timestamp, recorded_at, raddec
		 FROM presence_events
		 WHERE device_signature = ?
		 ORDER BY timestamp DESC, recorded_at DESC
		 LIMIT ?`,
		signature,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying presence events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presence events: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry      Entry
		events     string
		receiver   sql.NullString
		rssi       sql.NullInt64
		timestamp  int64
		recordedAt int64
		payload    string
	)
	if err := rows.Scan(&entry.ID, &entry.DeviceSignature, &events, &receiver, &rssi,
		&timestamp, &recordedAt, &payload); err != nil {
		return Entry{}, fmt.Errorf("scanning presence event: %w", err)
	}

	kinds, err := splitEvents(events)
	if err != nil {
		return Entry{}, err
	}
	entry.Events = kinds
	entry.Receiver = receiver.String
	if rssi.Valid {
		v := int(rssi.Int64)
		entry.RSSI = &v
	}
	entry.Timestamp = time.UnixMilli(timestamp)
	entry.RecordedAt = time.UnixMilli(recordedAt)

	entry.Raddec = &raddec.Raddec{}
	if err := json.Unmarshal([]byte(payload), entry.Raddec); err != nil {
		return Entry{}, fmt.Errorf("unmarshalling raddec: %w", err)
	}
	return entry, nil
}

// Prune deletes events timestamped before cutoff and returns how many rows
// went.
func (l *Log) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		"DELETE FROM presence_events WHERE timestamp < ?",
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting presence events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// Run prunes events older than retention once an hour until ctx is done.
// A non-positive retention keeps everything and Run returns at once.
func (l *Log) Run(ctx context.Context, retention time.Duration) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(min(retention, defaultPruneInterval))
	defer ticker.Stop()

	l.prune(ctx, retention)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.prune(ctx, retention)
		}
	}
}

func (l *Log) prune(ctx context.Context, retention time.Duration) {
	n, err := l.Prune(ctx, l.clock().Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("event log prune failed", "error", err)
		}
		return
	}
	if n > 0 {
		l.logger.Info("event log pruned", "deleted", n, "retention", retention)
	}
}

func joinEvents(events []raddec.EventKind) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.String()
	}
	return strings.Join(names, ",")
}

func splitEvents(s string) ([]raddec.EventKind, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	kinds := make([]raddec.EventKind, 0, len(parts))
	for _, name := range parts {
		k, err := raddec.ParseEventKind(name)
		if err != nil {
			return nil, fmt.Errorf("decoding events column: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
