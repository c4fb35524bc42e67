// Package eventlog keeps an append-only SQLite record of the presence events
// the engine emits.
//
// The Log is registered with the intake manager as a sink. Each emitted
// raddec becomes one row of the presence_events table holding the device
// signature, the event tags, the strongest receiver and the full raddec as
// JSON. Rows are queried per device, newest first, and pruned by a
// retention loop.
//
// The log is never a source of device state: the presence store does not
// read it back on startup.
package eventlog
