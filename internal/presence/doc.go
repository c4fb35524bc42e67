// Package presence turns raddecs into presence events.
//
// The package has three parts:
//
//   - a per-transmitter state machine that buffers recent raddecs, flags
//     pending appearance / displacement / new-data conditions and compiles a
//     representative raddec when an event fires,
//   - the Store, which owns every live device, schedules each one on a
//     deadline queue and runs a single self-re-arming sweep timer,
//   - the context assembler, which turns a snapshot of the Store into a
//     closed proximity graph.
//
// All mutation goes through Store.InsertRaddec, Store.InsertDynamb,
// Store.InsertStatid and Store.Sweep. Query methods return copies, so no
// caller ever holds a reference into device state.
//
// Bad input is never an error here: invalid raddecs and attributes for
// unknown devices are dropped, out-of-order buffers are re-sorted.
package presence
