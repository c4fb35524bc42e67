// Package intake is the boundary between raddec producers, the presence
// Store and the outbound sinks.
//
// A Manager validates each inbound raddec, applies the timestamp policy and
// the input filter, and inserts it into the Store. Optionally a Decoder turns
// raddec packets into properties which are classified into dynambs and
// statids by allow-list. Dynambs and statids submitted directly are checked
// the same way.
//
// Manager.Run drives the Store sweep. Every emitted event that passes the
// output filter is queued and handed to each registered Sink by a single
// dispatcher goroutine, so a slow sink never delays a sweep. When the queue
// is full events are dropped and counted; delivery is best effort.
package intake
