// Package api provides the HTTP query API and WebSocket event stream of the
// presence engine.
//
// Routes under /api/v1 expose the live device state held by the presence
// store (devices, context graph, statistics), accept raddecs and attributes
// over HTTP and serve the per-device event log. /metrics serves the
// Prometheus registry and /api/v1/ws streams events to subscribed clients.
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The WebSocket Hub doubles as an intake sink so emitted events reach
// connected clients without polling.
package api
