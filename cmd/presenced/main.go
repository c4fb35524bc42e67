// Presence Core - real-time radio presence engine
//
// presenced ingests raddecs (radio decodings of transmitters by receivers)
// from MQTT and HTTP, tracks every device it hears, and emits appearance,
// displacement, packet, keep-alive and disappearance events to MQTT,
// InfluxDB, a SQLite event log and WebSocket clients.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
