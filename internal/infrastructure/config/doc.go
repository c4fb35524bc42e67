// Package config handles loading and validating presence-core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading an optional .env file next to the YAML file
//   - Overriding with PRESENCE_* environment variables
//   - Validation of required fields and timing windows
//
// Presence windows are YAML durations ("1s", "250ms"). API and WebSocket
// timeouts remain integer seconds.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Presence.KeepAlive)
package config
