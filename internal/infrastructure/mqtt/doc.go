// Package mqtt provides MQTT connectivity for the presence engine.
//
// The Client wraps paho.mqtt.golang with automatic reconnection,
// subscription restoration and a retained online/offline status backed by a
// Last Will. The Bridge uses a Client to feed inbound raddecs, dynambs and
// statids to the intake, and publishes presence events as an intake sink.
//
// # Topics
//
// All topics live under a configurable root (default "presence"):
//
//	presence/in/raddec/#        inbound raddecs
//	presence/in/dynamb/#        inbound dynambs
//	presence/in/statid/#        inbound statids
//	presence/out/event/{tag}    presence events
//	presence/out/dynamb         accepted dynambs
//	presence/system/status      retained status
//
// Inbound payloads are a single JSON object or an array of them.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bridge := mqtt.NewBridge(client, client.Topics(), client.QoS(), manager)
//	if err := bridge.Start(); err != nil {
//	    return err
//	}
//	manager.AddSink(bridge)
package mqtt
