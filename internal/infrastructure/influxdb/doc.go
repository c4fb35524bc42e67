// Package influxdb records presence history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The Client is an
// intake sink: every presence event becomes a presence_event point tagged
// with the device, its event tags and its strongest receiver, and every
// accepted dynamb becomes a dynamb point carrying its numeric and boolean
// properties. Writes are batched and non-blocking; asynchronous failures are
// reported through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Warn("influx write", "error", err) })
//	manager.AddSink(client)
package influxdb
