// Package influxdb provides InfluxDB connectivity for simulator telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health checks. It knows
// nothing about homes; the telemetry package maps tick events to points.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { log.Warn("telemetry write failed", "error", err) })
//	client.WritePoint("energy", tags, fields)
//
// Writes are batched according to batch_size and flush_interval; Close
// flushes whatever is still buffered.
package influxdb
