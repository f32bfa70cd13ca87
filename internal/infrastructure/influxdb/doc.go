// Package influxdb writes verification metrics to InfluxDB v2.
//
// Every live (non-cached) device check becomes one point in the
// device_verification measurement, so operators can graph check volume,
// latency, and how often the broker itself was unreachable.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteVerification("P240819126", "exists", 340*time.Millisecond, 128)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; async failures are
// delivered to the SetOnError callback.
package influxdb
