// Package mqtt provides single-use MQTT probe connections.
//
// A probe connects with a fresh client ID, subscribes to one exact topic,
// and is forcibly torn down afterwards. This package manages:
//   - Clean-session connections with auto-reconnect and connect retry disabled
//   - Connect and subscribe bounded by a context as well as paho's own timeouts
//   - Connection-lost notification as a one-shot channel
//   - Topic naming for the device telemetry hierarchy
//
// # Architecture
//
// Devices publish telemetry to the broker under reportApp/<DEVICE_ID>. The
// verification service never keeps a broker connection open; each liveness
// check opens a probe, waits for the first message, and closes it.
//
//	verify.Session ↔ mqtt.Probe ↔ MQTT Broker ↔ Devices
//
// # Security Considerations
//
//   - TLS is used when cfg.Broker.TLS is set (minimum TLS 1.2)
//   - Credentials come from configuration and are never logged
//
// # Usage
//
//	probe, err := mqtt.Dial(ctx, cfg.MQTT, "verify-P240819126-1a2b3c4d")
//	if err != nil {
//	    return err
//	}
//	defer probe.Close()
//
//	topic := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}.DeviceReport("P240819126")
//	err = probe.Subscribe(ctx, topic, 0, func(topic string, payload []byte) {
//	    log.Printf("Received %d bytes on %s", len(payload), topic)
//	})
package mqtt
