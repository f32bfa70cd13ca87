// Package verify answers one question: is a given device currently
// publishing telemetry to the MQTT broker?
//
// A check opens a short-lived probe connection, subscribes to the device's
// report topic, and waits for the first message. The result is one of three
// outcomes:
//   - Exists: a message arrived within the timeout
//   - NotFound: the timeout elapsed with no message
//   - Unknown: the check itself failed (connect, auth, subscribe, or drop)
//
// Outcomes of every kind are cached per device for a fixed TTL so repeated
// lookups do not hammer the broker.
//
// # Architecture
//
//	HTTP handler → Verifier → Cache (hit) → Result{Cached: true}
//	                        ↘ session → Broker.Dial → Conn.Subscribe → first event
//
// The Verifier owns the cache. Each cache miss runs one session, which
// owns exactly one broker connection and always closes it before returning.
//
// # Thread Safety
//
// Verifier and Cache are safe for concurrent use. Sessions are never shared.
//
// # Usage
//
//	v, err := verify.New(verify.Options{
//	    Broker:      verify.NewMQTTBroker(cfg.MQTT, log.Component("mqtt")),
//	    Cache:       verify.NewCache(5 * time.Minute),
//	    TopicPrefix: cfg.MQTT.TopicPrefix,
//	})
//	if err != nil {
//	    return err
//	}
//	defer v.Close()
//	res := v.Verify(ctx, "p240819126", 8*time.Second)
//	if res.Kind == verify.KindExists {
//	    log.Printf("device online, %d bytes", res.DataLength)
//	}
package verify
