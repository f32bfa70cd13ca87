package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-verify/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout applies when the config leaves connect_timeout unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultKeepAlive applies when the config leaves keep_alive unset.
	defaultKeepAlive = 20 * time.Second

	// forceDisconnectQuiesce is the quiesce period passed to Disconnect.
	// Zero tears the connection down without waiting for in-flight work.
	forceDisconnectQuiesce = 0 // milliseconds

	// protocolVersion311 selects MQTT 3.1.1.
	protocolVersion311 = 4

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// subackFailure is the SUBACK return code for a rejected subscription.
	subackFailure = 0x80

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerURL builds the broker address (tcp:// or ssl:// based on TLS setting).
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildProbeOptions creates paho options for a single-use probe connection.
//
// Unlike a long-lived bus client, a probe:
//   - uses a clean session so nothing is queued broker-side for the client ID
//   - never reconnects and never retries the initial connect
//   - does not restore subscriptions
//
// A dropped connection surfaces through the connection-lost handler
// installed by Dial.
func buildProbeOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetResumeSubs(false)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// An explicit version stops paho retrying a failed handshake as MQTT 3.1.
	opts.SetProtocolVersion(protocolVersion311)

	connectTimeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	keepAlive := time.Duration(cfg.KeepAlive) * time.Second
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}
