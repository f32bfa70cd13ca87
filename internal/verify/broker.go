package verify

import (
	"context"

	"github.com/nerrad567/mqtt-verify/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/mqtt"
)

// Broker opens single-use connections to the message broker.
// This abstraction allows sessions to be tested against a fake broker.
type Broker interface {
	// Dial connects with the given client ID. The context bounds the handshake.
	Dial(ctx context.Context, clientID string) (Conn, error)
}

// Conn is one live broker connection owned by a single session.
type Conn interface {
	// Subscribe subscribes to an exact topic and waits for the acknowledgement.
	Subscribe(ctx context.Context, topic string, qos byte, handler func(topic string, payload []byte)) error

	// Lost yields one error if the connection drops.
	Lost() <-chan error

	// Close forcibly tears the connection down. It must be safe to call twice.
	Close() error
}

// mqttBroker adapts mqtt.Dial to the Broker interface.
type mqttBroker struct {
	cfg    config.MQTTConfig
	logger mqtt.Logger
}

// NewMQTTBroker returns a Broker that opens paho probe connections using cfg.
// If logger is non-nil it receives handler panic reports from every probe.
func NewMQTTBroker(cfg config.MQTTConfig, logger mqtt.Logger) Broker {
	return &mqttBroker{cfg: cfg, logger: logger}
}

func (b *mqttBroker) Dial(ctx context.Context, clientID string) (Conn, error) {
	probe, err := mqtt.Dial(ctx, b.cfg, clientID)
	if err != nil {
		return nil, err
	}
	if b.logger != nil {
		probe.SetLogger(b.logger)
	}
	return probeConn{probe}, nil
}

// probeConn adapts *mqtt.Probe to Conn.
type probeConn struct {
	*mqtt.Probe
}

func (c probeConn) Subscribe(ctx context.Context, topic string, qos byte, handler func(topic string, payload []byte)) error {
	return c.Probe.Subscribe(ctx, topic, qos, handler)
}
