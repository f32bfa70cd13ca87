package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-verify/internal/infrastructure/config"
)

// Probe is a single-use MQTT connection.
//
// A Probe is opened with Dial, subscribes to one or more exact topics, and
// is torn down with Close. It never reconnects: if the broker drops the
// connection the error is delivered once on Lost and the Probe is dead.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Close may be called any number of times; only the first call acts.
type Probe struct {
	client   pahomqtt.Client
	clientID string

	// lost carries at most one connection-lost error.
	lost chan error

	closeOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked from paho's delivery goroutine and must not block.
type MessageHandler func(topic string, payload []byte)

// Dial opens a probe connection to the broker described by cfg.
//
// The connect handshake is bounded by both cfg.ConnectTimeout and ctx,
// whichever expires first. paho's own connect timeout is clamped to the
// time left on ctx, and if ctx ends first the socket is closed before
// Dial returns, so no connection outlives a failed Dial.
//
// Parameters:
//   - ctx: Bounds the handshake
//   - cfg: Broker address, credentials, and timeouts
//   - clientID: Must be unique per probe to avoid broker-side session takeover
//
// Returns:
//   - *Probe: Connected probe; the caller must Close it
//   - error: Wraps ErrConnectionFailed on any failure
func Dial(ctx context.Context, cfg config.MQTTConfig, clientID string) (*Probe, error) {
	if clientID == "" {
		return nil, ErrInvalidClientID
	}

	p := &Probe{
		clientID: clientID,
		lost:     make(chan error, 1),
	}

	opts := buildProbeOptions(cfg, clientID)
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %w: %w", ErrConnectionFailed, ErrTimeout, context.DeadlineExceeded)
		}
		opts.SetConnectTimeout(min(opts.ConnectTimeout, remaining))
	}

	guard := &dialGuard{}
	opts.SetCustomOpenConnectionFn(guard.openConnection(ctx))
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.signalLost(err)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if err := waitToken(ctx, token); err != nil {
		guard.abort()
		// The token settles promptly once the socket is gone; release the
		// client if paho still managed to finish the handshake.
		go func() {
			<-token.Done()
			p.client.Disconnect(forceDisconnectQuiesce)
		}()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return p, nil
}

// waitToken blocks until token completes or ctx is done.
func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// signalLost records a connection drop without blocking paho's callback.
func (p *Probe) signalLost(err error) {
	if err == nil {
		err = ErrConnectionLost
	} else {
		err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	select {
	case p.lost <- err:
	default:
	}
}

// Subscribe subscribes to a single exact topic and waits for the SUBACK.
//
// Wildcard topics are rejected: a probe answers a question about one topic.
// The handler is wrapped with panic recovery.
//
// Parameters:
//   - ctx: Bounds the wait for the SUBACK
//   - topic: Exact topic name
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback for each delivered message
//
// Returns:
//   - error: nil on success, or wrapped ErrSubscribeFailed
func (p *Probe) Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !p.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Subscribe(topic, qos, p.wrapHandler(handler))
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if code, found := st.Result()[topic]; found && code == subackFailure {
			return fmt.Errorf("%w: broker rejected %s", ErrSubscribeFailed, topic)
		}
	}

	return nil
}

// Lost returns a channel that yields one error if the connection drops.
// It is never closed.
func (p *Probe) Lost() <-chan error {
	return p.lost
}

// IsConnected reports whether the underlying connection is up.
func (p *Probe) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Close forcibly tears down the connection. No UNSUBSCRIBE is sent.
// Safe to call more than once and on a zero Probe.
func (p *Probe) Close() error {
	if p.client == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		p.client.Disconnect(forceDisconnectQuiesce)
	})
	return nil
}

// SetLogger sets a logger for handler panic logging.
// If not set, recovered panics are silently dropped.
func (p *Probe) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *Probe) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// wrapHandler wraps a MessageHandler with panic recovery.
func (p *Probe) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := p.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"client_id", p.clientID,
						"panic", r,
					)
				}
			}
		}()

		handler(msg.Topic(), msg.Payload())
	}
}
