package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// dialGuard owns the raw socket of a probe while the handshake is pending.
//
// paho only learns about a cancelled Dial when its own deadline fires. The
// guard lets Dial close the socket the moment its context ends, so the
// broker sees the disconnect before Dial returns.
type dialGuard struct {
	mu      sync.Mutex
	conn    net.Conn
	aborted bool
}

// track records conn. If the dial was already abandoned the socket is
// closed and an error is returned so paho stops the attempt.
func (g *dialGuard) track(conn net.Conn) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.aborted {
		_ = conn.Close() //nolint:errcheck // socket was never handed to paho
		return ErrTimeout
	}
	g.conn = conn
	return nil
}

// abort closes the tracked socket, if any, and rejects later ones.
func (g *dialGuard) abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aborted = true
	if g.conn != nil {
		_ = g.conn.Close() //nolint:errcheck // paho closes it again on its error path
	}
}

// openConnection returns a paho connection function that dials tcp:// and
// ssl:// brokers with ctx and registers the socket with the guard.
func (g *dialGuard) openConnection(ctx context.Context) pahomqtt.OpenConnectionFunc {
	return func(uri *url.URL, options pahomqtt.ClientOptions) (net.Conn, error) {
		netDialer := &net.Dialer{Timeout: options.ConnectTimeout}

		var (
			conn net.Conn
			err  error
		)
		switch uri.Scheme {
		case "tcp", "mqtt":
			conn, err = netDialer.DialContext(ctx, "tcp", uri.Host)
		case "ssl", "tls", "mqtts":
			tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: options.TLSConfig}
			conn, err = tlsDialer.DialContext(ctx, "tcp", uri.Host)
		default:
			return nil, fmt.Errorf("unsupported broker scheme %q", uri.Scheme)
		}
		if err != nil {
			return nil, err
		}

		if err := g.track(conn); err != nil {
			return nil, err
		}
		return conn, nil
	}
}
