package verify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// publication describes what a fake device does once subscribed.
type publication struct {
	delay   time.Duration
	topic   string // overrides the subscribed topic when set
	payload []byte
}

// fakeBroker is an in-memory Broker that tracks open connections.
type fakeBroker struct {
	mu sync.Mutex

	dials    int
	open     int
	maxOpen  int
	clientID []string

	// dialErr fails every Dial.
	dialErr error
	// hangDial blocks Dial until its context ends.
	hangDial bool
	// dialDelay is slept (context-aware) before every successful Dial.
	dialDelay time.Duration
	// panicOnDial makes Dial panic.
	panicOnDial bool
	// subErr fails every Subscribe.
	subErr error
	// dropAfter, if set, delivers a connection-lost error after subscribe.
	dropAfter time.Duration
	// publish maps topic to the device's publications.
	publish map[string][]publication
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{publish: make(map[string][]publication)}
}

func (b *fakeBroker) onTopic(topic string, pubs ...publication) {
	b.mu.Lock()
	b.publish[topic] = append(b.publish[topic], pubs...)
	b.mu.Unlock()
}

func (b *fakeBroker) Dial(ctx context.Context, clientID string) (Conn, error) {
	b.mu.Lock()
	b.dials++
	b.clientID = append(b.clientID, clientID)
	dialErr, hang, delay, panics := b.dialErr, b.hangDial, b.dialDelay, b.panicOnDial
	b.mu.Unlock()

	if panics {
		panic("dial exploded")
	}
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if dialErr != nil {
		return nil, dialErr
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	b.open++
	if b.open > b.maxOpen {
		b.maxOpen = b.open
	}
	b.mu.Unlock()

	return &fakeConn{broker: b, lost: make(chan error, 1), done: make(chan struct{})}, nil
}

func (b *fakeBroker) stats() (dials, open int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials, b.open
}

type fakeConn struct {
	broker    *fakeBroker
	lost      chan error
	done      chan struct{}
	closeOnce sync.Once
}

func (c *fakeConn) Subscribe(_ context.Context, topic string, _ byte, handler func(string, []byte)) error {
	b := c.broker
	b.mu.Lock()
	subErr, dropAfter := b.subErr, b.dropAfter
	pubs := append([]publication(nil), b.publish[topic]...)
	b.mu.Unlock()

	if subErr != nil {
		return subErr
	}

	for _, p := range pubs {
		go func(p publication) {
			select {
			case <-time.After(p.delay):
			case <-c.done:
				return
			}
			t := topic
			if p.topic != "" {
				t = p.topic
			}
			handler(t, p.payload)
		}(p)
	}

	if dropAfter > 0 {
		go func() {
			select {
			case <-time.After(dropAfter):
				c.lost <- errors.New("connection reset by peer")
			case <-c.done:
			}
		}()
	}
	return nil
}

func (c *fakeConn) Lost() <-chan error {
	return c.lost
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.broker.mu.Lock()
		c.broker.open--
		c.broker.mu.Unlock()
	})
	return nil
}

// recordingHistory is an in-memory HistoryStore.
type recordingHistory struct {
	mu       sync.Mutex
	outcomes []Outcome
	err      error
}

func (h *recordingHistory) Record(_ context.Context, o Outcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.outcomes = append(h.outcomes, o)
	return nil
}

func (h *recordingHistory) List(_ context.Context, deviceID string, limit int) ([]Attempt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Attempt
	for i := len(h.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		o := h.outcomes[i]
		if o.DeviceID == deviceID {
			out = append(out, Attempt{DeviceID: o.DeviceID, Outcome: o.Kind.String()})
		}
	}
	return out, nil
}

// recordingMetrics captures WriteVerification calls.
type recordingMetrics struct {
	mu     sync.Mutex
	points []string
}

func (m *recordingMetrics) WriteVerification(deviceID, outcome string, _ time.Duration, _ int) {
	m.mu.Lock()
	m.points = append(m.points, deviceID+":"+outcome)
	m.mu.Unlock()
}
