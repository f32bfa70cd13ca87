package verify

import (
	"context"
	"fmt"
	"time"
)

// qosAtMostOnce is enough for a liveness probe.
const qosAtMostOnce byte = 0

// session performs exactly one verification attempt over one connection.
//
// Lifecycle:
//
//	connect → subscribe → wait { message | timeout | error } → close
//
// The connection is closed on every exit path, and the first event to
// arrive decides the outcome; later events are dropped.
type session struct {
	broker         Broker
	deviceID       string
	topic          string
	clientID       string
	timeout        time.Duration
	connectTimeout time.Duration
	logger         Logger
}

// run executes the attempt. It never panics and never returns without an
// outcome. The whole attempt, connect included, is bounded by s.timeout.
func (s *session) run(ctx context.Context) (outcome Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verification session panic recovered",
				"device_id", s.deviceID,
				"client_id", s.clientID,
				"panic", r,
			)
			outcome = unknownOutcome(s.deviceID, msgSetupFailed, fmt.Errorf("panic: %v", r))
		}
		outcome.CheckedAt = time.Now().UTC()
		outcome.Duration = time.Since(start)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(waitCtx, s.connectTimeout)
	conn, err := s.broker.Dial(dialCtx, s.clientID)
	dialCancel()
	if err != nil {
		s.logger.Debug("probe connect failed", "device_id", s.deviceID, "error", err)
		return unknownOutcome(s.deviceID, msgConnectionError, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Warn("probe close failed", "client_id", s.clientID, "error", cerr)
		}
	}()

	// One slot: the first matching message wins, the rest are dropped.
	messages := make(chan int, 1)
	handler := func(topic string, payload []byte) {
		if topic != s.topic {
			return
		}
		select {
		case messages <- len(payload):
		default:
		}
	}

	if err := conn.Subscribe(waitCtx, s.topic, qosAtMostOnce, handler); err != nil {
		s.logger.Debug("probe subscribe failed", "topic", s.topic, "error", err)
		return unknownOutcome(s.deviceID, msgSubscribeFailed, err)
	}

	s.logger.Debug("waiting for device report", "topic", s.topic, "timeout", s.timeout)

	select {
	case n := <-messages:
		return existsOutcome(s.deviceID, n)
	case err := <-conn.Lost():
		return unknownOutcome(s.deviceID, msgConnectionError, err)
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return unknownOutcome(s.deviceID, msgCancelled, fmt.Errorf("%w: %w", ErrCancelled, err))
		}
		return notFoundOutcome(s.deviceID, s.timeout)
	}
}
