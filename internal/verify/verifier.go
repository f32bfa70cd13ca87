package verify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/mqtt-verify/internal/infrastructure/mqtt"
)

// Defaults applied by New when Options leave a field zero.
const (
	DefaultTimeout        = 8 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultClientIDPrefix = "verify"

	// recordTimeout bounds history and metrics writes after an attempt.
	// Writes happen off the return path, so it never delays Verify.
	recordTimeout = 2 * time.Second

	// clientIDSuffixLen is how many hex characters of a random UUID make
	// each probe's client ID unique.
	clientIDSuffixLen = 12
)

// Logger defines the logging interface used by the Verifier.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsWriter receives one point per live verification attempt.
type MetricsWriter interface {
	WriteVerification(deviceID, outcome string, duration time.Duration, dataLength int)
}

// Options configures a Verifier.
type Options struct {
	// Broker opens probe connections. Required.
	Broker Broker

	// Cache stores outcomes. Nil creates one with DefaultCacheTTL.
	Cache *Cache

	// TopicPrefix is the telemetry topic root (default "reportApp").
	TopicPrefix string

	// ClientIDPrefix starts every probe client ID (default "verify").
	ClientIDPrefix string

	// DefaultTimeout applies when Verify is called with timeout <= 0.
	DefaultTimeout time.Duration

	// ConnectTimeout bounds the connect handshake inside the overall timeout.
	ConnectTimeout time.Duration

	// SingleFlight coalesces concurrent misses for the same device into
	// one broker session.
	SingleFlight bool

	// History, if set, records every live attempt.
	History HistoryStore

	// Metrics, if set, receives every live attempt.
	Metrics MetricsWriter
}

// Stats is a snapshot of Verifier counters since start.
type Stats struct {
	CacheHits   uint64 `json:"cacheHits"`
	CacheMisses uint64 `json:"cacheMisses"`
	Exists      uint64 `json:"exists"`
	NotFound    uint64 `json:"notFound"`
	Unknown     uint64 `json:"unknown"`
	Coalesced   uint64 `json:"coalesced"`
	InFlight    int64  `json:"inFlight"`
}

type counters struct {
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
	exists      atomic.Uint64
	notFound    atomic.Uint64
	unknown     atomic.Uint64
	coalesced   atomic.Uint64
	inFlight    atomic.Int64
}

// Verifier is the entry point for liveness checks.
//
// It consults the cache first; on a miss it runs one session against the
// broker and stores whatever outcome it produced, Unknown included.
//
// Thread Safety: all methods are safe for concurrent use.
type Verifier struct {
	broker         Broker
	cache          *Cache
	topics         mqtt.Topics
	clientIDPrefix string
	defaultTimeout time.Duration
	connectTimeout time.Duration
	history        HistoryStore
	metrics        MetricsWriter

	// group is nil unless single-flight is enabled.
	group *singleflight.Group

	// records tracks history and metrics writes still in progress.
	records sync.WaitGroup

	stats  counters
	logger Logger
}

// New creates a Verifier from opts.
func New(opts Options) (*Verifier, error) {
	if opts.Broker == nil {
		return nil, ErrBrokerRequired
	}

	v := &Verifier{
		broker:         opts.Broker,
		cache:          opts.Cache,
		topics:         mqtt.Topics{Prefix: opts.TopicPrefix},
		clientIDPrefix: opts.ClientIDPrefix,
		defaultTimeout: opts.DefaultTimeout,
		connectTimeout: opts.ConnectTimeout,
		history:        opts.History,
		metrics:        opts.Metrics,
		logger:         noopLogger{},
	}
	if v.cache == nil {
		v.cache = NewCache(DefaultCacheTTL)
	}
	if v.clientIDPrefix == "" {
		v.clientIDPrefix = DefaultClientIDPrefix
	}
	if v.defaultTimeout <= 0 {
		v.defaultTimeout = DefaultTimeout
	}
	if v.connectTimeout <= 0 {
		v.connectTimeout = DefaultConnectTimeout
	}
	if opts.SingleFlight {
		v.group = &singleflight.Group{}
	}

	return v, nil
}

// SetLogger sets the logger for the verifier.
func (v *Verifier) SetLogger(logger Logger) {
	v.logger = logger
}

// Verify reports whether deviceID is currently publishing.
//
// The device ID is normalized to uppercase; shape is not validated here.
// A timeout <= 0 uses the configured default. Verify always returns an
// outcome: failures to reach the broker come back as KindUnknown.
// If ctx ends before the timeout the attempt resolves as KindUnknown.
func (v *Verifier) Verify(ctx context.Context, deviceID string, timeout time.Duration) Result {
	id := Normalize(deviceID)
	if timeout <= 0 {
		timeout = v.defaultTimeout
	}

	if entry, ok := v.cache.Get(id); ok {
		v.stats.cacheHits.Add(1)
		v.logger.Debug("verification served from cache",
			"device_id", id,
			"outcome", entry.Outcome.Kind.String(),
			"age", time.Since(entry.CreatedAt),
		)
		return Result{Outcome: entry.Outcome, Cached: true}
	}
	v.stats.cacheMisses.Add(1)

	if v.group == nil {
		return Result{Outcome: v.verifyLive(ctx, id, timeout)}
	}

	val, _, shared := v.group.Do(id, func() (any, error) {
		return v.verifyLive(ctx, id, timeout), nil
	})
	if shared {
		v.stats.coalesced.Add(1)
	}
	return Result{Outcome: val.(Outcome)}
}

// verifyLive runs one session and records its outcome.
func (v *Verifier) verifyLive(ctx context.Context, id string, timeout time.Duration) Outcome {
	v.stats.inFlight.Add(1)
	defer v.stats.inFlight.Add(-1)

	s := &session{
		broker:         v.broker,
		deviceID:       id,
		topic:          v.topics.DeviceReport(id),
		clientID:       v.newClientID(id),
		timeout:        timeout,
		connectTimeout: v.connectTimeout,
		logger:         v.logger,
	}
	outcome := s.run(ctx)

	v.cache.Put(id, outcome)
	v.count(outcome.Kind)
	v.records.Go(func() {
		v.record(ctx, outcome)
	})

	v.logger.Info("device verified",
		"device_id", id,
		"outcome", outcome.Kind.String(),
		"duration_ms", outcome.Duration.Milliseconds(),
		"data_length", outcome.DataLength,
		"error", outcome.Error,
	)

	return outcome
}

// newClientID returns a broker client ID unique to one attempt.
func (v *Verifier) newClientID(id string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:clientIDSuffixLen]
	return fmt.Sprintf("%s-%s-%s", v.clientIDPrefix, id, suffix)
}

func (v *Verifier) count(kind Kind) {
	switch kind {
	case KindExists:
		v.stats.exists.Add(1)
	case KindNotFound:
		v.stats.notFound.Add(1)
	default:
		v.stats.unknown.Add(1)
	}
}

// record writes the outcome to history and metrics. It runs after the
// outcome has been handed back; failures are logged and never change it.
func (v *Verifier) record(ctx context.Context, outcome Outcome) {
	if v.metrics != nil {
		v.metrics.WriteVerification(outcome.DeviceID, outcome.Kind.String(), outcome.Duration, outcome.DataLength)
	}
	if v.history == nil {
		return
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := v.history.Record(recCtx, outcome); err != nil {
		v.logger.Warn("recording verification history failed",
			"device_id", outcome.DeviceID,
			"error", err,
		)
	}
}

// Close waits for pending history and metrics writes. Call it before
// closing the stores passed in Options. Verify must not be called after.
func (v *Verifier) Close() error {
	v.records.Wait()
	return nil
}

// Clear empties the result cache and returns the number of entries removed.
func (v *Verifier) Clear() int {
	n := v.cache.Clear()
	v.logger.Info("verification cache cleared", "cleared", n)
	return n
}

// CacheSize returns the number of cached entries, including expired ones.
func (v *Verifier) CacheSize() int {
	return v.cache.Len()
}

// Stats returns a snapshot of the verifier's counters.
func (v *Verifier) Stats() Stats {
	return Stats{
		CacheHits:   v.stats.cacheHits.Load(),
		CacheMisses: v.stats.cacheMisses.Load(),
		Exists:      v.stats.exists.Load(),
		NotFound:    v.stats.notFound.Load(),
		Unknown:     v.stats.unknown.Load(),
		Coalesced:   v.stats.coalesced.Load(),
		InFlight:    v.stats.inFlight.Load(),
	}
}

// History returns the most recent recorded attempts for deviceID.
// Returns ErrHistoryDisabled if no history store is configured.
func (v *Verifier) History(ctx context.Context, deviceID string, limit int) ([]Attempt, error) {
	if v.history == nil {
		return nil, ErrHistoryDisabled
	}
	return v.history.List(ctx, Normalize(deviceID), limit)
}
