package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/example/curvedesk/internal/clock"
)

var (
	keysSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idempotency_keys_swept_total",
		Help: "Total number of expired idempotency records removed by the sweeper.",
	})
	keysActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "idempotency_keys_active",
		Help: "Number of idempotency records currently held.",
	})
)

// DefaultTTL is how long a recorded response stays replayable.
const DefaultTTL = 24 * time.Hour

// DefaultSweepInterval is the cadence of the background sweeper.
const DefaultSweepInterval = time.Hour

// Record is the exact response bound to an idempotency key.
type Record struct {
	Status     int
	Body       []byte
	RecordedAt time.Time
}

// Store tracks idempotency keys and the response first produced for each.
// Records are read-only after Put; expiry reclaims them.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	ttl     time.Duration
	clock   clock.Clock
	logger  *zap.Logger
}

// NewStore constructs a store. A non-positive ttl falls back to DefaultTTL.
func NewStore(ttl time.Duration, clk clock.Clock, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		records: make(map[string]Record),
		ttl:     ttl,
		clock:   clk,
		logger:  logger,
	}
}

// Get returns the record for key if one exists and has not expired.
// An expired record is treated as absent; the sweeper reclaims it later.
func (s *Store) Get(key string) (Record, bool) {
	if key == "" {
		return Record{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	if s.clock.Now().Sub(rec.RecordedAt) > s.ttl {
		return Record{}, false
	}
	rec.Body = append([]byte(nil), rec.Body...)
	return rec, true
}

// Put binds the response to key, stamping RecordedAt from the clock.
// It overwrites any prior value for the key.
func (s *Store) Put(key string, status int, body []byte) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = Record{
		Status:     status,
		Body:       append([]byte(nil), body...),
		RecordedAt: s.clock.Now(),
	}
	keysActive.Set(float64(len(s.records)))
}

// Sweep deletes every record older than the TTL and returns how many went.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if now.Sub(rec.RecordedAt) > s.ttl {
			delete(s.records, key)
			removed++
		}
	}
	keysActive.Set(float64(len(s.records)))
	keysSweptTotal.Add(float64(removed))
	return removed
}

// Len reports the number of records currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Info("idempotency sweep", zap.Int("removed", removed))
			}
		}
	}
}
