package yield

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/curvedesk/internal/clock"
	"github.com/example/curvedesk/internal/order/domain"
)

var (
	fetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yield_fetch_failures_total",
		Help: "Total failed curve refreshes from the data provider.",
	})
	cacheServesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yield_cache_serves_total",
		Help: "Curve responses served from cache, grouped by freshness.",
	}, []string{"freshness"})
)

// DefaultRefreshInterval is how long a fetched curve stays fresh.
const DefaultRefreshInterval = time.Hour

// Service assembles the yield curve, refreshing from the provider and
// falling back to the last cached curve when the provider is down.
type Service struct {
	client  *Client
	cache   Cache
	clock   clock.Clock
	logger  *zap.Logger
	refresh time.Duration
}

// NewService constructs a Service.
func NewService(client *Client, cache Cache, clk clock.Clock, logger *zap.Logger, refresh time.Duration) *Service {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, cache: cache, clock: clk, logger: logger, refresh: refresh}
}

// Curve returns the current yield curve. A fresh cached curve is served
// directly; otherwise every term is fetched, and on provider failure the
// stale cached curve is served if one exists.
func (s *Service) Curve(ctx context.Context) (Curve, error) {
	cached, ok, err := s.cache.GetCurve(ctx)
	if err != nil {
		s.logger.Warn("curve cache read failed", zap.Error(err))
		ok = false
	}
	if ok && s.clock.Now().Sub(cached.FetchedAt) < s.refresh {
		cacheServesTotal.WithLabelValues("fresh").Inc()
		return cached, nil
	}

	curve, err := s.fetchCurve(ctx)
	if err != nil {
		fetchFailuresTotal.Inc()
		if ok {
			s.logger.Warn("curve refresh failed, serving stale cache", zap.Error(err))
			cacheServesTotal.WithLabelValues("stale").Inc()
			return cached, nil
		}
		return Curve{}, err
	}

	if err := s.cache.PutCurve(ctx, curve); err != nil {
		s.logger.Warn("curve cache write failed", zap.Error(err))
	}
	return curve, nil
}

// fetchCurve pulls the latest observation for every known term in parallel.
func (s *Service) fetchCurve(ctx context.Context) (Curve, error) {
	points := make([]CurvePoint, len(domain.Terms))
	dates := make([]domain.Date, len(domain.Terms))

	g, ctx := errgroup.WithContext(ctx)
	for i, term := range domain.Terms {
		i, term := i, term
		g.Go(func() error {
			series, _ := domain.SeriesForTerm(term)
			obs, err := s.client.LatestObservation(ctx, series)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", series, err)
			}
			points[i] = CurvePoint{Term: term, SeriesID: series, Rate: obs.Rate}
			dates[i] = obs.Date
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Curve{}, err
	}

	curve := Curve{Points: points, FetchedAt: s.clock.Now()}
	for _, d := range dates {
		if d.After(curve.Date.Time) {
			curve.Date = d
		}
	}
	return curve, nil
}
