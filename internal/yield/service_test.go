package yield_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/curvedesk/internal/clock"
	"github.com/example/curvedesk/internal/order/domain"
	"github.com/example/curvedesk/internal/yield"
)

// fakeProvider serves FRED-style observation payloads and can be failed on
// demand to exercise the fallback path.
type fakeProvider struct {
	srv    *httptest.Server
	broken atomic.Bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.broken.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"observations":[
			{"date":"2026-08-28","value":"."},
			{"date":"2026-08-27","value":"4.25"},
			{"date":"2026-08-26","value":"4.20"}
		]}`)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func newCurveService(t *testing.T, p *fakeProvider) (*yield.Service, *clock.Fixed) {
	t.Helper()
	client := yield.NewClient(p.srv.URL, "test-key", p.srv.Client())
	clk := clock.NewFixed(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	return yield.NewService(client, yield.NewMemoryCache(), clk, nil, time.Hour), clk
}

func TestCurveFetchesEveryTerm(t *testing.T) {
	p := newFakeProvider(t)
	svc, clk := newCurveService(t, p)

	curve, err := svc.Curve(context.Background())
	require.NoError(t, err)
	require.Len(t, curve.Points, len(domain.Terms))
	require.Equal(t, "2026-08-27", curve.Date.Format(domain.CurveDateLayout))
	require.Equal(t, clk.Now(), curve.FetchedAt)

	for i, point := range curve.Points {
		require.Equal(t, domain.Terms[i], point.Term)
		expected, _ := domain.SeriesForTerm(point.Term)
		require.Equal(t, expected, point.SeriesID)
		// the placeholder "." observation is skipped
		require.Equal(t, 4.25, point.Rate)
	}
}

func TestCurveServesFreshCacheWithoutRefetch(t *testing.T) {
	p := newFakeProvider(t)
	svc, clk := newCurveService(t, p)

	first, err := svc.Curve(context.Background())
	require.NoError(t, err)

	p.broken.Store(true)
	clk.Advance(30 * time.Minute)

	second, err := svc.Curve(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.FetchedAt, second.FetchedAt)
}

func TestCurveFallsBackToStaleCacheOnProviderFailure(t *testing.T) {
	p := newFakeProvider(t)
	svc, clk := newCurveService(t, p)

	first, err := svc.Curve(context.Background())
	require.NoError(t, err)

	p.broken.Store(true)
	clk.Advance(2 * time.Hour)

	stale, err := svc.Curve(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.FetchedAt, stale.FetchedAt)
	require.Len(t, stale.Points, len(domain.Terms))
}

func TestCurveFailsWithoutCacheWhenProviderDown(t *testing.T) {
	p := newFakeProvider(t)
	p.broken.Store(true)
	svc, _ := newCurveService(t, p)

	_, err := svc.Curve(context.Background())
	require.Error(t, err)

	var perr *yield.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	require.NotEmpty(t, perr.SeriesID)
}
