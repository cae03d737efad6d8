package idempotency_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/curvedesk/internal/clock"
	"github.com/example/curvedesk/internal/idempotency"
)

func TestPutAndGetReturnsRecordedResponse(t *testing.T) {
	clk := clock.NewFixed(time.Unix(1_700_000_000, 0))
	store := idempotency.NewStore(24*time.Hour, clk, nil)

	store.Put("key-1", http.StatusCreated, []byte(`{"success":true}`))

	rec, ok := store.Get("key-1")
	require.True(t, ok)
	require.Equal(t, http.StatusCreated, rec.Status)
	require.JSONEq(t, `{"success":true}`, string(rec.Body))
	require.Equal(t, clk.Now(), rec.RecordedAt)
}

func TestGetUnknownOrEmptyKey(t *testing.T) {
	store := idempotency.NewStore(24*time.Hour, clock.NewFixed(time.Unix(0, 0)), nil)

	_, ok := store.Get("missing")
	require.False(t, ok)

	_, ok = store.Get("")
	require.False(t, ok)
}

func TestGetTreatsExpiredRecordAsAbsent(t *testing.T) {
	clk := clock.NewFixed(time.Unix(1_700_000_000, 0))
	store := idempotency.NewStore(24*time.Hour, clk, nil)

	store.Put("key-1", http.StatusBadRequest, []byte(`{}`))
	clk.Advance(24*time.Hour + time.Minute)

	_, ok := store.Get("key-1")
	require.False(t, ok)
	// the record itself survives until the sweeper reclaims it
	require.Equal(t, 1, store.Len())
}

func TestSweepRemovesOnlyExpiredRecords(t *testing.T) {
	clk := clock.NewFixed(time.Unix(1_700_000_000, 0))
	store := idempotency.NewStore(24*time.Hour, clk, nil)

	store.Put("old", http.StatusCreated, []byte(`{"id":"old"}`))
	clk.Advance(23 * time.Hour)
	store.Put("young", http.StatusCreated, []byte(`{"id":"young"}`))
	clk.Advance(2 * time.Hour)

	removed := store.Sweep()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, store.Len())

	_, ok := store.Get("old")
	require.False(t, ok)
	rec, ok := store.Get("young")
	require.True(t, ok)
	require.JSONEq(t, `{"id":"young"}`, string(rec.Body))
}

func TestPutOverwritesPriorRecord(t *testing.T) {
	clk := clock.NewFixed(time.Unix(1_700_000_000, 0))
	store := idempotency.NewStore(24*time.Hour, clk, nil)

	store.Put("key-1", http.StatusBadRequest, []byte(`{"attempt":1}`))
	store.Put("key-1", http.StatusCreated, []byte(`{"attempt":2}`))

	rec, ok := store.Get("key-1")
	require.True(t, ok)
	require.Equal(t, http.StatusCreated, rec.Status)
	require.JSONEq(t, `{"attempt":2}`, string(rec.Body))
	require.Equal(t, 1, store.Len())
}

func TestGetReturnsDefensiveCopy(t *testing.T) {
	clk := clock.NewFixed(time.Unix(1_700_000_000, 0))
	store := idempotency.NewStore(24*time.Hour, clk, nil)

	store.Put("key-1", http.StatusCreated, []byte(`{"n":1}`))
	rec, ok := store.Get("key-1")
	require.True(t, ok)
	rec.Body[1] = 'x'

	again, ok := store.Get("key-1")
	require.True(t, ok)
	require.JSONEq(t, `{"n":1}`, string(again.Body))
}
