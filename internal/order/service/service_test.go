package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/curvedesk/internal/clock"
	"github.com/example/curvedesk/internal/order/domain"
	"github.com/example/curvedesk/internal/order/repository"
	"github.com/example/curvedesk/internal/order/service"
)

type stubPublisher struct{ events []domain.OrderEvent }

func (s *stubPublisher) Publish(_ context.Context, event domain.OrderEvent) error {
	s.events = append(s.events, event)
	return nil
}

func strPtr(s string) *string { return &s }

func intPtr(n int64) *int64 { return &n }

func floatPtr(f float64) *float64 { return &f }

func validRequest() service.CreateOrderRequest {
	return service.CreateOrderRequest{
		CurveDate:        strPtr("2026-08-25"),
		Term:             strPtr("10Y"),
		AmountInCents:    intPtr(500_000),
		RateAtSubmission: floatPtr(4.25),
		SeriesID:         strPtr("DGS10"),
	}
}

func newService(t *testing.T) (*service.Service, *repository.MemoryRepository, *stubPublisher, *clock.Fixed) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	publisher := &stubPublisher{}
	clk := clock.NewFixed(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	return service.New(repo, publisher, clk), repo, publisher, clk
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs domain.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field] = e.Message
	}
	return fields
}

func TestCreateOrderAssignsIdentityAndAppears(t *testing.T) {
	svc, _, publisher, clk := newService(t)

	order, err := svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", order.ID.String())
	require.Equal(t, clk.Now(), order.CreatedAt)
	require.Equal(t, domain.Term10Y, order.Term)
	require.Equal(t, "DGS10", order.SeriesID)

	page, err := svc.ListOrders(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	require.Equal(t, order.ID, page.Orders[0].ID)

	require.Len(t, publisher.events, 1)
	require.Equal(t, domain.EventOrderCreated, publisher.events[0].Type)
	require.Equal(t, order.ID, publisher.events[0].OrderID)
}

func TestCreateOrderAccumulatesAllFailures(t *testing.T) {
	svc, repo, _, _ := newService(t)

	_, err := svc.CreateOrder(context.Background(), service.CreateOrderRequest{
		CurveDate:        strPtr("2026-08-25"),
		Term:             strPtr(""),
		AmountInCents:    intPtr(-5),
		RateAtSubmission: floatPtr(150),
		SeriesID:         strPtr("DGS10"),
	})
	require.Error(t, err)

	fields := fieldsOf(t, err)
	require.Contains(t, fields, "term")
	require.Contains(t, fields, "amount_in_cents")
	require.Contains(t, fields, "rate_at_submission")

	// no side effect on failure
	_, total, listErr := repo.ListOrders(context.Background(), 1, 10)
	require.NoError(t, listErr)
	require.Zero(t, total)
}

func TestCreateOrderRejectsUnknownTerm(t *testing.T) {
	svc, _, _, _ := newService(t)

	req := validRequest()
	req.Term = strPtr("15Y")
	_, err := svc.CreateOrder(context.Background(), req)
	fields := fieldsOf(t, err)
	require.Contains(t, fields["term"], "term must be one of")
}

func TestCreateOrderSeriesMismatchNamesExpected(t *testing.T) {
	svc, _, _, _ := newService(t)

	req := validRequest()
	req.SeriesID = strPtr("DGS2")
	_, err := svc.CreateOrder(context.Background(), req)
	fields := fieldsOf(t, err)
	require.Equal(t, "series_id must be DGS10 for term 10Y", fields["series_id"])
}

func TestCreateOrderAmountBounds(t *testing.T) {
	svc, _, _, _ := newService(t)

	req := validRequest()
	req.AmountInCents = intPtr(domain.MaxAmountCents + 1)
	_, err := svc.CreateOrder(context.Background(), req)
	fields := fieldsOf(t, err)
	require.Contains(t, fields["amount_in_cents"], "must not exceed")

	req.AmountInCents = intPtr(domain.MaxAmountCents)
	_, err = svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
}

func TestCreateOrderCurveDateWindow(t *testing.T) {
	svc, _, _, _ := newService(t)

	req := validRequest()
	req.CurveDate = strPtr("2026-08-29")
	_, err := svc.CreateOrder(context.Background(), req)
	fields := fieldsOf(t, err)
	require.Equal(t, "curve_date must not be in the future", fields["curve_date"])

	req.CurveDate = strPtr("2012-01-01")
	_, err = svc.CreateOrder(context.Background(), req)
	fields = fieldsOf(t, err)
	require.Contains(t, fields["curve_date"], "10 years")

	req.CurveDate = strPtr("not-a-date")
	_, err = svc.CreateOrder(context.Background(), req)
	fields = fieldsOf(t, err)
	require.Contains(t, fields["curve_date"], "YYYY-MM-DD")

	// today is allowed
	req.CurveDate = strPtr("2026-08-28")
	_, err = svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
}

func TestCreateOrderRateBoundsInclusive(t *testing.T) {
	svc, _, _, _ := newService(t)

	req := validRequest()
	req.RateAtSubmission = floatPtr(0)
	_, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	req.RateAtSubmission = floatPtr(100)
	_, err = svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	req.RateAtSubmission = floatPtr(100.01)
	_, err = svc.CreateOrder(context.Background(), req)
	fields := fieldsOf(t, err)
	require.Contains(t, fields["rate_at_submission"], "between 0 and 100")
}

func TestCreateOrderMissingFieldsAllReported(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.CreateOrder(context.Background(), service.CreateOrderRequest{})
	fields := fieldsOf(t, err)
	require.Len(t, fields, 5)
	require.Equal(t, "term is required", fields["term"])
	require.Equal(t, "amount_in_cents is required", fields["amount_in_cents"])
	require.Equal(t, "rate_at_submission is required", fields["rate_at_submission"])
	require.Equal(t, "curve_date is required", fields["curve_date"])
	require.Equal(t, "series_id is required", fields["series_id"])
}

func TestValidationErrorMessageFormat(t *testing.T) {
	err := domain.ValidationErrors{
		{Field: "term", Message: "term is required"},
		{Field: "amount_in_cents", Message: "amount_in_cents must be a positive integer"},
	}
	require.Equal(t, "Validation failed: term: term is required; amount_in_cents: amount_in_cents must be a positive integer", err.Error())
}

func TestListOrdersPagination(t *testing.T) {
	svc, _, _, clk := newService(t)

	for i := 0; i < 25; i++ {
		_, err := svc.CreateOrder(context.Background(), validRequest())
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	page, err := svc.ListOrders(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, page.Orders, 5)
	require.Equal(t, 25, page.Total)
	require.Equal(t, 3, page.TotalPages)

	empty, err := svc.ListOrders(context.Background(), 4, 10)
	require.NoError(t, err)
	require.Empty(t, empty.Orders)
	require.Equal(t, 3, empty.TotalPages)
}

func TestListOrdersNewestFirst(t *testing.T) {
	svc, _, _, clk := newService(t)

	var created []time.Time
	for i := 0; i < 3; i++ {
		order, err := svc.CreateOrder(context.Background(), validRequest())
		require.NoError(t, err)
		created = append(created, order.CreatedAt)
		clk.Advance(time.Minute)
	}

	page, err := svc.ListOrders(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Orders, 3)
	require.Equal(t, created[2], page.Orders[0].CreatedAt)
	require.Equal(t, created[1], page.Orders[1].CreatedAt)
	require.Equal(t, created[0], page.Orders[2].CreatedAt)
}
