package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/example/curvedesk/internal/clock"
	"github.com/example/curvedesk/internal/order/domain"
)

// Service coordinates order validation, storage, and paginated reads.
type Service struct {
	repo   domain.OrderRepository
	events domain.EventPublisher
	clock  clock.Clock
}

// New constructs a Service with the required collaborators.
func New(repo domain.OrderRepository, events domain.EventPublisher, clk clock.Clock) *Service {
	return &Service{repo: repo, events: events, clock: clk}
}

// CreateOrderRequest is a candidate order before identity is assigned.
// Pointer fields distinguish absent values from zero values.
type CreateOrderRequest struct {
	CurveDate        *string  `json:"curve_date"`
	Term             *string  `json:"term"`
	AmountInCents    *int64   `json:"amount_in_cents"`
	RateAtSubmission *float64 `json:"rate_at_submission"`
	SeriesID         *string  `json:"series_id"`
}

// CreateOrder validates the candidate, assigns identity, and appends it to
// the collection. On validation failure it returns domain.ValidationErrors
// and produces no side effect.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	candidate, errs := s.validate(req)
	if len(errs) > 0 {
		for _, e := range errs {
			validationFailuresTotal.WithLabelValues(e.Field).Inc()
		}
		return domain.Order{}, errs
	}

	candidate.ID = uuid.New()
	candidate.CreatedAt = s.clock.Now()

	created, err := s.repo.CreateOrder(ctx, candidate)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	ordersCreatedTotal.Inc()

	if s.events != nil {
		_ = s.events.Publish(ctx, domain.OrderEvent{
			OrderID:   created.ID,
			Type:      domain.EventOrderCreated,
			Payload:   map[string]any{"term": string(created.Term), "amount_in_cents": created.AmountInCents},
			CreatedAt: created.CreatedAt,
		})
	}

	return created, nil
}

// ListOrders returns one page of the order history sorted by CreatedAt
// descending. Bounds on page and limit are enforced by the caller.
func (s *Service) ListOrders(ctx context.Context, page, limit int) (domain.OrderPage, error) {
	orders, total, err := s.repo.ListOrders(ctx, page, limit)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("list orders: %w", err)
	}
	return domain.OrderPage{
		Orders:     orders,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// validate runs every check and accumulates all failures rather than
// stopping at the first.
func (s *Service) validate(req CreateOrderRequest) (domain.Order, domain.ValidationErrors) {
	var order domain.Order
	var errs domain.ValidationErrors
	fail := func(field, message string) {
		errs = append(errs, domain.ValidationError{Field: field, Message: message})
	}

	now := s.clock.Now()

	termKnown := false
	switch {
	case req.Term == nil || *req.Term == "":
		fail("term", "term is required")
	default:
		term := domain.Term(*req.Term)
		if _, ok := domain.SeriesForTerm(term); !ok {
			fail("term", "term must be one of "+domain.TermList())
		} else {
			order.Term = term
			termKnown = true
		}
	}

	switch {
	case req.AmountInCents == nil:
		fail("amount_in_cents", "amount_in_cents is required")
	case *req.AmountInCents <= 0:
		fail("amount_in_cents", "amount_in_cents must be a positive integer")
	case *req.AmountInCents > domain.MaxAmountCents:
		fail("amount_in_cents", fmt.Sprintf("amount_in_cents must not exceed %d", domain.MaxAmountCents))
	default:
		order.AmountInCents = *req.AmountInCents
	}

	switch {
	case req.RateAtSubmission == nil:
		fail("rate_at_submission", "rate_at_submission is required")
	case math.IsNaN(*req.RateAtSubmission):
		fail("rate_at_submission", "rate_at_submission must be a number")
	case *req.RateAtSubmission < 0 || *req.RateAtSubmission > 100:
		fail("rate_at_submission", "rate_at_submission must be between 0 and 100")
	default:
		order.RateAtSubmission = *req.RateAtSubmission
	}

	switch {
	case req.CurveDate == nil || *req.CurveDate == "":
		fail("curve_date", "curve_date is required")
	default:
		date, err := domain.ParseDate(*req.CurveDate)
		today := domain.NewDate(now)
		oldest := domain.NewDate(now.Add(-domain.CurveDateRetention))
		switch {
		case err != nil:
			fail("curve_date", "curve_date must be a valid date in YYYY-MM-DD format")
		case date.After(today.Time):
			fail("curve_date", "curve_date must not be in the future")
		case date.Before(oldest.Time):
			fail("curve_date", "curve_date must not be more than 10 years in the past")
		default:
			order.CurveDate = date
		}
	}

	switch {
	case req.SeriesID == nil || strings.TrimSpace(*req.SeriesID) == "":
		fail("series_id", "series_id is required")
	case termKnown:
		expected, _ := domain.SeriesForTerm(order.Term)
		if strings.TrimSpace(*req.SeriesID) != expected {
			fail("series_id", fmt.Sprintf("series_id must be %s for term %s", expected, order.Term))
		} else {
			order.SeriesID = expected
		}
	default:
		order.SeriesID = strings.TrimSpace(*req.SeriesID)
	}

	if len(errs) > 0 {
		return domain.Order{}, errs
	}
	return order, nil
}
