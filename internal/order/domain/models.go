package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Term is a treasury maturity bucket.
type Term string

const (
	Term1M  Term = "1M"
	Term3M  Term = "3M"
	Term6M  Term = "6M"
	Term1Y  Term = "1Y"
	Term2Y  Term = "2Y"
	Term5Y  Term = "5Y"
	Term7Y  Term = "7Y"
	Term10Y Term = "10Y"
	Term20Y Term = "20Y"
	Term30Y Term = "30Y"
)

// Terms lists every known maturity in curve order.
var Terms = []Term{Term1M, Term3M, Term6M, Term1Y, Term2Y, Term5Y, Term7Y, Term10Y, Term20Y, Term30Y}

// termSeries maps each maturity to the provider series that backs it.
var termSeries = map[Term]string{
	Term1M:  "DGS1MO",
	Term3M:  "DGS3MO",
	Term6M:  "DGS6MO",
	Term1Y:  "DGS1",
	Term2Y:  "DGS2",
	Term5Y:  "DGS5",
	Term7Y:  "DGS7",
	Term10Y: "DGS10",
	Term20Y: "DGS20",
	Term30Y: "DGS30",
}

// SeriesForTerm returns the provider series expected for a maturity.
func SeriesForTerm(t Term) (string, bool) {
	series, ok := termSeries[t]
	return series, ok
}

// TermList renders the known maturities for validation messages.
func TermList() string {
	parts := make([]string, len(Terms))
	for i, t := range Terms {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// MaxAmountCents caps a single order at $10B.
const MaxAmountCents int64 = 1_000_000_000_000

// CurveDateRetention bounds how far back a curve date may reach.
const CurveDateRetention = 10 * 365 * 24 * time.Hour

// CurveDateLayout is the wire format for curve dates.
const CurveDateLayout = "2006-01-02"

// Date is a calendar date without time-of-day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(CurveDateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(CurveDateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Order is an immutable allocation recorded against the yield curve.
// Once created it is never mutated or deleted.
type Order struct {
	ID               uuid.UUID `json:"id"`
	CurveDate        Date      `json:"curve_date"`
	Term             Term      `json:"term"`
	AmountInCents    int64     `json:"amount_in_cents"`
	RateAtSubmission float64   `json:"rate_at_submission"`
	SeriesID         string    `json:"series_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// OrderPage is one slice of the order history, newest first.
type OrderPage struct {
	Orders     []Order
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors carries every violated field of one candidate order.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

// ErrNotFound indicates a missing order.
var ErrNotFound = errors.New("order not found")

type OrderEventType string

const EventOrderCreated OrderEventType = "OrderCreated"

// OrderEvent is emitted after an order is appended to the store.
type OrderEvent struct {
	OrderID   uuid.UUID      `json:"order_id"`
	Type      OrderEventType `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// OrderRepository is the append-only order collection.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order Order) (Order, error)
	ListOrders(ctx context.Context, page, limit int) ([]Order, int, error)
}

// EventPublisher emits order lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}
