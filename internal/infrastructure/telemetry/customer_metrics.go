package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded on customer operations
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// CustomerMetrics counts customer store operations.
type CustomerMetrics struct {
	operations    *Counter
	rejections    *Counter
	searchResults *Histogram
}

// NewCustomerMetrics registers the customer instruments on meter
func NewCustomerMetrics(meter metric.Meter) (*CustomerMetrics, error) {
	operations, err := NewCounter(meter,
		"crm.customer.operations",
		"Customer store operations by outcome",
		"{operation}",
	)
	if err != nil {
		return nil, err
	}

	rejections, err := NewCounter(meter,
		"crm.customer.validation_rejections",
		"Customer inputs rejected by validation, by field",
		"{rejection}",
	)
	if err != nil {
		return nil, err
	}

	searchResults, err := NewHistogram(meter, HistogramOpts{
		Name:        "crm.customer.search.results",
		Description: "Number of customers returned per search",
		Unit:        "{customer}",
		Boundaries:  ResultSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &CustomerMetrics{
		operations:    operations,
		rejections:    rejections,
		searchResults: searchResults,
	}, nil
}

// RecordOperation counts one operation with its outcome
func (m *CustomerMetrics) RecordOperation(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.Inc(ctx, AttrOperation.String(operation), AttrOutcome.String(outcome))
}

// RecordRejection counts one validation failure on field
func (m *CustomerMetrics) RecordRejection(ctx context.Context, operation, field string) {
	if m == nil {
		return
	}
	m.rejections.Inc(ctx, AttrOperation.String(operation), AttrField.String(field))
}

// RecordSearchResults records how many customers a search returned
func (m *CustomerMetrics) RecordSearchResults(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.searchResults.Record(ctx, float64(n), attribute.Bool("empty", n == 0))
}
