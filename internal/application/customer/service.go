// Package customer implements the customer store use cases on top of the
// domain repository port.
package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/samber/mo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const serviceName = "customer"

// Operation names used for spans and metrics
const (
	OpCreate     = "create"
	OpGet        = "get"
	OpListAll    = "list_all"
	OpListRecent = "list_recent"
	OpSearch     = "search"
	OpUpdate     = "update"
)

// Service handles customer-related business operations
type Service struct {
	repo        customer.Repository
	metrics     *telemetry.CustomerMetrics
	recentLimit int
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records operation outcomes on m
func WithMetrics(m *telemetry.CustomerMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRecentLimit overrides the default size of the recency window
func WithRecentLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.recentLimit = limit
		}
	}
}

// NewService creates a new customer Service
func NewService(repo customer.Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		recentLimit: customer.DefaultRecentLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and persists a new customer
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (resp CustomerResponse, err error) {
	ctx, done := s.begin(ctx, OpCreate)
	defer func() { done(err) }()

	c, err := customer.NewCustomer(req.Name, req.Email, req.Phone, req.Address)
	if err != nil {
		return CustomerResponse{}, err
	}
	if err = s.repo.Create(ctx, c); err != nil {
		return CustomerResponse{}, err
	}

	logger.L(ctx).Info("Customer created", zap.Int64("customer_id", c.ID))
	return ToCustomerResponse(c), nil
}

// GetByID returns the customer with the given id, or None when there is none.
// Non-positive ids are absent without a storage round trip.
func (s *Service) GetByID(ctx context.Context, id int64) (result mo.Option[CustomerResponse], err error) {
	ctx, done := s.begin(ctx, OpGet, attribute.Int64("customer.id", id))
	defer func() { done(err) }()

	if id <= 0 {
		return mo.None[CustomerResponse](), nil
	}

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if shared.IsNotFoundError(err) {
			return mo.None[CustomerResponse](), nil
		}
		return mo.None[CustomerResponse](), err
	}
	return mo.Some(ToCustomerResponse(c)), nil
}

// ListAll returns every customer ordered by id
func (s *Service) ListAll(ctx context.Context) (resp []CustomerResponse, err error) {
	ctx, done := s.begin(ctx, OpListAll)
	defer func() { done(err) }()

	customers, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ToCustomerResponses(customers), nil
}

// ListRecent returns up to limit customers, newest first. A non-positive
// limit uses the configured default.
func (s *Service) ListRecent(ctx context.Context, limit int) (resp []CustomerResponse, err error) {
	if limit <= 0 {
		limit = s.recentLimit
	}
	ctx, done := s.begin(ctx, OpListRecent, attribute.Int("limit", limit))
	defer func() { done(err) }()

	customers, err := s.repo.FindRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return ToCustomerResponses(customers), nil
}

// Search returns customers whose name or email contains query, ignoring case.
// The query is matched as given; surrounding whitespace is significant.
func (s *Service) Search(ctx context.Context, query string) (resp []CustomerResponse, err error) {
	ctx, done := s.begin(ctx, OpSearch)
	defer func() { done(err) }()

	if strings.TrimSpace(query) == "" {
		return nil, shared.NewValidationError("query", "Search query is required")
	}

	customers, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSearchResults(ctx, len(customers))
	return ToCustomerResponses(customers), nil
}

// Update merges the provided fields into the customer with the given id.
// Every provided field is validated before the customer is looked up.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (resp CustomerResponse, err error) {
	patch := req.ToPatch()
	ctx, done := s.begin(ctx, OpUpdate,
		attribute.Int64("customer.id", id),
		attribute.StringSlice("customer.fields", patch.Fields()),
	)
	defer func() { done(err) }()

	patch, err = patch.Normalize()
	if err != nil {
		return CustomerResponse{}, err
	}

	c, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return CustomerResponse{}, err
	}
	return ToCustomerResponse(c), nil
}

// begin starts the operation span and returns a func that closes it and
// records the outcome.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, op, attrs...)
	return ctx, func(err error) {
		s.record(ctx, op, err)
		if shared.IsValidationError(err) || shared.IsNotFoundError(err) {
			// Client errors are not span failures.
			telemetry.EndSpan(span, nil)
			return
		}
		telemetry.EndSpan(span, err)
	}
}

func (s *Service) record(ctx context.Context, op string, err error) {
	var domainErr *shared.DomainError
	switch {
	case err == nil:
		s.metrics.RecordOperation(ctx, op, telemetry.OutcomeSuccess)
	case shared.IsValidationError(err):
		s.metrics.RecordOperation(ctx, op, telemetry.OutcomeInvalid)
		if errors.As(err, &domainErr) {
			s.metrics.RecordRejection(ctx, op, domainErr.Field)
		}
	case shared.IsNotFoundError(err):
		s.metrics.RecordOperation(ctx, op, telemetry.OutcomeNotFound)
	default:
		s.metrics.RecordOperation(ctx, op, telemetry.OutcomeError)
		logger.L(ctx).Error("Customer operation failed", zap.String("operation", op), zap.Error(err))
	}
}
