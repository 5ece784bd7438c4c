package ltv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/stayvalue/internal/metrics"
	"github.com/radiusdt/stayvalue/internal/models"
)

// BookingHistory loads every booking of a customer, newest first.
type BookingHistory interface {
	ListByCustomer(ctx context.Context, customerID string) ([]models.Booking, error)
}

// Service builds profiles from stored booking history.
type Service struct {
	history BookingHistory
	calc    *Calculator
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a profile service.
func NewService(history BookingHistory, calc *Calculator, logger *zap.Logger, m *metrics.Metrics) *Service {
	if calc == nil {
		calc = NewCalculator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		history: history,
		calc:    calc,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock overrides the clock used for "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Build loads the customer's history and computes a fresh profile.
// ErrNoHistory means the customer has no bookings.
func (s *Service) Build(ctx context.Context, customerID string) (*models.CustomerLTVProfile, error) {
	start := time.Now()

	if customerID == "" {
		s.metrics.RecordProfileFailure("invalid_input")
		return nil, ErrInvalidCustomer
	}

	bookings, err := s.history.ListByCustomer(ctx, customerID)
	if err != nil {
		s.metrics.RecordProfileFailure("history_error")
		return nil, fmt.Errorf("load booking history: %w", err)
	}

	profile, err := s.calc.Compute(customerID, bookings, s.now())
	if err != nil {
		if errors.Is(err, ErrNoHistory) {
			s.metrics.RecordProfileFailure("no_history")
		} else {
			s.metrics.RecordProfileFailure("invalid_input")
		}
		return nil, err
	}

	s.metrics.RecordProfile(string(profile.Segment), profile.Meta.ValueScore, time.Since(start))
	s.logger.Debug("LTV profile computed",
		zap.String("customer_id", customerID),
		zap.Int("bookings", profile.Metrics.TotalBookings),
		zap.String("segment", string(profile.Segment)),
		zap.Int("value_score", profile.Meta.ValueScore),
	)

	return profile, nil
}
