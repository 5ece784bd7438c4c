package ltv

import (
	"time"

	"github.com/radiusdt/stayvalue/internal/models"
)

// Calculator assembles complete profiles from booking histories.
type Calculator struct {
	segmenter *Segmenter
}

// NewCalculator creates a calculator. A nil segmenter uses the default city list.
func NewCalculator(segmenter *Segmenter) *Calculator {
	if segmenter == nil {
		segmenter = NewSegmenter(nil)
	}
	return &Calculator{segmenter: segmenter}
}

// Segmenter returns the segmenter used for classification.
func (c *Calculator) Segmenter() *Segmenter {
	return c.segmenter
}

// Compute scores a booking history as of now. It returns ErrNoHistory for an
// empty history.
func (c *Calculator) Compute(customerID string, bookings []models.Booking, now time.Time) (*models.CustomerLTVProfile, error) {
	if customerID == "" {
		return nil, ErrInvalidCustomer
	}
	if len(bookings) == 0 {
		return nil, ErrNoHistory
	}

	m := CalculateMetrics(bookings, now)
	p := EstimatePredictive(m, bookings, now)
	seg := c.segmenter.Classify(m, bookings)

	return &models.CustomerLTVProfile{
		CustomerID:   customerID,
		ComputedAt:   now,
		Metrics:      m,
		Predictive:   p,
		Segment:      seg,
		Optimization: AdviseOptimization(seg, p, bookings),
		Meta:         OptimizeMeta(seg, p, m),
	}, nil
}
