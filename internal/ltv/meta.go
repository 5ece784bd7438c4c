package ltv

import (
	"math"

	"github.com/radiusdt/stayvalue/internal/models"
)

// SegmentPoints is the fixed segment contribution to the Meta value score.
var SegmentPoints = map[models.Segment]float64{
	models.SegmentPropertyInvestor: 20,
	models.SegmentLuxurySeeker:     18,
	models.SegmentBusinessTraveler: 15,
	models.SegmentRepeatFamily:     12,
	models.SegmentLocalResident:    10,
	models.SegmentBudgetTraveler:   5,
}

const (
	maxLTVPoints       = 40
	ltvPointsReference = 10000
	maxFrequencyPoints = 20
	frequencyPoints    = 5
	maxRetentionPoints = 20

	purchaseScore        = 80
	subscribeNextBooking = 0.6
	addToCartFrequency   = 2
	optimalValueShare    = 0.10
	MaxOptimalValue      = 5000.0
	MaxValueScore        = 100
)

// ScoreComponents is the breakdown of a Meta value score.
type ScoreComponents struct {
	LTV       float64
	Frequency float64
	Segment   float64
	Retention float64
}

// Total is the rounded, clamped score.
func (c ScoreComponents) Total() int {
	sum := c.LTV + c.Frequency + c.Segment + c.Retention
	return int(clamp(math.Round(sum), 0, MaxValueScore))
}

// ScoreBreakdown computes each capped score component.
func ScoreBreakdown(segment models.Segment, p models.PredictiveAnalytics, m models.LTVMetrics) ScoreComponents {
	return ScoreComponents{
		LTV:       clamp(p.PredictedLTV12Months/ltvPointsReference*maxLTVPoints, 0, maxLTVPoints),
		Frequency: clamp(m.BookingFrequency*frequencyPoints, 0, maxFrequencyPoints),
		Segment:   SegmentPoints[segment],
		Retention: clamp((1-p.ChurnProbability)*maxRetentionPoints, 0, maxRetentionPoints),
	}
}

// OptimizeMeta produces the value score, the recommended events and the
// capped optimal event value.
func OptimizeMeta(segment models.Segment, p models.PredictiveAnalytics, m models.LTVMetrics) models.MetaOptimization {
	score := ScoreBreakdown(segment, p, m).Total()

	events := make([]string, 0, 4)
	if score >= purchaseScore {
		events = append(events, models.EventPurchase)
	}
	if p.NextBookingProbability > subscribeNextBooking {
		events = append(events, models.EventSubscribe)
	}
	if m.BookingFrequency > addToCartFrequency {
		events = append(events, models.EventAddToCart)
	}
	events = append(events, models.EventLead)

	return models.MetaOptimization{
		ValueScore:            score,
		RecommendedEvents:     events,
		OptimalValue:          clamp(p.PredictedLTV12Months*optimalValueShare, 0, MaxOptimalValue),
		ConversionProbability: clamp01(float64(score) / MaxValueScore),
	}
}
