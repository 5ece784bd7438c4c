package dispatch

import (
	"errors"
	"math"

	"github.com/radiusdt/stayvalue/internal/models"
)

// ErrUnknownStage is returned for a stage outside the booking lifecycle.
var ErrUnknownStage = errors.New("unknown lifecycle stage")

const (
	maxMultiplier     = 3.0
	scorePerMultiple  = 50.0
	purchaseScore     = 70
	reviewMinFreq     = 1.0
	searchBaseValue   = 25.0
	viewBaseValue     = 50.0
	reviewBaseValue   = 200.0
	initiatedShare    = 0.3
	paymentShare      = 0.5
	confirmedShare    = 0.8
	completedShare    = 1.0
	noProfileMultiple = 1.0
)

// Decision is what the dispatcher intends to report for one stage.
type Decision struct {
	Stage      models.Stage `json:"stage"`
	EventName  string       `json:"event_name"`
	Value      float64      `json:"value"`
	Multiplier float64      `json:"multiplier"`
	ShouldSend bool         `json:"should_send"`
}

// Multiplier scales event values by customer quality: min(3, score/50), or 1
// when no profile is available.
func Multiplier(profile *models.CustomerLTVProfile) float64 {
	if profile == nil {
		return noProfileMultiple
	}
	return math.Min(maxMultiplier, float64(profile.Meta.ValueScore)/scorePerMultiple)
}

// Decide maps a lifecycle stage to the Meta event name and value. profile may
// be nil.
func Decide(stage models.Stage, profile *models.CustomerLTVProfile, bookingValue float64) (Decision, error) {
	m := Multiplier(profile)
	d := Decision{Stage: stage, Multiplier: m, ShouldSend: true}

	var (
		score     int
		segment   models.Segment
		frequency float64
	)
	if profile != nil {
		score = profile.Meta.ValueScore
		segment = profile.Segment
		frequency = profile.Metrics.BookingFrequency
	}

	switch stage {
	case models.StageSearchStarted:
		d.EventName = models.EventSearch
		d.Value = searchBaseValue * m

	case models.StagePropertyViewed:
		d.EventName = models.EventViewContent
		d.Value = viewBaseValue * m

	case models.StageBookingInitiated:
		d.EventName = models.EventInitiateCheckout
		if segment == models.SegmentPropertyInvestor {
			d.EventName = models.EventAddToCart
		}
		d.Value = bookingValue * initiatedShare * m

	case models.StagePaymentStarted:
		d.EventName = models.EventAddPaymentInfo
		d.Value = bookingValue * paymentShare * m

	case models.StageBookingConfirmed:
		d.EventName = models.EventCompleteRegistration
		if score >= purchaseScore {
			d.EventName = models.EventPurchase
		}
		d.Value = bookingValue * confirmedShare * m

	case models.StageStayCompleted:
		d.EventName = models.EventPurchase
		d.Value = bookingValue * completedShare * m

	case models.StageReviewLeft:
		d.EventName = models.EventSubscribe
		d.Value = reviewBaseValue * m
		d.ShouldSend = frequency > reviewMinFreq

	default:
		return Decision{}, ErrUnknownStage
	}

	d.Value = roundCents(math.Max(0, d.Value))
	return d, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
