package ltv

import (
	"math"
	"time"

	"github.com/radiusdt/stayvalue/internal/models"
)

const (
	ltv12Multiplier = 1.2
	ltv24Multiplier = 2 * 1.1

	churnInactiveDays   = 180
	churnInactive       = 0.8
	churnBase           = 0.5
	churnPerFrequency   = 0.1
	churnFloor          = 0.1
	nextBookingFloor    = 0.1
	upsellLookbackMonth = 6

	highSensitivityCV   = 0.3
	mediumSensitivityCV = 0.15
)

// EstimatePredictive derives forward-looking estimates from the aggregates and
// the raw history. Every probability is clamped to [0,1].
func EstimatePredictive(m models.LTVMetrics, bookings []models.Booking, now time.Time) models.PredictiveAnalytics {
	p := models.PredictiveAnalytics{
		PriceSensitivity: models.PriceSensitivityLow,
	}

	p.PredictedLTV12Months = math.Max(0, m.AverageBookingValue*m.BookingFrequency*ltv12Multiplier)
	p.PredictedLTV24Months = p.PredictedLTV12Months * ltv24Multiplier

	latest, ok := latestBooking(bookings)
	daysSince := 0.0
	if ok {
		daysSince = math.Max(0, daysBetween(latest, now))
	}

	if ok && daysSince > churnInactiveDays {
		p.ChurnProbability = churnInactive
	} else {
		p.ChurnProbability = math.Max(churnFloor, churnBase-m.BookingFrequency*churnPerFrequency)
	}
	p.ChurnProbability = clamp01(p.ChurnProbability)

	p.UpsellPotential = upsellPotential(m.AverageBookingValue, bookings, now)
	p.ReferralLikelihood = clamp01((m.AverageReviewScore / 5) * (m.BookingFrequency / 2))
	p.NextBookingProbability = clamp01(math.Max(nextBookingFloor, 1-daysSince/daysPerYear))
	p.PriceSensitivity = priceSensitivity(bookings)

	return p
}

func latestBooking(bookings []models.Booking) (time.Time, bool) {
	var latest time.Time
	for i := range bookings {
		if bookings[i].CreatedAt.After(latest) {
			latest = bookings[i].CreatedAt
		}
	}
	return latest, !latest.IsZero()
}

// upsellPotential compares the recent average booking value with the
// all-time average. No recent bookings means no observed upsell.
func upsellPotential(allTimeAvg float64, bookings []models.Booking, now time.Time) float64 {
	if allTimeAvg <= 0 {
		return 0
	}
	since := now.AddDate(0, -upsellLookbackMonth, 0)

	var sum float64
	var n int
	for i := range bookings {
		if bookings[i].CreatedAt.Before(since) {
			continue
		}
		sum += bookings[i].TotalAmount
		n++
	}
	if n == 0 {
		return 0
	}
	return clamp01((sum / float64(n)) / allTimeAvg)
}

// priceSensitivity buckets the coefficient of variation of per-night prices.
func priceSensitivity(bookings []models.Booking) models.PriceSensitivity {
	prices := make([]float64, 0, len(bookings))
	for i := range bookings {
		if p := bookings[i].PerNightPrice(); p > 0 {
			prices = append(prices, p)
		}
	}
	if len(prices) < 2 {
		return models.PriceSensitivityLow
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))

	var variance float64
	for _, p := range prices {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(prices))

	cv := math.Sqrt(variance) / mean
	switch {
	case cv > highSensitivityCV:
		return models.PriceSensitivityHigh
	case cv > mediumSensitivityCV:
		return models.PriceSensitivityMedium
	default:
		return models.PriceSensitivityLow
	}
}
