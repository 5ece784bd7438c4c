// Package ltv scores a customer's rental booking history into a lifetime-value
// profile: aggregate metrics, predictive estimates, a behaviour segment,
// revenue-optimization advice and the Meta value score that gates conversion
// events.
//
// Everything except Service is a pure function of its inputs and the supplied
// clock reading.
package ltv

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrNoHistory is returned when a customer has no bookings. It is the
	// "no profile" outcome, not a failure of the store.
	ErrNoHistory = errors.New("customer has no booking history")

	// ErrInvalidCustomer is returned for an empty customer ID.
	ErrInvalidCustomer = errors.New("customer id is required")
)

const (
	daysPerYear   = 365.0
	hoursPerDay   = 24.0
	monthsPerYear = 12.0
)

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / hoursPerDay
}
