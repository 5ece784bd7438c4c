package ltv

import (
	"strings"

	"github.com/radiusdt/stayvalue/internal/models"
)

// DefaultDomesticCities are the cities that mark a guest as a local resident.
var DefaultDomesticCities = []string{
	"Cairo",
	"Giza",
	"Alexandria",
	"New Cairo",
	"6th of October",
	"Sheikh Zayed",
	"Hurghada",
	"Sharm El Sheikh",
	"Luxor",
	"Aswan",
	"Ain Sokhna",
	"North Coast",
	"El Gouna",
	"Marsa Alam",
	"Dahab",
}

// SegmentInput is what a segment rule sees.
type SegmentInput struct {
	Metrics  models.LTVMetrics
	Bookings []models.Booking
}

// SegmentRule pairs a segment with the predicate that selects it.
type SegmentRule struct {
	Segment models.Segment
	Matches func(in SegmentInput) bool
}

// Segmenter assigns exactly one segment per customer. Rules are evaluated in
// order and the first match wins; budget_traveler is the fallback.
type Segmenter struct {
	rules    []SegmentRule
	domestic map[string]struct{}
}

// NewSegmenter builds a segmenter. An empty city list uses DefaultDomesticCities.
func NewSegmenter(domesticCities []string) *Segmenter {
	if len(domesticCities) == 0 {
		domesticCities = DefaultDomesticCities
	}
	s := &Segmenter{domestic: make(map[string]struct{}, len(domesticCities))}
	for _, c := range domesticCities {
		if c = normalizeCity(c); c != "" {
			s.domestic[c] = struct{}{}
		}
	}

	s.rules = []SegmentRule{
		{Segment: models.SegmentPropertyInvestor, Matches: isPropertyInvestor},
		{Segment: models.SegmentBusinessTraveler, Matches: isBusinessTraveler},
		{Segment: models.SegmentLuxurySeeker, Matches: isLuxurySeeker},
		{Segment: models.SegmentRepeatFamily, Matches: isRepeatFamily},
		{Segment: models.SegmentLocalResident, Matches: s.isLocalResident},
	}
	return s
}

// Rules returns the rules in evaluation order.
func (s *Segmenter) Rules() []SegmentRule {
	out := make([]SegmentRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Classify returns the segment of the first matching rule.
func (s *Segmenter) Classify(m models.LTVMetrics, bookings []models.Booking) models.Segment {
	in := SegmentInput{Metrics: m, Bookings: bookings}
	for _, r := range s.rules {
		if r.Matches(in) {
			return r.Segment
		}
	}
	return models.SegmentBudgetTraveler
}

// IsDomestic reports whether city is in the domestic list.
func (s *Segmenter) IsDomestic(city string) bool {
	_, ok := s.domestic[normalizeCity(city)]
	return ok
}

func normalizeCity(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func isPropertyInvestor(in SegmentInput) bool {
	return in.Metrics.BookingFrequency > 3 &&
		anyBooking(in.Bookings, func(b *models.Booking) bool { return b.Nights > 30 }) &&
		len(in.Metrics.PreferredPropertyTypes) > 1
}

func isBusinessTraveler(in SegmentInput) bool {
	return in.Metrics.AverageLeadTimeDays < 7 &&
		in.Metrics.AverageStayLength < 5 &&
		in.Metrics.BookingFrequency > 2
}

func isLuxurySeeker(in SegmentInput) bool {
	return in.Metrics.AverageBookingValue > 3000 &&
		in.Metrics.AverageReviewScore > 4.5
}

func isRepeatFamily(in SegmentInput) bool {
	return in.Metrics.BookingFrequency > 1 &&
		in.Metrics.AverageStayLength > 7 &&
		anyBooking(in.Bookings, func(b *models.Booking) bool { return b.GuestCount > 2 })
}

func (s *Segmenter) isLocalResident(in SegmentInput) bool {
	return anyBooking(in.Bookings, func(b *models.Booking) bool { return s.IsDomestic(b.PropertyCity) })
}

func anyBooking(bookings []models.Booking, pred func(b *models.Booking) bool) bool {
	for i := range bookings {
		if pred(&bookings[i]) {
			return true
		}
	}
	return false
}
