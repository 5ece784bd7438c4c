package ltv

import (
	"math"
	"strings"
	"time"

	"github.com/radiusdt/stayvalue/internal/models"
)

// Seasons in output order.
const (
	SeasonWinter = "winter"
	SeasonSpring = "spring"
	SeasonSummer = "summer"
	SeasonAutumn = "autumn"
)

var seasonOrder = []string{SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn}

// seasonShareThreshold is the share of bookings above which a season counts
// as part of the customer's pattern.
const seasonShareThreshold = 0.3

func seasonOf(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// CalculateMetrics aggregates a booking history. Revenue counts every booking
// regardless of status. An empty history yields zero metrics.
func CalculateMetrics(bookings []models.Booking, now time.Time) models.LTVMetrics {
	m := models.LTVMetrics{
		SeasonalPattern:        []string{},
		PreferredPropertyTypes: []string{},
	}
	n := len(bookings)
	if n == 0 {
		return m
	}

	var (
		revenue     float64
		nights      int
		cancelled   int
		leadSum     float64
		leadCount   int
		ratingSum   float64
		ratingCount int
		earliest    time.Time
		seasons     = make(map[string]int, len(seasonOrder))
		seenTypes   = make(map[string]struct{})
	)

	for i := range bookings {
		b := &bookings[i]

		revenue += b.TotalAmount
		nights += b.Nights

		if b.IsCancelled() {
			cancelled++
		}
		if lead, ok := b.LeadTimeDays(); ok {
			leadSum += lead
			leadCount++
		}
		if b.Review != nil {
			ratingSum += b.Review.OverallRating
			ratingCount++
		}
		if !b.CreatedAt.IsZero() {
			if earliest.IsZero() || b.CreatedAt.Before(earliest) {
				earliest = b.CreatedAt
			}
			seasons[seasonOf(b.CreatedAt.Month())]++
		}

		pt := strings.TrimSpace(b.PropertyType)
		if pt == "" {
			continue
		}
		if _, ok := seenTypes[pt]; !ok {
			seenTypes[pt] = struct{}{}
			m.PreferredPropertyTypes = append(m.PreferredPropertyTypes, pt)
		}
	}

	count := float64(n)
	m.TotalBookings = n
	m.TotalRevenue = revenue
	m.AverageBookingValue = revenue / count
	m.AverageStayLength = float64(nights) / count
	m.CancellationRate = float64(cancelled) / count

	years := 1.0
	if !earliest.IsZero() {
		years = math.Max(daysBetween(earliest, now)/daysPerYear, 1)
	}
	m.BookingFrequency = count / years

	if leadCount > 0 {
		m.AverageLeadTimeDays = leadSum / float64(leadCount)
	}
	if ratingCount > 0 {
		m.AverageReviewScore = ratingSum / float64(ratingCount)
	}

	for _, s := range seasonOrder {
		if float64(seasons[s])/count > seasonShareThreshold {
			m.SeasonalPattern = append(m.SeasonalPattern, s)
		}
	}

	return m
}
