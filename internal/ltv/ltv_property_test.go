package ltv

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/radiusdt/stayvalue/internal/models"
)

// history builds a deterministic booking list from generated primitives.
func history(amounts []float64, nights, guests, spacingDays int, rating float64, city string) []models.Booking {
	out := make([]models.Booking, 0, len(amounts))
	for i, a := range amounts {
		created := testNow.Add(-time.Duration(i*spacingDays) * 24 * time.Hour)
		b := models.Booking{
			ID:           "b",
			ListingID:    "l",
			TotalAmount:  a,
			Nights:       nights + i%3,
			GuestCount:   guests,
			PropertyCity: city,
			PropertyType: []string{"apartment", "villa", "chalet"}[i%3],
			CreatedAt:    created,
		}
		if i%2 == 0 {
			b.Review = &models.Review{OverallRating: rating}
		}
		if i%4 == 3 {
			b.Status = models.BookingStatusCancelled
		}
		out = append(out, b)
	}
	return out
}

func historyGens() []gopter.Gen {
	return []gopter.Gen{
		gen.SliceOf(gen.Float64Range(0, 200000)).SuchThat(func(v []float64) bool { return len(v) > 0 }),
		gen.IntRange(0, 90),
		gen.IntRange(1, 8),
		gen.IntRange(0, 400),
		gen.Float64Range(1, 5),
		gen.OneConstOf("Cairo", "Dubai", "Paris", ""),
	}
}

func TestProperty_ScoreAndValueBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	calc := NewCalculator(nil)
	g := historyGens()

	properties.Property("value score in [0,100] and optimal value <= 5000", prop.ForAll(
		func(amounts []float64, nights, guests, spacing int, rating float64, city string) bool {
			p, err := calc.Compute("c", history(amounts, nights, guests, spacing, rating, city), testNow)
			if err != nil {
				return false
			}
			return p.Meta.ValueScore >= 0 && p.Meta.ValueScore <= MaxValueScore &&
				p.Meta.OptimalValue >= 0 && p.Meta.OptimalValue <= MaxOptimalValue &&
				p.Meta.ConversionProbability >= 0 && p.Meta.ConversionProbability <= 1
		},
		g[0], g[1], g[2], g[3], g[4], g[5],
	))

	properties.TestingRun(t)
}

func TestProperty_ProbabilitiesClamped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	in01 := func(v float64) bool { return v >= 0 && v <= 1 }

	properties.Property("predictive probabilities stay in [0,1]", prop.ForAll(
		func(freq, review, avg float64, lastDays int) bool {
			m := models.LTVMetrics{
				BookingFrequency:    freq,
				AverageReviewScore:  review,
				AverageBookingValue: avg,
			}
			bookings := []models.Booking{{TotalAmount: avg * 3, Nights: 2, CreatedAt: daysAgo(lastDays)}}
			p := EstimatePredictive(m, bookings, testNow)
			return in01(p.ChurnProbability) && in01(p.UpsellPotential) &&
				in01(p.ReferralLikelihood) && in01(p.NextBookingProbability)
		},
		gen.Float64Range(0, 50),
		gen.Float64Range(0, 5),
		gen.Float64Range(0, 100000),
		gen.IntRange(0, 2000),
	))

	properties.TestingRun(t)
}

func TestProperty_SegmentationDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	s := NewSegmenter(nil)
	g := historyGens()

	properties.Property("classifying the same history twice yields the same segment", prop.ForAll(
		func(amounts []float64, nights, guests, spacing int, rating float64, city string) bool {
			bookings := history(amounts, nights, guests, spacing, rating, city)
			m := CalculateMetrics(bookings, testNow)
			first := s.Classify(m, bookings)
			second := s.Classify(CalculateMetrics(bookings, testNow), bookings)
			return first == second && first != ""
		},
		g[0], g[1], g[2], g[3], g[4], g[5],
	))

	properties.TestingRun(t)
}
