package ltv

import (
	"strings"
	"time"

	"github.com/radiusdt/stayvalue/internal/models"
)

type segmentPlaybook struct {
	channels []string
	style    string
}

var playbooks = map[models.Segment]segmentPlaybook{
	models.SegmentPropertyInvestor: {
		channels: []string{"linkedin", "email", "whatsapp"},
		style:    "data_driven",
	},
	models.SegmentBusinessTraveler: {
		channels: []string{"linkedin", "email", "google_ads"},
		style:    "concise_professional",
	},
	models.SegmentLuxurySeeker: {
		channels: []string{"instagram", "email", "concierge"},
		style:    "exclusive_personalized",
	},
	models.SegmentRepeatFamily: {
		channels: []string{"facebook", "email", "whatsapp"},
		style:    "warm_family_oriented",
	},
	models.SegmentLocalResident: {
		channels: []string{"facebook", "instagram", "sms"},
		style:    "friendly_local",
	},
	models.SegmentBudgetTraveler: {
		channels: []string{"facebook", "tiktok", "sms"},
		style:    "deal_focused",
	},
}

const (
	premiumUpsell  = 0.7
	standardUpsell = 0.4

	seasonalWindowFactor = 1.5
	longTermStayNights   = 30
	multiPropertyListing = 2
	highValueAmount      = 10000
)

// AdviseOptimization maps a segment and its predictive estimates to pricing
// and marketing advice.
func AdviseOptimization(segment models.Segment, p models.PredictiveAnalytics, bookings []models.Booking) models.RevenueOptimization {
	pb, ok := playbooks[segment]
	if !ok {
		pb = playbooks[models.SegmentBudgetTraveler]
	}

	channels := make([]string, len(pb.channels))
	copy(channels, pb.channels)

	return models.RevenueOptimization{
		PricingTier:            pricingTier(p.UpsellPotential),
		MarketingChannels:      channels,
		CommunicationStyle:     pb.style,
		SeasonalBookingWindows: seasonalWindows(bookings),
		InvestmentSignals:      investmentSignals(segment, bookings),
	}
}

func pricingTier(upsell float64) models.PricingTier {
	switch {
	case upsell > premiumUpsell:
		return models.PricingTierPremium
	case upsell > standardUpsell:
		return models.PricingTierStandard
	default:
		return models.PricingTierBudget
	}
}

// seasonalWindows returns the calendar months whose booking count exceeds
// 1.5x the monthly average.
func seasonalWindows(bookings []models.Booking) []string {
	windows := []string{}
	var counts [12]int
	total := 0
	for i := range bookings {
		if bookings[i].CreatedAt.IsZero() {
			continue
		}
		counts[bookings[i].CreatedAt.Month()-1]++
		total++
	}
	if total == 0 {
		return windows
	}

	threshold := seasonalWindowFactor * float64(total) / monthsPerYear
	for i, c := range counts {
		if float64(c) > threshold {
			windows = append(windows, strings.ToLower(time.Month(i+1).String()))
		}
	}
	return windows
}

func investmentSignals(segment models.Segment, bookings []models.Booking) models.InvestmentSignals {
	listings := make(map[string]struct{})
	var sig models.InvestmentSignals
	for i := range bookings {
		b := &bookings[i]
		if b.Nights > longTermStayNights {
			sig.LongTermStayInterest = true
		}
		if b.TotalAmount > highValueAmount {
			sig.HighValueTransactions = true
		}
		if b.ListingID != "" {
			listings[b.ListingID] = struct{}{}
		}
	}
	sig.MultiPropertyExplorer = len(listings) > multiPropertyListing
	sig.InvestorProfile = segment == models.SegmentPropertyInvestor
	return sig
}
