package models

import "time"

// Segment is one of six mutually exclusive customer behaviour categories.
type Segment string

const (
	SegmentBudgetTraveler   Segment = "budget_traveler"
	SegmentBusinessTraveler Segment = "business_traveler"
	SegmentLuxurySeeker     Segment = "luxury_seeker"
	SegmentLocalResident    Segment = "local_resident"
	SegmentPropertyInvestor Segment = "property_investor"
	SegmentRepeatFamily     Segment = "repeat_family"
)

// AllSegments lists every segment.
var AllSegments = []Segment{
	SegmentPropertyInvestor,
	SegmentBusinessTraveler,
	SegmentLuxurySeeker,
	SegmentRepeatFamily,
	SegmentLocalResident,
	SegmentBudgetTraveler,
}

// PriceSensitivity buckets the spread of nightly prices a customer pays.
type PriceSensitivity string

const (
	PriceSensitivityLow    PriceSensitivity = "low"
	PriceSensitivityMedium PriceSensitivity = "medium"
	PriceSensitivityHigh   PriceSensitivity = "high"
)

// PricingTier is the recommended price positioning for a customer.
type PricingTier string

const (
	PricingTierPremium  PricingTier = "premium"
	PricingTierStandard PricingTier = "standard"
	PricingTierBudget   PricingTier = "budget"
)

// ===========================================
// CUSTOMER LTV PROFILE
// ===========================================

// CustomerLTVProfile is the scored view of one customer's booking history.
// It is computed on every request and never stored.
type CustomerLTVProfile struct {
	CustomerID   string              `json:"customer_id"`
	ComputedAt   time.Time           `json:"computed_at"`
	Metrics      LTVMetrics          `json:"metrics"`
	Predictive   PredictiveAnalytics `json:"predictive"`
	Segment      Segment             `json:"segment"`
	Optimization RevenueOptimization `json:"optimization"`
	Meta         MetaOptimization    `json:"meta"`
}

// LTVMetrics aggregates raw booking history.
type LTVMetrics struct {
	TotalBookings          int      `json:"total_bookings"`
	TotalRevenue           float64  `json:"total_revenue"`
	AverageBookingValue    float64  `json:"average_booking_value"`
	BookingFrequency       float64  `json:"booking_frequency"` // bookings per year
	SeasonalPattern        []string `json:"seasonal_pattern"`
	PreferredPropertyTypes []string `json:"preferred_property_types"`
	AverageLeadTimeDays    float64  `json:"average_lead_time_days"`
	AverageStayLength      float64  `json:"average_stay_length"` // nights
	CancellationRate       float64  `json:"cancellation_rate"`
	AverageReviewScore     float64  `json:"average_review_score"`
}

// PredictiveAnalytics holds forward-looking estimates.
type PredictiveAnalytics struct {
	PredictedLTV12Months   float64          `json:"predicted_ltv_12_months"`
	PredictedLTV24Months   float64          `json:"predicted_ltv_24_months"`
	ChurnProbability       float64          `json:"churn_probability"`
	UpsellPotential        float64          `json:"upsell_potential"`
	ReferralLikelihood     float64          `json:"referral_likelihood"`
	NextBookingProbability float64          `json:"next_booking_probability"`
	PriceSensitivity       PriceSensitivity `json:"price_sensitivity"`
}

// RevenueOptimization is the marketing/pricing advice for a customer.
type RevenueOptimization struct {
	PricingTier            PricingTier       `json:"pricing_tier"`
	MarketingChannels      []string          `json:"marketing_channels"`
	CommunicationStyle     string            `json:"communication_style"`
	SeasonalBookingWindows []string          `json:"seasonal_booking_windows"`
	InvestmentSignals      InvestmentSignals `json:"investment_signals"`
}

// InvestmentSignals are independent flags hinting at investor behaviour.
type InvestmentSignals struct {
	LongTermStayInterest  bool `json:"long_term_stay_interest"`
	MultiPropertyExplorer bool `json:"multi_property_explorer"`
	HighValueTransactions bool `json:"high_value_transactions"`
	InvestorProfile       bool `json:"investor_profile"`
}

// MetaOptimization drives which conversion events reach Meta and at what value.
type MetaOptimization struct {
	ValueScore            int      `json:"value_score"`
	RecommendedEvents     []string `json:"recommended_events"`
	OptimalValue          float64  `json:"optimal_value"`
	ConversionProbability float64  `json:"conversion_probability"`
}
