package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/stayvalue/internal/models"
)

func profileWith(score int, segment models.Segment, frequency float64) *models.CustomerLTVProfile {
	return &models.CustomerLTVProfile{
		CustomerID: "guest-1",
		Segment:    segment,
		Metrics:    models.LTVMetrics{BookingFrequency: frequency},
		Meta:       models.MetaOptimization{ValueScore: score},
	}
}

func TestDecide_StayCompletedHighValue(t *testing.T) {
	d, err := Decide(models.StageStayCompleted, profileWith(90, models.SegmentLuxurySeeker, 2), 2000)
	require.NoError(t, err)

	assert.Equal(t, models.EventPurchase, d.EventName)
	assert.InDelta(t, 1.8, d.Multiplier, 1e-9)
	assert.InDelta(t, 3600.0, d.Value, 1e-9)
	assert.True(t, d.ShouldSend)
}

func TestDecide_ReviewLeftNeedsRepeatCustomer(t *testing.T) {
	d, err := Decide(models.StageReviewLeft, profileWith(100, models.SegmentLuxurySeeker, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, models.EventSubscribe, d.EventName)
	assert.False(t, d.ShouldSend)

	d, err = Decide(models.StageReviewLeft, profileWith(100, models.SegmentLuxurySeeker, 1.5), 0)
	require.NoError(t, err)
	assert.True(t, d.ShouldSend)
	assert.InDelta(t, 400.0, d.Value, 1e-9)

	d, err = Decide(models.StageReviewLeft, nil, 0)
	require.NoError(t, err)
	assert.False(t, d.ShouldSend)
}

func TestDecide_Stages(t *testing.T) {
	investor := profileWith(100, models.SegmentPropertyInvestor, 4)
	budget := profileWith(25, models.SegmentBudgetTraveler, 1)

	tests := []struct {
		name      string
		stage     models.Stage
		profile   *models.CustomerLTVProfile
		value     float64
		wantEvent string
		wantValue float64
	}{
		{name: "search without profile", stage: models.StageSearchStarted, wantEvent: models.EventSearch, wantValue: 25},
		{name: "search for investor", stage: models.StageSearchStarted, profile: investor, wantEvent: models.EventSearch, wantValue: 50},
		{name: "property viewed", stage: models.StagePropertyViewed, profile: budget, wantEvent: models.EventViewContent, wantValue: 25},
		{name: "investor initiates booking", stage: models.StageBookingInitiated, profile: investor, value: 1000, wantEvent: models.EventAddToCart, wantValue: 600},
		{name: "traveler initiates booking", stage: models.StageBookingInitiated, profile: budget, value: 1000, wantEvent: models.EventInitiateCheckout, wantValue: 150},
		{name: "payment started", stage: models.StagePaymentStarted, value: 1000, wantEvent: models.EventAddPaymentInfo, wantValue: 500},
		{name: "confirmed high score", stage: models.StageBookingConfirmed, profile: investor, value: 1000, wantEvent: models.EventPurchase, wantValue: 1600},
		{name: "confirmed low score", stage: models.StageBookingConfirmed, profile: budget, value: 1000, wantEvent: models.EventCompleteRegistration, wantValue: 400},
		{name: "confirmed without profile", stage: models.StageBookingConfirmed, value: 1000, wantEvent: models.EventCompleteRegistration, wantValue: 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.stage, tt.profile, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvent, d.EventName)
			assert.InDelta(t, tt.wantValue, d.Value, 1e-9)
			assert.True(t, d.ShouldSend)
		})
	}
}

func TestMultiplier_Capped(t *testing.T) {
	assert.Equal(t, 1.0, Multiplier(nil))
	assert.Equal(t, 3.0, Multiplier(profileWith(200, models.SegmentLuxurySeeker, 1)))
	assert.Equal(t, 0.0, Multiplier(profileWith(0, models.SegmentBudgetTraveler, 1)))
}

func TestDecide_UnknownStage(t *testing.T) {
	_, err := Decide(models.Stage("checkout_abandoned"), nil, 100)
	assert.ErrorIs(t, err, ErrUnknownStage)
}
