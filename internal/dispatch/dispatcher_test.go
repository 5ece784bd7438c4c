package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/stayvalue/internal/capi"
	"github.com/radiusdt/stayvalue/internal/geo"
	"github.com/radiusdt/stayvalue/internal/identity"
	"github.com/radiusdt/stayvalue/internal/ltv"
	"github.com/radiusdt/stayvalue/internal/metrics"
	"github.com/radiusdt/stayvalue/internal/models"
)

type stubProfiles struct {
	profile *models.CustomerLTVProfile
	err     error
}

func (s *stubProfiles) Build(context.Context, string) (*models.CustomerLTVProfile, error) {
	return s.profile, s.err
}

type stubSender struct {
	mu     sync.Mutex
	events []capi.Event
	err    error
	panics bool
}

func (s *stubSender) Send(_ context.Context, events ...capi.Event) (*capi.Response, error) {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	if s.err != nil {
		return nil, s.err
	}
	return &capi.Response{EventsReceived: len(events)}, nil
}

type stubRecorder struct {
	mu      sync.Mutex
	records []models.DispatchRecord
	err     error
}

func (s *stubRecorder) Name() string { return "stub" }

func (s *stubRecorder) RecordDispatch(_ context.Context, rec *models.DispatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return s.err
}

var eventTime = time.Date(2026, time.May, 20, 9, 30, 0, 0, time.UTC)

func stayCompleted() *models.LifecycleEvent {
	return &models.LifecycleEvent{
		Stage:        models.StageStayCompleted,
		CustomerID:   "guest-1",
		BookingID:    "booking-9",
		ListingID:    "listing-3",
		BookingValue: 2000,
		Email:        " Guest@Example.com ",
		Phone:        "01001234567",
		FirstName:    "Nour",
		ClientIP:     "41.33.1.1",
		UserAgent:    "Mozilla/5.0",
		Fbp:          "fb.1.1700000000.123",
		OccurredAt:   eventTime,
	}
}

type fixture struct {
	dispatcher *Dispatcher
	sender     *stubSender
	recorder   *stubRecorder
	metrics    *metrics.Metrics
}

func newFixture(profiles ProfileBuilder, withSender bool) *fixture {
	f := &fixture{
		recorder: &stubRecorder{},
		metrics:  metrics.NewMetrics("test", prometheus.NewRegistry()),
	}

	var sender Sender
	if withSender {
		f.sender = &stubSender{}
		sender = f.sender
	}

	p := geo.NewStaticProvider()
	p.AddEntry("41.33.1.1", &geo.Info{CountryCode: "EG", City: "New Cairo"})

	f.dispatcher = NewDispatcher(
		Config{DefaultCurrency: "EGP"},
		profiles,
		sender,
		geo.NewResolver(p, 100, time.Minute, nil),
		[]Recorder{f.recorder},
		zap.NewNop(),
		f.metrics,
	)
	return f
}

func TestDispatch_StayCompletedSendsPurchase(t *testing.T) {
	f := newFixture(&stubProfiles{profile: profileWith(90, models.SegmentLuxurySeeker, 2)}, true)

	res, err := f.dispatcher.Dispatch(context.Background(), stayCompleted())
	require.NoError(t, err)

	assert.True(t, res.ShouldSend)
	assert.True(t, res.Sent)
	assert.True(t, res.Success)
	assert.Equal(t, models.EventPurchase, res.EventName)
	assert.InDelta(t, 3600.0, res.Value, 1e-9)
	assert.Len(t, res.EventID, 32)

	require.Len(t, f.sender.events, 1)
	ev := f.sender.events[0]
	assert.Equal(t, models.EventPurchase, ev.EventName)
	assert.Equal(t, eventTime.Unix(), ev.EventTime)
	assert.Equal(t, res.EventID, ev.EventID)
	assert.Equal(t, []string{identity.HashEmail("guest@example.com")}, ev.UserData.Emails)
	assert.Equal(t, []string{identity.Hash("201001234567")}, ev.UserData.Phones)
	assert.Equal(t, []string{identity.HashCity("New Cairo")}, ev.UserData.Cities)
	assert.Equal(t, []string{identity.HashCountry("eg")}, ev.UserData.Countries)
	assert.Nil(t, ev.UserData.LastNames)
	assert.Equal(t, "fb.1.1700000000.123", ev.UserData.Fbp)
	assert.Equal(t, "41.33.1.1", ev.UserData.ClientIPAddress)
	assert.Equal(t, "EGP", ev.CustomData["currency"])
	assert.Equal(t, "luxury_seeker", ev.CustomData["customer_segment"])
	assert.Equal(t, "booking-9", ev.CustomData["order_id"])

	require.Len(t, f.recorder.records, 1)
	rec := f.recorder.records[0]
	assert.Equal(t, "sent", rec.Outcome())
	assert.True(t, rec.HasProfile)
	assert.Equal(t, 90, rec.ValueScore)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DispatchDecisions.WithLabelValues("stay_completed", "Purchase", "sent")))
	assert.InDelta(t, 3600.0, testutil.ToFloat64(f.metrics.DispatchedValue.WithLabelValues("Purchase")), 1e-9)
}

func TestDispatch_ReviewFromOneTimeGuestSuppressed(t *testing.T) {
	f := newFixture(&stubProfiles{profile: profileWith(100, models.SegmentLuxurySeeker, 1)}, true)

	ev := stayCompleted()
	ev.Stage = models.StageReviewLeft

	res, err := f.dispatcher.Dispatch(context.Background(), ev)
	require.NoError(t, err)

	assert.False(t, res.ShouldSend)
	assert.False(t, res.Sent)
	assert.Empty(t, f.sender.events)
	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, "suppressed", f.recorder.records[0].Outcome())
	assert.True(t, f.dispatcher.DispatchBestEffort(context.Background(), ev))
}

func TestDispatch_NoClientConfigured(t *testing.T) {
	f := newFixture(&stubProfiles{profile: profileWith(90, models.SegmentLuxurySeeker, 2)}, false)

	res, err := f.dispatcher.Dispatch(context.Background(), stayCompleted())
	assert.ErrorIs(t, err, ErrClientNotConfigured)
	require.NotNil(t, res)
	assert.Equal(t, models.EventPurchase, res.EventName)
	assert.False(t, res.Sent)

	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, "skipped", f.recorder.records[0].Outcome())

	assert.False(t, f.dispatcher.DispatchBestEffort(context.Background(), stayCompleted()))
}

func TestDispatch_SendFailure(t *testing.T) {
	f := newFixture(&stubProfiles{profile: profileWith(90, models.SegmentLuxurySeeker, 2)}, true)
	apiErr := &capi.APIError{StatusCode: 500, Body: "oops"}
	f.sender.err = apiErr

	res, err := f.dispatcher.Dispatch(context.Background(), stayCompleted())
	require.Error(t, err)

	var target *capi.APIError
	assert.True(t, errors.As(err, &target))
	assert.True(t, res.Sent)
	assert.False(t, res.Success)
	assert.Equal(t, "failed", f.recorder.records[0].Outcome())

	assert.False(t, f.dispatcher.DispatchBestEffort(context.Background(), stayCompleted()))
}

func TestDispatch_ProfileUnavailableUsesUnitMultiplier(t *testing.T) {
	for _, perr := range []error{ltv.ErrNoHistory, errors.New("db down")} {
		f := newFixture(&stubProfiles{err: perr}, true)

		res, err := f.dispatcher.Dispatch(context.Background(), stayCompleted())
		require.NoError(t, err)

		assert.Nil(t, res.Profile)
		assert.Equal(t, 1.0, res.Multiplier)
		assert.InDelta(t, 2000.0, res.Value, 1e-9)
		_, hasSegment := f.sender.events[0].CustomData["customer_segment"]
		assert.False(t, hasSegment)
	}
}

func TestDispatch_EmptyContactStillSends(t *testing.T) {
	f := newFixture(nil, true)

	ev := &models.LifecycleEvent{Stage: models.StageSearchStarted, CustomerID: "guest-2"}
	res, err := f.dispatcher.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, res.Success)

	user := f.sender.events[0].UserData
	assert.Nil(t, user.Emails)
	assert.Nil(t, user.Phones)
	assert.Nil(t, user.Cities)
	assert.Equal(t, []string{identity.HashExternalID("guest-2")}, user.ExternalIDs)
}

func TestDispatch_UnknownStage(t *testing.T) {
	f := newFixture(nil, true)

	_, err := f.dispatcher.Dispatch(context.Background(), &models.LifecycleEvent{Stage: "teleported"})
	assert.ErrorIs(t, err, ErrUnknownStage)
	assert.Empty(t, f.recorder.records)
}

func TestDispatch_RecorderErrorDoesNotFailDispatch(t *testing.T) {
	f := newFixture(nil, true)
	f.recorder.err = errors.New("clickhouse unavailable")

	res, err := f.dispatcher.Dispatch(context.Background(), stayCompleted())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecorderErrors.WithLabelValues("stub")))
}

func TestDispatchBestEffort_RecoversPanics(t *testing.T) {
	f := newFixture(nil, true)
	f.sender.panics = true

	assert.NotPanics(t, func() {
		assert.False(t, f.dispatcher.DispatchBestEffort(context.Background(), stayCompleted()))
	})
	assert.False(t, f.dispatcher.DispatchBestEffort(context.Background(), nil))
}
