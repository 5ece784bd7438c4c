// Package dispatch turns booking lifecycle events into Meta conversion events,
// gated and valued by the customer's LTV profile.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/stayvalue/internal/capi"
	"github.com/radiusdt/stayvalue/internal/geo"
	"github.com/radiusdt/stayvalue/internal/identity"
	"github.com/radiusdt/stayvalue/internal/ltv"
	"github.com/radiusdt/stayvalue/internal/metrics"
	"github.com/radiusdt/stayvalue/internal/models"
)

// ErrClientNotConfigured is returned when a send was decided but no
// Conversions API client exists.
var ErrClientNotConfigured = errors.New("conversions api client not configured")

// ProfileBuilder computes a customer's LTV profile.
type ProfileBuilder interface {
	Build(ctx context.Context, customerID string) (*models.CustomerLTVProfile, error)
}

// Sender delivers events to the Conversions API.
type Sender interface {
	Send(ctx context.Context, events ...capi.Event) (*capi.Response, error)
}

// GeoLookup resolves a client IP.
type GeoLookup interface {
	Lookup(ip string) *geo.Info
}

// Recorder persists dispatch records. Recorder failures never fail a dispatch.
type Recorder interface {
	Name() string
	RecordDispatch(ctx context.Context, rec *models.DispatchRecord) error
}

// Config holds dispatcher settings.
type Config struct {
	DefaultCurrency string
	CountryCode     string
	SendTimeout     time.Duration
}

// Result is the outcome of one dispatch.
type Result struct {
	Decision
	EventID  string                     `json:"event_id,omitempty"`
	Profile  *models.CustomerLTVProfile `json:"-"`
	Sent     bool                       `json:"sent"`
	Success  bool                       `json:"success"`
	Response *capi.Response             `json:"response,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// Dispatcher is stateless per call and safe for concurrent use.
type Dispatcher struct {
	cfg       Config
	profiles  ProfileBuilder
	sender    Sender
	geo       GeoLookup
	recorders []Recorder
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. sender may be nil when the Conversions
// API is not configured; geo may be nil.
func NewDispatcher(
	cfg Config,
	profiles ProfileBuilder,
	sender Sender,
	geoLookup GeoLookup,
	recorders []Recorder,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "EGP"
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = identity.DefaultCountryCode
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = capi.DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:       cfg,
		profiles:  profiles,
		sender:    sender,
		geo:       geoLookup,
		recorders: recorders,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Dispatch profiles the customer, decides the event and sends it once.
// A suppressed event is not an error. When sending fails the returned Result
// is still populated alongside the error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *models.LifecycleEvent) (*Result, error) {
	if ev == nil {
		return nil, errors.New("lifecycle event is nil")
	}
	if !ev.Stage.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, ev.Stage)
	}

	profile := d.loadProfile(ctx, ev.CustomerID)

	decision, err := Decide(ev.Stage, profile, ev.BookingValue)
	if err != nil {
		return nil, err
	}

	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = d.now()
	}

	res := &Result{Decision: decision, Profile: profile}
	rec := d.newRecord(ev, res, ts)

	if !decision.ShouldSend {
		d.finish(ctx, rec, nil)
		return res, nil
	}

	if d.sender == nil {
		rec.Error = ErrClientNotConfigured.Error()
		res.Error = rec.Error
		d.finish(ctx, rec, nil)
		return res, ErrClientNotConfigured
	}

	res.EventID = identity.NewEventID(decision.EventName, identityKey(ev), ts)
	rec.EventID = res.EventID
	event := d.buildEvent(ev, res, ts)

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	resp, sendErr := d.sender.Send(sendCtx, event)
	res.Sent = true
	rec.Sent = true
	if sendErr != nil {
		res.Error = sendErr.Error()
		rec.Error = res.Error
		d.finish(ctx, rec, sendErr)
		return res, fmt.Errorf("send %s: %w", decision.EventName, sendErr)
	}

	res.Success = true
	res.Response = resp
	rec.Success = true
	d.finish(ctx, rec, nil)

	return res, nil
}

// DispatchBestEffort runs Dispatch and swallows every failure, panics
// included. It reports true when nothing went wrong, which includes a
// deliberately suppressed event.
func (d *Dispatcher) DispatchBestEffort(ctx context.Context, ev *models.LifecycleEvent) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic in lifecycle dispatch",
				zap.Any("error", rec),
				zap.String("stack", string(debug.Stack())),
			)
			ok = false
		}
	}()

	res, err := d.Dispatch(ctx, ev)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if ev != nil {
			fields = append(fields,
				zap.String("stage", string(ev.Stage)),
				zap.String("customer_id", ev.CustomerID),
			)
		}
		d.logger.Warn("lifecycle dispatch failed", fields...)
		return false
	}

	return !res.ShouldSend || res.Success
}

func (d *Dispatcher) loadProfile(ctx context.Context, customerID string) *models.CustomerLTVProfile {
	if customerID == "" || d.profiles == nil {
		return nil
	}

	profile, err := d.profiles.Build(ctx, customerID)
	switch {
	case err == nil:
		return profile
	case errors.Is(err, ltv.ErrNoHistory):
		d.logger.Debug("no booking history, dispatching without profile",
			zap.String("customer_id", customerID),
		)
	default:
		d.logger.Warn("failed to build LTV profile",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
	}
	return nil
}

func (d *Dispatcher) newRecord(ev *models.LifecycleEvent, res *Result, ts time.Time) *models.DispatchRecord {
	rec := &models.DispatchRecord{
		Timestamp:  ts,
		Stage:      ev.Stage,
		EventName:  res.EventName,
		Value:      res.Value,
		Currency:   d.currency(ev),
		CustomerID: ev.CustomerID,
		BookingID:  ev.BookingID,
		ShouldSend: res.ShouldSend,
	}
	if res.Profile != nil {
		rec.HasProfile = true
		rec.Segment = res.Profile.Segment
		rec.ValueScore = res.Profile.Meta.ValueScore
	}
	return rec
}

func (d *Dispatcher) finish(ctx context.Context, rec *models.DispatchRecord, sendErr error) {
	outcome := rec.Outcome()
	d.metrics.RecordDecision(string(rec.Stage), rec.EventName, outcome)
	if rec.Success {
		d.metrics.RecordDispatchedValue(rec.EventName, rec.Value)
	}

	for _, r := range d.recorders {
		if err := r.RecordDispatch(ctx, rec); err != nil {
			d.metrics.RecordRecorderError(r.Name())
			d.logger.Warn("failed to record dispatch",
				zap.String("recorder", r.Name()),
				zap.Error(err),
			)
		}
	}

	fields := []zap.Field{
		zap.String("stage", string(rec.Stage)),
		zap.String("event_name", rec.EventName),
		zap.Float64("value", rec.Value),
		zap.String("customer_id", rec.CustomerID),
		zap.String("outcome", outcome),
	}
	switch {
	case sendErr != nil:
		d.logger.Warn("conversion event failed", append(fields, zap.Error(sendErr))...)
	case rec.Success:
		d.logger.Info("conversion event sent", append(fields, zap.String("event_id", rec.EventID))...)
	default:
		d.logger.Debug("conversion event not sent", fields...)
	}
}

func (d *Dispatcher) currency(ev *models.LifecycleEvent) string {
	if ev.Currency != "" {
		return ev.Currency
	}
	return d.cfg.DefaultCurrency
}

func (d *Dispatcher) buildEvent(ev *models.LifecycleEvent, res *Result, ts time.Time) capi.Event {
	user := capi.UserData{
		Emails:          nonEmpty(identity.HashEmail(ev.Email)),
		Phones:          nonEmpty(identity.HashPhone(ev.Phone, d.cfg.CountryCode)),
		FirstNames:      nonEmpty(identity.HashName(ev.FirstName)),
		LastNames:       nonEmpty(identity.HashName(ev.LastName)),
		ExternalIDs:     nonEmpty(identity.HashExternalID(ev.CustomerID)),
		ClientIPAddress: ev.ClientIP,
		ClientUserAgent: ev.UserAgent,
		Fbc:             ev.Fbc,
		Fbp:             ev.Fbp,
	}

	city, country := ev.City, ev.Country
	if (city == "" || country == "") && d.geo != nil {
		if info := d.geo.Lookup(ev.ClientIP); info != nil {
			if city == "" {
				city = info.City
			}
			if country == "" {
				country = info.CountryCode
			}
		}
	}
	user.Cities = nonEmpty(identity.HashCity(city))
	user.Countries = nonEmpty(identity.HashCountry(country))

	custom := map[string]any{
		"value":    res.Value,
		"currency": d.currency(ev),
		"stage":    string(ev.Stage),
	}
	if ev.BookingID != "" {
		custom["order_id"] = ev.BookingID
	}
	if ev.ListingID != "" {
		custom["content_ids"] = []string{ev.ListingID}
		custom["content_type"] = "product"
	}
	if p := res.Profile; p != nil {
		custom["customer_segment"] = string(p.Segment)
		custom["ltv_score"] = p.Meta.ValueScore
		custom["predicted_ltv"] = p.Predictive.PredictedLTV12Months
	}

	return capi.Event{
		EventName:      res.EventName,
		EventTime:      ts.Unix(),
		EventID:        res.EventID,
		ActionSource:   capi.ActionSourceWebsite,
		EventSourceURL: ev.EventSourceURL,
		UserData:       user,
		CustomData:     custom,
	}
}

func identityKey(ev *models.LifecycleEvent) string {
	switch {
	case ev.CustomerID != "":
		return ev.CustomerID
	case ev.Email != "":
		return identity.NormalizeEmail(ev.Email)
	default:
		return "anonymous"
	}
}

func nonEmpty(hash string) []string {
	if hash == "" {
		return nil
	}
	return []string{hash}
}
