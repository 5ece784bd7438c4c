package models

import (
	"time"
)

// Stage is a step in a booking's lifecycle that can produce a conversion event.
type Stage string

const (
	StageSearchStarted    Stage = "search_started"
	StagePropertyViewed   Stage = "property_viewed"
	StageBookingInitiated Stage = "booking_initiated"
	StagePaymentStarted   Stage = "payment_started"
	StageBookingConfirmed Stage = "booking_confirmed"
	StageStayCompleted    Stage = "stay_completed"
	StageReviewLeft       Stage = "review_left"
)

// Stages lists lifecycle stages in their natural order.
var Stages = []Stage{
	StageSearchStarted,
	StagePropertyViewed,
	StageBookingInitiated,
	StagePaymentStarted,
	StageBookingConfirmed,
	StageStayCompleted,
	StageReviewLeft,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Meta standard event names.
const (
	EventSearch               = "Search"
	EventViewContent          = "ViewContent"
	EventAddToCart            = "AddToCart"
	EventInitiateCheckout     = "InitiateCheckout"
	EventAddPaymentInfo       = "AddPaymentInfo"
	EventPurchase             = "Purchase"
	EventCompleteRegistration = "CompleteRegistration"
	EventSubscribe            = "Subscribe"
	EventLead                 = "Lead"
)

// ===========================================
// LIFECYCLE EVENT
// ===========================================

// LifecycleEvent is handed to the dispatcher by booking handlers.
type LifecycleEvent struct {
	Stage        Stage   `json:"stage"`
	CustomerID   string  `json:"customer_id"`
	BookingID    string  `json:"booking_id,omitempty"`
	ListingID    string  `json:"listing_id,omitempty"`
	BookingValue float64 `json:"booking_value,omitempty"`
	Currency     string  `json:"currency,omitempty"`

	// Contact details, hashed before they leave the process
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	City      string `json:"city,omitempty"`
	Country   string `json:"country,omitempty"`

	// Browser and click identifiers
	ClientIP       string `json:"client_ip,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	Fbc            string `json:"fbc,omitempty"`
	Fbp            string `json:"fbp,omitempty"`
	EventSourceURL string `json:"event_source_url,omitempty"`

	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// ===========================================
// DISPATCH RECORD
// ===========================================

// DispatchRecord describes one dispatcher decision and its outcome.
type DispatchRecord struct {
	EventID    string    `json:"event_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Stage      Stage     `json:"stage"`
	EventName  string    `json:"event_name"`
	Value      float64   `json:"value"`
	Currency   string    `json:"currency"`
	CustomerID string    `json:"customer_id"`
	BookingID  string    `json:"booking_id,omitempty"`
	Segment    Segment   `json:"segment,omitempty"`
	ValueScore int       `json:"value_score"`
	HasProfile bool      `json:"has_profile"`
	ShouldSend bool      `json:"should_send"`
	Sent       bool      `json:"sent"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Outcome collapses the record into a single label for counters.
func (r *DispatchRecord) Outcome() string {
	switch {
	case !r.ShouldSend:
		return "suppressed"
	case !r.Sent:
		return "skipped"
	case r.Success:
		return "sent"
	default:
		return "failed"
	}
}
