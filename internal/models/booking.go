package models

import (
	"errors"
	"strings"
	"time"
)

// BookingStatus is the lifecycle status of a rental booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusFailed    BookingStatus = "failed"
)

// ===========================================
// BOOKING
// ===========================================

// Booking is a single rental stay as stored by the booking service.
// This package only ever reads bookings.
type Booking struct {
	ID         string `json:"id"`
	GuestID    string `json:"guest_id"`
	ListingID  string `json:"listing_id"`
	PropertyID string `json:"property_id,omitempty"`

	// Stay
	CheckIn     *time.Time `json:"check_in,omitempty"`
	CheckOut    *time.Time `json:"check_out,omitempty"`
	Nights      int        `json:"nights"`
	GuestCount  int        `json:"guest_count"`
	NightlyRate float64    `json:"nightly_rate"`
	TotalAmount float64    `json:"total_amount"`
	Currency    string     `json:"currency,omitempty"`

	// Status
	Status        BookingStatus `json:"status"`
	PaymentStatus string        `json:"payment_status,omitempty"`

	// Guest contact
	GuestName  string `json:"guest_name,omitempty"`
	GuestEmail string `json:"guest_email,omitempty"`
	GuestPhone string `json:"guest_phone,omitempty"`

	// Joined from listing/property
	PropertyType string `json:"property_type,omitempty"`
	PropertyCity string `json:"property_city,omitempty"`

	Review *Review `json:"review,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCancelled reports whether the booking was cancelled.
func (b *Booking) IsCancelled() bool {
	return strings.EqualFold(string(b.Status), string(BookingStatusCancelled))
}

// PerNightPrice returns the nightly rate, falling back to total/nights.
func (b *Booking) PerNightPrice() float64 {
	if b.NightlyRate > 0 {
		return b.NightlyRate
	}
	if b.Nights > 0 {
		return b.TotalAmount / float64(b.Nights)
	}
	return 0
}

// LeadTimeDays returns days between creation and check-in, clamped at zero.
// ok is false when the booking has no check-in date.
func (b *Booking) LeadTimeDays() (days float64, ok bool) {
	if b.CheckIn == nil || b.CreatedAt.IsZero() {
		return 0, false
	}
	d := b.CheckIn.Sub(b.CreatedAt).Hours() / 24
	if d < 0 {
		d = 0
	}
	return d, true
}

// ===========================================
// REVIEW
// ===========================================

// Review is a guest review attached to at most one booking.
type Review struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"booking_id"`
	OverallRating float64   `json:"overall_rating"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the rating range.
func (r *Review) Validate() error {
	if r == nil {
		return errors.New("review is nil")
	}
	if r.OverallRating < 1 || r.OverallRating > 5 {
		return errors.New("overall_rating must be between 1 and 5")
	}
	return nil
}
