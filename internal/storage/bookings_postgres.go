package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/radiusdt/stayvalue/internal/models"
)

// PostgresBookingRepo reads rental booking history from PostgreSQL.
type PostgresBookingRepo struct {
	db *sql.DB
}

// NewPostgresBookingRepo creates a repo over db. Use database.PostgresDB.SQL()
// to obtain a *sql.DB backed by the pgx pool.
func NewPostgresBookingRepo(db *sql.DB) *PostgresBookingRepo {
	return &PostgresBookingRepo{db: db}
}

const listBookingsByGuestQuery = `
	SELECT
		b.id, b.guest_id, b.listing_id, COALESCE(l.property_id, ''),
		b.check_in, b.check_out, b.nights, b.guest_count,
		b.nightly_rate, b.total_amount, b.currency,
		b.status, COALESCE(b.payment_status, ''),
		COALESCE(b.guest_name, ''), COALESCE(b.guest_email, ''), COALESCE(b.guest_phone, ''),
		COALESCE(p.property_type, ''), COALESCE(p.city, ''),
		r.id, r.overall_rating, r.comment, r.created_at,
		b.created_at, b.updated_at
	FROM rental_bookings b
	LEFT JOIN rental_listings l ON l.id = b.listing_id
	LEFT JOIN properties p ON p.id = l.property_id
	LEFT JOIN rental_reviews r ON r.booking_id = b.id
	WHERE b.guest_id = $1
	ORDER BY b.created_at DESC
`

// ListByCustomer returns every booking of a guest, newest first. A guest
// without bookings yields an empty slice and no error.
func (r *PostgresBookingRepo) ListByCustomer(ctx context.Context, customerID string) ([]models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, listBookingsByGuestQuery, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		var (
			b             models.Booking
			status        string
			checkIn       sql.NullTime
			checkOut      sql.NullTime
			reviewID      sql.NullString
			reviewRating  sql.NullFloat64
			reviewComment sql.NullString
			reviewCreated sql.NullTime
			currency      sql.NullString
		)

		if err := rows.Scan(
			&b.ID, &b.GuestID, &b.ListingID, &b.PropertyID,
			&checkIn, &checkOut, &b.Nights, &b.GuestCount,
			&b.NightlyRate, &b.TotalAmount, &currency,
			&status, &b.PaymentStatus,
			&b.GuestName, &b.GuestEmail, &b.GuestPhone,
			&b.PropertyType, &b.PropertyCity,
			&reviewID, &reviewRating, &reviewComment, &reviewCreated,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}

		b.Status = models.BookingStatus(strings.ToLower(status))
		b.Currency = currency.String
		if checkIn.Valid {
			t := checkIn.Time
			b.CheckIn = &t
		}
		if checkOut.Valid {
			t := checkOut.Time
			b.CheckOut = &t
		}
		if reviewID.Valid {
			b.Review = &models.Review{
				ID:            reviewID.String,
				BookingID:     b.ID,
				OverallRating: reviewRating.Float64,
				Comment:       reviewComment.String,
				CreatedAt:     reviewCreated.Time,
			}
		}

		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}

	return bookings, nil
}
