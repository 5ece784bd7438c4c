package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/stayvalue/internal/models"
)

var bookingColumns = []string{
	"id", "guest_id", "listing_id", "property_id",
	"check_in", "check_out", "nights", "guest_count",
	"nightly_rate", "total_amount", "currency",
	"status", "payment_status",
	"guest_name", "guest_email", "guest_phone",
	"property_type", "city",
	"review_id", "overall_rating", "comment", "review_created_at",
	"created_at", "updated_at",
}

func TestPostgresBookingRepo_ListByCustomer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	older := created.AddDate(0, -2, 0)
	checkIn := created.AddDate(0, 0, 20)

	rows := sqlmock.NewRows(bookingColumns).
		AddRow("b2", "guest-1", "l1", "p1",
			checkIn, checkIn.AddDate(0, 0, 3), int64(3), int64(2),
			800.0, 2400.0, "EGP",
			"COMPLETED", "paid",
			"Nour", "nour@example.com", "01001234567",
			"villa", "Hurghada",
			"r1", 4.5, "lovely", created.AddDate(0, 0, 25),
			created, created).
		AddRow("b1", "guest-1", "l2", "",
			nil, nil, int64(2), int64(1),
			0.0, 1000.0, nil,
			"cancelled", "",
			"", "", "",
			"", "",
			nil, nil, nil, nil,
			older, older)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rental_bookings b")).
		WithArgs("guest-1").
		WillReturnRows(rows)

	repo := NewPostgresBookingRepo(db)
	bookings, err := repo.ListByCustomer(context.Background(), "guest-1")
	require.NoError(t, err)
	require.Len(t, bookings, 2)

	first := bookings[0]
	assert.Equal(t, "b2", first.ID)
	assert.Equal(t, models.BookingStatusCompleted, first.Status)
	assert.Equal(t, 3, first.Nights)
	assert.Equal(t, "villa", first.PropertyType)
	assert.Equal(t, "Hurghada", first.PropertyCity)
	require.NotNil(t, first.CheckIn)
	assert.True(t, checkIn.Equal(*first.CheckIn))
	require.NotNil(t, first.Review)
	assert.Equal(t, 4.5, first.Review.OverallRating)
	assert.Equal(t, "b2", first.Review.BookingID)

	second := bookings[1]
	assert.True(t, second.IsCancelled())
	assert.Nil(t, second.CheckIn)
	assert.Nil(t, second.Review)
	assert.Empty(t, second.Currency)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepo_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.guest_id = $1")).
		WithArgs("guest-2").
		WillReturnRows(sqlmock.NewRows(bookingColumns))

	bookings, err := NewPostgresBookingRepo(db).ListByCustomer(context.Background(), "guest-2")
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookingRepo_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	queryErr := errors.New("relation does not exist")
	mock.ExpectQuery(regexp.QuoteMeta("FROM rental_bookings b")).WillReturnError(queryErr)

	_, err = NewPostgresBookingRepo(db).ListByCustomer(context.Background(), "guest-1")
	assert.ErrorIs(t, err, queryErr)
}

func TestInMemoryBookingRepo_NewestFirst(t *testing.T) {
	repo := NewInMemoryBookingRepo()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	repo.Add(
		models.Booking{ID: "old", GuestID: "g", CreatedAt: base},
		models.Booking{ID: "new", GuestID: "g", CreatedAt: base.AddDate(0, 1, 0)},
		models.Booking{ID: "other", GuestID: "h", CreatedAt: base},
	)

	got, err := repo.ListByCustomer(context.Background(), "g")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	none, err := repo.ListByCustomer(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func record(ts time.Time, event string, shouldSend, sent, success bool, value float64) *models.DispatchRecord {
	return &models.DispatchRecord{
		Timestamp:  ts,
		Stage:      models.StageStayCompleted,
		EventName:  event,
		Value:      value,
		ShouldSend: shouldSend,
		Sent:       sent,
		Success:    success,
	}
}

func TestInMemoryDispatchLog_DailyStats(t *testing.T) {
	log := NewInMemoryDispatchLog(0)
	day := time.Date(2026, time.May, 20, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, log.RecordDispatch(ctx, record(day, "Purchase", true, true, true, 3600)))
	require.NoError(t, log.RecordDispatch(ctx, record(day, "Purchase", true, true, false, 1000)))
	require.NoError(t, log.RecordDispatch(ctx, record(day, "Subscribe", false, false, false, 200)))
	require.NoError(t, log.RecordDispatch(ctx, record(day.AddDate(0, 0, -1), "Purchase", true, true, true, 50)))

	stats, err := log.DailyStats(ctx, "2026-05-20")
	require.NoError(t, err)

	purchase := stats.Events["Purchase"]
	require.NotNil(t, purchase)
	assert.Equal(t, int64(1), purchase.Sent)
	assert.Equal(t, int64(1), purchase.Failed)
	assert.Equal(t, 3600.0, purchase.Value)
	assert.Equal(t, int64(1), stats.Events["Subscribe"].Suppressed)
}

func TestInMemoryDispatchLog_Bounded(t *testing.T) {
	log := NewInMemoryDispatchLog(2)
	ts := time.Now()
	for _, ev := range []string{"Search", "ViewContent", "Purchase"} {
		require.NoError(t, log.RecordDispatch(context.Background(), record(ts, ev, true, true, true, 1)))
	}

	recs := log.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "ViewContent", recs[0].EventName)
	assert.Equal(t, "Purchase", recs[1].EventName)
}

type fakeExecer struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeExecer) Exec(_ context.Context, query string, args ...any) error {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return f.err
}

func TestClickHouseDispatchLog_RecordDispatch(t *testing.T) {
	conn := &fakeExecer{}
	log := NewClickHouseDispatchLog(conn)

	rec := record(time.Date(2026, time.May, 20, 12, 0, 0, 0, time.UTC), "Purchase", true, true, true, 3600)
	rec.EventID = "abc"
	rec.Segment = models.SegmentLuxurySeeker
	rec.ValueScore = 90

	require.NoError(t, log.RecordDispatch(context.Background(), rec))
	require.Len(t, conn.queries, 1)
	assert.Contains(t, conn.queries[0], "INSERT INTO capi_dispatch_log")

	args := conn.args[0]
	require.Len(t, args, 15)
	assert.Equal(t, "abc", args[0])
	assert.Equal(t, "Purchase", args[3])
	assert.Equal(t, "luxury_seeker", args[8])
	assert.Equal(t, uint8(90), args[9])
}

func TestClickHouseDispatchLog_Errors(t *testing.T) {
	execErr := errors.New("code: 60, table does not exist")
	log := NewClickHouseDispatchLog(&fakeExecer{err: execErr})

	err := log.RecordDispatch(context.Background(), record(time.Now(), "Search", true, true, true, 25))
	assert.ErrorIs(t, err, execErr)
	assert.ErrorIs(t, log.EnsureSchema(context.Background()), execErr)
}

func TestCounterKeys(t *testing.T) {
	assert.Equal(t, "stayvalue:capi:2026-05-20:Purchase:sent", CounterKey("2026-05-20", "Purchase", "sent"))
	assert.Equal(t, "stayvalue:capi:2026-05-20:Purchase:value", ValueKey("2026-05-20", "Purchase"))
}

func TestRedisDispatchCounters_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedisDispatchCounters(client, nil)
	assert.Equal(t, "redis", c.Name())

	err := c.RecordDispatch(context.Background(), record(time.Now(), "Purchase", true, true, true, 10))
	assert.Error(t, err)

	_, err = c.DailyStats(context.Background(), "2026-05-20")
	assert.Error(t, err)
}
