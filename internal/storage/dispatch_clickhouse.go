package storage

import (
	"context"
	"fmt"

	"github.com/radiusdt/stayvalue/internal/models"
)

// ClickHouseExecer is the subset of a ClickHouse connection the dispatch log
// needs. clickhouse-go's driver.Conn satisfies it.
type ClickHouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

const insertDispatchLogQuery = `
	INSERT INTO capi_dispatch_log (
		event_id, timestamp, stage, event_name, value, currency,
		customer_id, booking_id, segment, value_score,
		has_profile, should_send, sent, success, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateDispatchLogTable is the DDL for the dispatch log.
const CreateDispatchLogTable = `
	CREATE TABLE IF NOT EXISTS capi_dispatch_log (
		event_id    String,
		timestamp   DateTime64(3, 'UTC'),
		stage       LowCardinality(String),
		event_name  LowCardinality(String),
		value       Float64,
		currency    LowCardinality(String),
		customer_id String,
		booking_id  String,
		segment     LowCardinality(String),
		value_score UInt8,
		has_profile Bool,
		should_send Bool,
		sent        Bool,
		success     Bool,
		error       String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (event_name, timestamp)
`

// ClickHouseDispatchLog appends every dispatch record to ClickHouse.
type ClickHouseDispatchLog struct {
	conn ClickHouseExecer
}

// NewClickHouseDispatchLog creates a ClickHouse-backed dispatch log.
func NewClickHouseDispatchLog(conn ClickHouseExecer) *ClickHouseDispatchLog {
	return &ClickHouseDispatchLog{conn: conn}
}

func (l *ClickHouseDispatchLog) Name() string { return "clickhouse" }

// EnsureSchema creates the log table when missing.
func (l *ClickHouseDispatchLog) EnsureSchema(ctx context.Context) error {
	if err := l.conn.Exec(ctx, CreateDispatchLogTable); err != nil {
		return fmt.Errorf("failed to create capi_dispatch_log: %w", err)
	}
	return nil
}

// RecordDispatch inserts one row.
func (l *ClickHouseDispatchLog) RecordDispatch(ctx context.Context, rec *models.DispatchRecord) error {
	score := rec.ValueScore
	if score < 0 {
		score = 0
	}
	err := l.conn.Exec(ctx, insertDispatchLogQuery,
		rec.EventID,
		rec.Timestamp.UTC(),
		string(rec.Stage),
		rec.EventName,
		rec.Value,
		rec.Currency,
		rec.CustomerID,
		rec.BookingID,
		string(rec.Segment),
		uint8(score),
		rec.HasProfile,
		rec.ShouldSend,
		rec.Sent,
		rec.Success,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch log: %w", err)
	}
	return nil
}
