package storage

import (
	"context"
	"sync"

	"github.com/radiusdt/stayvalue/internal/models"
)

// InMemoryDispatchLog keeps dispatch records in memory, bounded to maxRecords.
type InMemoryDispatchLog struct {
	mu         sync.RWMutex
	records    []models.DispatchRecord
	maxRecords int
}

// NewInMemoryDispatchLog creates a log. maxRecords <= 0 means 10000.
func NewInMemoryDispatchLog(maxRecords int) *InMemoryDispatchLog {
	if maxRecords <= 0 {
		maxRecords = 10000
	}
	return &InMemoryDispatchLog{maxRecords: maxRecords}
}

func (l *InMemoryDispatchLog) Name() string { return "memory" }

// RecordDispatch appends rec, dropping the oldest record at capacity.
func (l *InMemoryDispatchLog) RecordDispatch(ctx context.Context, rec *models.DispatchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) >= l.maxRecords {
		l.records = l.records[1:]
	}
	l.records = append(l.records, *rec)
	return nil
}

// Records returns a copy of the stored records, oldest first.
func (l *InMemoryDispatchLog) Records() []models.DispatchRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.DispatchRecord, len(l.records))
	copy(out, l.records)
	return out
}

// DailyStats aggregates the records of date (YYYY-MM-DD, UTC).
func (l *InMemoryDispatchLog) DailyStats(ctx context.Context, date string) (*models.DispatchStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := models.NewDispatchStats(date)
	for i := range l.records {
		rec := &l.records[i]
		if rec.Timestamp.UTC().Format(dateLayout) != date {
			continue
		}
		es := stats.Event(rec.EventName)
		es.Add(rec.Outcome(), 1)
		if rec.Success && rec.Value > 0 {
			es.Value += rec.Value
		}
	}
	return stats, nil
}
