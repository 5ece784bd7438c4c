package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radiusdt/stayvalue/internal/metrics"
	"github.com/radiusdt/stayvalue/internal/models"
)

const (
	counterKeyPrefix = "stayvalue:capi"
	counterTTL       = 48 * time.Hour
	dateLayout       = "2006-01-02"
)

// CounterKey builds the daily counter key for an event outcome.
func CounterKey(date, eventName, outcome string) string {
	return fmt.Sprintf("%s:%s:%s:%s", counterKeyPrefix, date, eventName, outcome)
}

// ValueKey builds the daily accepted-value key for an event.
func ValueKey(date, eventName string) string {
	return fmt.Sprintf("%s:%s:%s:value", counterKeyPrefix, date, eventName)
}

// RedisDispatchCounters keeps per-day dispatch counters in Redis.
type RedisDispatchCounters struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

// NewRedisDispatchCounters creates a Redis-backed counter recorder.
func NewRedisDispatchCounters(client *redis.Client, m *metrics.Metrics) *RedisDispatchCounters {
	return &RedisDispatchCounters{client: client, metrics: m}
}

func (c *RedisDispatchCounters) Name() string { return "redis" }

// RecordDispatch increments the outcome counter and, for accepted events, the
// value sum. Keys expire after 48 hours.
func (c *RedisDispatchCounters) RecordDispatch(ctx context.Context, rec *models.DispatchRecord) error {
	start := time.Now()
	date := rec.Timestamp.UTC().Format(dateLayout)

	pipe := c.client.Pipeline()

	countKey := CounterKey(date, rec.EventName, rec.Outcome())
	pipe.Incr(ctx, countKey)
	pipe.Expire(ctx, countKey, counterTTL)

	if rec.Success && rec.Value > 0 {
		valueKey := ValueKey(date, rec.EventName)
		pipe.IncrByFloat(ctx, valueKey, rec.Value)
		pipe.Expire(ctx, valueKey, counterTTL)
	}

	_, err := pipe.Exec(ctx)
	c.metrics.RecordRedisOp("record_dispatch", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to record dispatch counters: %w", err)
	}
	return nil
}

// DailyStats reads every counter for date (YYYY-MM-DD).
func (c *RedisDispatchCounters) DailyStats(ctx context.Context, date string) (*models.DispatchStats, error) {
	start := time.Now()
	defer func() { c.metrics.RecordRedisOp("daily_stats", time.Since(start)) }()

	type slot struct {
		event   string
		outcome string // empty for the value key
	}

	keys := make([]string, 0, len(models.EventNames)*(len(models.DispatchOutcomes)+1))
	slots := make([]slot, 0, cap(keys))
	for _, ev := range models.EventNames {
		for _, outcome := range models.DispatchOutcomes {
			keys = append(keys, CounterKey(date, ev, outcome))
			slots = append(slots, slot{event: ev, outcome: outcome})
		}
		keys = append(keys, ValueKey(date, ev))
		slots = append(slots, slot{event: ev})
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch counters: %w", err)
	}

	stats := models.NewDispatchStats(date)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		es := stats.Event(slots[i].event)
		if slots[i].outcome == "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				es.Value = f
			}
			continue
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			es.Add(slots[i].outcome, n)
		}
	}

	return stats, nil
}
