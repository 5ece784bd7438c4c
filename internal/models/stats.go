package models

// DispatchOutcomes lists the outcome labels of a DispatchRecord.
var DispatchOutcomes = []string{"sent", "failed", "skipped", "suppressed"}

// EventNames lists every event name the dispatcher can emit.
var EventNames = []string{
	EventSearch,
	EventViewContent,
	EventAddToCart,
	EventInitiateCheckout,
	EventAddPaymentInfo,
	EventPurchase,
	EventCompleteRegistration,
	EventSubscribe,
}

// DispatchStats is the per-day dispatch summary.
type DispatchStats struct {
	Date   string                 `json:"date"`
	Events map[string]*EventStats `json:"events"`
}

// EventStats counts dispatch outcomes for one event name.
type EventStats struct {
	Sent       int64   `json:"sent"`
	Failed     int64   `json:"failed"`
	Skipped    int64   `json:"skipped"`
	Suppressed int64   `json:"suppressed"`
	Value      float64 `json:"value"` // sum of values accepted by Meta
}

// Add increments the counter for outcome.
func (s *EventStats) Add(outcome string, n int64) {
	switch outcome {
	case "sent":
		s.Sent += n
	case "failed":
		s.Failed += n
	case "skipped":
		s.Skipped += n
	case "suppressed":
		s.Suppressed += n
	}
}

// NewDispatchStats creates an empty summary for date (YYYY-MM-DD).
func NewDispatchStats(date string) *DispatchStats {
	return &DispatchStats{Date: date, Events: make(map[string]*EventStats)}
}

// Event returns the stats entry for name, creating it if needed.
func (s *DispatchStats) Event(name string) *EventStats {
	es, ok := s.Events[name]
	if !ok {
		es = &EventStats{}
		s.Events[name] = es
	}
	return es
}
