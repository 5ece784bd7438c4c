package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/radiusdt/stayvalue/internal/models"
)

// InMemoryBookingRepo keeps bookings in memory for development and tests.
type InMemoryBookingRepo struct {
	mu      sync.RWMutex
	byGuest map[string][]models.Booking
}

// NewInMemoryBookingRepo creates an empty repo.
func NewInMemoryBookingRepo() *InMemoryBookingRepo {
	return &InMemoryBookingRepo{
		byGuest: make(map[string][]models.Booking),
	}
}

// Add stores bookings under their GuestID.
func (r *InMemoryBookingRepo) Add(bookings ...models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range bookings {
		r.byGuest[b.GuestID] = append(r.byGuest[b.GuestID], b)
	}
}

// ListByCustomer returns a copy of the guest's bookings, newest first.
func (r *InMemoryBookingRepo) ListByCustomer(ctx context.Context, customerID string) ([]models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.byGuest[customerID]
	out := make([]models.Booking, len(src))
	copy(out, src)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
