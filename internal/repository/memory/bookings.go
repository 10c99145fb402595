package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"freight/internal/domain"
	"freight/internal/repository"
)

// BookingStore keeps bookings in memory.
type BookingStore struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking
}

var _ repository.BookingRepository = (*BookingStore)(nil)

// NewBookingStore creates an empty BookingStore.
func NewBookingStore() *BookingStore {
	return &BookingStore{bookings: make(map[string]*domain.Booking)}
}

func copyBooking(b *domain.Booking) *domain.Booking {
	c := *b
	if b.CounterOffer != nil {
		v := *b.CounterOffer
		c.CounterOffer = &v
	}
	if b.NegotiationAccepted != nil {
		v := *b.NegotiationAccepted
		c.NegotiationAccepted = &v
	}
	return &c
}

// Create persists a new booking.
func (s *BookingStore) Create(ctx context.Context, b *domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	s.bookings[b.ID] = copyBooking(b)
	return nil
}

// GetByID retrieves a booking by ID.
func (s *BookingStore) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBooking(b), nil
}

// ListByUser returns a user's bookings, newest first.
func (s *BookingStore) ListByUser(_ context.Context, userID string, status domain.BookingStatus) ([]*domain.Booking, error) {
	s.mu.RLock()
	var bookings []*domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID && (status == "" || b.Status == status) {
			bookings = append(bookings, copyBooking(b))
		}
	}
	s.mu.RUnlock()

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings, nil
}

// UpdateStatus moves a booking from one status to another.
func (s *BookingStore) UpdateStatus(_ context.Context, id string, from, to domain.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != from {
		return repository.ErrStatusConflict
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	return nil
}
