package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"

	"freight/internal/domain"
	"freight/internal/events"
	"freight/internal/metrics"
	"freight/internal/repository"
)

// ErrBookingNotOwned is returned when a caller acts on another user's booking.
var ErrBookingNotOwned = errors.New("booking belongs to another user")

// Negotiator resolves a counter-offer against an estimate.
type Negotiator interface {
	Resolve(estimatedPrice, counterOffer float64) (finalPrice float64, accepted bool, err error)
}

// Ensure NegotiationResolver implements Negotiator.
var _ Negotiator = (*NegotiationResolver)(nil)

// EventPublisher delivers booking events to downstream consumers.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, ev events.BookingCreated) error
	PublishBookingStatusChanged(ctx context.Context, ev events.BookingStatusChanged) error
	PublishCompensationFailed(ctx context.Context, ev events.CompensationFailed) error
}

// BookingConfig tunes persistence and compensation.
type BookingConfig struct {
	// WriteTimeout bounds each booking write and each release attempt.
	WriteTimeout time.Duration
	// CompensationAttempts is how many times a release is tried before the
	// reservation is reported as stranded.
	CompensationAttempts int
	// CompensationBackoff is the delay before the second attempt; it grows
	// linearly after that.
	CompensationBackoff time.Duration
}

// DefaultBookingConfig returns production defaults.
func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		WriteTimeout:         5 * time.Second,
		CompensationAttempts: 3,
		CompensationBackoff:  100 * time.Millisecond,
	}
}

// BookingService orchestrates booking creation and status transitions.
type BookingService struct {
	truckRepo   repository.TruckRepository
	bookingRepo repository.BookingRepository
	ledger      CapacityLedgerInterface
	negotiator  Negotiator
	publisher   EventPublisher
	cfg         BookingConfig
}

// NewBookingService creates a new BookingService. publisher may be nil.
func NewBookingService(
	truckRepo repository.TruckRepository,
	bookingRepo repository.BookingRepository,
	ledger CapacityLedgerInterface,
	negotiator Negotiator,
	publisher EventPublisher,
	cfg BookingConfig,
) *BookingService {
	if cfg.CompensationAttempts < 1 {
		cfg.CompensationAttempts = 1
	}
	return &BookingService{
		truckRepo:   truckRepo,
		bookingRepo: bookingRepo,
		ledger:      ledger,
		negotiator:  negotiator,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	TruckID         string
	UserID          string
	PickupLocation  string
	DropoffLocation string
	DistanceKm      float64
	WeightKg        float64
	Mode            domain.BookingMode // empty means direct
	CounterOffer    *float64           // required for negotiated mode only
}

// CreateBooking validates, prices, reserves capacity and persists a pending
// booking. If the write fails after capacity was reserved, the reservation
// is released before returning a *PersistenceError; if that release also
// fails a *CompensationError is returned instead.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	start := time.Now()
	defer func() { metrics.ObserveBookingDuration(time.Since(start).Seconds()) }()

	booking, err := s.createBooking(ctx, req)
	if err != nil {
		metrics.IncBookingRejected(errorReason(err))
		return nil, err
	}
	metrics.IncBookingCreated(string(booking.Mode))
	return booking, nil
}

func (s *BookingService) createBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	req, err := normalizeCreateRequest(req)
	if err != nil {
		return nil, err
	}

	truck, err := s.truckRepo.GetByID(ctx, req.TruckID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTruckNotFound
		}
		return nil, &PersistenceError{Op: "load truck", Err: err}
	}

	estimate, err := EstimatePrice(truck.Rates(), req.DistanceKm, req.WeightKg)
	if err != nil {
		return nil, err
	}

	finalPrice := estimate
	var accepted *bool
	if req.Mode == domain.BookingModeNegotiated {
		if estimate <= 0 {
			return nil, ErrNothingToNegotiate
		}
		price, ok, err := s.negotiator.Resolve(estimate, *req.CounterOffer)
		if err != nil {
			return nil, err
		}
		metrics.IncNegotiation(ok)
		finalPrice = price
		accepted = &ok
	}

	token, err := s.ledger.TryReserve(ctx, req.TruckID, req.WeightKg)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	booking := &domain.Booking{
		ID:                  uuid.New().String(),
		UserID:              req.UserID,
		TruckID:             req.TruckID,
		ReservationID:       token.ID,
		PickupLocation:      req.PickupLocation,
		DropoffLocation:     req.DropoffLocation,
		DistanceKm:          req.DistanceKm,
		CargoWeightKg:       req.WeightKg,
		EstimatedPrice:      estimate,
		FinalPrice:          finalPrice,
		Mode:                req.Mode,
		CounterOffer:        req.CounterOffer,
		NegotiationAccepted: accepted,
		Status:              domain.BookingStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	writeCtx, cancel := withTimeout(ctx, s.cfg.WriteTimeout)
	err = s.bookingRepo.Create(writeCtx, booking)
	cancel()
	if err != nil {
		perr := &PersistenceError{Op: "create booking", Err: err}
		if rerr := s.compensate(ctx, token); rerr != nil {
			cerr := &CompensationError{
				ReservationID: token.ID,
				TruckID:       token.TruckID,
				WeightKg:      token.WeightKg,
				Cause:         perr,
				Err:           rerr,
			}
			s.escalate(ctx, cerr)
			return nil, cerr
		}
		log.Printf("[BOOKING] booking write failed, released reservation %s: %v", token.ID, err)
		return nil, perr
	}

	if s.publisher != nil {
		if err := s.publisher.PublishBookingCreated(ctx, events.NewBookingCreated(booking)); err != nil {
			log.Printf("[BOOKING] failed to publish created event for %s: %v", booking.ID, err)
		}
	}

	return booking, nil
}

func normalizeCreateRequest(req CreateBookingRequest) (CreateBookingRequest, error) {
	req.TruckID = strings.TrimSpace(req.TruckID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.PickupLocation = strings.TrimSpace(req.PickupLocation)
	req.DropoffLocation = strings.TrimSpace(req.DropoffLocation)

	if req.UserID == "" {
		return req, ErrInvalidUserID
	}
	if req.TruckID == "" {
		return req, ErrInvalidTruckID
	}
	if req.PickupLocation == "" {
		return req, ErrInvalidPickup
	}
	if req.DropoffLocation == "" {
		return req, ErrInvalidDropoff
	}
	if !isPositiveFinite(req.DistanceKm) {
		return req, ErrInvalidDistance
	}
	if !isPositiveFinite(req.WeightKg) {
		return req, ErrInvalidWeight
	}
	if !isStorableQuantity(req.DistanceKm) {
		return req, ErrDistancePrecision
	}
	if !isStorableQuantity(req.WeightKg) {
		return req, ErrWeightPrecision
	}

	switch req.Mode {
	case "", domain.BookingModeDirect:
		req.Mode = domain.BookingModeDirect
		if req.CounterOffer != nil {
			return req, ErrUnexpectedOffer
		}
	case domain.BookingModeNegotiated:
		if req.CounterOffer == nil || !isPositiveFinite(*req.CounterOffer) {
			return req, ErrInvalidCounterOffer
		}
	default:
		return req, ErrInvalidMode
	}
	return req, nil
}

// compensate releases token on a context detached from the caller, so an
// expired request deadline cannot prevent the release.
func (s *BookingService) compensate(ctx context.Context, token *domain.Reservation) error {
	detached := context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= s.cfg.CompensationAttempts; attempt++ {
		if attempt > 1 && s.cfg.CompensationBackoff > 0 {
			time.Sleep(s.cfg.CompensationBackoff * time.Duration(attempt-1))
		}

		releaseCtx, cancel := withTimeout(detached, s.cfg.WriteTimeout)
		err = s.ledger.Release(releaseCtx, token)
		cancel()
		if err == nil {
			return nil
		}
		log.Printf("[BOOKING] release attempt %d/%d for reservation %s failed: %v",
			attempt, s.cfg.CompensationAttempts, token.ID, err)
	}
	return err
}

// escalate reports a stranded reservation on every channel an operator
// watches.
func (s *BookingService) escalate(ctx context.Context, cerr *CompensationError) {
	log.Printf("[CRITICAL] %v", cerr)
	metrics.IncCompensationFailure()

	if txn := newrelic.FromContext(ctx); txn != nil {
		txn.NoticeError(cerr)
	}

	if s.publisher == nil {
		return
	}
	ev := events.CompensationFailed{
		ReservationID: cerr.ReservationID,
		TruckID:       cerr.TruckID,
		WeightKg:      cerr.WeightKg,
		Cause:         errString(cerr.Cause),
		ReleaseError:  errString(cerr.Err),
	}
	if err := s.publisher.PublishCompensationFailed(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("[CRITICAL] failed to publish compensation failure for reservation %s: %v", cerr.ReservationID, err)
	}
}

// GetBooking returns one of the caller's bookings.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, ErrInvalidBookingID
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	return s.loadOwned(ctx, bookingID, userID)
}

// ListBookings returns the caller's bookings, optionally filtered by status.
// Pending bookings are current orders; completed ones are order history.
func (s *BookingService) ListBookings(ctx context.Context, userID string, status domain.BookingStatus) ([]*domain.Booking, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}

	bookings, err := s.bookingRepo.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, &PersistenceError{Op: "list bookings", Err: err}
	}
	return bookings, nil
}

// CompleteBooking marks a pending booking completed. Its capacity stays
// committed.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	return s.transition(ctx, bookingID, userID, domain.BookingStatusCompleted)
}

// CancelBooking marks a pending booking cancelled and releases its capacity.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	booking, err := s.transition(ctx, bookingID, userID, domain.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}

	token := &domain.Reservation{
		ID:       booking.ReservationID,
		TruckID:  booking.TruckID,
		WeightKg: booking.CargoWeightKg,
	}
	if rerr := s.compensate(ctx, token); rerr != nil {
		cerr := &CompensationError{
			ReservationID: token.ID,
			TruckID:       token.TruckID,
			WeightKg:      token.WeightKg,
			Cause:         fmt.Errorf("booking %s cancelled", booking.ID),
			Err:           rerr,
		}
		s.escalate(ctx, cerr)
		return nil, cerr
	}
	return booking, nil
}

func (s *BookingService) transition(ctx context.Context, bookingID, userID string, to domain.BookingStatus) (*domain.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, ErrInvalidBookingID
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}

	booking, err := s.loadOwned(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	from := booking.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}

	writeCtx, cancel := withTimeout(ctx, s.cfg.WriteTimeout)
	err = s.bookingRepo.UpdateStatus(writeCtx, bookingID, from, to)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, ErrBookingStateConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrBookingNotFound
		default:
			return nil, &PersistenceError{Op: "update booking status", Err: err}
		}
	}

	booking.Status = to
	booking.UpdatedAt = time.Now().UTC()
	metrics.IncBookingTransition(string(to))

	if s.publisher != nil {
		ev := events.BookingStatusChanged{
			BookingID: booking.ID,
			UserID:    booking.UserID,
			TruckID:   booking.TruckID,
			From:      string(from),
			To:        string(to),
		}
		if err := s.publisher.PublishBookingStatusChanged(ctx, ev); err != nil {
			log.Printf("[BOOKING] failed to publish status change for %s: %v", booking.ID, err)
		}
	}
	return booking, nil
}

func (s *BookingService) loadOwned(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, &PersistenceError{Op: "load booking", Err: err}
	}
	if booking.UserID != userID {
		return nil, ErrBookingNotOwned
	}
	return booking, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrTruckNotFound):
		return "truck_not_found"
	case errors.Is(err, ErrTruckUnavailable):
		return "truck_unavailable"
	case errors.Is(err, ErrCompensation):
		return "compensation"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
