package service

import (
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"parklot/internal/cache"
	"parklot/internal/clock"
	"parklot/internal/config"
	"parklot/internal/db"
	"parklot/internal/entities"
	apperrors "parklot/internal/errors"
	"parklot/internal/utils"
)

// ReservationService is the allocation engine: it validates a reservation
// request, walks candidate slots and atomically claims the first one with no
// overlapping non-terminal booking.
type ReservationService struct {
	slots      SlotStore
	bookings   BookingStore
	payments   PaymentGateway
	availCache *cache.AvailabilityCache
	clk        clock.Clock
	cfg        *config.Config
}

func NewReservationService(slots SlotStore, bookings BookingStore, payments PaymentGateway, availCache *cache.AvailabilityCache, clk clock.Clock, cfg *config.Config) *ReservationService {
	return &ReservationService{
		slots:      slots,
		bookings:   bookings,
		payments:   payments,
		availCache: availCache,
		clk:        clk,
		cfg:        cfg,
	}
}

// BillableHours rounds a duration up to whole hours. Partial hours bill as a
// full hour.
func BillableHours(d time.Duration) int {
	hours := int(d / time.Hour)
	if d%time.Hour > 0 {
		hours++
	}
	return hours
}

// Reserve finds a conflict-free slot for the request and creates a pending
// booking against it. The chosen slot is marked reserved and a checkout
// session is opened with the payment provider.
func (s *ReservationService) Reserve(req *entities.ReserveRequest) (*entities.ReserveResponse, error) {
	now := s.clk.Now()
	if err := s.validateInterval(now, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	vehicleType := utils.NormalizeVehicleType(req.VehicleType)
	if !utils.ValidVehicleType(vehicleType) {
		return nil, fmt.Errorf("%w: unknown vehicle type %q", apperrors.ErrInvalidInterval, req.VehicleType)
	}

	hasActive, err := s.bookings.HasNonTerminalForVehicle(req.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("error checking existing bookings for vehicle %s: %w", req.VehicleID, err)
	}
	if hasActive {
		return nil, apperrors.ErrDuplicateActiveBooking
	}

	spaceType := utils.SharedSpaceType(vehicleType)
	rate, err := s.slots.HourlyRate(req.LocationID, spaceType)
	if err != nil {
		return nil, fmt.Errorf("error resolving hourly rate: %w", err)
	}
	totalAmount := BillableHours(req.EndTime.Sub(req.StartTime)) * rate

	candidates, err := s.slots.CandidateSlots(req.LocationID, spaceType, s.cfg.SlotOrder)
	if err != nil {
		return nil, fmt.Errorf("error listing candidate slots: %w", err)
	}

	booking, err := s.claimFirstFree(candidates, req, vehicleType, rate, totalAmount, now)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperrors.ErrNoSlotAvailable
	}

	checkoutURL, sessionID, err := s.payments.InitiateCheckout(booking.Code, req.UserEmail, int64(totalAmount), s.cfg.Currency)
	if err != nil {
		// Roll the claim back through the normal cancel transition so slot
		// and booking never diverge.
		log.Printf("Payment initiation failed for booking %s: %v", booking.Code, err)
		if _, cancelErr := s.bookings.CancelBooking(booking.ID, "payment initiation failed", "system", now, db.PaymentUnpaid); cancelErr != nil {
			log.Printf("Could not cancel booking %s after payment failure: %v", booking.Code, cancelErr)
		}
		return nil, fmt.Errorf("error initiating payment for booking %s: %w", booking.Code, err)
	}
	booking.StripeSessionID = sessionID
	if err := s.bookings.SetStripeSession(booking.ID, sessionID, now); err != nil {
		log.Printf("Could not store session for booking %s: %v", booking.Code, err)
	}

	return &entities.ReserveResponse{
		Booking:     entities.NewBookingResponse(booking),
		CheckoutURL: checkoutURL,
		SessionID:   sessionID,
	}, nil
}

// claimFirstFree walks candidates in order and tries to claim each. A claim
// lost to a concurrent request surfaces as ErrSlotConflict and the engine
// moves to the next candidate instead of giving up. A duplicate-vehicle
// detection inside the claim transaction aborts the whole walk: retrying
// another slot cannot make the vehicle eligible.
func (s *ReservationService) claimFirstFree(candidates []db.Slot, req *entities.ReserveRequest, vehicleType string, rate, totalAmount int, now time.Time) (*db.Booking, error) {
	for _, slot := range candidates {
		// Lock-free fast path; the claim transaction re-checks under lock.
		overlapping, err := s.bookings.FindOverlapping(slot.ID, req.StartTime, req.EndTime)
		if err != nil {
			log.Printf("Error checking overlap for slot %d: %v", slot.ID, err)
			continue
		}
		if len(overlapping) > 0 {
			continue
		}

		booking := &db.Booking{
			Code:          uuid.New().String(),
			UserID:        req.UserID,
			UserName:      req.UserName,
			UserEmail:     req.UserEmail,
			UserPhone:     req.UserPhone,
			VehicleID:     req.VehicleID,
			VehicleType:   vehicleType,
			SlotID:        slot.ID,
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
			Status:        db.BookingPending,
			PaymentStatus: db.PaymentUnpaid,
			HourlyRate:    rate,
			TotalAmount:   totalAmount,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err = s.bookings.ClaimSlot(booking, req.UserID)
		if stderrors.Is(err, apperrors.ErrSlotConflict) {
			continue
		}
		if stderrors.Is(err, apperrors.ErrDuplicateActiveBooking) {
			return nil, err
		}
		if err != nil {
			log.Printf("Error claiming slot %d: %v", slot.ID, err)
			continue
		}
		return booking, nil
	}
	return nil, nil
}

func (s *ReservationService) validateInterval(now, startTime, endTime time.Time) error {
	if !endTime.After(startTime) {
		return fmt.Errorf("%w: end_time must be after start_time", apperrors.ErrInvalidInterval)
	}
	earliest := now.Add(s.cfg.MinLeadTime)
	if startTime.Before(earliest) {
		return fmt.Errorf("%w: start_time must be at least %s in the future", apperrors.ErrInvalidInterval, s.cfg.MinLeadTime)
	}
	if endTime.Sub(startTime) > s.cfg.MaxDuration {
		return fmt.Errorf("%w: duration exceeds the maximum of %s", apperrors.ErrInvalidInterval, s.cfg.MaxDuration)
	}
	return nil
}

// CheckAvailability is a lock-free preview of which compatible slots are free
// for an interval. Served through a short-TTL cache and never used by the
// claim path.
func (s *ReservationService) CheckAvailability(req *entities.AvailabilityRequest) (*entities.AvailabilityResponse, error) {
	vehicleType := utils.SharedSpaceType(utils.NormalizeVehicleType(req.VehicleType))
	key := cache.Key(req.LocationID, vehicleType, req.StartTime, req.EndTime)

	var cached entities.AvailabilityResponse
	if hit, err := s.availCache.Get(key, &cached); err != nil {
		log.Printf("Availability cache read failed: %v", err)
	} else if hit {
		return &cached, nil
	}

	candidates, err := s.slots.CandidateSlots(req.LocationID, vehicleType, s.cfg.SlotOrder)
	if err != nil {
		return nil, fmt.Errorf("error listing candidate slots: %w", err)
	}

	resp := &entities.AvailabilityResponse{
		RequestedStartTime: req.StartTime,
		RequestedEndTime:   req.EndTime,
	}
	for _, slot := range candidates {
		overlapping, err := s.bookings.FindOverlapping(slot.ID, req.StartTime, req.EndTime)
		if err != nil {
			return nil, fmt.Errorf("error checking overlap for slot %d: %w", slot.ID, err)
		}
		free := len(overlapping) == 0
		if free {
			resp.FreeSlots++
		}
		resp.Slots = append(resp.Slots, entities.SlotAvailability{
			SlotID:     slot.ID,
			SlotNumber: slot.SlotNumber,
			IsFree:     free,
		})
	}
	resp.IsAvailable = resp.FreeSlots > 0

	if err := s.availCache.Set(key, resp); err != nil {
		log.Printf("Availability cache write failed: %v", err)
	}
	return resp, nil
}
