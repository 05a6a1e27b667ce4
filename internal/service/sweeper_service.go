package service

import (
	"fmt"
	"log"
	"time"

	"parklot/internal/clock"
	"parklot/internal/config"
	"parklot/internal/db"
)

// SweeperService reclaims slots from bookings the lifecycle never closed: the
// periodic expiration sweep and the pending-payment timeout.
type SweeperService struct {
	bookings BookingStore
	notifier Notifier
	clk      clock.Clock
	cfg      *config.Config
}

func NewSweeperService(bookings BookingStore, notifier Notifier, clk clock.Clock, cfg *config.Config) *SweeperService {
	return &SweeperService{
		bookings: bookings,
		notifier: notifier,
		clk:      clk,
		cfg:      cfg,
	}
}

// SweepExpired forces confirmed/active bookings whose end_time plus grace
// period has passed into expired, releasing their slots. Each booking is
// processed in its own transaction; one failure never blocks the rest, and
// the conditional transition makes overlapping sweeper runs safe.
func (s *SweeperService) SweepExpired() (int, error) {
	now := s.clk.Now()
	cutoff := now.Add(-s.cfg.GracePeriod)

	expirable, err := s.bookings.FindExpirable(cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeper: failed to list expirable bookings: %w", err)
	}
	if len(expirable) == 0 {
		return 0, nil
	}

	count := 0
	for _, b := range expirable {
		moved, err := s.bookings.ExpireBooking(b.ID, now)
		if err != nil {
			log.Printf("Sweeper: could not expire booking %s: %v", b.Code, err)
			continue
		}
		if !moved {
			// Another run, or an exit, got there first.
			continue
		}
		count++
		b.Status = db.BookingExpired
		b.ExpiredAt = &now
		s.notifier.BookingStatusChanged(&b, "expired")
	}

	log.Printf("Sweeper: expired %d of %d overdue bookings", count, len(expirable))
	return count, nil
}

// CancelStalePending auto-cancels pending bookings whose payment never
// arrived, releasing their slots.
func (s *SweeperService) CancelStalePending() (int, error) {
	now := s.clk.Now()
	cutoff := now.Add(-s.cfg.PendingTimeout)

	stale, err := s.bookings.FindStalePending(cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeper: failed to list stale pending bookings: %w", err)
	}

	count := 0
	for _, b := range stale {
		moved, err := s.bookings.CancelBooking(b.ID, "payment timeout", "sweeper", now, db.PaymentUnpaid)
		if err != nil {
			log.Printf("Sweeper: could not cancel stale booking %s: %v", b.Code, err)
			continue
		}
		if moved {
			count++
		}
	}
	if count > 0 {
		log.Printf("Sweeper: cancelled %d stale pending bookings", count)
	}
	return count, nil
}

// ExpiringSoon lists confirmed/active bookings ending within the window.
// Read-only; consumed by the notification job.
func (s *SweeperService) ExpiringSoon(window time.Duration) ([]db.Booking, error) {
	now := s.clk.Now()
	return s.bookings.FindExpiringSoon(now, now.Add(window))
}

// Overdue lists bookings past end_time that are still inside the grace
// period. Read-only.
func (s *SweeperService) Overdue() ([]db.Booking, error) {
	now := s.clk.Now()
	return s.bookings.FindOverdue(now.Add(-s.cfg.GracePeriod), now)
}

// NotifyExpiringSoon pushes a reminder for bookings ending within the window.
func (s *SweeperService) NotifyExpiringSoon(window time.Duration) {
	bookings, err := s.ExpiringSoon(window)
	if err != nil {
		log.Printf("Sweeper: failed to list expiring bookings: %v", err)
		return
	}
	for _, b := range bookings {
		s.notifier.BookingStatusChanged(&b, "expiring soon")
	}
}
