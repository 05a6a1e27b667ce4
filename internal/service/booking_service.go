package service

import (
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"parklot/internal/clock"
	"parklot/internal/config"
	"parklot/internal/db"
	apperrors "parklot/internal/errors"
)

// PaymentOutcome is the result reported by the payment provider.
type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentFailed    PaymentOutcome = "failed"
)

// BookingService drives the booking state machine:
//
//	pending -> confirmed -> active -> completed
//
// with cancelled reachable from pending/confirmed and expired from
// confirmed/active (the sweeper owns that transition). Terminal states are
// never left.
type BookingService struct {
	bookings BookingStore
	payments PaymentGateway
	notifier Notifier
	clk      clock.Clock
	cfg      *config.Config
}

func NewBookingService(bookings BookingStore, payments PaymentGateway, notifier Notifier, clk clock.Clock, cfg *config.Config) *BookingService {
	return &BookingService{
		bookings: bookings,
		payments: payments,
		notifier: notifier,
		clk:      clk,
		cfg:      cfg,
	}
}

func (s *BookingService) GetBooking(code string) (*db.Booking, error) {
	return s.bookings.GetByCode(code)
}

func (s *BookingService) GetHistory(code string) (*db.Booking, []db.SlotHistory, error) {
	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.bookings.HistoryForBooking(b.ID)
	if err != nil {
		return nil, nil, err
	}
	return b, history, nil
}

// ConfirmPayment applies an asynchronous payment outcome. The provider
// delivers webhooks at least once, so duplicate signals for a booking that has
// already moved are a no-op, not an error.
func (s *BookingService) ConfirmPayment(code string, outcome PaymentOutcome) error {
	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return err
	}
	now := s.clk.Now()

	if outcome == PaymentFailed {
		if b.Status != db.BookingPending {
			return nil
		}
		moved, err := s.bookings.CancelBooking(b.ID, "payment failed", "system", now, db.PaymentUnpaid)
		if err != nil {
			return fmt.Errorf("error cancelling booking %s after failed payment: %w", code, err)
		}
		if moved {
			b.Status = db.BookingCancelled
			s.notifier.BookingStatusChanged(b, "cancelled")
		}
		return nil
	}

	if b.Status != db.BookingPending {
		// Already confirmed (or beyond): duplicate delivery.
		return nil
	}
	moved, err := s.bookings.ConfirmBooking(b.ID, now)
	if err != nil {
		return fmt.Errorf("error confirming booking %s: %w", code, err)
	}
	if !moved {
		return nil
	}
	b.Status = db.BookingConfirmed
	b.PaymentStatus = db.PaymentPaid
	b.ConfirmedAt = &now
	s.notifier.BookingStatusChanged(b, "confirmed")
	return nil
}

// ConfirmPaymentBySession resolves the booking behind a checkout session and
// applies the outcome. Used by the webhook handler.
func (s *BookingService) ConfirmPaymentBySession(sessionID string, outcome PaymentOutcome) error {
	b, err := s.bookings.GetByStripeSessionID(sessionID)
	if err != nil {
		return err
	}
	return s.ConfirmPayment(b.Code, outcome)
}

// Cancel aborts a pending or confirmed booking and releases its slot. A paid
// booking is marked refund_pending; the refund itself completes
// asynchronously through the payment provider.
func (s *BookingService) Cancel(code, actor, reason string) error {
	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return err
	}
	now := s.clk.Now()

	switch b.Status {
	case db.BookingPending:
		// Unpaid; cancellable any time.
	case db.BookingConfirmed:
		if b.StartTime.Sub(now) <= s.cfg.CancellationDeadline {
			return apperrors.ErrCancellationWindowClosed
		}
	default:
		return apperrors.ErrNotCancellable
	}

	paymentStatus := b.PaymentStatus
	if b.PaymentStatus == db.PaymentPaid {
		paymentStatus = db.PaymentRefundPending
	}

	moved, err := s.bookings.CancelBooking(b.ID, reason, actor, now, paymentStatus)
	if err != nil {
		return fmt.Errorf("error cancelling booking %s: %w", code, err)
	}
	if !moved {
		return apperrors.ErrNotCancellable
	}

	if paymentStatus == db.PaymentRefundPending && b.StripeSessionID != "" {
		// Refund hand-off is outside the cancel transaction; completion
		// arrives later via the provider webhook.
		go func(sessionID, code string) {
			if err := s.payments.RefundBySessionID(sessionID); err != nil {
				log.Printf("Refund request failed for booking %s: %v", code, err)
			}
		}(b.StripeSessionID, b.Code)
	}

	b.Status = db.BookingCancelled
	b.PaymentStatus = paymentStatus
	s.notifier.BookingStatusChanged(b, "cancelled")
	return nil
}

// RecordEntry marks the vehicle as physically present: confirmed -> active.
func (s *BookingService) RecordEntry(code string) error {
	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return err
	}
	if b.Status != db.BookingConfirmed {
		return apperrors.ErrNotConfirmed
	}
	moved, err := s.bookings.ActivateBooking(b.ID, s.clk.Now())
	if err != nil {
		return fmt.Errorf("error recording entry for booking %s: %w", code, err)
	}
	if !moved {
		return apperrors.ErrNotConfirmed
	}
	return nil
}

// RecordExit completes an active booking and finalizes the charge. Overtime
// beyond the configured grace re-bills the actual duration, rounded up to the
// hour; the charge never drops below the original amount.
func (s *BookingService) RecordExit(code, actor string) (*db.Booking, error) {
	b, err := s.bookings.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if b.Status != db.BookingActive {
		return nil, apperrors.ErrNotActive
	}
	now := s.clk.Now()

	totalAmount := b.TotalAmount
	overtime := false
	if now.After(b.EndTime.Add(s.cfg.OvertimeGrace)) {
		overtime = true
		rebilled := BillableHours(now.Sub(b.StartTime)) * b.HourlyRate
		if rebilled > totalAmount {
			totalAmount = rebilled
		}
	}

	moved, err := s.bookings.CompleteBooking(b.ID, now, totalAmount, actor, overtime)
	if err != nil {
		return nil, fmt.Errorf("error recording exit for booking %s: %w", code, err)
	}
	if !moved {
		return nil, apperrors.ErrNotActive
	}

	b.Status = db.BookingCompleted
	b.TotalAmount = totalAmount
	b.ExitedAt = &now
	s.notifier.BookingStatusChanged(b, "completed")
	return b, nil
}

// MarkRefundedBySession records that the provider finished an asynchronous
// refund.
func (s *BookingService) MarkRefundedBySession(sessionID string) error {
	return s.bookings.MarkRefundedBySessionID(sessionID, s.clk.Now())
}

// SessionIDForPaymentIntent resolves the checkout session behind a payment
// intent, for webhook events that only carry the intent.
func (s *BookingService) SessionIDForPaymentIntent(paymentIntentID string) string {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: &paymentIntentID,
	}
	params.Limit = stripe.Int64(1)
	it := session.List(params)
	for it.Next() {
		sess := it.CheckoutSession()
		if sess != nil && sess.ID != "" {
			return sess.ID
		}
	}
	return ""
}
