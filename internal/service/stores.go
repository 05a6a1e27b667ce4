package service

import (
	"time"

	"parklot/internal/db"
)

// SlotStore is the slot persistence surface the engine depends on.
type SlotStore interface {
	CandidateSlots(locationID int, vehicleType, order string) ([]db.Slot, error)
	HourlyRate(locationID int, vehicleType string) (int, error)
}

// BookingStore is the booking persistence surface. Every method that changes
// slot occupancy runs booking, slot and history updates in one transaction.
type BookingStore interface {
	ClaimSlot(b *db.Booking, actor string) error
	SetStripeSession(bookingID int, sessionID string, at time.Time) error
	GetByCode(code string) (*db.Booking, error)
	GetByStripeSessionID(sessionID string) (*db.Booking, error)
	HasNonTerminalForVehicle(vehicleID string) (bool, error)
	FindOverlapping(slotID int, startTime, endTime time.Time) ([]db.Booking, error)
	ConfirmBooking(bookingID int, at time.Time) (bool, error)
	CancelBooking(bookingID int, reason, actor string, at time.Time, paymentStatus db.PaymentStatus) (bool, error)
	ActivateBooking(bookingID int, at time.Time) (bool, error)
	CompleteBooking(bookingID int, at time.Time, totalAmount int, actor string, overtime bool) (bool, error)
	ExpireBooking(bookingID int, at time.Time) (bool, error)
	FindExpirable(cutoff time.Time) ([]db.Booking, error)
	FindExpiringSoon(from, to time.Time) ([]db.Booking, error)
	FindOverdue(from, to time.Time) ([]db.Booking, error)
	FindStalePending(cutoff time.Time) ([]db.Booking, error)
	MarkRefundedBySessionID(sessionID string, at time.Time) error
	HistoryForBooking(bookingID int) ([]db.SlotHistory, error)
}

// PaymentGateway is the external payment provider boundary.
type PaymentGateway interface {
	InitiateCheckout(bookingCode, customerEmail string, amount int64, currency string) (checkoutURL, sessionID string, err error)
	RefundBySessionID(sessionID string) error
}

// Notifier delivers user-facing messages. Implementations are fire-and-forget;
// a notification failure never blocks a lifecycle transition.
type Notifier interface {
	BookingStatusChanged(b *db.Booking, status string)
}
