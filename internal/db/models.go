package db

import "time"

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotReserved    SlotStatus = "reserved"
	SlotOccupied    SlotStatus = "occupied"
	SlotMaintenance SlotStatus = "maintenance"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

// Terminal reports whether a booking in this status can never transition again.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingExpired
}

// NonTerminalStatuses are the statuses that block a slot interval.
var NonTerminalStatuses = []string{
	string(BookingPending),
	string(BookingConfirmed),
	string(BookingActive),
}

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
)

type HistoryAction string

const (
	HistoryAssigned HistoryAction = "assigned"
	HistoryReleased HistoryAction = "released"
	HistoryExtended HistoryAction = "extended"
)

type Slot struct {
	ID           int
	LocationID   int
	SlotNumber   string
	VehicleTypes []string
	Status       SlotStatus
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Booking struct {
	ID                 int
	Code               string
	UserID             string
	UserName           string
	UserEmail          string
	UserPhone          string
	VehicleID          string
	VehicleType        string
	SlotID             int
	StartTime          time.Time
	EndTime            time.Time
	Status             BookingStatus
	PaymentStatus      PaymentStatus
	HourlyRate         int
	TotalAmount        int
	StripeSessionID    string
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	ExpiredAt          *time.Time
	EnteredAt          *time.Time
	ExitedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SlotHistory is append-only; rows are never updated or deleted.
type SlotHistory struct {
	ID        int
	BookingID int
	SlotID    int
	Action    HistoryAction
	Actor     string
	Reason    string
	CreatedAt time.Time
}
