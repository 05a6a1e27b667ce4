package entities

import (
	"time"

	"parklot/internal/db"
)

type BookingResponse struct {
	Code               string     `json:"code"`
	UserID             string     `json:"user_id"`
	UserName           string     `json:"user_name"`
	UserEmail          string     `json:"user_email"`
	UserPhone          string     `json:"user_phone"`
	VehicleID          string     `json:"vehicle_id"`
	VehicleType        string     `json:"vehicle_type"`
	SlotID             int        `json:"slot_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	HourlyRate         int        `json:"hourly_rate"`
	TotalAmount        int        `json:"total_amount"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`
	EnteredAt          *time.Time `json:"entered_at,omitempty"`
	ExitedAt           *time.Time `json:"exited_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewBookingResponse maps a stored booking to its API shape.
func NewBookingResponse(b *db.Booking) *BookingResponse {
	return &BookingResponse{
		Code:               b.Code,
		UserID:             b.UserID,
		UserName:           b.UserName,
		UserEmail:          b.UserEmail,
		UserPhone:          b.UserPhone,
		VehicleID:          b.VehicleID,
		VehicleType:        b.VehicleType,
		SlotID:             b.SlotID,
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		HourlyRate:         b.HourlyRate,
		TotalAmount:        b.TotalAmount,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CancellationReason: b.CancellationReason,
		ExpiredAt:          b.ExpiredAt,
		EnteredAt:          b.EnteredAt,
		ExitedAt:           b.ExitedAt,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

// ReserveResponse is returned by a successful reservation: the pending booking
// plus the payment checkout hand-off.
type ReserveResponse struct {
	Booking     *BookingResponse `json:"booking"`
	CheckoutURL string           `json:"checkout_url,omitempty"`
	SessionID   string           `json:"session_id,omitempty"`
}
