package repository

import (
	"database/sql"
	"fmt"
	"strconv"

	"parklot/internal/db"
)

type AdminRepository struct {
	DB *sql.DB
}

func NewAdminRepository(database *sql.DB) *AdminRepository {
	return &AdminRepository{DB: database}
}

// ListBookings returns bookings filtered by day, vehicle type and status.
// Empty filters are skipped.
func (r *AdminRepository) ListBookings(date, vehicleType, status string) ([]db.Booking, error) {
	query := `
	SELECT ` + bookingColumns + `
	FROM bookings
	WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if date != "" {
		query += " AND DATE(start_time) = $" + strconv.Itoa(idx)
		args = append(args, date)
		idx++
	}
	if vehicleType != "" {
		query += " AND vehicle_type = $" + strconv.Itoa(idx)
		args = append(args, vehicleType)
		idx++
	}
	if status != "" {
		query += " AND status = $" + strconv.Itoa(idx)
		args = append(args, status)
		idx++
	}
	query += " ORDER BY start_time DESC"

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating bookings: %w", err)
	}
	return bookings, nil
}

// SlotHistory returns the audit trail for a slot, newest first.
func (r *AdminRepository) SlotHistory(slotID, limit int) ([]db.SlotHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Query(`
		SELECT id, booking_id, slot_id, action, actor, COALESCE(reason, ''), created_at
		FROM slot_history
		WHERE slot_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, slotID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying history for slot %d: %w", slotID, err)
	}
	defer rows.Close()

	var entries []db.SlotHistory
	for rows.Next() {
		var h db.SlotHistory
		if err := rows.Scan(&h.ID, &h.BookingID, &h.SlotID, &h.Action, &h.Actor, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning history entry: %w", err)
		}
		entries = append(entries, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating history: %w", err)
	}
	return entries, nil
}
