package repository

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"parklot/internal/db"
	apperrors "parklot/internal/errors"
)

type BookingRepository struct {
	DB *sql.DB
}

func NewBookingRepository(database *sql.DB) *BookingRepository {
	return &BookingRepository{DB: database}
}

const bookingColumns = `
	id, code, user_id, user_name, user_email, user_phone, vehicle_id,
	vehicle_type, slot_id, start_time, end_time,
	status, payment_status, hourly_rate, total_amount, stripe_session_id,
	confirmed_at, cancelled_at, COALESCE(cancellation_reason, ''), expired_at,
	entered_at, exited_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*db.Booking, error) {
	var b db.Booking
	err := row.Scan(
		&b.ID, &b.Code, &b.UserID, &b.UserName, &b.UserEmail, &b.UserPhone,
		&b.VehicleID, &b.VehicleType, &b.SlotID,
		&b.StartTime, &b.EndTime, &b.Status, &b.PaymentStatus, &b.HourlyRate,
		&b.TotalAmount, &b.StripeSessionID, &b.ConfirmedAt, &b.CancelledAt,
		&b.CancellationReason, &b.ExpiredAt, &b.EnteredAt, &b.ExitedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) GetByCode(code string) (*db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE code = $1`
	b, err := scanBooking(r.DB.QueryRow(query, code))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, fmt.Errorf("error querying booking %s: %w", code, err)
	}
	return b, nil
}

func (r *BookingRepository) GetByStripeSessionID(sessionID string) (*db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE stripe_session_id = $1`
	b, err := scanBooking(r.DB.QueryRow(query, sessionID))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, fmt.Errorf("error querying booking by session %s: %w", sessionID, err)
	}
	return b, nil
}

// HasNonTerminalForVehicle reports whether the vehicle already holds a booking
// in a non-terminal state. One live reservation per vehicle.
func (r *BookingRepository) HasNonTerminalForVehicle(vehicleID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM bookings WHERE vehicle_id = $1 AND status = ANY($2)`
	err := r.DB.QueryRow(query, vehicleID, pq.Array(db.NonTerminalStatuses)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error counting bookings for vehicle %s: %w", vehicleID, err)
	}
	return count > 0, nil
}

// FindOverlapping returns the non-terminal bookings on a slot whose interval
// intersects [startTime, endTime). Half-open intervals: overlap iff
// existing.start < endTime AND existing.end > startTime.
func (r *BookingRepository) FindOverlapping(slotID int, startTime, endTime time.Time) ([]db.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE slot_id = $1
		  AND status = ANY($2)
		  AND start_time < $4
		  AND end_time > $3
		ORDER BY start_time`
	rows, err := r.DB.Query(query, slotID, pq.Array(db.NonTerminalStatuses), startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("error querying overlapping bookings for slot %d: %w", slotID, err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning overlapping booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating overlapping bookings: %w", err)
	}
	return bookings, nil
}

// ClaimSlot atomically checks the slot for overlap and inserts the booking.
// The slot row is locked for the duration of the transaction, so two
// concurrent claims for the same slot serialize; the loser sees the winner's
// booking in the overlap check and gets ErrSlotConflict. The one-live-booking
// per vehicle rule is re-checked here too, and the insert is backed by the
// partial unique index bookings_one_live_per_vehicle on bookings(vehicle_id)
// WHERE status IN ('pending','confirmed','active'), so two claims for the
// same vehicle racing on different slots cannot both commit.
func (r *BookingRepository) ClaimSlot(b *db.Booking, actor string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting claim transaction: %w", err)
	}
	defer tx.Rollback()

	var slotStatus db.SlotStatus
	err = tx.QueryRow(
		`SELECT status FROM slots WHERE id = $1 AND active = true FOR UPDATE`,
		b.SlotID,
	).Scan(&slotStatus)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return apperrors.ErrSlotConflict
		}
		return fmt.Errorf("error locking slot %d: %w", b.SlotID, err)
	}
	if slotStatus == db.SlotMaintenance {
		return apperrors.ErrSlotConflict
	}

	var dupes int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM bookings WHERE vehicle_id = $1 AND status = ANY($2)`,
		b.VehicleID, pq.Array(db.NonTerminalStatuses),
	).Scan(&dupes)
	if err != nil {
		return fmt.Errorf("error checking live bookings for vehicle %s: %w", b.VehicleID, err)
	}
	if dupes > 0 {
		return apperrors.ErrDuplicateActiveBooking
	}

	var conflicts int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM bookings
		WHERE slot_id = $1
		  AND status = ANY($2)
		  AND start_time < $4
		  AND end_time > $3`,
		b.SlotID, pq.Array(db.NonTerminalStatuses), b.StartTime, b.EndTime,
	).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("error checking overlap for slot %d: %w", b.SlotID, err)
	}
	if conflicts > 0 {
		return apperrors.ErrSlotConflict
	}

	err = tx.QueryRow(`
		INSERT INTO bookings
		(code, user_id, user_name, user_email, user_phone, vehicle_id,
		 vehicle_type, slot_id, start_time, end_time,
		 status, payment_status, hourly_rate, total_amount, stripe_session_id,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING id, created_at, updated_at`,
		b.Code, b.UserID, b.UserName, b.UserEmail, b.UserPhone, b.VehicleID,
		b.VehicleType, b.SlotID, b.StartTime,
		b.EndTime, b.Status, b.PaymentStatus, b.HourlyRate, b.TotalAmount,
		b.StripeSessionID, b.CreatedAt,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "bookings_one_live_per_vehicle" {
			return apperrors.ErrDuplicateActiveBooking
		}
		return fmt.Errorf("error inserting booking %s: %w", b.Code, err)
	}

	// Only an available slot picks up the reserved marker; a slot occupied by
	// an active booking keeps its status until that booking transitions.
	_, err = tx.Exec(
		`UPDATE slots SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		db.SlotReserved, b.CreatedAt, b.SlotID, db.SlotAvailable,
	)
	if err != nil {
		return fmt.Errorf("error marking slot %d reserved: %w", b.SlotID, err)
	}

	if err := appendHistory(tx, b.ID, b.SlotID, db.HistoryAssigned, actor, "", b.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing claim for slot %d: %w", b.SlotID, err)
	}
	return nil
}

// SetStripeSession attaches the payment provider's checkout session to a
// freshly created booking.
func (r *BookingRepository) SetStripeSession(bookingID int, sessionID string, at time.Time) error {
	_, err := r.DB.Exec(
		`UPDATE bookings SET stripe_session_id = $1, updated_at = $2 WHERE id = $3`,
		sessionID, at, bookingID,
	)
	if err != nil {
		return fmt.Errorf("error storing session for booking %d: %w", bookingID, err)
	}
	return nil
}

// ConfirmBooking moves a pending booking to confirmed and marks it paid.
// Returns false when the booking was not pending, which callers treat as an
// idempotent duplicate signal.
func (r *BookingRepository) ConfirmBooking(bookingID int, at time.Time) (bool, error) {
	result, err := r.DB.Exec(`
		UPDATE bookings
		SET status = $1, payment_status = $2, confirmed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`,
		db.BookingConfirmed, db.PaymentPaid, at, bookingID, db.BookingPending,
	)
	if err != nil {
		return false, fmt.Errorf("error confirming booking %d: %w", bookingID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected for booking %d: %w", bookingID, err)
	}
	return rows > 0, nil
}

// CancelBooking moves a pending or confirmed booking to cancelled and releases
// its slot in the same transaction. Returns false when the booking had already
// left a cancellable state.
func (r *BookingRepository) CancelBooking(bookingID int, reason, actor string, at time.Time, paymentStatus db.PaymentStatus) (bool, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return false, fmt.Errorf("error starting cancel transaction: %w", err)
	}
	defer tx.Rollback()

	var slotID int
	err = tx.QueryRow(`
		UPDATE bookings
		SET status = $1, payment_status = $2, cancelled_at = $3,
		    cancellation_reason = $4, updated_at = $3
		WHERE id = $5 AND status = ANY($6)
		RETURNING slot_id`,
		db.BookingCancelled, paymentStatus, at, reason, bookingID,
		pq.Array([]string{string(db.BookingPending), string(db.BookingConfirmed)}),
	).Scan(&slotID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error cancelling booking %d: %w", bookingID, err)
	}

	// A cancellable booking never entered, so it does not own an occupied slot.
	if err := releaseSlot(tx, slotID, at, true); err != nil {
		return false, err
	}
	if err := appendHistory(tx, bookingID, slotID, db.HistoryReleased, actor, reason, at); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing cancel for booking %d: %w", bookingID, err)
	}
	return true, nil
}

// ActivateBooking records vehicle entry: confirmed -> active, slot -> occupied.
func (r *BookingRepository) ActivateBooking(bookingID int, at time.Time) (bool, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return false, fmt.Errorf("error starting entry transaction: %w", err)
	}
	defer tx.Rollback()

	var slotID int
	err = tx.QueryRow(`
		UPDATE bookings
		SET status = $1, entered_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING slot_id`,
		db.BookingActive, at, bookingID, db.BookingConfirmed,
	).Scan(&slotID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error activating booking %d: %w", bookingID, err)
	}

	_, err = tx.Exec(
		`UPDATE slots SET status = $1, updated_at = $2 WHERE id = $3`,
		db.SlotOccupied, at, slotID,
	)
	if err != nil {
		return false, fmt.Errorf("error marking slot %d occupied: %w", slotID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing entry for booking %d: %w", bookingID, err)
	}
	return true, nil
}

// CompleteBooking records vehicle exit: active -> completed, slot -> available.
// totalAmount is the finalized charge; overtime adds an "extended" history row.
func (r *BookingRepository) CompleteBooking(bookingID int, at time.Time, totalAmount int, actor string, overtime bool) (bool, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return false, fmt.Errorf("error starting exit transaction: %w", err)
	}
	defer tx.Rollback()

	var slotID int
	err = tx.QueryRow(`
		UPDATE bookings
		SET status = $1, total_amount = $2, exited_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING slot_id`,
		db.BookingCompleted, totalAmount, at, bookingID, db.BookingActive,
	).Scan(&slotID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error completing booking %d: %w", bookingID, err)
	}

	if overtime {
		if err := appendHistory(tx, bookingID, slotID, db.HistoryExtended, actor, "overtime", at); err != nil {
			return false, err
		}
	}
	if err := releaseSlot(tx, slotID, at, false); err != nil {
		return false, err
	}
	if err := appendHistory(tx, bookingID, slotID, db.HistoryReleased, actor, "exit", at); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing exit for booking %d: %w", bookingID, err)
	}
	return true, nil
}

// ExpireBooking forces a confirmed or active booking to expired. The status
// condition makes it safe for overlapping sweeper runs: a booking already
// moved by one run is silently skipped by the other.
func (r *BookingRepository) ExpireBooking(bookingID int, at time.Time) (bool, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return false, fmt.Errorf("error starting expire transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the row first to learn the pre-expiry status: only an active
	// booking owns its slot's occupied marker.
	var slotID int
	var prev db.BookingStatus
	err = tx.QueryRow(`
		SELECT slot_id, status FROM bookings
		WHERE id = $1 AND status = ANY($2)
		FOR UPDATE`,
		bookingID,
		pq.Array([]string{string(db.BookingConfirmed), string(db.BookingActive)}),
	).Scan(&slotID, &prev)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error expiring booking %d: %w", bookingID, err)
	}

	_, err = tx.Exec(`
		UPDATE bookings
		SET status = $1, expired_at = $2, updated_at = $2
		WHERE id = $3`,
		db.BookingExpired, at, bookingID,
	)
	if err != nil {
		return false, fmt.Errorf("error expiring booking %d: %w", bookingID, err)
	}

	if err := releaseSlot(tx, slotID, at, prev != db.BookingActive); err != nil {
		return false, err
	}
	if err := appendHistory(tx, bookingID, slotID, db.HistoryReleased, "sweeper", "expired", at); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing expire for booking %d: %w", bookingID, err)
	}
	return true, nil
}

// FindExpirable returns confirmed or active bookings whose end_time passed the
// given cutoff (now minus grace period).
func (r *BookingRepository) FindExpirable(cutoff time.Time) ([]db.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = ANY($1) AND end_time < $2
		ORDER BY end_time`
	return r.queryBookings(query,
		pq.Array([]string{string(db.BookingConfirmed), string(db.BookingActive)}), cutoff)
}

// FindExpiringSoon returns confirmed or active bookings ending inside
// [from, to). Read-only view for the notifier.
func (r *BookingRepository) FindExpiringSoon(from, to time.Time) ([]db.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = ANY($1) AND end_time >= $2 AND end_time < $3
		ORDER BY end_time`
	return r.queryBookings(query,
		pq.Array([]string{string(db.BookingConfirmed), string(db.BookingActive)}), from, to)
}

// FindOverdue returns bookings past end_time but still inside the grace
// period, i.e. not yet claimable by the sweeper. The window is
// [from, to) = [now - grace, now).
func (r *BookingRepository) FindOverdue(from, to time.Time) ([]db.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = ANY($1) AND end_time >= $2 AND end_time < $3
		ORDER BY end_time`
	return r.queryBookings(query,
		pq.Array([]string{string(db.BookingConfirmed), string(db.BookingActive)}), from, to)
}

// FindStalePending returns pending bookings created before the cutoff, for the
// pending-timeout auto-cancel job.
func (r *BookingRepository) FindStalePending(cutoff time.Time) ([]db.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`
	return r.queryBookings(query, db.BookingPending, cutoff)
}

func (r *BookingRepository) queryBookings(query string, args ...interface{}) ([]db.Booking, error) {
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

// MarkRefundedBySessionID records an asynchronous refund completion reported
// by the payment provider.
func (r *BookingRepository) MarkRefundedBySessionID(sessionID string, at time.Time) error {
	_, err := r.DB.Exec(`
		UPDATE bookings
		SET payment_status = $1, updated_at = $2
		WHERE stripe_session_id = $3 AND payment_status = $4`,
		db.PaymentRefunded, at, sessionID, db.PaymentRefundPending,
	)
	if err != nil {
		return fmt.Errorf("error marking refund for session %s: %w", sessionID, err)
	}
	return nil
}

// HistoryForBooking returns the append-only audit trail for a booking.
func (r *BookingRepository) HistoryForBooking(bookingID int) ([]db.SlotHistory, error) {
	query := `
		SELECT id, booking_id, slot_id, action, actor, COALESCE(reason, ''), created_at
		FROM slot_history
		WHERE booking_id = $1
		ORDER BY created_at`
	rows, err := r.DB.Query(query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("error querying history for booking %d: %w", bookingID, err)
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

// releaseSlot returns a slot to the pool unless an admin put it in maintenance.
// keepOccupied is set when the released booking never entered, so an occupied
// status belongs to a different, still active booking and must survive.
func releaseSlot(tx *sql.Tx, slotID int, at time.Time, keepOccupied bool) error {
	query := `UPDATE slots SET status = $1, updated_at = $2 WHERE id = $3 AND status != $4`
	args := []interface{}{db.SlotAvailable, at, slotID, db.SlotMaintenance}
	if keepOccupied {
		query += ` AND status != $5`
		args = append(args, db.SlotOccupied)
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("error releasing slot %d: %w", slotID, err)
	}
	return nil
}

func appendHistory(tx *sql.Tx, bookingID, slotID int, action db.HistoryAction, actor, reason string, at time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO slot_history (booking_id, slot_id, action, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		bookingID, slotID, action, actor, reason, at,
	)
	if err != nil {
		return fmt.Errorf("error appending slot history for booking %d: %w", bookingID, err)
	}
	return nil
}
