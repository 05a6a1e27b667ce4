package repository

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"parklot/internal/config"
	"parklot/internal/db"
)

type SlotRepository struct {
	DB *sql.DB
}

func NewSlotRepository(database *sql.DB) *SlotRepository {
	return &SlotRepository{DB: database}
}

// CandidateSlots returns the active slots at a location compatible with the
// vehicle type, in the order the engine should try to claim them. Slots in
// maintenance are filtered out up front; occupancy is decided by the overlap
// check inside the claim transaction, not by the cached status.
func (r *SlotRepository) CandidateSlots(locationID int, vehicleType, order string) ([]db.Slot, error) {
	query := `
		SELECT s.id, s.location_id, s.slot_number, s.status, s.active, s.created_at, s.updated_at
		FROM slots s
		JOIN slot_vehicle_types svt ON svt.slot_id = s.id
		WHERE s.location_id = $1
		  AND svt.vehicle_type = $2
		  AND s.active = true
		  AND s.status != 'maintenance'`

	if order == config.SlotOrderLRU {
		query += `
		ORDER BY (
			SELECT MAX(h.created_at) FROM slot_history h
			WHERE h.slot_id = s.id AND h.action = 'assigned'
		) ASC NULLS FIRST, s.slot_number ASC`
	} else {
		query += `
		ORDER BY s.slot_number ASC`
	}

	rows, err := r.DB.Query(query, locationID, vehicleType)
	if err != nil {
		return nil, fmt.Errorf("error querying candidate slots: %w", err)
	}
	defer rows.Close()

	var slots []db.Slot
	for rows.Next() {
		var s db.Slot
		if err := rows.Scan(&s.ID, &s.LocationID, &s.SlotNumber, &s.Status, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning candidate slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating candidate slots: %w", err)
	}
	return slots, nil
}

func (r *SlotRepository) GetByID(slotID int) (*db.Slot, error) {
	var s db.Slot
	err := r.DB.QueryRow(`
		SELECT id, location_id, slot_number, status, active, created_at, updated_at
		FROM slots WHERE id = $1`, slotID,
	).Scan(&s.ID, &s.LocationID, &s.SlotNumber, &s.Status, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("slot %d not found: %w", slotID, err)
		}
		return nil, fmt.Errorf("error querying slot %d: %w", slotID, err)
	}
	return &s, nil
}

// HourlyRate looks up the configured rate for a vehicle type at a location.
func (r *SlotRepository) HourlyRate(locationID int, vehicleType string) (int, error) {
	var rate int
	err := r.DB.QueryRow(
		`SELECT hourly_rate FROM rates WHERE location_id = $1 AND vehicle_type = $2`,
		locationID, vehicleType,
	).Scan(&rate)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no rate configured for vehicle type %q at location %d", vehicleType, locationID)
		}
		return 0, fmt.Errorf("error querying hourly rate: %w", err)
	}
	return rate, nil
}

// SetMaintenance toggles a slot in or out of maintenance. Leaving maintenance
// returns the slot to available; the sweeper and lifecycle repair the cached
// status on the next transition if a booking still holds the interval.
func (r *SlotRepository) SetMaintenance(slotID int, on bool, at time.Time) error {
	newStatus := db.SlotAvailable
	if on {
		newStatus = db.SlotMaintenance
	}
	result, err := r.DB.Exec(
		`UPDATE slots SET status = $1, updated_at = $2 WHERE id = $3`,
		newStatus, at, slotID,
	)
	if err != nil {
		return fmt.Errorf("error updating maintenance for slot %d: %w", slotID, err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("slot %d not found", slotID)
	}
	return nil
}

// ListByLocation returns all slots at a location with their compatible vehicle
// types, for the admin surface.
func (r *SlotRepository) ListByLocation(locationID int) ([]db.Slot, error) {
	rows, err := r.DB.Query(`
		SELECT s.id, s.location_id, s.slot_number, s.status, s.active, s.created_at, s.updated_at,
		       COALESCE(array_agg(svt.vehicle_type) FILTER (WHERE svt.vehicle_type IS NOT NULL), '{}')
		FROM slots s
		LEFT JOIN slot_vehicle_types svt ON svt.slot_id = s.id
		WHERE s.location_id = $1
		GROUP BY s.id
		ORDER BY s.slot_number`, locationID)
	if err != nil {
		return nil, fmt.Errorf("error querying slots for location %d: %w", locationID, err)
	}
	defer rows.Close()

	var slots []db.Slot
	for rows.Next() {
		var s db.Slot
		var types []string
		if err := rows.Scan(&s.ID, &s.LocationID, &s.SlotNumber, &s.Status, &s.Active, &s.CreatedAt, &s.UpdatedAt, pq.Array(&types)); err != nil {
			return nil, fmt.Errorf("error scanning slot: %w", err)
		}
		s.VehicleTypes = types
		slots = append(slots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating slots: %w", err)
	}
	return slots, nil
}
