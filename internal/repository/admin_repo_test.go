package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parklot/internal/db"
)

func newAdminRepo(t *testing.T) (*AdminRepository, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewAdminRepository(database), mock
}

func TestAdminListBookingsFilters(t *testing.T) {
	repo, mock := newAdminRepo(t)
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`AND DATE\(start_time\) = \$1 AND vehicle_type = \$2 AND status = \$3`).
		WithArgs("2026-06-01", "car", "confirmed").
		WillReturnRows(bookingRow(42, "abc-123", db.BookingConfirmed, start, start.Add(time.Hour)))

	bookings, err := repo.ListBookings("2026-06-01", "car", "confirmed")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "abc-123", bookings[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminListBookingsScanErrorSurfaces(t *testing.T) {
	repo, mock := newAdminRepo(t)

	// A malformed row must fail the call, not silently drop the booking.
	mock.ExpectQuery(`FROM bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("not-an-int"))

	_, err := repo.ListBookings("", "", "")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminSlotHistoryScanErrorSurfaces(t *testing.T) {
	repo, mock := newAdminRepo(t)

	mock.ExpectQuery(`FROM slot_history`).
		WithArgs(7, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("not-an-int"))

	_, err := repo.SlotHistory(7, 0)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
