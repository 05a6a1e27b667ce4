package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parklot/internal/db"
)

func TestSweepExpiredPastGrace(t *testing.T) {
	env := newTestEnv(t)
	code := reserveOne(t, env, "DHK-1111") // 2h out, 1h long
	require.NoError(t, env.bookings.ConfirmPayment(code, PaymentSucceeded))

	// Vehicle never shows up. Jump past end + grace.
	env.clk.Advance(3*time.Hour + env.cfg.GracePeriod + time.Minute)

	count, err := env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	b, err := env.bookings.GetBooking(code)
	require.NoError(t, err)
	assert.Equal(t, db.BookingExpired, b.Status)
	require.NotNil(t, b.ExpiredAt)
	assert.Equal(t, db.SlotAvailable, env.store.slotStatus(b.SlotID))
}

func TestSweepSkipsWithinGrace(t *testing.T) {
	env := newTestEnv(t)
	code := reserveOne(t, env, "DHK-1111")
	require.NoError(t, env.bookings.ConfirmPayment(code, PaymentSucceeded))

	// Just past end_time but still inside the grace period.
	env.clk.Advance(3*time.Hour + env.cfg.GracePeriod - time.Minute)

	count, err := env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	b, _ := env.bookings.GetBooking(code)
	assert.Equal(t, db.BookingConfirmed, b.Status)
}

func TestSweepExpiresActiveOverstay(t *testing.T) {
	env := newTestEnv(t)
	code := reserveOne(t, env, "DHK-1111")
	require.NoError(t, env.bookings.ConfirmPayment(code, PaymentSucceeded))
	env.clk.Advance(2 * time.Hour)
	require.NoError(t, env.bookings.RecordEntry(code))

	// Vehicle entered but never checked out.
	env.clk.Advance(time.Hour + env.cfg.GracePeriod + time.Minute)

	count, err := env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	b, _ := env.bookings.GetBooking(code)
	assert.Equal(t, db.BookingExpired, b.Status)
	assert.Equal(t, db.SlotAvailable, env.store.slotStatus(b.SlotID))
}

func TestSweepSecondRunIsNoop(t *testing.T) {
	env := newTestEnv(t)
	code := reserveOne(t, env, "DHK-1111")
	require.NoError(t, env.bookings.ConfirmPayment(code, PaymentSucceeded))
	env.clk.Advance(4 * time.Hour)

	count, err := env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	// One "confirmed" and one "expired" notification, nothing from the rerun.
	assert.Equal(t, 2, env.notifier.count())
}

func TestSweepPartialFailureIsolation(t *testing.T) {
	env := newTestEnv(t)
	code1 := reserveOne(t, env, "DHK-1111")
	code2 := reserveOne(t, env, "DHK-2222")
	require.NoError(t, env.bookings.ConfirmPayment(code1, PaymentSucceeded))
	require.NoError(t, env.bookings.ConfirmPayment(code2, PaymentSucceeded))
	env.clk.Advance(4 * time.Hour)

	b1, err := env.bookings.GetBooking(code1)
	require.NoError(t, err)
	env.store.expireErrFor[b1.ID] = assert.AnError

	// One booking failing must not stop the rest of the sweep.
	count, err := env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	b2, _ := env.bookings.GetBooking(code2)
	assert.Equal(t, db.BookingExpired, b2.Status)

	// The failed one is picked up once the fault clears.
	delete(env.store.expireErrFor, b1.ID)
	count, err = env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSlotReclaimableAfterSweep(t *testing.T) {
	env := newTestEnv(t)
	delete(env.store.slots, 2) // single car slot
	code := reserveOne(t, env, "DHK-1111")
	require.NoError(t, env.bookings.ConfirmPayment(code, PaymentSucceeded))
	env.clk.Advance(4 * time.Hour)

	_, err := env.sweeper.SweepExpired()
	require.NoError(t, err)

	// The freed slot is immediately claimable again.
	start := env.clk.Now().Add(time.Hour)
	_, err = env.reservations.Reserve(reserveReq("DHK-2222", start, start.Add(time.Hour)))
	assert.NoError(t, err)
}

func TestCancelStalePending(t *testing.T) {
	env := newTestEnv(t)
	code := reserveOne(t, env, "DHK-1111")

	// Payment never completes.
	env.clk.Advance(env.cfg.PendingTimeout + time.Minute)

	count, err := env.sweeper.CancelStalePending()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	b, err := env.bookings.GetBooking(code)
	require.NoError(t, err)
	assert.Equal(t, db.BookingCancelled, b.Status)
	assert.Equal(t, db.SlotAvailable, env.store.slotStatus(b.SlotID))
}

func TestCancelStalePendingLeavesFreshOnes(t *testing.T) {
	env := newTestEnv(t)
	reserveOne(t, env, "DHK-1111")
	env.clk.Advance(env.cfg.PendingTimeout - time.Minute)

	count, err := env.sweeper.CancelStalePending()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestExpiringSoon(t *testing.T) {
	env := newTestEnv(t)
	code := reserveOne(t, env, "DHK-1111") // ends 3h out
	require.NoError(t, env.bookings.ConfirmPayment(code, PaymentSucceeded))

	soon, err := env.sweeper.ExpiringSoon(30 * time.Minute)
	require.NoError(t, err)
	assert.Empty(t, soon)

	env.clk.Advance(2*time.Hour + 45*time.Minute) // 15 minutes left
	soon, err = env.sweeper.ExpiringSoon(30 * time.Minute)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, code, soon[0].Code)
}

func TestOverdue(t *testing.T) {
	env := newTestEnv(t)
	code := reserveOne(t, env, "DHK-1111")
	require.NoError(t, env.bookings.ConfirmPayment(code, PaymentSucceeded))

	// Past end_time but inside grace: overdue lists it, the sweeper does not
	// touch it yet.
	env.clk.Advance(3*time.Hour + time.Minute)
	overdue, err := env.sweeper.Overdue()
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, code, overdue[0].Code)

	count, err := env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Past the grace period the booking leaves the overdue view; it now
	// belongs to the sweeper.
	env.clk.Advance(env.cfg.GracePeriod)
	overdue, err = env.sweeper.Overdue()
	require.NoError(t, err)
	assert.Empty(t, overdue)

	count, err = env.sweeper.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
