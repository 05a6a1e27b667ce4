package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"parklot/internal/db"
	apperrors "parklot/internal/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory SlotStore + BookingStore. The mutex stands in for
// the row locks the real Postgres store takes, so concurrent claims serialize
// the same way.
type fakeStore struct {
	mu       sync.Mutex
	slots    map[int]*db.Slot
	bookings map[int]*db.Booking
	history  []db.SlotHistory
	rates    map[string]int
	nextID   int

	expireErrFor map[int]error

	// vehicleCheckDelay widens the gap between the pre-claim vehicle check
	// and the claim itself, to exercise races on the per-vehicle rule.
	vehicleCheckDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:        make(map[int]*db.Slot),
		bookings:     make(map[int]*db.Booking),
		rates:        make(map[string]int),
		expireErrFor: make(map[int]error),
	}
}

func (f *fakeStore) addSlot(id, locationID int, number string, vehicleTypes ...string) {
	f.slots[id] = &db.Slot{
		ID:           id,
		LocationID:   locationID,
		SlotNumber:   number,
		VehicleTypes: vehicleTypes,
		Status:       db.SlotAvailable,
		Active:       true,
	}
}

func (f *fakeStore) setRate(locationID int, vehicleType string, rate int) {
	f.rates[fmt.Sprintf("%d:%s", locationID, vehicleType)] = rate
}

func (f *fakeStore) slotStatus(id int) db.SlotStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[id].Status
}

func (f *fakeStore) booking(id int) db.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.bookings[id]
}

func (f *fakeStore) liveCountForVehicle(vehicleID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, b := range f.bookings {
		if b.VehicleID == vehicleID && !b.Status.Terminal() {
			count++
		}
	}
	return count
}

func (f *fakeStore) CandidateSlots(locationID int, vehicleType, order string) ([]db.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Slot
	for _, s := range f.slots {
		if s.LocationID != locationID || !s.Active || s.Status == db.SlotMaintenance {
			continue
		}
		for _, vt := range s.VehicleTypes {
			if vt == vehicleType {
				out = append(out, *s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

func (f *fakeStore) HourlyRate(locationID int, vehicleType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rate, ok := f.rates[fmt.Sprintf("%d:%s", locationID, vehicleType)]
	if !ok {
		return 0, fmt.Errorf("no rate configured for %q at location %d", vehicleType, locationID)
	}
	return rate, nil
}

func overlaps(a, b *db.Booking) bool {
	return a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime)
}

func (f *fakeStore) ClaimSlot(b *db.Booking, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[b.SlotID]
	if !ok || !slot.Active || slot.Status == db.SlotMaintenance {
		return apperrors.ErrSlotConflict
	}
	for _, existing := range f.bookings {
		if existing.VehicleID == b.VehicleID && !existing.Status.Terminal() {
			return apperrors.ErrDuplicateActiveBooking
		}
	}
	for _, existing := range f.bookings {
		if existing.SlotID == b.SlotID && !existing.Status.Terminal() && overlaps(existing, b) {
			return apperrors.ErrSlotConflict
		}
	}
	f.nextID++
	b.ID = f.nextID
	stored := *b
	f.bookings[b.ID] = &stored
	if slot.Status == db.SlotAvailable {
		slot.Status = db.SlotReserved
	}
	f.history = append(f.history, db.SlotHistory{
		BookingID: b.ID, SlotID: b.SlotID, Action: db.HistoryAssigned, Actor: actor, CreatedAt: b.CreatedAt,
	})
	return nil
}

func (f *fakeStore) SetStripeSession(bookingID int, sessionID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[bookingID]; ok {
		b.StripeSessionID = sessionID
	}
	return nil
}

func (f *fakeStore) GetByCode(code string) (*db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Code == code {
			copied := *b
			return &copied, nil
		}
	}
	return nil, apperrors.ErrBookingNotFound
}

func (f *fakeStore) GetByStripeSessionID(sessionID string) (*db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.StripeSessionID == sessionID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, apperrors.ErrBookingNotFound
}

func (f *fakeStore) HasNonTerminalForVehicle(vehicleID string) (bool, error) {
	f.mu.Lock()
	found := false
	for _, b := range f.bookings {
		if b.VehicleID == vehicleID && !b.Status.Terminal() {
			found = true
			break
		}
	}
	f.mu.Unlock()
	time.Sleep(f.vehicleCheckDelay)
	return found, nil
}

func (f *fakeStore) FindOverlapping(slotID int, startTime, endTime time.Time) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	probe := &db.Booking{StartTime: startTime, EndTime: endTime}
	var out []db.Booking
	for _, b := range f.bookings {
		if b.SlotID == slotID && !b.Status.Terminal() && overlaps(b, probe) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) ConfirmBooking(bookingID int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.Status != db.BookingPending {
		return false, nil
	}
	b.Status = db.BookingConfirmed
	b.PaymentStatus = db.PaymentPaid
	b.ConfirmedAt = &at
	return true, nil
}

func (f *fakeStore) CancelBooking(bookingID int, reason, actor string, at time.Time, paymentStatus db.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || (b.Status != db.BookingPending && b.Status != db.BookingConfirmed) {
		return false, nil
	}
	b.Status = db.BookingCancelled
	b.PaymentStatus = paymentStatus
	b.CancelledAt = &at
	b.CancellationReason = reason
	f.releaseSlotLocked(b.SlotID, true)
	f.history = append(f.history, db.SlotHistory{
		BookingID: bookingID, SlotID: b.SlotID, Action: db.HistoryReleased, Actor: actor, Reason: reason, CreatedAt: at,
	})
	return true, nil
}

func (f *fakeStore) ActivateBooking(bookingID int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.Status != db.BookingConfirmed {
		return false, nil
	}
	b.Status = db.BookingActive
	b.EnteredAt = &at
	f.slots[b.SlotID].Status = db.SlotOccupied
	return true, nil
}

func (f *fakeStore) CompleteBooking(bookingID int, at time.Time, totalAmount int, actor string, overtime bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.Status != db.BookingActive {
		return false, nil
	}
	b.Status = db.BookingCompleted
	b.TotalAmount = totalAmount
	b.ExitedAt = &at
	if overtime {
		f.history = append(f.history, db.SlotHistory{
			BookingID: bookingID, SlotID: b.SlotID, Action: db.HistoryExtended, Actor: actor, Reason: "overtime", CreatedAt: at,
		})
	}
	f.releaseSlotLocked(b.SlotID, false)
	f.history = append(f.history, db.SlotHistory{
		BookingID: bookingID, SlotID: b.SlotID, Action: db.HistoryReleased, Actor: actor, Reason: "exit", CreatedAt: at,
	})
	return true, nil
}

func (f *fakeStore) ExpireBooking(bookingID int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.expireErrFor[bookingID]; ok {
		return false, err
	}
	b, ok := f.bookings[bookingID]
	if !ok || (b.Status != db.BookingConfirmed && b.Status != db.BookingActive) {
		return false, nil
	}
	wasActive := b.Status == db.BookingActive
	b.Status = db.BookingExpired
	b.ExpiredAt = &at
	f.releaseSlotLocked(b.SlotID, !wasActive)
	f.history = append(f.history, db.SlotHistory{
		BookingID: bookingID, SlotID: b.SlotID, Action: db.HistoryReleased, Actor: "sweeper", Reason: "expired", CreatedAt: at,
	})
	return true, nil
}

func (f *fakeStore) FindExpirable(cutoff time.Time) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Booking
	for _, b := range f.bookings {
		if (b.Status == db.BookingConfirmed || b.Status == db.BookingActive) && b.EndTime.Before(cutoff) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) FindExpiringSoon(from, to time.Time) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Booking
	for _, b := range f.bookings {
		if (b.Status == db.BookingConfirmed || b.Status == db.BookingActive) &&
			!b.EndTime.Before(from) && b.EndTime.Before(to) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) FindOverdue(from, to time.Time) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Booking
	for _, b := range f.bookings {
		if (b.Status == db.BookingConfirmed || b.Status == db.BookingActive) &&
			!b.EndTime.Before(from) && b.EndTime.Before(to) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) FindStalePending(cutoff time.Time) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Booking
	for _, b := range f.bookings {
		if b.Status == db.BookingPending && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkRefundedBySessionID(sessionID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.StripeSessionID == sessionID && b.PaymentStatus == db.PaymentRefundPending {
			b.PaymentStatus = db.PaymentRefunded
		}
	}
	return nil
}

func (f *fakeStore) HistoryForBooking(bookingID int) ([]db.SlotHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.SlotHistory
	for _, h := range f.history {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) releaseSlotLocked(slotID int, keepOccupied bool) {
	s, ok := f.slots[slotID]
	if !ok || s.Status == db.SlotMaintenance {
		return
	}
	if keepOccupied && s.Status == db.SlotOccupied {
		return
	}
	s.Status = db.SlotAvailable
}

type fakeGateway struct {
	mu       sync.Mutex
	initErr  error
	sessions int
	refunds  []string
}

func (g *fakeGateway) InitiateCheckout(bookingCode, customerEmail string, amount int64, currency string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return "", "", g.initErr
	}
	g.sessions++
	sessionID := fmt.Sprintf("cs_test_%d", g.sessions)
	return "https://checkout.test/" + sessionID, sessionID, nil
}

func (g *fakeGateway) RefundBySessionID(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, sessionID)
	return nil
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) BookingStatusChanged(b *db.Booking, status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, b.Code+":"+status)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
