package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"parklot/internal/service"
)

type AdminHandler struct {
	Admin   *service.AdminService
	Sweeper *service.SweeperService
}

func NewAdminHandler(admin *service.AdminService, sweeper *service.SweeperService) *AdminHandler {
	return &AdminHandler{Admin: admin, Sweeper: sweeper}
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	vehicleType := r.URL.Query().Get("vehicle_type")
	status := r.URL.Query().Get("status")
	bookings, err := h.Admin.ListBookings(date, vehicleType, status)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, bookings)
}

func (h *AdminHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.Atoi(mux.Vars(r)["location_id"])
	if err != nil {
		http.Error(w, "Invalid location ID", http.StatusBadRequest)
		return
	}
	slots, err := h.Admin.ListSlots(locationID)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, slots)
}

func (h *AdminHandler) SetSlotMaintenance(w http.ResponseWriter, r *http.Request) {
	slotID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid slot ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Maintenance bool `json:"maintenance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.Admin.SetSlotMaintenance(slotID, req.Maintenance); err != nil {
		http.Error(w, "Could not update slot", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"message": "Slot updated"})
}

func (h *AdminHandler) SlotHistory(w http.ResponseWriter, r *http.Request) {
	slotID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid slot ID", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.Admin.SlotHistory(slotID, limit)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, history)
}

// SweepExpired lets an operator trigger the expiration sweep outside the
// scheduled ticks.
func (h *AdminHandler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	count, err := h.Sweeper.SweepExpired()
	if err != nil {
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"expired": count})
}

func (h *AdminHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Sweeper.Overdue()
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, bookings)
}
