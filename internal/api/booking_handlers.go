package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/gorilla/mux"

	"parklot/internal/entities"
	apperrors "parklot/internal/errors"
	"parklot/internal/service"
)

type BookingHandler struct {
	Reservations *service.ReservationService
	Bookings     *service.BookingService
}

func NewBookingHandler(reservations *service.ReservationService, bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{Reservations: reservations, Bookings: bookings}
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req entities.AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	resp, err := h.Reservations.CheckAvailability(&req)
	if err != nil {
		http.Error(w, "Error checking availability", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req entities.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	resp, err := h.Reservations.Reserve(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, resp)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	b, err := h.Bookings.GetBooking(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entities.NewBookingResponse(b))
}

func (h *BookingHandler) GetBookingHistory(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	b, history, err := h.Bookings.GetHistory(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"booking": entities.NewBookingResponse(b),
		"history": history,
	})
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if req.Actor == "" {
		req.Actor = "user"
	}
	if err := h.Bookings.Cancel(code, req.Actor, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"message": "Booking cancelled"})
}

func (h *BookingHandler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := h.Bookings.RecordEntry(code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"message": "Entry recorded"})
}

func (h *BookingHandler) RecordExit(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	b, err := h.Bookings.RecordExit(code, "user")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entities.NewBookingResponse(b))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.StatusFor(err)
	payload := map[string]string{"error": err.Error()}
	var domainErr *apperrors.Error
	if stderrors.As(err, &domainErr) {
		payload["code"] = domainErr.Code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
