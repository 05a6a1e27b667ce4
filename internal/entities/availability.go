package entities

import "time"

type AvailabilityRequest struct {
	LocationID  int       `json:"location_id"`
	VehicleType string    `json:"vehicle_type"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type SlotAvailability struct {
	SlotID     int    `json:"slot_id"`
	SlotNumber string `json:"slot_number"`
	IsFree     bool   `json:"is_free"`
}

type AvailabilityResponse struct {
	RequestedStartTime time.Time          `json:"requested_start_time"`
	RequestedEndTime   time.Time          `json:"requested_end_time"`
	IsAvailable        bool               `json:"is_available"`
	FreeSlots          int                `json:"free_slots"`
	Slots              []SlotAvailability `json:"slots,omitempty"`
}
