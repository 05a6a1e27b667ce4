package service

import (
	"parklot/internal/clock"
	"parklot/internal/db"
	"parklot/internal/repository"
)

type AdminService struct {
	adminRepo *repository.AdminRepository
	slotRepo  *repository.SlotRepository
	clk       clock.Clock
}

func NewAdminService(adminRepo *repository.AdminRepository, slotRepo *repository.SlotRepository, clk clock.Clock) *AdminService {
	return &AdminService{adminRepo: adminRepo, slotRepo: slotRepo, clk: clk}
}

func (s *AdminService) ListBookings(date, vehicleType, status string) ([]db.Booking, error) {
	return s.adminRepo.ListBookings(date, vehicleType, status)
}

func (s *AdminService) ListSlots(locationID int) ([]db.Slot, error) {
	return s.slotRepo.ListByLocation(locationID)
}

func (s *AdminService) SetSlotMaintenance(slotID int, on bool) error {
	return s.slotRepo.SetMaintenance(slotID, on, s.clk.Now())
}

func (s *AdminService) SlotHistory(slotID, limit int) ([]db.SlotHistory, error) {
	return s.adminRepo.SlotHistory(slotID, limit)
}
