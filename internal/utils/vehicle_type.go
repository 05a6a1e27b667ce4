package utils

import "strings"

var vehicleTypes = map[string]bool{
	"car":        true,
	"suv":        true,
	"motorcycle": true,
	"microbus":   true,
	"truck":      true,
}

func NormalizeVehicleType(vehicleType string) string {
	return strings.ToLower(strings.TrimSpace(vehicleType))
}

func ValidVehicleType(vehicleType string) bool {
	return vehicleTypes[vehicleType]
}

// SharedSpaceType maps a vehicle type to the slot pool it draws from.
// SUVs park in car slots; everything else has its own pool.
func SharedSpaceType(vehicleType string) string {
	if vehicleType == "suv" {
		return "car"
	}
	return vehicleType
}
