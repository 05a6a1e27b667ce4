package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVehicleType(t *testing.T) {
	assert.Equal(t, "car", NormalizeVehicleType("  Car "))
	assert.Equal(t, "suv", NormalizeVehicleType("SUV"))
}

func TestValidVehicleType(t *testing.T) {
	assert.True(t, ValidVehicleType("car"))
	assert.True(t, ValidVehicleType("motorcycle"))
	assert.False(t, ValidVehicleType("rickshaw"))
	assert.False(t, ValidVehicleType(""))
}

func TestSharedSpaceType(t *testing.T) {
	// SUVs park in car spaces.
	assert.Equal(t, "car", SharedSpaceType("suv"))
	assert.Equal(t, "car", SharedSpaceType("car"))
	assert.Equal(t, "truck", SharedSpaceType("truck"))
}
