package entities

type BookingEmailData struct {
	UserName           string
	BookingCode        string
	VehicleID          string
	SlotNumber         string
	StartTimeFormatted string
	EndTimeFormatted   string
	Status             string
	CurrentYear        int
}
