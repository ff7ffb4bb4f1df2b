package domain

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotReserved  SlotStatus = "RESERVED"
	SlotOccupied  SlotStatus = "OCCUPIED"
)

// ResolveSlotStatus derives the display status of a slot. Physical signals
// outrank holds: the occupied flag, then a log without exit time, then an
// ACTIVE reservation. Inactive entries in either list are ignored.
func ResolveSlotStatus(slot ParkingSlot, reservations []Reservation, logs []VehicleLog) SlotStatus {
	if slot.Occupied {
		return SlotOccupied
	}
	for _, l := range logs {
		if l.SlotID == slot.SlotID && l.Active() {
			return SlotOccupied
		}
	}
	for _, r := range reservations {
		if r.SlotID == slot.SlotID && r.Active() {
			return SlotReserved
		}
	}
	return SlotAvailable
}

// IsSlotAvailable reports whether a slot may be offered for booking or entry.
func IsSlotAvailable(slot ParkingSlot, reservations []Reservation, logs []VehicleLog) bool {
	return ResolveSlotStatus(slot, reservations, logs) == SlotAvailable
}

// AvailableSlots filters slots down to bookable ones, optionally by type ("" for all).
func AvailableSlots(slots []ParkingSlot, reservations []Reservation, logs []VehicleLog, t SlotType) []ParkingSlot {
	reservations = ActiveReservations(reservations)
	logs = ActiveLogs(logs)
	out := make([]ParkingSlot, 0, len(slots))
	for _, s := range slots {
		if t != "" && s.Type != t {
			continue
		}
		if IsSlotAvailable(s, reservations, logs) {
			out = append(out, s)
		}
	}
	return out
}

type SlotWithStatus struct {
	ParkingSlot
	Status SlotStatus `json:"status"`
}

func ResolveAll(slots []ParkingSlot, reservations []Reservation, logs []VehicleLog) []SlotWithStatus {
	reservations = ActiveReservations(reservations)
	logs = ActiveLogs(logs)
	out := make([]SlotWithStatus, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotWithStatus{ParkingSlot: s, Status: ResolveSlotStatus(s, reservations, logs)})
	}
	return out
}

type SlotSummary struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Reserved    int `json:"reserved"`
	Occupied    int `json:"occupied"`
	TwoWheeler  int `json:"twoWheeler"`
	FourWheeler int `json:"fourWheeler"`
}

func SummarizeSlots(resolved []SlotWithStatus) SlotSummary {
	s := SlotSummary{Total: len(resolved)}
	for _, r := range resolved {
		switch r.Status {
		case SlotAvailable:
			s.Available++
		case SlotReserved:
			s.Reserved++
		case SlotOccupied:
			s.Occupied++
		}
		switch r.Type {
		case SlotType2W:
			s.TwoWheeler++
		case SlotType4W:
			s.FourWheeler++
		}
	}
	return s
}
