package domain

import "encoding/json"

type SlotType string

const (
	SlotType2W SlotType = "2W"
	SlotType4W SlotType = "4W"
)

func (t SlotType) Valid() bool {
	return t == SlotType2W || t == SlotType4W
}

type ParkingSlot struct {
	SlotID   int64    `json:"slotId"`
	Location string   `json:"location"`
	Type     SlotType `json:"type"`
	Occupied bool     `json:"occupied"`
}

// UnmarshalJSON also accepts the "isOccupied" spelling some API builds emit.
func (s *ParkingSlot) UnmarshalJSON(data []byte) error {
	type plain ParkingSlot
	var aux struct {
		plain
		IsOccupied *bool `json:"isOccupied"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = ParkingSlot(aux.plain)
	if aux.IsOccupied != nil && !s.Occupied {
		s.Occupied = *aux.IsOccupied
	}
	return nil
}

type SlotDTO struct {
	Location string   `json:"location" binding:"required" validate:"required"`
	Type     SlotType `json:"type" binding:"required" validate:"required,oneof=2W 4W"`
	Occupied bool     `json:"occupied"`
}
