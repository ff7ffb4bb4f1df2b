package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type VehicleLog struct {
	LogID           int64     `json:"logId"`
	UserID          int64     `json:"userId"`
	SlotID          int64     `json:"slotId"`
	SlotType        SlotType  `json:"slotType"`
	VehicleNumber   string    `json:"vehicleNumber"`
	EntryTime       LocalTime `json:"entryTime"`
	ExitTime        LocalTime `json:"exitTime"`
	DurationMinutes null.Int  `json:"durationMinutes"`
}

// Active logs belong to vehicles still parked.
func (l VehicleLog) Active() bool {
	return !l.ExitTime.Valid
}

// ParkedMinutes is the billed duration for a completed log, or the time parked so far.
func (l VehicleLog) ParkedMinutes(now time.Time) int64 {
	if !l.EntryTime.Valid {
		return 0
	}
	if l.ExitTime.Valid {
		return DurationMinutes(l.EntryTime.Time, l.ExitTime.Time)
	}
	return DurationMinutes(l.EntryTime.Time, now)
}

type VehicleEntryDTO struct {
	VehicleNumber string `json:"vehicleNumber" binding:"required" validate:"required"`
	UserID        int64  `json:"userId" binding:"required" validate:"required"`
	SlotID        int64  `json:"slotId" binding:"required" validate:"required"`
}

type VehicleLogStats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Completed   int `json:"completed"`
	TwoWheeler  int `json:"twoWheeler"`
	FourWheeler int `json:"fourWheeler"`
}

func SummarizeLogs(list []VehicleLog) VehicleLogStats {
	s := VehicleLogStats{Total: len(list)}
	for _, l := range list {
		if l.Active() {
			s.Active++
		} else {
			s.Completed++
		}
		switch l.SlotType {
		case SlotType2W:
			s.TwoWheeler++
		case SlotType4W:
			s.FourWheeler++
		}
	}
	return s
}

func ActiveLogs(list []VehicleLog) []VehicleLog {
	out := make([]VehicleLog, 0, len(list))
	for _, l := range list {
		if l.Active() {
			out = append(out, l)
		}
	}
	return out
}

// VehicleLogUpdateDTO corrects a recorded log; zero fields are left unchanged.
type VehicleLogUpdateDTO struct {
	VehicleNumber string    `json:"vehicleNumber,omitempty"`
	SlotID        int64     `json:"slotId,omitempty"`
	EntryTime     LocalTime `json:"entryTime"`
	ExitTime      LocalTime `json:"exitTime"`
}
