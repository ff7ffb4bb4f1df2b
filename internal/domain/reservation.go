package domain

import (
	"gopkg.in/guregu/null.v4"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationActive, ReservationCompleted, ReservationCancelled:
		return true
	}
	return false
}

// Terminal statuses are never edited again.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

type Reservation struct {
	ReservationID   int64             `json:"reservationId"`
	UserID          int64             `json:"userId"`
	SlotID          int64             `json:"slotId"`
	VehicleNumber   string            `json:"vehicleNumber"`
	StartTime       LocalTime         `json:"startTime"`
	EndTime         LocalTime         `json:"endTime"`
	DurationMinutes null.Int          `json:"durationMinutes"`
	Status          ReservationStatus `json:"status"`
	Type            SlotType          `json:"type"`
}

func (r Reservation) Active() bool {
	return r.Status == ReservationActive
}

// Minutes prefers the server-computed duration and falls back to the time window.
func (r Reservation) Minutes() int64 {
	if r.DurationMinutes.Valid {
		return r.DurationMinutes.Int64
	}
	if !r.StartTime.Valid || !r.EndTime.Valid {
		return 0
	}
	return DurationMinutes(r.StartTime.Time, r.EndTime.Time)
}

type ReservationDTO struct {
	UserID        int64     `json:"userId" validate:"required"`
	SlotID        int64     `json:"slotId" binding:"required" validate:"required"`
	VehicleNumber string    `json:"vehicleNumber" binding:"required" validate:"required"`
	StartTime     LocalTime `json:"startTime"`
	EndTime       LocalTime `json:"endTime"`
	Type          SlotType  `json:"type" validate:"omitempty,oneof=2W 4W"`
}

type ReservationStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

func SummarizeReservations(list []Reservation) ReservationStats {
	s := ReservationStats{Total: len(list)}
	for _, r := range list {
		switch r.Status {
		case ReservationActive:
			s.Active++
		case ReservationCompleted:
			s.Completed++
		case ReservationCancelled:
			s.Cancelled++
		}
	}
	return s
}

func ActiveReservations(list []Reservation) []Reservation {
	out := make([]Reservation, 0, len(list))
	for _, r := range list {
		if r.Active() {
			out = append(out, r)
		}
	}
	return out
}
