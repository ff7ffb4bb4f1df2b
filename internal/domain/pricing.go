package domain

import (
	"math"
	"time"
)

// RatePerMinute is 1.00 for two-wheelers and 2.00 for everything else.
func RatePerMinute(t SlotType) float64 {
	if t == SlotType2W {
		return 1
	}
	return 2
}

// DurationMinutes rounds a window up to whole minutes. Empty or inverted windows are zero.
func DurationMinutes(start, end time.Time) int64 {
	if !end.After(start) {
		return 0
	}
	return int64(math.Ceil(end.Sub(start).Minutes()))
}

type Quote struct {
	Minutes       int64    `json:"minutes"`
	RatePerMinute float64  `json:"ratePerMinute"`
	Amount        float64  `json:"amount"`
	Type          SlotType `json:"type"`
}

func QuoteMinutes(t SlotType, minutes int64) Quote {
	rate := RatePerMinute(t)
	return Quote{Minutes: minutes, RatePerMinute: rate, Amount: float64(minutes) * rate, Type: t}
}

func QuoteWindow(t SlotType, start, end time.Time) Quote {
	return QuoteMinutes(t, DurationMinutes(start, end))
}
