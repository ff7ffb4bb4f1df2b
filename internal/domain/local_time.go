package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LocalLayout is the zone-less date-time format used by the remote API.
const LocalLayout = "2006-01-02T15:04:05"

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// LocalTime is a nullable timestamp that accepts both RFC 3339 and zone-less
// local date-times. Zone-less values are interpreted in time.Local.
type LocalTime struct {
	time.Time
	Valid bool
}

func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{Time: t, Valid: true}
}

func ParseLocalTime(s string) (LocalTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LocalTime{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewLocalTime(t.In(time.Local)), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return NewLocalTime(t), nil
		}
	}
	return LocalTime{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.In(time.Local).Format(LocalLayout))
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = LocalTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
