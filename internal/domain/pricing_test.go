package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	lt, err := ParseLocalTime(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return lt.Time
}

func TestQuoteRates(t *testing.T) {
	start := mustParse(t, "2025-03-01T09:00:00")
	end := start.Add(30 * time.Minute)

	if q := QuoteWindow(SlotType2W, start, end); q.Minutes != 30 || q.Amount != 30 {
		t.Fatalf("2W quote: %+v", q)
	}
	if q := QuoteWindow(SlotType4W, start, end); q.Amount != 60 {
		t.Fatalf("4W quote: %+v", q)
	}
}

func TestDurationRoundsUp(t *testing.T) {
	start := mustParse(t, "2025-03-01T09:00:00")
	if got := DurationMinutes(start, start.Add(61*time.Second)); got != 2 {
		t.Fatalf("expected 2 minutes, got %d", got)
	}
	if got := DurationMinutes(start, start.Add(-time.Minute)); got != 0 {
		t.Fatalf("inverted window should be zero, got %d", got)
	}
}

func TestLocalTimeJSON(t *testing.T) {
	var r Reservation
	body := `{"reservationId":1,"startTime":"2025-03-01T09:00:00","endTime":"2025-03-01T09:30:00.123","status":"ACTIVE","durationMinutes":null}`
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.StartTime.Valid || !r.EndTime.Valid {
		t.Fatalf("times should be valid: %+v", r)
	}
	if r.DurationMinutes.Valid {
		t.Fatalf("duration should be null")
	}
	if r.Minutes() != 31 {
		t.Fatalf("expected 31 minutes from window, got %d", r.Minutes())
	}

	var l VehicleLog
	if err := json.Unmarshal([]byte(`{"logId":2,"entryTime":"2025-03-01T09:00:00Z","exitTime":null}`), &l); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	if !l.Active() {
		t.Fatalf("log without exit time must be active")
	}

	out, err := json.Marshal(r.StartTime)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2025-03-01T09:00:00"` {
		t.Fatalf("unexpected encoding %s", out)
	}
}

func TestSummarizeInvoices(t *testing.T) {
	s := SummarizeInvoices([]Invoice{
		{Amount: 30, Status: InvoicePaid},
		{Amount: 60, Status: InvoiceUnpaid},
		{Amount: 10, Status: InvoiceCancelled},
	})
	if s.Revenue != 30 || s.Outstanding != 60 || s.Cancelled != 1 || s.Total != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
