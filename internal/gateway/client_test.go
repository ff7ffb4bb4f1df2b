package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vpms_console/internal/domain"
)

type stubCreds struct {
	mu      sync.Mutex
	token   string
	expired []string
}

func (s *stubCreds) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *stubCreds) Expire(_ context.Context, rejected string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, rejected)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *stubCreds) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL+"/", 5*time.Second, nil)
	creds := &stubCreds{token: "tok-1"}
	c.SetCredentials(creds)
	return c, creds
}

func TestBearerAndRequestID(t *testing.T) {
	var auth, reqID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		reqID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"slots":[{"slotId":1,"location":"A1","type":"2W","occupied":false}]}`))
	})

	slots, err := c.ListSlots(context.Background())
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 1 || slots[0].Location != "A1" {
		t.Fatalf("unexpected slots %+v", slots)
	}
	if auth != "Bearer tok-1" {
		t.Fatalf("expected bearer header, got %q", auth)
	}
	if reqID == "" {
		t.Fatal("expected a request id")
	}
}

func TestAvailableSlotsPath(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(`{"slots":[{"slotId":2,"location":"A2","type":"4W","occupied":false}]}`))
	})

	if _, err := c.ListAvailableSlots(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	slots, err := c.ListAvailableSlots(context.Background(), domain.SlotType4W)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || slots[0].Type != domain.SlotType4W {
		t.Fatalf("unexpected slots %+v", slots)
	}
	if len(paths) != 2 || !strings.HasSuffix(paths[0], "/slots/available") || !strings.HasSuffix(paths[1], "/slots/available/type/4W") {
		t.Fatalf("paths = %v", paths)
	}
}

func TestUnauthorizedExpiresSession(t *testing.T) {
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"token expired"}`))
	})

	_, err := c.ListInvoices(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if Message(err, "fallback") != "token expired" {
		t.Fatalf("expected server message, got %q", Message(err, "fallback"))
	}
	if len(creds.expired) != 1 || creds.expired[0] != "tok-1" {
		t.Fatalf("expected expire with rejected token, got %v", creds.expired)
	}
}

func TestLoginIsSentWithoutBearer(t *testing.T) {
	var auth string
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid credentials"}`))
	})

	_, err := c.Login(context.Background(), "a@b.c", "nope")
	if err == nil {
		t.Fatal("expected login failure")
	}
	if auth != "" {
		t.Fatalf("login must not carry the bearer, got %q", auth)
	}
	if len(creds.expired) != 1 || creds.expired[0] != "" {
		t.Fatalf("expected expire with empty rejected token, got %v", creds.expired)
	}
	if Message(err, "Login failed") != "Invalid credentials" {
		t.Fatalf("unexpected message %q", Message(err, "Login failed"))
	}
}

func TestEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"reservationId":1},{"reservationId":2}]`, 2},
		{"named", `{"reservations":[{"reservationId":1}]}`, 1},
		{"billing data", `{"success":true,"data":[{"reservationId":3}]}`, 1},
		{"null", `null`, 0},
		{"missing field", `{"count":0}`, 0},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(tc.body))
		})
		got, err := c.ListReservations(context.Background())
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got == nil || len(got) != tc.want {
			t.Fatalf("%s: expected %d items, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestSingleObjectEnvelopes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vehicle-log/entry":
			w.Write([]byte(`{"message":"ok","log":{"logId":9,"slotId":2}}`))
		case "/billing/4/pay":
			w.Write([]byte(`{"success":true,"message":"paid","data":{"invoiceId":4,"status":"PAID"}}`))
		case "/user/profile":
			w.Write([]byte(`{"id":3,"name":"Ana","email":"ana@x.io","role":"CUSTOMER"}`))
		}
	})
	ctx := context.Background()

	log, err := c.RecordEntry(ctx, domain.VehicleEntryDTO{VehicleNumber: "KA01", UserID: 3, SlotID: 2})
	if err != nil || log.LogID != 9 {
		t.Fatalf("entry: %+v %v", log, err)
	}
	inv, err := c.PayInvoice(ctx, 4, domain.PaymentCash)
	if err != nil || inv.Status != domain.InvoicePaid {
		t.Fatalf("pay: %+v %v", inv, err)
	}
	u, err := c.Profile(ctx)
	if err != nil || u.Role != domain.RoleCustomer {
		t.Fatalf("profile: %+v %v", u, err)
	}
}

func TestBillingFailureEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Invoice already paid"}`))
	})
	_, err := c.PayInvoice(context.Background(), 1, domain.PaymentCard)
	if err == nil || Message(err, "") != "Invoice already paid" {
		t.Fatalf("expected billing failure message, got %v", err)
	}
}

func TestServerErrorFallsBackToGenericMessage(t *testing.T) {
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.ListUsers(context.Background())
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("expected 500 api error, got %v", err)
	}
	if Message(err, "Failed to load users") != "Failed to load users" {
		t.Fatalf("unexpected message %q", Message(err, "Failed to load users"))
	}
	if len(creds.expired) != 0 {
		t.Fatal("only 401 may expire the session")
	}
}
