package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vpms_console/internal/app"
	"vpms_console/internal/config"
	"vpms_console/internal/domain"
	"vpms_console/internal/fakeapi"
	"vpms_console/internal/gateway"
	"vpms_console/internal/service"
)

const uiOrigin = "http://localhost:5173"

func init() {
	gin.SetMode(gin.TestMode)
}

type testConsole struct {
	*app.Console
	fake *fakeapi.Server
}

func newConsole(t *testing.T) *testConsole {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Env:              "test",
		AllowedOrigins:   []string{uiOrigin},
		APIBaseURL:       srv.URL + "/api",
		HTTPTimeout:      5 * time.Second,
		CacheTTL:         time.Second,
		PollInterval:     time.Hour,
		FastPollInterval: time.Hour,
		PaymentSettle:    20 * time.Millisecond,
	}
	c := app.Build(cfg, app.Options{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		c.Router.Stop()
		cancel()
	})
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return &testConsole{Console: c, fake: fake}
}

func (c *testConsole) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c.Engine.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (c *testConsole) login(t *testing.T, email, password string) map[string]any {
	t.Helper()
	code, body := c.do(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	if code != http.StatusOK {
		t.Fatalf("login %s = %d %v", email, code, body)
	}
	return body
}

// waitLoaded polls a view until its first fetch has landed.
func (c *testConsole) waitLoaded(t *testing.T, name domain.ViewName) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		code, snap := c.do(t, http.MethodGet, "/ui/views/"+string(name), nil)
		if code != http.StatusOK {
			t.Fatalf("view %s = %d %v", name, code, snap)
		}
		if loading, _ := snap["loading"].(bool); !loading {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("view %s never loaded", name)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func menuViews(body map[string]any) []string {
	items, _ := body["menu"].([]any)
	var out []string
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m["view"].(string))
		}
	}
	return out
}

func TestLoggedOutConsoleShowsLogin(t *testing.T) {
	c := newConsole(t)

	code, body := c.do(t, http.MethodGet, "/auth/me", nil)
	if code != http.StatusUnauthorized || body["view"] != string(domain.ViewLogin) {
		t.Fatalf("me = %d %v", code, body)
	}
	if code, _ := c.do(t, http.MethodGet, "/ui/menu", nil); code != http.StatusUnauthorized {
		t.Errorf("menu while logged out = %d", code)
	}
	if code, _ := c.do(t, http.MethodPost, "/actions/refresh", nil); code != http.StatusUnauthorized {
		t.Errorf("refresh while logged out = %d", code)
	}
}

func TestLoginLandsOnDashboard(t *testing.T) {
	c := newConsole(t)
	body := c.login(t, fakeapi.CustomerEmail, fakeapi.CustomerPassword)

	if body["view"] != string(domain.ViewDashboard) {
		t.Errorf("view after login = %v", body["view"])
	}
	menu := menuViews(body)
	if len(menu) != 6 || menu[len(menu)-1] != string(domain.ViewMyBills) {
		t.Errorf("customer menu = %v", menu)
	}

	snap := c.waitLoaded(t, domain.ViewDashboard)
	if snap["error"] != nil || snap["data"] == nil {
		t.Errorf("dashboard = %v", snap)
	}
}

func TestBadCredentials(t *testing.T) {
	c := newConsole(t)
	code, body := c.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    fakeapi.CustomerEmail,
		"password": "wrong",
	})
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d", code)
	}
	if body["error"] != "Login failed. Please check your credentials." {
		t.Errorf("error = %v", body["error"])
	}
	if c.Router.Current() != domain.ViewLogin {
		t.Errorf("current = %s", c.Router.Current())
	}
}

func TestCustomerCannotUseStaffActions(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.CustomerEmail, fakeapi.CustomerPassword)

	code, body := c.do(t, http.MethodPost, "/actions/slots", map[string]any{"location": "C1", "type": "4W"})
	if code != http.StatusForbidden || body["error"] != "Access denied" {
		t.Errorf("create slot = %d %v", code, body)
	}
	if code, _ := c.do(t, http.MethodPost, "/ui/navigate/users", nil); code != http.StatusForbidden {
		t.Errorf("navigate users = %d", code)
	}
	if code, _ := c.do(t, http.MethodGet, "/ui/views/billing", nil); code != http.StatusNotFound {
		t.Errorf("snapshot of unopened view = %d", code)
	}
}

func TestAdminNavigatesAndOpensPanels(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.AdminEmail, fakeapi.AdminPassword)

	code, body := c.do(t, http.MethodPost, "/ui/navigate/slot-map", nil)
	if code != http.StatusOK || body["view"] != string(domain.ViewSlotMap) {
		t.Fatalf("navigate = %d %v", code, body)
	}
	if code, _ := c.do(t, http.MethodPost, "/ui/panels/users", nil); code != http.StatusOK {
		t.Fatalf("open panel = %d", code)
	}
	snap := c.waitLoaded(t, domain.ViewUsers)
	data, _ := snap["data"].(map[string]any)
	if data == nil {
		t.Fatalf("users panel = %v", snap)
	}
	if code, _ := c.do(t, http.MethodDelete, "/ui/panels/users", nil); code != http.StatusNoContent {
		t.Errorf("close panel = %d", code)
	}
	if code, _ := c.do(t, http.MethodGet, "/ui/views/users", nil); code != http.StatusNotFound {
		t.Errorf("closed panel still answers: %d", code)
	}
}

func TestAvailableSlotsTypeFilter(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.CustomerEmail, fakeapi.CustomerPassword)

	code, body := c.do(t, http.MethodPost, "/ui/navigate/available-slots?type=2w", nil)
	if code != http.StatusOK {
		t.Fatalf("navigate = %d %v", code, body)
	}
	data, _ := c.waitLoaded(t, domain.ViewAvailableSlots)["data"].(map[string]any)
	slots, _ := data["slots"].([]any)
	if data["type"] != "2W" || len(slots) != 2 {
		t.Fatalf("data = %v", data)
	}
	for _, s := range slots {
		if s.(map[string]any)["type"] != "2W" {
			t.Errorf("slot %v slipped through the filter", s)
		}
	}

	if code, _ := c.do(t, http.MethodPost, "/ui/navigate/available-slots?type=3W", nil); code != http.StatusBadRequest {
		t.Errorf("unknown type = %d, want 400", code)
	}
	code, body = c.do(t, http.MethodPost, "/ui/navigate/available-slots?type=ALL", nil)
	if code != http.StatusOK {
		t.Fatalf("navigate all = %d %v", code, body)
	}
	data, _ = c.waitLoaded(t, domain.ViewAvailableSlots)["data"].(map[string]any)
	if slots, _ := data["slots"].([]any); len(slots) != 4 {
		t.Errorf("unfiltered slots = %v", data["slots"])
	}
}

func TestReserveOverHTTP(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.CustomerEmail, fakeapi.CustomerPassword)

	start := time.Now().Add(time.Hour).Truncate(time.Minute)
	req := service.ReserveRequest{
		ReservationDTO: domain.ReservationDTO{
			SlotID:        3,
			VehicleNumber: "ka01ab1234",
			StartTime:     domain.NewLocalTime(start),
			EndTime:       domain.NewLocalTime(start.Add(time.Hour)),
		},
		PaymentMethod: domain.PaymentCash,
	}

	code, quote := c.do(t, http.MethodPost, "/actions/reservations/quote", req.ReservationDTO)
	if code != http.StatusOK || quote["amount"] != float64(120) {
		t.Fatalf("quote = %d %v", code, quote)
	}

	code, body := c.do(t, http.MethodPost, "/actions/reservations", req)
	if code != http.StatusAccepted {
		t.Fatalf("reserve = %d %v", code, body)
	}
	pay, _ := body["payment"].(map[string]any)
	if pay == nil || pay["state"] != "SETTLING" {
		t.Errorf("payment = %v", body["payment"])
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		invs := c.fake.Invoices()
		if len(invs) == 1 && invs[0].Status == domain.InvoicePaid {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("invoice never paid: %+v", invs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRevokedTokenForcesLogin(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.StaffEmail, fakeapi.StaffPassword)
	c.waitLoaded(t, domain.ViewDashboard)

	c.fake.Revoke(c.Session.Token())
	code, _ := c.do(t, http.MethodPost, "/actions/slots/1/toggle", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("toggle with revoked token = %d", code)
	}

	deadline := time.Now().Add(time.Second)
	for c.Router.Current() != domain.ViewLogin {
		if time.Now().After(deadline) {
			t.Fatalf("current = %s, want login", c.Router.Current())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if code, _ := c.do(t, http.MethodGet, "/ui/current", nil); code != http.StatusUnauthorized {
		t.Errorf("ui after expiry = %d", code)
	}
}

func TestLogout(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.AdminEmail, fakeapi.AdminPassword)

	code, body := c.do(t, http.MethodPost, "/auth/logout", nil)
	if code != http.StatusOK || body["view"] != string(domain.ViewLogin) {
		t.Fatalf("logout = %d %v", code, body)
	}
	if c.Session.Authenticated() {
		t.Error("session survived logout")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	c := newConsole(t)
	if code, body := c.do(t, http.MethodGet, "/healthz", nil); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}
	c.do(t, http.MethodGet, "/auth/me", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "vpms_http_requests_total") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestNextSessionDoesNotSeeCachedData(t *testing.T) {
	c := newConsole(t)
	ctx := context.Background()

	c.login(t, fakeapi.AdminEmail, fakeapi.AdminPassword)
	users, err := c.Cache.Users(ctx)
	if err != nil || len(users) != 3 {
		t.Fatalf("admin users = %d, %v", len(users), err)
	}
	if code, _ := c.do(t, http.MethodPost, "/auth/logout", nil); code != http.StatusOK {
		t.Fatalf("logout = %d", code)
	}

	c.login(t, fakeapi.CustomerEmail, fakeapi.CustomerPassword)
	if _, err := c.Cache.Users(ctx); !gateway.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("customer users err = %v, want 403 from the API", err)
	}
}

func (c *testConsole) raw(method, path, origin, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	c.Engine.ServeHTTP(rec, req)
	return rec
}

func TestForeignOriginsAreRefused(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.AdminEmail, fakeapi.AdminPassword)
	const evil = "https://evil.example"

	pre := c.raw(http.MethodOptions, "/actions/slots/1", evil, "", "")
	if pre.Code != http.StatusForbidden || pre.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("foreign preflight = %d ACAO=%q", pre.Code, pre.Header().Get("Access-Control-Allow-Origin"))
	}

	rec := c.raw(http.MethodPost, "/actions/slots", evil, "text/plain", `{"location":"EVIL-1","type":"4W"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign form post = %d %s", rec.Code, rec.Body.String())
	}
	rec = c.raw(http.MethodPost, "/actions/slots", evil, "application/json", `{"location":"EVIL-2","type":"4W"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign json post = %d", rec.Code)
	}
	if _, ok := c.fake.Slot(101); ok {
		t.Fatal("a foreign page created a slot")
	}

	ok := c.raw(http.MethodOptions, "/actions/slots/1", uiOrigin, "", "")
	if ok.Code != http.StatusNoContent || ok.Header().Get("Access-Control-Allow-Origin") != uiOrigin {
		t.Errorf("ui preflight = %d ACAO=%q", ok.Code, ok.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestStateChangesRequireJSON(t *testing.T) {
	c := newConsole(t)
	c.login(t, fakeapi.AdminEmail, fakeapi.AdminPassword)

	rec := c.raw(http.MethodPost, "/actions/slots", "", "text/plain", `{"location":"C1","type":"4W"}`)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("text/plain post = %d", rec.Code)
	}
	rec = c.raw(http.MethodPost, "/auth/logout", uiOrigin, "application/x-www-form-urlencoded", "")
	if rec.Code != http.StatusUnsupportedMediaType || !c.Session.Authenticated() {
		t.Errorf("form logout = %d, authenticated = %v", rec.Code, c.Session.Authenticated())
	}
	rec = c.raw(http.MethodPost, "/actions/slots", uiOrigin, "application/json; charset=utf-8", `{"location":"C1","type":"4W"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("ui json post = %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebSocketChecksOrigin(t *testing.T) {
	c := newConsole(t)
	srv := httptest.NewServer(c.Engine)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign upgrade: err=%v resp=%v", err, resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {uiOrigin}})
	if err != nil {
		t.Fatalf("ui upgrade: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for c.Sockets.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Services.RefreshAll(context.Background())
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var n struct {
		Channel string `json:"channel"`
	}
	if err := conn.ReadJSON(&n); err != nil || n.Channel != string(domain.ChannelRefreshAll) {
		t.Fatalf("relayed = %+v, %v", n, err)
	}
}
