// Package fakeapi is an in-memory stand-in for the parking REST API, used by
// tests and by `vpms-console demo-api` for local runs. It mimics the real
// service's envelopes and status codes.
package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"vpms_console/internal/domain"
)

const (
	AdminEmail       = "admin@vpm.com"
	AdminPassword    = "admin123"
	StaffEmail       = "staff@vpm.com"
	StaffPassword    = "staff123"
	CustomerEmail    = "customer@vpm.com"
	CustomerPassword = "customer123"
)

type account struct {
	domain.User
	passwordHash []byte
}

type Server struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time

	accounts     []*account
	slots        []domain.ParkingSlot
	reservations []domain.Reservation
	logs         []domain.VehicleLog
	invoices     []domain.Invoice
	nextID       int64

	revoked map[string]bool
	hits    map[string]int
	failing map[string]int

	engine *gin.Engine
}

// New builds a server seeded with one account per role and four slots.
func New() *Server {
	s := &Server{
		secret:   []byte("fake-api-secret"),
		tokenTTL: time.Hour,
		now:      time.Now,
		nextID:   100,
		revoked:  make(map[string]bool),
		hits:     make(map[string]int),
		failing:  make(map[string]int),
	}
	s.addAccount(1, "Admin", AdminEmail, AdminPassword, domain.RoleAdmin)
	s.addAccount(2, "Staff", StaffEmail, StaffPassword, domain.RoleStaff)
	s.addAccount(3, "Customer", CustomerEmail, CustomerPassword, domain.RoleCustomer)
	s.slots = []domain.ParkingSlot{
		{SlotID: 1, Location: "A1", Type: domain.SlotType2W},
		{SlotID: 2, Location: "A2", Type: domain.SlotType2W},
		{SlotID: 3, Location: "B1", Type: domain.SlotType4W},
		{SlotID: 4, Location: "B2", Type: domain.SlotType4W},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) addAccount(id int64, name, email, password string, role domain.Role) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.accounts = append(s.accounts, &account{
		User:         domain.User{ID: id, Name: name, Email: email, Role: role},
		passwordHash: hash,
	})
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// --- test controls ---

// Revoke makes the API reject token from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	s.revoked[token] = true
	s.mu.Unlock()
}

// Hits counts requests by "METHOD /route/:param".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// FailNext makes the next n requests to route answer 500.
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	s.failing[route] = n
	s.mu.Unlock()
}

// IssueToken signs a token for email valid for ttl (negative for an expired one).
func (s *Server) IssueToken(email string, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return s.sign(a.User, ttl)
		}
	}
	return ""
}

func (s *Server) AddSlot(slot domain.ParkingSlot) {
	s.mu.Lock()
	s.slots = append(s.slots, slot)
	s.mu.Unlock()
}

func (s *Server) AddReservation(r domain.Reservation) {
	s.mu.Lock()
	if r.ReservationID == 0 {
		r.ReservationID = s.id()
	}
	s.reservations = append(s.reservations, r)
	s.mu.Unlock()
}

func (s *Server) AddLog(l domain.VehicleLog) {
	s.mu.Lock()
	if l.LogID == 0 {
		l.LogID = s.id()
	}
	s.logs = append(s.logs, l)
	s.mu.Unlock()
}

func (s *Server) AddInvoice(inv domain.Invoice) {
	s.mu.Lock()
	if inv.InvoiceID == 0 {
		inv.InvoiceID = s.id()
	}
	s.invoices = append(s.invoices, inv)
	s.mu.Unlock()
}

func (s *Server) Slot(id int64) (domain.ParkingSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.SlotID == id {
			return sl, true
		}
	}
	return domain.ParkingSlot{}, false
}

func (s *Server) Invoices() []domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Invoice(nil), s.invoices...)
}

func (s *Server) Reservations() []domain.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Reservation(nil), s.reservations...)
}

// --- auth ---

func (s *Server) sign(u domain.User, ttl time.Duration) string {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(u.ID, 10),
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
		"role":  string(u.Role),
		"email": u.Email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return token
}

var errBadToken = errors.New("invalid or expired token")

func (s *Server) verify(raw string) (*account, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errBadToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, errBadToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, errBadToken
	}
	if s.revoked[raw] {
		return nil, errBadToken
	}
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errBadToken
}

const callerKey = "caller"

func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()
		s.mu.Lock()
		s.hits[route]++
		fail := s.failing[route] > 0
		if fail {
			s.failing[route]--
		}
		s.mu.Unlock()
		if fail {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}
		c.Next()
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := strings.Fields(c.GetHeader("Authorization"))
		if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing authorization header"})
			return
		}
		s.mu.Lock()
		a, err := s.verify(fields[1])
		s.mu.Unlock()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		c.Set(callerKey, a.User)
		c.Next()
	}
}

func requireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := c.MustGet(callerKey).(domain.User)
		for _, r := range roles {
			if u.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Access denied"})
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return 0, false
	}
	return id, true
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"message": what + " not found"})
}
