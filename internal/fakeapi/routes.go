package fakeapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/guregu/null.v4"

	"vpms_console/internal/domain"
)

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.Use(s.track())

	api.POST("/user/login", s.login)
	api.POST("/user/register", s.register)

	authed := api.Group("")
	authed.Use(s.authenticate())
	staffOnly := requireRole(domain.RoleAdmin, domain.RoleStaff)
	adminOnly := requireRole(domain.RoleAdmin)

	authed.GET("/user/all", staffOnly, s.listUsers)
	authed.GET("/user/profile", s.profile)
	authed.GET("/user/email/:email", staffOnly, s.userByEmail)
	authed.GET("/user/:id", s.getUser)
	authed.PUT("/user/:id", s.updateUser)
	authed.DELETE("/user/:id", adminOnly, s.deleteUser)
	authed.PUT("/user/assign-role/:id", adminOnly, s.assignRole)

	authed.GET("/slots", s.listSlots)
	authed.GET("/slots/available", s.listAvailable)
	authed.GET("/slots/available/type/:type", s.listAvailable)
	authed.GET("/slots/:id", s.getSlot)
	authed.POST("/slots", staffOnly, s.createSlot)
	authed.PUT("/slots/:id", staffOnly, s.updateSlot)
	authed.PUT("/slots/slot/:id", staffOnly, s.updateOccupancy)
	authed.DELETE("/slots/:id", adminOnly, s.deleteSlot)

	authed.GET("/vehicle-log", s.listLogs)
	authed.GET("/vehicle-log/user/:id", s.userLogs)
	authed.GET("/vehicle-log/:id", s.getLog)
	authed.POST("/vehicle-log/entry", staffOnly, s.entry)
	authed.POST("/vehicle-log/exit", staffOnly, s.exit)
	authed.PUT("/vehicle-log/:id", staffOnly, s.updateLog)

	authed.GET("/reservations", s.listReservations)
	authed.GET("/reservations/user/:id", s.userReservations)
	authed.GET("/reservations/:id", s.getReservation)
	authed.POST("/reservations", s.createReservation)
	authed.POST("/reservations/trigger-completion", adminOnly, s.triggerCompletion)
	authed.PUT("/reservations/:id", s.updateReservation)
	authed.PUT("/reservations/:id/status", s.updateReservationStatus)
	authed.DELETE("/reservations/:id", s.cancelReservation)

	authed.GET("/billing", staffOnly, s.listInvoices)
	authed.GET("/billing/user/:id", s.userInvoices)
	authed.GET("/billing/:id", s.getInvoice)
	authed.POST("/billing", s.createInvoice)
	authed.POST("/billing/:id/pay", s.payInvoice)
	authed.POST("/billing/:id/cancel", staffOnly, s.cancelInvoice)
	return r
}

// --- users ---

func (s *Server) login(c *gin.Context) {
	var dto domain.LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, dto.Email) && bcrypt.CompareHashAndPassword(a.passwordHash, []byte(dto.Password)) == nil {
			c.JSON(http.StatusOK, gin.H{"token": s.sign(a.User, s.tokenTTL), "role": a.Role, "user": a.User})
			return
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
}

func (s *Server) register(c *gin.Context) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name, email and password are required"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, body.Email) {
			c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
			return
		}
	}
	a := &account{
		User:         domain.User{ID: s.id(), Name: body.Name, Email: body.Email, Role: domain.RoleCustomer},
		passwordHash: hash,
	}
	s.accounts = append(s.accounts, a)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": a.User})
}

func (s *Server) findAccount(id int64) *account {
	for _, a := range s.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		users = append(users, a.User)
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) profile(c *gin.Context) {
	caller := c.MustGet(callerKey).(domain.User)
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.findAccount(caller.ID).User)
}

func (s *Server) userByEmail(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, c.Param("email")) {
			c.JSON(http.StatusOK, a.User)
			return
		}
	}
	notFound(c, "User")
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAccount(id); a != nil {
		c.JSON(http.StatusOK, gin.H{"user": a.User})
		return
	}
	notFound(c, "User")
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	caller := c.MustGet(callerKey).(domain.User)
	if caller.Role != domain.RoleAdmin && caller.ID != id {
		c.JSON(http.StatusForbidden, gin.H{"message": "Access denied"})
		return
	}
	var dto domain.UpdateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAccount(id)
	if a == nil {
		notFound(c, "User")
		return
	}
	if dto.Name != "" {
		a.Name = dto.Name
	}
	if dto.Email != "" {
		a.Email = dto.Email
	}
	if dto.Password != "" {
		a.passwordHash, _ = bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.MinCost)
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated", "user": a.User})
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accounts {
		if a.ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
			return
		}
	}
	notFound(c, "User")
}

func (s *Server) assignRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	role := domain.Role(c.Query("role"))
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid role"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAccount(id)
	if a == nil {
		notFound(c, "User")
		return
	}
	a.Role = role
	c.JSON(http.StatusOK, gin.H{"message": "Role assigned", "user": a.User})
}

// --- slots ---

func (s *Server) listSlots(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"slots": s.slots})
}

func (s *Server) listAvailable(c *gin.Context) {
	t := domain.SlotType(c.Param("type"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.ParkingSlot{}
	for _, sl := range s.slots {
		if !sl.Occupied && (t == "" || sl.Type == t) {
			out = append(out, sl)
		}
	}
	c.JSON(http.StatusOK, gin.H{"slots": out})
}

func (s *Server) slotIndex(id int64) int {
	for i, sl := range s.slots {
		if sl.SlotID == id {
			return i
		}
	}
	return -1
}

func (s *Server) getSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.slotIndex(id); i >= 0 {
		c.JSON(http.StatusOK, gin.H{"slot": s.slots[i]})
		return
	}
	notFound(c, "Slot")
}

func (s *Server) createSlot(c *gin.Context) {
	var dto domain.SlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := domain.ParkingSlot{SlotID: s.id(), Location: dto.Location, Type: dto.Type, Occupied: dto.Occupied}
	s.slots = append(s.slots, slot)
	c.JSON(http.StatusCreated, gin.H{"message": "Slot created", "slot": slot})
}

func (s *Server) updateSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.SlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.slotIndex(id)
	if i < 0 {
		notFound(c, "Slot")
		return
	}
	s.slots[i].Location, s.slots[i].Type, s.slots[i].Occupied = dto.Location, dto.Type, dto.Occupied
	c.JSON(http.StatusOK, gin.H{"message": "Slot updated", "slot": s.slots[i]})
}

func (s *Server) updateOccupancy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Occupied bool `json:"occupied"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.slotIndex(id)
	if i < 0 {
		notFound(c, "Slot")
		return
	}
	s.slots[i].Occupied = body.Occupied
	c.JSON(http.StatusOK, gin.H{"message": "Slot updated", "slot": s.slots[i]})
}

func (s *Server) deleteSlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.slotIndex(id)
	if i < 0 {
		notFound(c, "Slot")
		return
	}
	s.slots = append(s.slots[:i], s.slots[i+1:]...)
	c.JSON(http.StatusOK, gin.H{"message": "Slot deleted"})
}

// --- vehicle logs ---

func (s *Server) listLogs(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"logs": s.logs, "count": len(s.logs)})
}

func (s *Server) userLogs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.VehicleLog{}
	for _, l := range s.logs {
		if l.UserID == id {
			out = append(out, l)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) logIndex(id int64) int {
	for i, l := range s.logs {
		if l.LogID == id {
			return i
		}
	}
	return -1
}

func (s *Server) getLog(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.logIndex(id); i >= 0 {
		c.JSON(http.StatusOK, s.logs[i])
		return
	}
	notFound(c, "Log")
}

func (s *Server) entry(c *gin.Context) {
	var dto domain.VehicleEntryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.slotIndex(dto.SlotID)
	if i < 0 {
		notFound(c, "Slot")
		return
	}
	if s.slots[i].Occupied {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Slot is already occupied"})
		return
	}
	s.slots[i].Occupied = true
	l := domain.VehicleLog{
		LogID:         s.id(),
		UserID:        dto.UserID,
		SlotID:        dto.SlotID,
		SlotType:      s.slots[i].Type,
		VehicleNumber: dto.VehicleNumber,
		EntryTime:     domain.NewLocalTime(s.now()),
	}
	s.logs = append(s.logs, l)
	c.JSON(http.StatusCreated, gin.H{"message": "Vehicle entry recorded", "log": l})
}

func (s *Server) exit(c *gin.Context) {
	var body struct {
		LogID int64 `json:"logId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.logIndex(body.LogID)
	if i < 0 {
		notFound(c, "Log")
		return
	}
	l := &s.logs[i]
	if l.ExitTime.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Exit already recorded for this log"})
		return
	}
	l.ExitTime = domain.NewLocalTime(s.now())
	if l.EntryTime.Valid {
		l.DurationMinutes = null.IntFrom(domain.DurationMinutes(l.EntryTime.Time, l.ExitTime.Time))
	}
	if si := s.slotIndex(l.SlotID); si >= 0 {
		s.slots[si].Occupied = false
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vehicle exit recorded", "log": *l})
}

func (s *Server) updateLog(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.VehicleLogUpdateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.logIndex(id)
	if i < 0 {
		notFound(c, "Log")
		return
	}
	l := &s.logs[i]
	if dto.VehicleNumber != "" {
		l.VehicleNumber = dto.VehicleNumber
	}
	if dto.SlotID != 0 {
		l.SlotID = dto.SlotID
	}
	if dto.EntryTime.Valid {
		l.EntryTime = dto.EntryTime
	}
	if dto.ExitTime.Valid {
		l.ExitTime = dto.ExitTime
	}
	c.JSON(http.StatusOK, gin.H{"message": "Log updated", "log": *l})
}

// --- reservations ---

func (s *Server) listReservations(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, append([]domain.Reservation{}, s.reservations...))
}

func (s *Server) userReservations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Reservation{}
	for _, r := range s.reservations {
		if r.UserID == id {
			out = append(out, r)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) reservationIndex(id int64) int {
	for i, r := range s.reservations {
		if r.ReservationID == id {
			return i
		}
	}
	return -1
}

// ownReservation resolves the :id reservation and refuses customers acting on
// someone else's booking. It must be called with s.mu held.
func (s *Server) ownReservation(c *gin.Context) (int, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return 0, false
	}
	i := s.reservationIndex(id)
	if i < 0 {
		notFound(c, "Reservation")
		return 0, false
	}
	caller := c.MustGet(callerKey).(domain.User)
	if caller.Role == domain.RoleCustomer && s.reservations[i].UserID != caller.ID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Access denied"})
		return 0, false
	}
	return i, true
}

func (s *Server) getReservation(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.ownReservation(c); ok {
		c.JSON(http.StatusOK, gin.H{"reservation": s.reservations[i]})
	}
}

// fillReservation copies dto onto r, deriving the slot type and duration.
func (s *Server) fillReservation(r *domain.Reservation, dto domain.ReservationDTO) bool {
	si := s.slotIndex(dto.SlotID)
	if si < 0 {
		return false
	}
	r.UserID, r.SlotID, r.VehicleNumber = dto.UserID, dto.SlotID, dto.VehicleNumber
	r.StartTime, r.EndTime = dto.StartTime, dto.EndTime
	r.Type = s.slots[si].Type
	r.DurationMinutes = null.Int{}
	if r.StartTime.Valid && r.EndTime.Valid {
		r.DurationMinutes = null.IntFrom(domain.DurationMinutes(r.StartTime.Time, r.EndTime.Time))
	}
	return true
}

func (s *Server) createReservation(c *gin.Context) {
	var dto domain.ReservationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	caller := c.MustGet(callerKey).(domain.User)
	if caller.Role == domain.RoleCustomer {
		dto.UserID = caller.ID
	}
	if dto.StartTime.Valid && dto.EndTime.Valid && !dto.EndTime.After(dto.StartTime.Time) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "End time must be after start time"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := domain.Reservation{ReservationID: s.id(), Status: domain.ReservationActive}
	if !s.fillReservation(&r, dto) {
		notFound(c, "Slot")
		return
	}
	s.reservations = append(s.reservations, r)
	c.JSON(http.StatusCreated, gin.H{"message": "Reservation created", "reservation": r})
}

func (s *Server) updateReservation(c *gin.Context) {
	var dto domain.ReservationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.ownReservation(c)
	if !ok {
		return
	}
	r := &s.reservations[i]
	if dto.UserID == 0 {
		dto.UserID = r.UserID
	}
	if !s.fillReservation(r, dto) {
		notFound(c, "Slot")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reservation updated", "reservation": *r})
}

func (s *Server) updateReservationStatus(c *gin.Context) {
	var body struct {
		Status domain.ReservationStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || !body.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid status"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.ownReservation(c)
	if !ok {
		return
	}
	s.reservations[i].Status = body.Status
	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "reservation": s.reservations[i]})
}

func (s *Server) cancelReservation(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.ownReservation(c)
	if !ok {
		return
	}
	if s.reservations[i].Status != domain.ReservationActive {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only active reservations can be cancelled"})
		return
	}
	s.reservations[i].Status = domain.ReservationCancelled
	c.JSON(http.StatusOK, gin.H{"message": "Reservation cancelled"})
}

func (s *Server) triggerCompletion(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for i := range s.reservations {
		r := &s.reservations[i]
		if r.Active() && r.EndTime.Valid && !r.EndTime.After(now) {
			r.Status = domain.ReservationCompleted
			n++
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Completed %d expired reservations", n)})
}

// --- billing ---

func billingOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"success": true, "message": message, "data": data})
}

func billingFail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func (s *Server) listInvoices(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	billingOK(c, http.StatusOK, "Invoices retrieved", append([]domain.Invoice{}, s.invoices...))
}

func (s *Server) userInvoices(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	caller := c.MustGet(callerKey).(domain.User)
	if caller.Role == domain.RoleCustomer && caller.ID != id {
		billingFail(c, http.StatusForbidden, "Access denied")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Invoice{}
	for _, inv := range s.invoices {
		if inv.UserID == id {
			out = append(out, inv)
		}
	}
	billingOK(c, http.StatusOK, "Invoices retrieved", out)
}

// ownInvoice resolves the :id invoice for the caller. It must be called with s.mu held.
func (s *Server) ownInvoice(c *gin.Context) (*domain.Invoice, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	for i := range s.invoices {
		if s.invoices[i].InvoiceID != id {
			continue
		}
		caller := c.MustGet(callerKey).(domain.User)
		if caller.Role == domain.RoleCustomer && s.invoices[i].UserID != caller.ID {
			billingFail(c, http.StatusForbidden, "Access denied")
			return nil, false
		}
		return &s.invoices[i], true
	}
	billingFail(c, http.StatusNotFound, "Invoice not found")
	return nil, false
}

func (s *Server) getInvoice(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.ownInvoice(c); ok {
		billingOK(c, http.StatusOK, "Invoice retrieved", *inv)
	}
}

func (s *Server) createInvoice(c *gin.Context) {
	var dto domain.CreateInvoiceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		billingFail(c, http.StatusBadRequest, err.Error())
		return
	}
	if dto.ReservationID.Valid == dto.LogID.Valid {
		billingFail(c, http.StatusBadRequest, "Exactly one of reservationId or logId is required")
		return
	}
	if !dto.PaymentMethod.Valid() {
		billingFail(c, http.StatusBadRequest, "Invalid payment method")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		minutes int64
		slotID  int64
		userID  = dto.UserID
	)
	if dto.ReservationID.Valid {
		i := s.reservationIndex(dto.ReservationID.Int64)
		if i < 0 {
			billingFail(c, http.StatusNotFound, "Reservation not found")
			return
		}
		r := s.reservations[i]
		minutes, slotID = r.Minutes(), r.SlotID
		if userID == 0 {
			userID = r.UserID
		}
	} else {
		i := s.logIndex(dto.LogID.Int64)
		if i < 0 {
			billingFail(c, http.StatusNotFound, "Vehicle log not found")
			return
		}
		l := s.logs[i]
		minutes, slotID = l.ParkedMinutes(s.now()), l.SlotID
		if l.DurationMinutes.Valid {
			minutes = l.DurationMinutes.Int64
		}
		if userID == 0 {
			userID = l.UserID
		}
	}
	t := dto.Type
	if !t.Valid() {
		if si := s.slotIndex(slotID); si >= 0 {
			t = s.slots[si].Type
		}
	}
	inv := domain.Invoice{
		InvoiceID:     s.id(),
		UserID:        userID,
		Amount:        domain.QuoteMinutes(t, minutes).Amount,
		PaymentMethod: dto.PaymentMethod,
		Status:        domain.InvoiceUnpaid,
		Timestamp:     domain.NewLocalTime(s.now()),
		Type:          t,
		ReservationID: dto.ReservationID,
		LogID:         dto.LogID,
	}
	s.invoices = append(s.invoices, inv)
	billingOK(c, http.StatusCreated, "Invoice created", inv)
}

func (s *Server) payInvoice(c *gin.Context) {
	var body struct {
		PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		billingFail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.ownInvoice(c)
	if !ok {
		return
	}
	switch inv.Status {
	case domain.InvoicePaid:
		billingFail(c, http.StatusBadRequest, "Invoice already paid")
		return
	case domain.InvoiceCancelled:
		billingFail(c, http.StatusBadRequest, "Cannot pay a cancelled invoice")
		return
	}
	if body.PaymentMethod.Valid() {
		inv.PaymentMethod = body.PaymentMethod
	}
	inv.Status = domain.InvoicePaid
	inv.Timestamp = domain.NewLocalTime(s.now())
	billingOK(c, http.StatusOK, "Payment successful", *inv)
}

func (s *Server) cancelInvoice(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.ownInvoice(c)
	if !ok {
		return
	}
	switch inv.Status {
	case domain.InvoicePaid:
		billingFail(c, http.StatusBadRequest, "Cannot cancel a paid invoice")
		return
	case domain.InvoiceCancelled:
		billingFail(c, http.StatusBadRequest, "Invoice already cancelled")
		return
	}
	inv.Status = domain.InvoiceCancelled
	billingOK(c, http.StatusOK, "Invoice cancelled", *inv)
}
