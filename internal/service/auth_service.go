package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
	"vpms_console/internal/logger"
	"vpms_console/internal/session"
)

type AuthService struct {
	store  *session.Store
	api    *gateway.Client
	bus    *bus.Bus
	logger *zap.Logger
}

func NewAuthService(store *session.Store, api *gateway.Client, b *bus.Bus, l *zap.Logger) *AuthService {
	return &AuthService{store: store, api: api, bus: b, logger: logger.Named(l, "auth")}
}

func (s *AuthService) Login(ctx context.Context, dto domain.LoginDTO) (domain.Session, error) {
	dto.Email = strings.TrimSpace(dto.Email)
	if dto.Email == "" || dto.Password == "" {
		return domain.Session{}, invalid("email", "Please fill in all fields")
	}
	if err := validateStruct(dto); err != nil {
		return domain.Session{}, err
	}
	return s.store.Login(ctx, dto.Email, dto.Password)
}

func (s *AuthService) Register(ctx context.Context, dto domain.RegisterDTO) (domain.Session, error) {
	dto.Name = strings.TrimSpace(dto.Name)
	dto.Email = strings.TrimSpace(dto.Email)
	if err := validateStruct(dto); err != nil {
		return domain.Session{}, err
	}
	return s.store.Register(ctx, dto.Name, dto.Email, dto.Password)
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.store.Logout(ctx)
}

func (s *AuthService) Session() domain.Session {
	return s.store.Current()
}

type ProfileResult struct {
	User *domain.User `json:"user"`
	// LoggedOut is set after a password change; the new password must be used to log in again.
	LoggedOut bool   `json:"loggedOut"`
	Message   string `json:"message"`
}

// UpdateProfile edits the caller's own account. Changing the password needs
// the current one, which is checked with a throwaway login.
func (s *AuthService) UpdateProfile(ctx context.Context, dto domain.ProfileUpdateDTO) (*ProfileResult, error) {
	current := s.store.User()
	if current == nil {
		return nil, session.ErrNotAuthenticated
	}
	dto.Name = strings.TrimSpace(dto.Name)
	dto.Email = strings.TrimSpace(dto.Email)
	if err := validateStruct(dto); err != nil {
		return nil, err
	}

	update := domain.UpdateUserDTO{Name: dto.Name, Email: dto.Email}
	if dto.NewPassword != "" {
		if _, err := s.api.Login(ctx, dto.Email, dto.CurrentPassword); err != nil {
			return nil, invalid("currentPassword", "Current password is incorrect")
		}
		update.Password = dto.NewPassword
	}

	updated, err := s.api.UpdateUser(ctx, current.ID, update)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if updated == nil {
		updated = &domain.User{ID: current.ID, Name: dto.Name, Email: dto.Email, Role: current.Role}
	}
	if updated.Role == "" {
		updated.Role = current.Role
	}
	s.bus.Publish(ctx, domain.ChannelUserChanged, updated.ID)

	if update.Password != "" {
		s.logger.Info("password changed, ending session", zap.Int64("user_id", current.ID))
		if err := s.store.Logout(ctx); err != nil {
			return nil, err
		}
		return &ProfileResult{
			User:      updated,
			LoggedOut: true,
			Message:   "Password changed successfully! Please log in with your new password.",
		}, nil
	}

	if err := s.store.SetUser(ctx, updated); err != nil {
		return nil, err
	}
	return &ProfileResult{User: updated, Message: "Profile updated successfully!"}, nil
}

// Profile fetches the caller's account and refreshes the stored identity.
func (s *AuthService) Profile(ctx context.Context) (*domain.User, error) {
	return s.store.RefreshUser(ctx)
}
