package service

import (
	"context"
	"fmt"
	"strings"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
	"vpms_console/internal/session"
)

type UserService struct {
	api   *gateway.Client
	store *session.Store
	bus   *bus.Bus
}

func NewUserService(api *gateway.Client, store *session.Store, b *bus.Bus) *UserService {
	return &UserService{api: api, store: store, bus: b}
}

func (s *UserService) Update(ctx context.Context, id int64, dto domain.UpdateUserDTO) (*domain.User, error) {
	dto.Name = strings.TrimSpace(dto.Name)
	dto.Email = strings.TrimSpace(dto.Email)
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	u, err := s.api.UpdateUser(ctx, id, dto)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelUserChanged, id)
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if me := s.store.User(); me != nil && me.ID == id {
		return conflict("You cannot delete your own account")
	}
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelUserChanged, id)
	return nil
}

func (s *UserService) AssignRole(ctx context.Context, id int64, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, invalid("role", "Role must be one of ADMIN, STAFF, CUSTOMER")
	}
	if me := s.store.User(); me != nil && me.ID == id && role != me.Role {
		return nil, conflict("You cannot change your own role")
	}
	u, err := s.api.AssignRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("assign role to user %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelUserChanged, id)
	return u, nil
}
