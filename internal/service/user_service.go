package service

import (
	"context"

	"hustlex/internal/domain"
	"hustlex/internal/presence"
)

// UserService answers profile and presence queries.
type UserService struct {
	profiles domain.ProfileRepository
	presence *presence.Registry
}

func NewUserService(profiles domain.ProfileRepository, registry *presence.Registry) *UserService {
	return &UserService{profiles: profiles, presence: registry}
}

// UserResponse is a display profile with the user's live presence.
type UserResponse struct {
	*domain.DisplayProfile
	Online bool `json:"online"`
}

func (s *UserService) GetByID(ctx context.Context, id string) (*UserResponse, error) {
	p, err := s.profiles.GetDisplayProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return &UserResponse{DisplayProfile: p, Online: s.presence.IsOnline(id)}, nil
}

func (s *UserService) ListOnline() []string {
	return s.presence.OnlineUsers()
}
