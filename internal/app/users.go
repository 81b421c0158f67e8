package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"croffers/internal/domain"
)

type UserService struct {
	repo domain.UserRepository
	now  func() time.Time
}

func NewUserService(r domain.UserRepository) *UserService {
	return &UserService{repo: r, now: func() time.Time { return time.Now().UTC() }}
}

func (s *UserService) Register(ctx context.Context, in domain.RegisterUserInput) (domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return domain.User{}, err
	}
	if _, err := s.repo.GetUserByEmail(ctx, in.Email); err == nil {
		return domain.User{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	u := domain.User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Name:      in.Name,
		Role:      in.Role,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	return s.repo.GetUser(ctx, id)
}

// requireRole loads the user and checks it holds one of roles.
func requireRole(ctx context.Context, users domain.UserRepository, id string, roles ...domain.Role) (domain.User, error) {
	u, err := users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: unknown user", domain.ErrForbidden)
		}
		return domain.User{}, err
	}
	for _, r := range roles {
		if u.Role == r {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("%w: role %s not allowed", domain.ErrForbidden, u.Role)
}
