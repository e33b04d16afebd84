package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// AdminStore is the admin persistence used by AdminService.
type AdminStore interface {
	GetByID(ctx context.Context, id int) (*model.Admin, error)
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
	Create(ctx context.Context, a *model.Admin) error
}

// AdminService handles admin business logic.
type AdminService struct {
	adminRepo AdminStore
	auth      *AuthService
}

// NewAdminService creates a new AdminService.
func NewAdminService(adminRepo AdminStore, auth *AuthService) *AdminService {
	return &AdminService{adminRepo: adminRepo, auth: auth}
}

// GetByID retrieves an admin by ID.
func (s *AdminService) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	return s.adminRepo.GetByID(ctx, id)
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *AdminService) Login(ctx context.Context, email, password string) (*model.AdminLoginResponse, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.auth.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}

	if err := s.auth.CheckPassword(admin.PasswordHash, password); err != nil {
		return nil, err
	}

	issued, err := s.auth.IssueAdminToken(admin.ID)
	if err != nil {
		return nil, err
	}
	return &model.AdminLoginResponse{
		Token:     issued.Token,
		TokenType: "Bearer",
		ExpiresAt: issued.ExpiresAt,
		Admin:     *admin,
	}, nil
}

// Create hashes the password and stores a new admin.
func (s *AdminService) Create(ctx context.Context, admin *model.Admin, password string) error {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin.PasswordHash = hash
	return s.adminRepo.Create(ctx, admin)
}
