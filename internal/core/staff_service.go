package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"calmpath.app/memorycare/internal/auth"
	"calmpath.app/memorycare/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("already exists")
)

// StaffService manages staff accounts and their session tokens.
type StaffService struct {
	repo   store.Repository
	issuer *auth.Issuer
}

func NewStaffService(repo store.Repository, issuer *auth.Issuer) *StaffService {
	return &StaffService{repo: repo, issuer: issuer}
}

func (s *StaffService) CreateStaff(ctx context.Context, staffID, password string) (*store.User, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" || password == "" {
		return nil, fmt.Errorf("%w: staff id and password are required", ErrInvalidInput)
	}

	existing, err := s.repo.GetUserByExternalID(ctx, staffID)
	if err != nil {
		return nil, persistenceErr("get user", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("staff %q: %w", staffID, ErrAlreadyExists)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, staffID, hash)
	if err != nil {
		return nil, persistenceErr("create user", err)
	}
	return user, nil
}

// Login checks the credentials and returns a signed token.
func (s *StaffService) Login(ctx context.Context, staffID, password string) (string, error) {
	user, err := s.repo.GetUserByExternalID(ctx, staffID)
	if err != nil {
		return "", persistenceErr("get user", err)
	}
	if user == nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	token, err := s.issuer.GenerateJWT(user.ExternalUserID)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to an existing staff account.
func (s *StaffService) Authenticate(ctx context.Context, token string) (*store.User, error) {
	staffID, err := s.issuer.ValidateJWT(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	user, err := s.repo.GetUserByExternalID(ctx, staffID)
	if err != nil {
		return nil, persistenceErr("get user", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
