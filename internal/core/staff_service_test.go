package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmpath.app/memorycare/internal/auth"
)

func TestStaffService_CreateLoginAuthenticate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewStaffService(repo, auth.NewIssuer("secret", time.Hour))
	ctx := context.Background()

	user, err := svc.CreateStaff(ctx, "nurse-1", "pw")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", user.PasswordHash)

	_, err = svc.CreateStaff(ctx, "nurse-1", "pw2")
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	_, err = svc.Login(ctx, "nurse-1", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = svc.Login(ctx, "nobody", "pw")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	token, err := svc.Login(ctx, "nurse-1", "pw")
	require.NoError(t, err)

	authed, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "nurse-1", authed.ExternalUserID)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestStaffService_CreateStaffValidation(t *testing.T) {
	svc := NewStaffService(newMemoryRepo(), auth.NewIssuer("secret", time.Hour))
	_, err := svc.CreateStaff(context.Background(), " ", "pw")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = svc.CreateStaff(context.Background(), "nurse-2", "")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
