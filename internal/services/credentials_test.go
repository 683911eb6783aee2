package services

import (
	"context"
	"errors"
	"testing"

	"github.com/clinware/labguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserSource struct {
	FindByUsernameFunc func(ctx context.Context, username string) (*models.UserRecord, string, error)
}

func (m *mockUserSource) FindByUsername(ctx context.Context, username string) (*models.UserRecord, string, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(ctx, username)
	}
	return nil, "", models.ErrNotFound
}

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	// Minimum cost keeps the suite fast; production hashing uses
	// pkgauth.HashPassword.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestDirectoryAdapter_Verify_CorrectPassword(t *testing.T) {
	hash := hashForTest(t, "secret")
	adapter := NewDirectoryAdapter(&mockUserSource{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.UserRecord, string, error) {
			return &models.UserRecord{ID: "user1", Username: username, Active: true}, hash, nil
		},
	})

	err := adapter.Verify(context.Background(), "carlos", "secret")

	assert.NoError(t, err)
}

func TestDirectoryAdapter_Verify_WrongPassword(t *testing.T) {
	hash := hashForTest(t, "secret")
	adapter := NewDirectoryAdapter(&mockUserSource{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.UserRecord, string, error) {
			return &models.UserRecord{ID: "user1", Username: username, Active: true}, hash, nil
		},
	})

	err := adapter.Verify(context.Background(), "carlos", "wrong")

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestDirectoryAdapter_Verify_UnknownUser(t *testing.T) {
	adapter := NewDirectoryAdapter(&mockUserSource{})

	err := adapter.Verify(context.Background(), "ghost", "secret")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDirectoryAdapter_Verify_BackendError(t *testing.T) {
	backendErr := errors.New("connection refused")
	adapter := NewDirectoryAdapter(&mockUserSource{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.UserRecord, string, error) {
			return nil, "", backendErr
		},
	})

	err := adapter.Verify(context.Background(), "carlos", "secret")

	assert.ErrorIs(t, err, backendErr)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestDirectoryAdapter_FindUser(t *testing.T) {
	adapter := NewDirectoryAdapter(&mockUserSource{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.UserRecord, string, error) {
			return &models.UserRecord{ID: "user1", Username: username, Active: false, Roles: []string{"lab_tech"}}, "hash", nil
		},
	})

	user, err := adapter.FindUser(context.Background(), "carlos")

	require.NoError(t, err)
	assert.Equal(t, "user1", user.ID)
	assert.False(t, user.Active)
	assert.Equal(t, []string{"lab_tech"}, user.Roles)
}
