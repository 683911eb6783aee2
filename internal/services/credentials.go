package services

import (
	"context"
	"errors"

	"github.com/clinware/labguard/internal/models"
	pkgauth "github.com/clinware/labguard/pkg/auth"
)

// UserSource is the slice of the user repository the adapters need.
type UserSource interface {
	FindByUsername(ctx context.Context, username string) (*models.UserRecord, string, error)
}

// DirectoryAdapter implements both CredentialVerifier and UserDirectory
// over the user store. The rest of the user/role/permission directory
// stays outside this service; logins only ever see the value object.
type DirectoryAdapter struct {
	users UserSource
}

// NewDirectoryAdapter creates a DirectoryAdapter.
func NewDirectoryAdapter(users UserSource) *DirectoryAdapter {
	return &DirectoryAdapter{users: users}
}

// Verify checks the password against the stored bcrypt hash.
func (a *DirectoryAdapter) Verify(ctx context.Context, username, password string) error {
	_, hash, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := pkgauth.ComparePassword(hash, password); err != nil {
		return models.ErrInvalidCredentials
	}
	return nil
}

// FindUser returns the fully-materialized user record.
func (a *DirectoryAdapter) FindUser(ctx context.Context, username string) (*models.UserRecord, error) {
	user, _, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}
