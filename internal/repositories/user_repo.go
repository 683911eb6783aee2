package repositories

import (
	"context"
	"time"

	"github.com/clinware/labguard/internal/database"
	"github.com/clinware/labguard/internal/models"
)

// UserRepository reads the user directory. The login flow only needs the
// fully-materialized value object plus the stored credential hash; role
// and permission evaluation stays outside this service.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns the user record and its password hash, or
// models.ErrNotFound.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.UserRecord, string, error) {
	var (
		user models.UserRecord
		hash string
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, username, active, roles, password_hash
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.Active, &user.Roles, &hash)
	if err != nil {
		return nil, "", database.MapPostgresError(err)
	}
	return &user, hash, nil
}

// Create inserts a user. Used by the admin bootstrap and migrations only.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string, active bool, roles []string) (*models.UserRecord, error) {
	var user models.UserRecord
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, active, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, username, active, roles
	`, username, passwordHash, active, roles, time.Now()).
		Scan(&user.ID, &user.Username, &user.Active, &user.Roles)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}
