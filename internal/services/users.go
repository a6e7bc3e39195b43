package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"daftarchat/internal/models"
)

// UserService handles registration and credential checks.
type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// Register creates a user under the given tenant.
func (s *UserService) Register(ctx context.Context, tenant, username, password string) (*models.User, error) {
	tenant = strings.TrimSpace(tenant)
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if tenant == "" {
		return nil, errors.New("tenant is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash := hashPassword(password)
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (tenant, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		tenant, username, hash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &models.User{ID: id, Tenant: tenant, Username: username, PasswordHash: hash, CreatedAt: now}, nil
}

// Login validates credentials and returns the user profile.
func (s *UserService) Login(ctx context.Context, tenant, username, password string) (*models.User, error) {
	tenant = strings.TrimSpace(tenant)
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if tenant == "" || username == "" || password == "" {
		return nil, errors.New("tenant, username and password are required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, username, password_hash, created_at FROM users WHERE tenant = ? AND username = ?`,
		tenant, username,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Tenant, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid credentials")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if user.PasswordHash != hashPassword(password) {
		return nil, errors.New("invalid credentials")
	}
	return &user, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, errors.New("invalid user id")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, username, password_hash, created_at FROM users WHERE id = ?`, id,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Tenant, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

func hashPassword(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
