package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PrefsService persists per-user UI preferences.
type PrefsService struct {
	db *sql.DB
}

func NewPrefsService(db *sql.DB) *PrefsService {
	return &PrefsService{db: db}
}

// Theme returns the stored theme, defaulting to "light".
func (s *PrefsService) Theme(ctx context.Context, tenant string, userID int64) (string, error) {
	var theme string
	err := s.db.QueryRowContext(ctx,
		`SELECT theme FROM ui_prefs WHERE tenant = ? AND user_id = ?`, tenant, userID,
	).Scan(&theme)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "light", nil
		}
		return "", fmt.Errorf("lookup theme: %w", err)
	}
	return theme, nil
}

// ToggleTheme flips the persisted theme and returns the new value.
func (s *PrefsService) ToggleTheme(ctx context.Context, tenant string, userID int64) (string, error) {
	current, err := s.Theme(ctx, tenant, userID)
	if err != nil {
		return "", err
	}
	next := "dark"
	if current == "dark" {
		next = "light"
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ui_prefs (tenant, user_id, theme, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant, user_id) DO UPDATE SET theme = excluded.theme, updated_at = excluded.updated_at`,
		tenant, userID, next, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("store theme: %w", err)
	}
	return next, nil
}
