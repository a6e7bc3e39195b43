package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Selection persists each user's active provider/model pair.
type Selection struct {
	db *sql.DB
}

func NewSelection(db *sql.DB) *Selection {
	return &Selection{db: db}
}

// Active returns the stored pair, or empty strings when nothing is stored.
func (s *Selection) Active(ctx context.Context, userID int64) (string, string, error) {
	if userID <= 0 {
		return "", "", errors.New("invalid user id")
	}
	var providerName, modelName string
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, model FROM provider_prefs WHERE user_id = ?`, userID,
	).Scan(&providerName, &modelName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("lookup provider pref: %w", err)
	}
	return providerName, modelName, nil
}

// Set stores the active pair for the user, replacing any previous choice.
func (s *Selection) Set(ctx context.Context, userID int64, providerName, modelName string) error {
	if userID <= 0 {
		return errors.New("invalid user id")
	}
	providerName = strings.TrimSpace(providerName)
	if providerName == "" {
		return errors.New("provider is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_prefs (user_id, provider, model, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET provider = excluded.provider, model = excluded.model, updated_at = excluded.updated_at`,
		userID, providerName, strings.TrimSpace(modelName), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store provider pref: %w", err)
	}
	return nil
}
