package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"daftarchat/internal/models"
)

// Store is a durable per-tenant, per-user, per-key text map.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the entry for one key, or sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, tenant string, userID int64, key string) (*models.MemoryEntry, error) {
	var entry models.MemoryEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT mem_key, content, updated_at FROM memories WHERE tenant = ? AND user_id = ? AND mem_key = ?`,
		tenant, userID, key,
	).Scan(&entry.Key, &entry.Content, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &entry, nil
}

// List returns up to limit entries, most recently written first.
func (s *Store) List(ctx context.Context, tenant string, userID int64, limit int) ([]models.MemoryEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT mem_key, content, updated_at FROM memories
		 WHERE tenant = ? AND user_id = ?
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ?`,
		tenant, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var entries []models.MemoryEntry
	for rows.Next() {
		var e models.MemoryEntry
		if err := rows.Scan(&e.Key, &e.Content, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Put writes the content under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, tenant string, userID int64, key, content string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (tenant, user_id, mem_key, content, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant, user_id, mem_key) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		tenant, userID, key, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put memory: %w", err)
	}
	return nil
}

// AppendPreference concatenates a new preference line onto the reserved
// preference entry, creating it on first write.
func (s *Store) AppendPreference(ctx context.Context, tenant string, userID int64, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return errors.New("preference line is required")
	}
	existing, err := s.Get(ctx, tenant, userID, models.PreferenceKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	content := line
	if existing != nil && existing.Content != "" {
		content = existing.Content + "\n" + line
	}
	return s.Put(ctx, tenant, userID, models.PreferenceKey, content)
}

// Delete removes one key.
func (s *Store) Delete(ctx context.Context, tenant string, userID int64, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE tenant = ? AND user_id = ? AND mem_key = ?`,
		tenant, userID, key,
	); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}
