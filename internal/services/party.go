package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"daftarchat/internal/models"
)

// PartyService manages the customer/supplier directory.
type PartyService struct {
	db *sql.DB
}

func NewPartyService(db *sql.DB) *PartyService {
	return &PartyService{db: db}
}

// Create inserts one party record. Category defaults to "general".
func (s *PartyService) Create(ctx context.Context, tenant string, role models.PartyRole, name, phone string) (*models.Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	if role != models.PartyCustomer && role != models.PartySupplier {
		return nil, fmt.Errorf("invalid party role: %s", role)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO parties (tenant, role, name, phone, category, created_at) VALUES (?, ?, ?, ?, 'general', ?)`,
		tenant, role, name, strings.TrimSpace(phone), now,
	)
	if err != nil {
		return nil, fmt.Errorf("create party: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("party id: %w", err)
	}
	return &models.Party{ID: id, Tenant: tenant, Role: role, Name: name, Phone: phone, Category: "general", CreatedAt: now}, nil
}

// FindByName performs a fuzzy lookup of one party within a role scope.
// Exact matches win over substring matches.
func (s *PartyService) FindByName(ctx context.Context, tenant string, role models.PartyRole, name string) (*models.Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, role, name, phone, category, created_at
		 FROM parties
		 WHERE tenant = ? AND role = ? AND name LIKE ?
		 ORDER BY CASE WHEN name = ? THEN 0 ELSE 1 END, id
		 LIMIT 1`,
		tenant, role, "%"+name+"%", name,
	)
	var p models.Party
	if err := row.Scan(&p.ID, &p.Tenant, &p.Role, &p.Name, &p.Phone, &p.Category, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find party: %w", err)
	}
	return &p, nil
}

// CountByRole returns the number of parties with the given role.
func (s *PartyService) CountByRole(ctx context.Context, tenant string, role models.PartyRole) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parties WHERE tenant = ? AND role = ?`, tenant, role,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count parties: %w", err)
	}
	return n, nil
}

// RecentNames lists the most recently added party names, newest first.
func (s *PartyService) RecentNames(ctx context.Context, tenant string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM parties WHERE tenant = ? ORDER BY id DESC LIMIT ?`, tenant, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent parties: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan party name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
