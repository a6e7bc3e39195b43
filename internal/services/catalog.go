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

// CatalogService manages product records.
type CatalogService struct {
	db *sql.DB
}

func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{db: db}
}

// Create inserts one product. New products default to sellable and
// purchasable.
func (s *CatalogService) Create(ctx context.Context, tenant, name string, price, stock float64) (*models.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	if price < 0 {
		return nil, errors.New("price cannot be negative")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (tenant, name, price, stock, sellable, purchasable, created_at) VALUES (?, ?, ?, ?, 1, 1, ?)`,
		tenant, name, price, stock, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("product id: %w", err)
	}
	return &models.Product{
		ID: id, Tenant: tenant, Name: name, Price: price, Stock: stock,
		Sellable: true, Purchasable: true, CreatedAt: now,
	}, nil
}

// Search returns up to limit products whose name matches the query.
func (s *CatalogService) Search(ctx context.Context, tenant, query string, limit int) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant, name, price, stock, sellable, purchasable, created_at
		 FROM products
		 WHERE tenant = ? AND name LIKE ?
		 ORDER BY CASE WHEN name = ? THEN 0 ELSE 1 END, id
		 LIMIT ?`,
		tenant, "%"+query+"%", query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Tenant, &p.Name, &p.Price, &p.Stock, &p.Sellable, &p.Purchasable, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Stats reports catalog totals for the briefing snapshot.
func (s *CatalogService) Stats(ctx context.Context, tenant string) (total, lowStock int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN stock <= 0 THEN 1 ELSE 0 END), 0) FROM products WHERE tenant = ?`,
		tenant,
	).Scan(&total, &lowStock)
	if err != nil {
		return 0, 0, fmt.Errorf("catalog stats: %w", err)
	}
	return total, lowStock, nil
}
