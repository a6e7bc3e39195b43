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

const (
	DefaultCurrency      = "USD"
	DefaultPaymentMethod = "cash"
)

// Account kinds stored in the accounts ledger table.
const (
	AccountKindAccount  = "account"
	AccountKindCashBox  = "cash_box"
	AccountKindExchange = "exchange_account"
)

// FinanceService manages expenses, vouchers, and the reference ledgers.
type FinanceService struct {
	db *sql.DB
}

func NewFinanceService(db *sql.DB) *FinanceService {
	return &FinanceService{db: db}
}

// CreateExpense inserts one posted expense record.
func (s *FinanceService) CreateExpense(ctx context.Context, tenant string, actorID int64, description string, amount float64) (*models.Expense, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("description is required")
	}
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (tenant, description, amount, currency, payment_method, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tenant, description, amount, DefaultCurrency, DefaultPaymentMethod, actorID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("expense id: %w", err)
	}
	return &models.Expense{
		ID: id, Tenant: tenant, Description: description, Amount: amount,
		Currency: DefaultCurrency, PaymentMethod: DefaultPaymentMethod,
		CreatedBy: actorID, CreatedAt: now,
	}, nil
}

// CreateVoucher inserts one voucher against an already resolved party.
func (s *FinanceService) CreateVoucher(ctx context.Context, tenant string, actorID int64, kind models.VoucherKind, party *models.Party, amount float64) (*models.Voucher, error) {
	if party == nil || party.ID <= 0 {
		return nil, errors.New("party is required")
	}
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if kind != models.VoucherPayment && kind != models.VoucherReceipt {
		return nil, fmt.Errorf("invalid voucher kind: %s", kind)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vouchers (tenant, kind, party_id, amount, currency, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tenant, kind, party.ID, amount, DefaultCurrency, actorID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create voucher: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("voucher id: %w", err)
	}
	return &models.Voucher{
		ID: id, Tenant: tenant, Kind: kind, PartyID: party.ID, PartyName: party.Name,
		Amount: amount, Currency: DefaultCurrency, CreatedBy: actorID, CreatedAt: now,
	}, nil
}

// AddCurrency inserts one currency reference row.
func (s *FinanceService) AddCurrency(ctx context.Context, tenant, code, name string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return errors.New("code is required")
	}
	if strings.TrimSpace(name) == "" {
		name = code
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO currencies (tenant, code, name, created_at) VALUES (?, ?, ?, ?)`,
		tenant, code, strings.TrimSpace(name), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add currency: %w", err)
	}
	return nil
}

// AddExchangeRate inserts one exchange-rate row.
func (s *FinanceService) AddExchangeRate(ctx context.Context, tenant, base, quote string, rate float64) error {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return errors.New("base and quote currencies are required")
	}
	if rate <= 0 {
		return errors.New("rate must be positive")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchange_rates (tenant, base_code, quote_code, rate, created_at) VALUES (?, ?, ?, ?, ?)`,
		tenant, base, quote, rate, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add exchange rate: %w", err)
	}
	return nil
}

// AddAccount inserts one row into the accounts ledger. kind selects between
// a plain account, a cash box, and an exchange-company account.
func (s *FinanceService) AddAccount(ctx context.Context, tenant, name, kind string, balance float64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	switch kind {
	case AccountKindAccount, AccountKindCashBox, AccountKindExchange:
	default:
		return fmt.Errorf("invalid account kind: %s", kind)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (tenant, name, kind, balance, created_at) VALUES (?, ?, ?, ?, ?)`,
		tenant, name, kind, balance, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add account: %w", err)
	}
	return nil
}

// Figures holds the aggregate numbers used by the briefing snapshot. A nil
// pointer means the figure is genuinely absent (no rows), never zero-filled.
type Figures struct {
	Revenue     *float64
	Expenses    *float64
	Receivables *float64
	Liquidity   *float64
}

// Totals computes the current figures for the tenant.
func (s *FinanceService) Totals(ctx context.Context, tenant string) (Figures, error) {
	var fig Figures
	var err error
	fig.Revenue, err = s.sumOrNil(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM vouchers WHERE tenant = ? AND kind = ?`,
		tenant, string(models.VoucherReceipt))
	if err != nil {
		return Figures{}, err
	}
	fig.Receivables, err = s.sumOrNil(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN kind = 'receipt' THEN amount ELSE -amount END), 0) FROM vouchers WHERE tenant = ?`,
		tenant)
	if err != nil {
		return Figures{}, err
	}
	fig.Expenses, err = s.sumOrNil(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM expenses WHERE tenant = ?`, tenant)
	if err != nil {
		return Figures{}, err
	}
	fig.Liquidity, err = s.sumOrNil(ctx,
		`SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM accounts WHERE tenant = ?`, tenant)
	if err != nil {
		return Figures{}, err
	}
	return fig, nil
}

func (s *FinanceService) sumOrNil(ctx context.Context, query string, args ...interface{}) (*float64, error) {
	var (
		count int
		sum   float64
	)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count, &sum); err != nil {
		return nil, fmt.Errorf("finance totals: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	return &sum, nil
}
