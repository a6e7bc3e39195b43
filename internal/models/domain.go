package models

import "time"

// PartyRole distinguishes the two sides of the party directory.
type PartyRole string

const (
	PartyCustomer PartyRole = "customer"
	PartySupplier PartyRole = "supplier"
)

// Party is a customer or supplier record.
type Party struct {
	ID        int64     `json:"id"`
	Tenant    string    `json:"tenant"`
	Role      PartyRole `json:"role"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is one catalog record.
type Product struct {
	ID          int64     `json:"id"`
	Tenant      string    `json:"tenant"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Stock       float64   `json:"stock"`
	Sellable    bool      `json:"sellable"`
	Purchasable bool      `json:"purchasable"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expense is a posted expense record.
type Expense struct {
	ID            int64     `json:"id"`
	Tenant        string    `json:"tenant"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// VoucherKind tells whether money moved out or in.
type VoucherKind string

const (
	VoucherPayment VoucherKind = "payment"
	VoucherReceipt VoucherKind = "receipt"
)

// Voucher records a payment to, or a receipt from, a resolved party.
type Voucher struct {
	ID        int64       `json:"id"`
	Tenant    string      `json:"tenant"`
	Kind      VoucherKind `json:"kind"`
	PartyID   int64       `json:"party_id"`
	PartyName string      `json:"party_name"`
	Amount    float64     `json:"amount"`
	Currency  string      `json:"currency"`
	CreatedBy int64       `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// BusinessSnapshot aggregates the live metrics fed into a briefing. A nil
// pointer field means the figure was not available and must not be invented.
type BusinessSnapshot struct {
	Revenue       *float64 `json:"revenue"`
	Expenses      *float64 `json:"expenses"`
	Receivables   *float64 `json:"receivables"`
	Liquidity     *float64 `json:"liquidity"`
	ProductCount  int      `json:"product_count"`
	LowStockCount int      `json:"low_stock_count"`
	CustomerCount int      `json:"customer_count"`
	SupplierCount int      `json:"supplier_count"`
	RecentParties []string `json:"recent_parties"`
}
