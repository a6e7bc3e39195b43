package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"daftarchat/internal/models"
	"daftarchat/internal/services"
)

const (
	successPrefix = "✅ "
	failurePrefix = "⚠️ "

	unsupportedOutcome = failurePrefix + "This action is not supported."
)

// Dispatcher executes action descriptors against the domain services. Every
// handler validates its own params, catches its own errors, and returns a
// narrative outcome string; Execute never fails upward.
type Dispatcher struct {
	parties *services.PartyService
	catalog *services.CatalogService
	finance *services.FinanceService
	prefs   *services.PrefsService

	handlers map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, action models.ActionDescriptor, tenant string, actorID int64) string

func NewDispatcher(parties *services.PartyService, catalog *services.CatalogService, finance *services.FinanceService, prefs *services.PrefsService) *Dispatcher {
	d := &Dispatcher{
		parties: parties,
		catalog: catalog,
		finance: finance,
		prefs:   prefs,
	}
	d.handlers = map[string]handlerFunc{
		"add_customer":         d.addParty(models.PartyCustomer, "customer"),
		"add_supplier":         d.addParty(models.PartySupplier, "supplier"),
		"add_product":          d.addProduct,
		"search_product":       d.searchProduct,
		"add_expense":          d.addExpense,
		"add_payment_voucher":  d.addVoucher(models.VoucherPayment),
		"add_receipt_voucher":  d.addVoucher(models.VoucherReceipt),
		"add_currency":         d.addCurrency,
		"add_exchange_rate":    d.addExchangeRate,
		"add_account":          d.addAccount(services.AccountKindAccount, "account"),
		"add_cash_box":         d.addAccount(services.AccountKindCashBox, "cash box"),
		"add_exchange_account": d.addAccount(services.AccountKindExchange, "exchange account"),
		"navigate":             d.navigate,
		"toggle_theme":         d.toggleTheme,
	}
	return d
}

// Known reports whether the identifier is part of the action vocabulary.
func (d *Dispatcher) Known(action string) bool {
	_, ok := d.handlers[action]
	return ok
}

// Execute runs one descriptor and returns its outcome text. Unknown
// identifiers get the fixed unsupported string.
func (d *Dispatcher) Execute(ctx context.Context, action models.ActionDescriptor, tenant string, actorID int64) string {
	handler, ok := d.handlers[action.Action]
	if !ok {
		return unsupportedOutcome
	}
	return handler(ctx, action, tenant, actorID)
}

func (d *Dispatcher) addParty(role models.PartyRole, label string) handlerFunc {
	return func(ctx context.Context, action models.ActionDescriptor, tenant string, _ int64) string {
		name := action.ParamString("name")
		if name == "" {
			return failurePrefix + "A name is required to create a " + label + "."
		}
		party, err := d.parties.Create(ctx, tenant, role, name, action.ParamString("phone"))
		if err != nil {
			return fmt.Sprintf("%sCould not create %s %q: %v", failurePrefix, label, name, err)
		}
		return fmt.Sprintf("%sAdded %s %q.", successPrefix, label, party.Name)
	}
}

func (d *Dispatcher) addProduct(ctx context.Context, action models.ActionDescriptor, tenant string, _ int64) string {
	name := action.ParamString("name")
	if name == "" {
		return failurePrefix + "A name is required to create a product."
	}
	price, hasPrice := action.ParamFloat("price")
	stock, _ := action.ParamFloat("stock")
	product, err := d.catalog.Create(ctx, tenant, name, price, stock)
	if err != nil {
		return fmt.Sprintf("%sCould not create product %q: %v", failurePrefix, name, err)
	}
	if hasPrice {
		return fmt.Sprintf("%sAdded product %q at %.2f.", successPrefix, product.Name, product.Price)
	}
	return fmt.Sprintf("%sAdded product %q.", successPrefix, product.Name)
}

func (d *Dispatcher) searchProduct(ctx context.Context, action models.ActionDescriptor, tenant string, _ int64) string {
	query := action.ParamString("query")
	if query == "" {
		return failurePrefix + "A search query is required."
	}
	products, err := d.catalog.Search(ctx, tenant, query, 3)
	if err != nil {
		return fmt.Sprintf("%sProduct search failed: %v", failurePrefix, err)
	}
	if len(products) == 0 {
		return fmt.Sprintf("%sNo products matching %q.", successPrefix, query)
	}
	var lines []string
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("%s — stock %.0f, price %.2f", p.Name, p.Stock, p.Price))
	}
	return successPrefix + "Found: " + strings.Join(lines, "; ")
}

func (d *Dispatcher) addExpense(ctx context.Context, action models.ActionDescriptor, tenant string, actorID int64) string {
	amount, ok := action.ParamFloat("amount")
	if !ok {
		return failurePrefix + "An amount is required to record an expense."
	}
	description := action.ParamString("description")
	if description == "" {
		return failurePrefix + "A description is required to record an expense."
	}
	expense, err := d.finance.CreateExpense(ctx, tenant, actorID, description, amount)
	if err != nil {
		return fmt.Sprintf("%sCould not record expense: %v", failurePrefix, err)
	}
	return fmt.Sprintf("%sRecorded expense %q for %.2f %s.", successPrefix, expense.Description, expense.Amount, expense.Currency)
}

// addVoucher resolves the counterparty in two phases: the expected role
// first, then the opposite role. No match fails explicitly so a voucher is
// never recorded against a nonexistent party.
func (d *Dispatcher) addVoucher(kind models.VoucherKind) handlerFunc {
	return func(ctx context.Context, action models.ActionDescriptor, tenant string, actorID int64) string {
		amount, ok := action.ParamFloat("amount")
		if !ok {
			return failurePrefix + "An amount is required for a voucher."
		}
		partyName := action.ParamString("party_name")
		if partyName == "" {
			return failurePrefix + "A party name is required for a voucher."
		}

		primary, secondary := models.PartySupplier, models.PartyCustomer
		if kind == models.VoucherReceipt {
			primary, secondary = models.PartyCustomer, models.PartySupplier
		}
		party, err := d.parties.FindByName(ctx, tenant, primary, partyName)
		if errors.Is(err, sql.ErrNoRows) {
			party, err = d.parties.FindByName(ctx, tenant, secondary, partyName)
		}
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Sprintf("%sNo customer or supplier matching %q; create them first.", failurePrefix, partyName)
			}
			return fmt.Sprintf("%sParty lookup failed: %v", failurePrefix, err)
		}

		voucher, err := d.finance.CreateVoucher(ctx, tenant, actorID, kind, party, amount)
		if err != nil {
			return fmt.Sprintf("%sCould not create voucher: %v", failurePrefix, err)
		}
		verb := "paid to"
		if kind == models.VoucherReceipt {
			verb = "received from"
		}
		return fmt.Sprintf("%sVoucher for %.2f %s %s %q.", successPrefix, voucher.Amount, voucher.Currency, verb, voucher.PartyName)
	}
}

func (d *Dispatcher) addCurrency(ctx context.Context, action models.ActionDescriptor, tenant string, _ int64) string {
	code := action.ParamString("code")
	if code == "" {
		return failurePrefix + "A currency code is required."
	}
	if err := d.finance.AddCurrency(ctx, tenant, code, action.ParamString("name")); err != nil {
		return fmt.Sprintf("%sCould not add currency %q: %v", failurePrefix, code, err)
	}
	return fmt.Sprintf("%sAdded currency %s.", successPrefix, strings.ToUpper(code))
}

func (d *Dispatcher) addExchangeRate(ctx context.Context, action models.ActionDescriptor, tenant string, _ int64) string {
	base := action.ParamString("base")
	quote := action.ParamString("quote")
	rate, ok := action.ParamFloat("rate")
	if base == "" || quote == "" || !ok {
		return failurePrefix + "Base currency, quote currency, and rate are all required."
	}
	if err := d.finance.AddExchangeRate(ctx, tenant, base, quote, rate); err != nil {
		return fmt.Sprintf("%sCould not add exchange rate: %v", failurePrefix, err)
	}
	return fmt.Sprintf("%sAdded rate %s/%s = %.4f.", successPrefix, strings.ToUpper(base), strings.ToUpper(quote), rate)
}

func (d *Dispatcher) addAccount(kind, label string) handlerFunc {
	return func(ctx context.Context, action models.ActionDescriptor, tenant string, _ int64) string {
		name := action.ParamString("name")
		if name == "" {
			return failurePrefix + "A name is required to create a " + label + "."
		}
		balance, _ := action.ParamFloat("balance")
		if err := d.finance.AddAccount(ctx, tenant, name, kind, balance); err != nil {
			return fmt.Sprintf("%sCould not create %s %q: %v", failurePrefix, label, name, err)
		}
		return fmt.Sprintf("%sAdded %s %q.", successPrefix, label, name)
	}
}

func (d *Dispatcher) navigate(ctx context.Context, action models.ActionDescriptor, _ string, _ int64) string {
	page := action.ParamString("page")
	if page == "" {
		return failurePrefix + "A target page is required to navigate."
	}
	if sink := navSinkFromContext(ctx); sink != nil {
		sink.Navigate(page)
	}
	return fmt.Sprintf("%sOpening %s.", successPrefix, page)
}

func (d *Dispatcher) toggleTheme(ctx context.Context, _ models.ActionDescriptor, tenant string, actorID int64) string {
	theme, err := d.prefs.ToggleTheme(ctx, tenant, actorID)
	if err != nil {
		return fmt.Sprintf("%sCould not switch theme: %v", failurePrefix, err)
	}
	return fmt.Sprintf("%sSwitched to the %s theme.", successPrefix, theme)
}
