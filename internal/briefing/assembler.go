package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"daftarchat/internal/memory"
	"daftarchat/internal/models"
	"daftarchat/internal/redis"
	"daftarchat/internal/services"
)

const (
	// sourceTimeout bounds each optional data source so a slow collaborator
	// cannot stall the turn.
	sourceTimeout = 2 * time.Second

	notAvailable = "not available"
)

// Assembler builds the bounded context block sent with every turn. Every
// section is optional: a failed or slow source is skipped, never fabricated.
type Assembler struct {
	finance *services.FinanceService
	catalog *services.CatalogService
	parties *services.PartyService
	memory  *memory.Service

	cache       *redis.Client
	snapshotTTL time.Duration
}

func NewAssembler(finance *services.FinanceService, catalog *services.CatalogService, parties *services.PartyService, mem *memory.Service, cache *redis.Client, snapshotTTL time.Duration) *Assembler {
	if snapshotTTL <= 0 {
		snapshotTTL = 30 * time.Second
	}
	return &Assembler{
		finance:     finance,
		catalog:     catalog,
		parties:     parties,
		memory:      mem,
		cache:       cache,
		snapshotTTL: snapshotTTL,
	}
}

// Assemble renders the context block for one turn.
func (a *Assembler) Assemble(ctx context.Context, tenant string, userID int64, username string) string {
	var sections []string

	sections = append(sections, fmt.Sprintf("Date: %s\nUser: %s", time.Now().UTC().Format("2006-01-02"), username))

	if snap := a.snapshot(ctx, tenant); snap != nil {
		sections = append(sections, renderSnapshot(snap))
	}
	if entries := a.memory.Recall(ctx, tenant, userID); len(entries) > 0 {
		sections = append(sections, renderMemory(entries))
	}

	return strings.Join(sections, "\n\n")
}

// snapshot loads the live business figures, preferring the short-lived
// cache. A nil return means no figures could be gathered.
func (a *Assembler) snapshot(ctx context.Context, tenant string) *models.BusinessSnapshot {
	cacheKey := "briefing:snapshot:" + tenant
	if a.cache != nil {
		if raw, err := a.cache.Get(ctx, cacheKey); err == nil {
			var snap models.BusinessSnapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap
			}
		}
	}

	srcCtx, cancel := context.WithTimeout(ctx, sourceTimeout)
	defer cancel()

	snap := &models.BusinessSnapshot{}
	populated := false

	if fig, err := a.finance.Totals(srcCtx, tenant); err == nil {
		snap.Revenue = fig.Revenue
		snap.Expenses = fig.Expenses
		snap.Receivables = fig.Receivables
		snap.Liquidity = fig.Liquidity
		populated = true
	} else {
		log.Printf("briefing: finance totals unavailable: %v", err)
	}
	if total, low, err := a.catalog.Stats(srcCtx, tenant); err == nil {
		snap.ProductCount = total
		snap.LowStockCount = low
		populated = true
	} else {
		log.Printf("briefing: catalog stats unavailable: %v", err)
	}
	if n, err := a.parties.CountByRole(srcCtx, tenant, models.PartyCustomer); err == nil {
		snap.CustomerCount = n
		populated = true
	}
	if n, err := a.parties.CountByRole(srcCtx, tenant, models.PartySupplier); err == nil {
		snap.SupplierCount = n
	}
	if names, err := a.parties.RecentNames(srcCtx, tenant, 5); err == nil {
		snap.RecentParties = names
	}

	if !populated {
		return nil
	}
	if a.cache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := a.cache.Set(ctx, cacheKey, string(raw), a.snapshotTTL); err != nil {
				log.Printf("briefing: snapshot cache write failed: %v", err)
			}
		}
	}
	return snap
}

func renderSnapshot(snap *models.BusinessSnapshot) string {
	var b strings.Builder
	b.WriteString("Business snapshot:\n")
	writeFigure(&b, "revenue", snap.Revenue)
	writeFigure(&b, "expenses", snap.Expenses)
	writeFigure(&b, "outstanding balance", snap.Receivables)
	writeFigure(&b, "liquidity", snap.Liquidity)
	fmt.Fprintf(&b, "- products: %d (%d out of stock)\n", snap.ProductCount, snap.LowStockCount)
	fmt.Fprintf(&b, "- customers: %d, suppliers: %d\n", snap.CustomerCount, snap.SupplierCount)
	if len(snap.RecentParties) > 0 {
		fmt.Fprintf(&b, "- recent parties: %s\n", strings.Join(snap.RecentParties, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeFigure(b *strings.Builder, label string, value *float64) {
	if value == nil {
		fmt.Fprintf(b, "- %s: %s\n", label, notAvailable)
		return
	}
	fmt.Fprintf(b, "- %s: %.2f\n", label, *value)
}

func renderMemory(entries []models.MemoryEntry) string {
	var prefs, summaries []string
	for _, e := range entries {
		content := strings.TrimSpace(e.Content)
		if content == "" {
			continue
		}
		if e.Key == models.PreferenceKey {
			for _, line := range strings.Split(content, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					prefs = append(prefs, "- "+line)
				}
			}
			continue
		}
		summaries = append(summaries, "- "+content)
	}

	var sections []string
	if len(prefs) > 0 {
		sections = append(sections, "User preferences:\n"+strings.Join(prefs, "\n"))
	}
	if len(summaries) > 0 {
		sections = append(sections, "Recent conversation summaries:\n"+strings.Join(summaries, "\n"))
	}
	return strings.Join(sections, "\n\n")
}
