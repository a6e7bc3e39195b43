package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"daftarchat/internal/briefing"
	"daftarchat/internal/config"
	"daftarchat/internal/dispatch"
	"daftarchat/internal/memory"
	"daftarchat/internal/provider"
	"daftarchat/internal/services"
	"daftarchat/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

// fakeGenerator replays scripted replies and records every call.
type fakeGenerator struct {
	mu        sync.Mutex
	replies   []string
	systems   []string
	block     chan struct{}
	started   chan struct{}
	startOnce sync.Once
}

func (f *fakeGenerator) Generate(_ context.Context, _ int64, _, system string, _ provider.Options) (string, error) {
	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.systems = append(f.systems, system)
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func newTestSession(t *testing.T, gen *fakeGenerator) (*Session, *sql.DB) {
	t.Helper()
	db := openTestDB(t)
	parties := services.NewPartyService(db)
	catalog := services.NewCatalogService(db)
	finance := services.NewFinanceService(db)
	prefs := services.NewPrefsService(db)

	mem := memory.NewService(memory.NewStore(db), gen, 5, 4)
	assembler := briefing.NewAssembler(finance, catalog, parties, mem, nil, 0)
	dispatcher := dispatch.NewDispatcher(parties, catalog, finance, prefs)

	return NewSession("acme", 1, "alice", gen, assembler, dispatcher, mem), db
}

func TestIsAutoExecute(t *testing.T) {
	for _, action := range []string{"search_product", "navigate", "toggle_theme"} {
		if !IsAutoExecute(action) {
			t.Fatalf("%s should auto-execute", action)
		}
	}
	for _, action := range []string{"add_customer", "add_expense", "unknown_thing", ""} {
		if IsAutoExecute(action) {
			t.Fatalf("%s should require confirmation", action)
		}
	}
}

func TestSendMessageAutoExecutesInOrder(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		`Opening pages.
[ACTION]{"action":"navigate","params":{"page":"invoices"}}[/ACTION]
[ACTION]{"action":"navigate","params":{"page":"reports"}}[/ACTION]`,
	}}
	session, db := newTestSession(t, gen)
	defer db.Close()

	result, err := session.SendMessage(context.Background(), "open invoices then reports")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if len(result.NavTargets) != 2 || result.NavTargets[0] != "invoices" || result.NavTargets[1] != "reports" {
		t.Fatalf("navigation out of order: %+v", result.NavTargets)
	}
	if len(result.Message.PendingActions) != 0 {
		t.Fatalf("auto-executed actions must not stay pending: %+v", result.Message.PendingActions)
	}
	first := strings.Index(result.Message.Content, "invoices")
	second := strings.Index(result.Message.Content, "reports")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("outcomes out of order: %q", result.Message.Content)
	}
}

func TestSendMessageHoldsWritesPending(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		`Sure.
[ACTION]{"action":"add_customer","params":{"name":"أحمد"},"confirmation":"Add customer أحمد?"}[/ACTION]`,
	}}
	session, db := newTestSession(t, gen)
	defer db.Close()

	result, err := session.SendMessage(context.Background(), "add customer أحمد")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if len(result.Message.PendingActions) != 1 {
		t.Fatalf("expected 1 pending action, got %d", len(result.Message.PendingActions))
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM parties`).Scan(&count); err != nil {
		t.Fatalf("query parties: %v", err)
	}
	if count != 0 {
		t.Fatalf("pending action must not touch the database")
	}
}

func TestConfirmActionExecutesAndSplices(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		`Two things.
[ACTION]{"action":"add_customer","params":{"name":"A"},"confirmation":"Add A?"}[/ACTION]
[ACTION]{"action":"add_supplier","params":{"name":"B"},"confirmation":"Add B?"}[/ACTION]`,
	}}
	session, db := newTestSession(t, gen)
	defer db.Close()
	ctx := context.Background()

	result, err := session.SendMessage(ctx, "add A and B")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	msgID := result.Message.ID
	if len(result.Message.PendingActions) != 2 {
		t.Fatalf("expected 2 pending actions")
	}

	msg, err := session.ConfirmAction(ctx, msgID, 0)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(msg.PendingActions) != 1 || msg.PendingActions[0].Action != "add_supplier" {
		t.Fatalf("splice failed: %+v", msg.PendingActions)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM parties WHERE role = 'customer'`).Scan(&count); err != nil {
		t.Fatalf("query parties: %v", err)
	}
	if count != 1 {
		t.Fatalf("confirmed action did not execute")
	}

	// remaining action sits at index 0 after the splice
	msg, err = session.ConfirmAction(ctx, msgID, 0)
	if err != nil {
		t.Fatalf("confirm second: %v", err)
	}
	if msg.PendingActions != nil {
		t.Fatalf("expected pending list to become absent, got %+v", msg.PendingActions)
	}

	if _, err := session.ConfirmAction(ctx, msgID, 0); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestCancelActionSkipsExecution(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		`OK.
[ACTION]{"action":"add_expense","params":{"description":"fuel","amount":20},"confirmation":"Record 20 for fuel?"}[/ACTION]`,
	}}
	session, db := newTestSession(t, gen)
	defer db.Close()
	ctx := context.Background()

	result, err := session.SendMessage(ctx, "record fuel expense")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}

	msg, err := session.CancelAction(ctx, result.Message.ID, 0)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(msg.Content, "🚫 Canceled: Record 20 for fuel?") {
		t.Fatalf("cancellation not recorded: %q", msg.Content)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM expenses`).Scan(&count); err != nil {
		t.Fatalf("query expenses: %v", err)
	}
	if count != 0 {
		t.Fatalf("canceled action must not execute")
	}
}

func TestSendMessageBusyGuard(t *testing.T) {
	gen := &fakeGenerator{
		replies: []string{"slow reply"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	session, db := newTestSession(t, gen)
	defer db.Close()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := session.SendMessage(ctx, "first"); err != nil {
			t.Errorf("first send: %v", err)
		}
	}()

	// wait until the first turn holds the guard inside Generate
	<-gen.started
	if _, err := session.SendMessage(ctx, "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(gen.block)
	<-done
}

func TestMessagesWaitsForInFlightTurn(t *testing.T) {
	gen := &fakeGenerator{
		replies: []string{"slow reply"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	session, db := newTestSession(t, gen)
	defer db.Close()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := session.SendMessage(ctx, "hello"); err != nil {
			t.Errorf("send: %v", err)
		}
	}()
	<-gen.started

	// a history read issued mid-turn must deliver the conversation once
	// the turn settles, never an empty snapshot
	snapshot := make(chan int, 1)
	go func() { snapshot <- len(session.Messages()) }()

	close(gen.block)
	<-done
	if n := <-snapshot; n != 2 {
		t.Fatalf("expected 2 messages from mid-turn read, got %d", n)
	}
}

func TestClearSummarizesLongSessions(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"reply one", "reply two", "a summary", "[]"}}
	session, db := newTestSession(t, gen)
	defer db.Close()
	ctx := context.Background()

	if _, err := session.SendMessage(ctx, "first"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := session.SendMessage(ctx, "second"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := session.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(session.Messages()) != 0 {
		t.Fatalf("messages survived clear")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM memories WHERE mem_key LIKE 'summary:%'`).Scan(&count); err != nil {
		t.Fatalf("query memories: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stored summary, got %d", count)
	}
}

func TestClearSkipsShortSessions(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"only reply"}}
	session, db := newTestSession(t, gen)
	defer db.Close()
	ctx := context.Background()

	if _, err := session.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := session.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		t.Fatalf("query memories: %v", err)
	}
	if count != 0 {
		t.Fatalf("short session must not be summarized")
	}
}

func TestMalformedBlockStaysInContent(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		`Look: [ACTION]{broken[/ACTION] done.`,
	}}
	session, db := newTestSession(t, gen)
	defer db.Close()

	result, err := session.SendMessage(context.Background(), "do something")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if !strings.Contains(result.Message.Content, "[ACTION]{broken[/ACTION]") {
		t.Fatalf("malformed block lost: %q", result.Message.Content)
	}
	if len(result.Message.PendingActions) != 0 {
		t.Fatalf("malformed block produced actions")
	}
}

func TestManagerReusesSession(t *testing.T) {
	gen := &fakeGenerator{}
	db := openTestDB(t)
	defer db.Close()
	parties := services.NewPartyService(db)
	catalog := services.NewCatalogService(db)
	finance := services.NewFinanceService(db)
	prefs := services.NewPrefsService(db)
	mem := memory.NewService(memory.NewStore(db), gen, 5, 4)
	assembler := briefing.NewAssembler(finance, catalog, parties, mem, nil, 0)
	dispatcher := dispatch.NewDispatcher(parties, catalog, finance, prefs)

	mgr := NewManager(gen, assembler, dispatcher, mem)
	a := mgr.Session("acme", 1, "alice")
	b := mgr.Session("acme", 1, "alice")
	if a != b {
		t.Fatalf("expected the same session instance")
	}
	mgr.Drop(1)
	c := mgr.Session("acme", 1, "alice")
	if a == c {
		t.Fatalf("expected a fresh session after drop")
	}
}
