package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"daftarchat/internal/auth"
	"daftarchat/internal/briefing"
	"daftarchat/internal/config"
	"daftarchat/internal/dispatch"
	"daftarchat/internal/memory"
	"daftarchat/internal/models"
	"daftarchat/internal/orchestrator"
	"daftarchat/internal/provider"
	"daftarchat/internal/services"
	"daftarchat/internal/storage"
)

// scriptedGenerator replays canned replies in order.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
}

func (s *scriptedGenerator) Generate(context.Context, int64, string, string, provider.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return "OK.", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func newTestServer(t *testing.T, gen *scriptedGenerator) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	users := services.NewUserService(db)
	parties := services.NewPartyService(db)
	catalog := services.NewCatalogService(db)
	finance := services.NewFinanceService(db)
	prefs := services.NewPrefsService(db)
	mem := memory.NewService(memory.NewStore(db), gen, 5, 4)
	assembler := briefing.NewAssembler(finance, catalog, parties, mem, nil, 0)
	dispatcher := dispatch.NewDispatcher(parties, catalog, finance, prefs)
	sessions := orchestrator.NewManager(gen, assembler, dispatcher, mem)

	authSvc := auth.NewService(db, time.Hour)
	selection := provider.NewSelection(db)
	handler := NewHandler(users, authSvc, sessions, selection)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func registerAndLogin(t *testing.T, router *gin.Engine) (int64, map[string]string) {
	t.Helper()
	username := fmt.Sprintf("tester_%d", time.Now().UnixNano())
	password := "pass123"
	regResp := doJSONRequest(t, router, http.MethodPost, "/api/users/register", map[string]string{
		"tenant":   "acme",
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, regResp, http.StatusCreated)
	var regBody struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, regResp.Body.Bytes(), &regBody)

	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/users/login", map[string]string{
		"tenant":   "acme",
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, loginResp, http.StatusOK)
	var loginBody struct {
		AuthToken string `json:"auth_token"`
	}
	decodeJSON(t, loginResp.Body.Bytes(), &loginBody)
	if loginBody.AuthToken == "" {
		t.Fatalf("expected auth token after login")
	}
	return regBody.ID, map[string]string{"Authorization": "Bearer " + loginBody.AuthToken}
}

func TestAssistantTurnEndToEnd(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		`Adding the customer now.
[ACTION]{"action":"add_customer","params":{"name":"أحمد"},"confirmation":"Add customer أحمد?"}[/ACTION]`,
	}}
	router, db := newTestServer(t, gen)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)

	sendResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/assistant/message", userID),
		map[string]string{"content": "add customer أحمد"},
		authHeader)
	assertStatus(t, sendResp, http.StatusOK)

	var turn struct {
		Message struct {
			ID             string                    `json:"id"`
			Content        string                    `json:"content"`
			PendingActions []models.ActionDescriptor `json:"pending_actions"`
		} `json:"message"`
	}
	decodeJSON(t, sendResp.Body.Bytes(), &turn)
	if len(turn.Message.PendingActions) != 1 {
		t.Fatalf("expected 1 pending action, got %d", len(turn.Message.PendingActions))
	}

	// confirming executes the action and empties the pending list
	confirmResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/assistant/actions/confirm", userID),
		map[string]interface{}{"message_id": turn.Message.ID, "index": 0},
		authHeader)
	assertStatus(t, confirmResp, http.StatusOK)

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM parties WHERE role = 'customer'`).Scan(&count); err != nil {
		t.Fatalf("query parties: %v", err)
	}
	if count != 1 {
		t.Fatalf("confirmed action did not execute")
	}

	// a repeated confirm against the consumed index is a 404
	confirmAgain := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/assistant/actions/confirm", userID),
		map[string]interface{}{"message_id": turn.Message.ID, "index": 0},
		authHeader)
	assertStatus(t, confirmAgain, http.StatusNotFound)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	router, db := newTestServer(t, &scriptedGenerator{})
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	resp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/assistant/message", userID),
		map[string]string{"content": "   "},
		authHeader)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestRoutesRequireAuth(t *testing.T) {
	router, db := newTestServer(t, &scriptedGenerator{})
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost,
		"/api/users/1/assistant/message",
		map[string]string{"content": "hi"}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestUserMismatchForbidden(t *testing.T) {
	router, db := newTestServer(t, &scriptedGenerator{})
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	resp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/assistant/message", userID+99),
		map[string]string{"content": "hi"},
		authHeader)
	assertStatus(t, resp, http.StatusForbidden)
}

func TestProviderSelectionRoundTrip(t *testing.T) {
	router, db := newTestServer(t, &scriptedGenerator{})
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)

	putResp := doJSONRequest(t, router, http.MethodPut,
		fmt.Sprintf("/api/users/%d/provider", userID),
		map[string]string{"provider": "gemini", "model": "gemini-2.0-flash"},
		authHeader)
	assertStatus(t, putResp, http.StatusNoContent)

	getResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/provider", userID), nil, authHeader)
	assertStatus(t, getResp, http.StatusOK)
	var body struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	}
	decodeJSON(t, getResp.Body.Bytes(), &body)
	if body.Provider != "gemini" || body.Model != "gemini-2.0-flash" {
		t.Fatalf("unexpected selection: %+v", body)
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"hello there"}}
	router, db := newTestServer(t, gen)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)

	sendResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/assistant/message", userID),
		map[string]string{"content": "hi"},
		authHeader)
	assertStatus(t, sendResp, http.StatusOK)

	clearResp := doJSONRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/api/users/%d/assistant/session", userID), nil, authHeader)
	assertStatus(t, clearResp, http.StatusNoContent)

	listResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/assistant/messages", userID), nil, authHeader)
	assertStatus(t, listResp, http.StatusOK)
	var body struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &body)
	if len(body.Messages) != 0 {
		t.Fatalf("expected empty history after clear, got %d", len(body.Messages))
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	router, db := newTestServer(t, &scriptedGenerator{})
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	logoutResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/logout", userID), nil, authHeader)
	assertStatus(t, logoutResp, http.StatusNoContent)

	afterResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/assistant/message", userID),
		map[string]string{"content": "hi"},
		authHeader)
	assertStatus(t, afterResp, http.StatusUnauthorized)
}
