package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"daftarchat/internal/auth"
	"daftarchat/internal/models"
	"daftarchat/internal/orchestrator"
	"daftarchat/internal/provider"
	"daftarchat/internal/services"
)

// Handler wires HTTP routes to the assistant orchestrator.
type Handler struct {
	users     *services.UserService
	auth      *auth.Service
	sessions  *orchestrator.Manager
	selection *provider.Selection
}

// NewHandler constructs a Handler instance.
func NewHandler(users *services.UserService, authService *auth.Service, sessions *orchestrator.Manager, selection *provider.Selection) *Handler {
	return &Handler{
		users:     users,
		auth:      authService,
		sessions:  sessions,
		selection: selection,
	}
}

// check token userID is match with param userID
func (h *Handler) requirePathUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		paramID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || paramID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if paramID != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
			return
		}
		c.Next()
	}
}

func (h *Handler) authorizedUser(c *gin.Context) (*models.User, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil, false
	}
	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return user, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)
	authMW := h.auth.Middleware()
	userRoutes := api.Group("/users/:id")
	userRoutes.Use(authMW, h.requirePathUser(), h.auth.CSRFMiddleware())
	userRoutes.POST("/assistant/message", h.sendMessage)
	userRoutes.GET("/assistant/messages", h.getMessages)
	userRoutes.POST("/assistant/actions/confirm", h.confirmAction)
	userRoutes.POST("/assistant/actions/cancel", h.cancelAction)
	userRoutes.DELETE("/assistant/session", h.clearSession)
	userRoutes.GET("/provider", h.getProvider)
	userRoutes.PUT("/provider", h.setProvider)
	userRoutes.POST("/logout", h.logoutUser)
}

// User create&login interface
type credentialsRequest struct {
	Tenant   string `json:"tenant"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.users.Register(c.Request.Context(), req.Tenant, req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"tenant":     user.Tenant,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.users.Login(c.Request.Context(), req.Tenant, req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"tenant":     user.Tenant,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	h.sessions.Drop(user.ID)
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// Assistant turn interface
type messageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content cannot be empty"})
		return
	}
	session := h.sessions.Session(user.Tenant, user.ID, user.Username)
	result, err := session.SendMessage(c.Request.Context(), req.Content)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "another message is being processed, please retry"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getMessages(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	session := h.sessions.Session(user.Tenant, user.ID, user.Username)
	messages := session.Messages()
	if messages == nil {
		messages = make([]*models.ChatMessage, 0)
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type actionRequest struct {
	MessageID string `json:"message_id"`
	Index     int    `json:"index"`
}

func (h *Handler) confirmAction(c *gin.Context) {
	h.resolveAction(c, true)
}

func (h *Handler) cancelAction(c *gin.Context) {
	h.resolveAction(c, false)
}

func (h *Handler) resolveAction(c *gin.Context, confirm bool) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.MessageID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_id is required"})
		return
	}
	session := h.sessions.Session(user.Tenant, user.ID, user.Username)

	var (
		msg *models.ChatMessage
		err error
	)
	if confirm {
		msg, err = session.ConfirmAction(c.Request.Context(), req.MessageID, req.Index)
	} else {
		msg, err = session.CancelAction(c.Request.Context(), req.MessageID, req.Index)
	}
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrBusy):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "another operation is in flight, please retry"})
		case errors.Is(err, orchestrator.ErrActionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "pending action not found"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) clearSession(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	session := h.sessions.Session(user.Tenant, user.ID, user.Username)
	if err := session.Clear(c.Request.Context()); err != nil {
		if errors.Is(err, orchestrator.ErrBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "another operation is in flight, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Provider selection interface
func (h *Handler) getProvider(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	providerName, modelName, err := h.selection.Active(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider": providerName,
		"model":    modelName,
	})
}

func (h *Handler) setProvider(c *gin.Context) {
	user, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.selection.Set(c.Request.Context(), user.ID, req.Provider, req.Model); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
