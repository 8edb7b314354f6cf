package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/northbridge/tenderops/internal/alerts"
	"github.com/northbridge/tenderops/internal/analytics"
	"github.com/northbridge/tenderops/internal/auth"
	"github.com/northbridge/tenderops/internal/db"
	"github.com/northbridge/tenderops/internal/models"
	"github.com/northbridge/tenderops/internal/pipeline"
)

type Server struct {
	Echo        *echo.Echo
	Tenders     *db.TenderStore
	Alerts      *db.AlertStore
	Pipeline    *pipeline.Service
	Engine      *alerts.Engine
	Escalator   *alerts.Escalator
	Flusher     *alerts.DigestFlusher
	Reporter    *analytics.Reporter
	AuthService *auth.Service

	sanitizer *bluemonday.Policy
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

type Deps struct {
	Tenders   *db.TenderStore
	Alerts    *db.AlertStore
	Pipeline  *pipeline.Service
	Engine    *alerts.Engine
	Escalator *alerts.Escalator
	Flusher   *alerts.DigestFlusher
	Reporter  *analytics.Reporter
	Auth      *auth.Service
}

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:        e,
		Tenders:     deps.Tenders,
		Alerts:      deps.Alerts,
		Pipeline:    deps.Pipeline,
		Engine:      deps.Engine,
		Escalator:   deps.Escalator,
		Flusher:     deps.Flusher,
		Reporter:    deps.Reporter,
		AuthService: deps.Auth,
		sanitizer:   bluemonday.StrictPolicy(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Pipeline lifecycle
	bpo := api.Group("/bpo/lifecycle")
	bpo.GET("", s.handleListTenders)
	bpo.POST("", s.handleCreateTender)
	bpo.GET("/dashboard/stats", s.handleDashboardStats)
	bpo.GET("/dashboard/deadlines", s.handleDeadlines)
	bpo.POST("/renewal/:renewalId/move", s.handlePromoteRenewal)
	bpo.GET("/:id", s.handleGetTender)
	bpo.PATCH("/:id", s.handleUpdateTender)
	bpo.DELETE("/:id", s.handleDeleteTender)
	bpo.POST("/:id/move", s.handleMoveStage)
	bpo.POST("/:id/decision", s.handleDecision)
	bpo.GET("/:id/audit", s.handleAudit)

	// Alerting. Rule mutations and the bulk acknowledge are signed-in-only;
	// everything else stays open for the dashboard frontend.
	al := api.Group("/alerts")
	al.GET("/rules", s.handleListRules)
	al.POST("/rules", s.handleCreateRule, auth.Middleware)
	al.GET("/rules/:id", s.handleGetRule)
	al.PATCH("/rules/:id", s.handleUpdateRule, auth.Middleware)
	al.DELETE("/rules/:id", s.handleDeleteRule, auth.Middleware)
	al.GET("/history", s.handleListHistory)
	al.POST("/history/:id/acknowledge", s.handleAcknowledge)
	al.POST("/history/mark-all-read", s.handleMarkAllRead, auth.Middleware)
	al.GET("/unread-count", s.handleUnreadCount)
	al.POST("/trigger", s.handleTriggerAlerts)
	al.GET("/preferences", s.handleGetPreferences)
	al.PATCH("/preferences", s.handleUpdatePreferences)

	// Analytics (read-only)
	an := api.Group("/escalation-analytics")
	an.GET("/report", s.handleAnalyticsReport)
	an.GET("/leaderboard", s.handleLeaderboard)
	an.GET("/insights", s.handleInsights)
	an.GET("/dashboard", s.handleAnalyticsDashboard)
	an.GET("/admin/:adminId", s.handleAdminReport)
	an.GET("/export", s.handleAnalyticsExport)

	// Admin operations (manual sweeps)
	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/escalations/sweep", s.handleSweepEscalations)
	admin.POST("/digests/flush", s.handleFlushDigests)
	admin.POST("/rules/sweep", s.handleSweepRules)
}

// ok and fail are the uniform response envelope.
func ok(c echo.Context, code int, data any) error {
	return c.JSON(code, map[string]any{"success": true, "data": data})
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{"success": false, "error": msg})
}

// failErr maps the shared error sentinels onto status codes; anything
// unrecognized is a 500 with the detail kept out of the response body.
func failErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrInvalidStage):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrValidation):
		return fail(c, http.StatusBadRequest, err.Error())
	}
	c.Logger().Errorf("internal error: %v", err)
	return fail(c, http.StatusInternalServerError, "internal server error")
}

// clean strips any markup from free-text input fields.
func (s *Server) clean(v string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(v))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = s.clean(req.DisplayName)
	if req.Email == "" || len(req.Password) < 8 {
		return fail(c, http.StatusBadRequest, "email and a password of at least 8 characters are required")
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return fail(c, http.StatusConflict, err.Error())
		}
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, resp)
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return fail(c, http.StatusInternalServerError, "server admin configuration error")
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return fail(c, http.StatusUnauthorized, "unauthorized admin access")
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
