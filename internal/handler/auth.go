package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-iam/internal/middleware"
	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/service"
)

// requestTimeout bounds store calls made on behalf of one request.
const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     *service.AuthService
	Accounts *service.AccountService
	Log      zerolog.Logger
}

func NewAuthHandler(auth *service.AuthService, accounts *service.AccountService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Accounts: accounts, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type accountResp struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toTokenResp(p service.TokenPair) tokenResp {
	return tokenResp{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

func toAccountResp(a *model.Account) accountResp {
	out := accountResp{
		ID:             a.ID(),
		Email:          a.Email().Value(),
		Role:           a.Role(),
		Status:         a.Status().String(),
		FailedAttempts: a.FailedAttempts(),
		CreatedAt:      a.CreatedAt(),
	}
	if until, ok := a.LockedUntil(); ok {
		out.LockedUntil = &until
	}
	return out
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Register creates an account. It does not log the caller in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "invalid_request", "email and password are required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	acc, err := h.Accounts.Register(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toAccountResp(acc))
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "invalid_request", "email and password are required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	pair, err := h.Auth.Login(ctx, service.LoginCommand{
		Email:     req.Email,
		Password:  req.Password,
		ClientIP:  c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(pair))
}

// Refresh rotates the presented refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(pair))
}

// Logout revokes one refresh token owned by the authenticated caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid body")
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		return fail(c, http.StatusBadRequest, "invalid_request", "refresh_token required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, raw, middleware.UserID(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me echoes the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": middleware.UserID(c),
		"roles":   middleware.Roles(c),
	})
}
