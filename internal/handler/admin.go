package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/service"
)

// AdminHandler exposes account administration. Routes are guarded by the
// admin role in the router.
type AdminHandler struct {
	Accounts *service.AccountService
	Log      zerolog.Logger
}

func NewAdminHandler(accounts *service.AccountService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{Accounts: accounts, Log: log}
}

type lockReq struct {
	Duration string `json:"duration"` // Go duration, e.g. "45m"
}

type passwordReq struct {
	Password string `json:"password"`
}

type accountAction func(ctx context.Context, id string) (*model.Account, error)

// run applies action to the account named by :id and renders the result.
func (h *AdminHandler) run(c echo.Context, action accountAction) error {
	id := c.Param("id")
	if id == "" {
		return fail(c, http.StatusBadRequest, "invalid_request", "account id required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	acc, err := action(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toAccountResp(acc))
}

func (h *AdminHandler) Get(c echo.Context) error { return h.run(c, h.Accounts.Get) }

func (h *AdminHandler) Unlock(c echo.Context) error { return h.run(c, h.Accounts.Unlock) }

func (h *AdminHandler) LockIndefinitely(c echo.Context) error {
	return h.run(c, h.Accounts.LockIndefinitely)
}

func (h *AdminHandler) Suspend(c echo.Context) error { return h.run(c, h.Accounts.Suspend) }

func (h *AdminHandler) Reactivate(c echo.Context) error { return h.run(c, h.Accounts.Reactivate) }

// Lock locks the account for the requested duration.
func (h *AdminHandler) Lock(c echo.Context) error {
	var req lockReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid body")
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", "duration must be a duration such as 30m")
	}
	return h.run(c, func(ctx context.Context, id string) (*model.Account, error) {
		return h.Accounts.Lock(ctx, id, d)
	})
}

// ChangePassword replaces the credential and ends every session.
func (h *AdminHandler) ChangePassword(c echo.Context) error {
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid body")
	}
	return h.run(c, func(ctx context.Context, id string) (*model.Account, error) {
		return h.Accounts.ChangePassword(ctx, id, req.Password)
	})
}
