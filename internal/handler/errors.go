package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/repository"
	"github.com/iliyamo/booking-iam/internal/service"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorBody{Error: code, Message: msg})
}

// writeError maps a service error onto a status code and a client-safe
// body.  AuthError.Detail and unexpected errors only reach the log.
func writeError(c echo.Context, log zerolog.Logger, err error) error {
	if ae, ok := service.AsAuthError(err); ok {
		status := http.StatusUnauthorized
		if ae.Kind == service.KindForbidden {
			status = http.StatusForbidden
		}
		log.Debug().Str("code", ae.Code).Str("detail", ae.Detail).Msg("request rejected")
		return fail(c, status, ae.Code, ae.Message)
	}
	switch {
	case errors.Is(err, model.ErrPrecondition):
		return fail(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrAccountNotFound):
		return fail(c, http.StatusNotFound, "not_found", "account not found")
	case errors.Is(err, repository.ErrEmailExists):
		return fail(c, http.StatusConflict, "email_exists", "email already registered")
	case errors.Is(err, repository.ErrStaleAccount):
		return fail(c, http.StatusConflict, "conflict", "account was modified concurrently, retry")
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}
