package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/booking-iam/internal/config"
	"github.com/iliyamo/booking-iam/internal/handler"
	"github.com/iliyamo/booking-iam/internal/middleware"
	"github.com/iliyamo/booking-iam/internal/repository"
	"github.com/iliyamo/booking-iam/internal/service"
	"github.com/iliyamo/booking-iam/internal/utils"
)

const password = "P@ssw0rd!"

type app struct {
	e        *echo.Echo
	accounts *service.AccountService
}

func newApp(t *testing.T, rl config.RateLimitConfig) *app {
	t.Helper()
	key, err := utils.GenerateRSAKey()
	require.NoError(t, err)
	issuer, err := utils.NewJWTIssuer(key, "test-key", "booking-platform", "booking-platform-api")
	require.NoError(t, err)

	users := repository.NewMemoryUserRepo()
	tokens := repository.NewMemoryTokenRepo()
	log := zerolog.Nop()
	auth := service.NewAuthService(users, tokens, issuer, utils.BcryptMatcher{}, utils.SHA256Hasher{}, nil, service.Options{}, log)
	accounts := service.NewAccountService(users, tokens, utils.BcryptEncoder{Cost: bcrypt.MinCost}, nil, log)

	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(auth, accounts, log), issuer, middleware.NewTokenBucket(rl, nil, log))
	RegisterAdmin(e, handler.NewAdminHandler(accounts, log), issuer)
	return &app{e: e, accounts: accounts}
}

func permissive() config.RateLimitConfig {
	return config.RateLimitConfig{Enabled: false}
}

func (a *app) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *app) login(t *testing.T, email string) tokens {
	t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[tokens](t, rec)
}

func TestHealth(t *testing.T) {
	a := newApp(t, permissive())
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/readyz", "", "").Code)
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t, permissive())

	rec := a.do(http.MethodPost, "/v1/auth/register", `{"email":"Alice@Example.com","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acc := decode[map[string]any](t, rec)
	assert.Equal(t, "alice@example.com", acc["email"])
	assert.Equal(t, "active", acc["status"])

	rec = a.do(http.MethodPost, "/v1/auth/register", `{"email":"alice@example.com","password":"`+password+`"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	pair := a.login(t, "alice@example.com")
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.EqualValues(t, 900, pair.ExpiresIn)

	rec = a.do(http.MethodGet, "/v1/me", "", pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, acc["id"], me["user_id"])

	rec = a.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[tokens](t, rec)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	replay := a.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`, "")
	unknown := a.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, unknown.Body.String(), replay.Body.String())

	rec = a.do(http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "logout needs a bearer token")
	rec = a.do(http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated.RefreshToken+`"}`, rotated.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+rotated.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutOtherAccountsTokenIsForbidden(t *testing.T) {
	a := newApp(t, permissive())
	for _, email := range []string{"a@example.com", "b@example.com"} {
		rec := a.do(http.MethodPost, "/v1/auth/register", `{"email":"`+email+`","password":"`+password+`"}`, "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	alice := a.login(t, "a@example.com")
	bob := a.login(t, "b@example.com")

	rec := a.do(http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+alice.RefreshToken+`"}`, bob.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode[map[string]any](t, rec)["error"])
}

func TestLoginLockout(t *testing.T) {
	a := newApp(t, permissive())
	rec := a.do(http.MethodPost, "/v1/auth/register", `{"email":"c@example.com","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 5; i++ {
		rec = a.do(http.MethodPost, "/v1/auth/login", `{"email":"c@example.com","password":"wrong-pass"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec = a.do(http.MethodPost, "/v1/auth/login", `{"email":"c@example.com","password":"`+password+`"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_locked", decode[map[string]any](t, rec)["error"])
}

func TestLoginRateLimited(t *testing.T) {
	a := newApp(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	})
	body := `{"email":"ghost@example.com","password":"whatever1"}`
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/v1/auth/login", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/v1/auth/login", body, "").Code)

	rec := a.do(http.MethodPost, "/v1/auth/login", body, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	out := decode[map[string]any](t, rec)
	assert.Equal(t, "rate_limited", out["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// register is not limited
	rec = a.do(http.MethodPost, "/v1/auth/register", `{"email":"d@example.com","password":"`+password+`"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	a := newApp(t, permissive())
	_, err := a.accounts.EnsureAdmin(context.Background(), "root@example.com", password)
	require.NoError(t, err)
	rec := a.do(http.MethodPost, "/v1/auth/register", `{"email":"e@example.com","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["id"].(string)

	user := a.login(t, "e@example.com")
	admin := a.login(t, "root@example.com")

	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/suspend", "", user.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/suspend", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/lock", `{"duration":"45m"}`, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	locked := decode[map[string]any](t, rec)
	assert.Equal(t, "locked", locked["status"])
	assert.NotNil(t, locked["locked_until"])

	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/lock", `{"duration":"-1m"}`, admin.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/lock", `{"duration":"soon"}`, admin.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/unlock", "", admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", decode[map[string]any](t, rec)["status"])

	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/suspend", "", admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+user.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "suspension revokes sessions")

	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/reactivate", "", admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, "/v1/admin/accounts/"+id+"/reactivate", "", admin.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPut, "/v1/admin/accounts/"+id+"/password", `{"password":"N3w-P@ssword"}`, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, "/v1/auth/login", `{"email":"e@example.com","password":"N3w-P@ssword"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/v1/admin/accounts/missing", "", admin.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
