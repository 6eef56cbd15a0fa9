package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tourbook-server/internal/auth"
	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/email"
	"github.com/tourbook/tourbook-server/internal/ratelimit"
	"github.com/tourbook/tourbook-server/internal/search"
	"github.com/tourbook/tourbook-server/internal/service"
	"github.com/tourbook/tourbook-server/internal/store/badgerstore"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// testServer wraps the API server with direct access to its services.
type testServer struct {
	*Server
	api    humatest.TestAPI
	sender *email.RecordingSender
}

type testOption func(*Config, *ratelimit.Limiter)

func withLimiter(l ratelimit.Limiter) testOption {
	return func(_ *Config, limiter *ratelimit.Limiter) { *limiter = l }
}

func withCredentialLimiter(l *ratelimit.KeyedRateLimiter) testOption {
	return func(cfg *Config, _ *ratelimit.Limiter) { cfg.CredentialLimiter = l }
}

func withMaxBody(n int64) testOption {
	return func(cfg *Config, _ *ratelimit.Limiter) { cfg.MaxBodyBytes = n }
}

func setupTestServer(t *testing.T, opts ...testOption) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := badgerstore.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := search.NewSearchIndex(search.Options{InMemory: true, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tokens, err := auth.NewTokenService(make([]byte, 32), time.Hour)
	require.NoError(t, err)

	sender := &email.RecordingSender{}
	v := validation.New()
	users := service.NewUserService(db, v, logger)

	services := &Services{
		Tours:   service.NewTourService(db, v, index, logger),
		Reviews: service.NewReviewService(db, v, logger),
		Users:   users,
		Auth:    service.NewAuthService(db, users, tokens, email.NewMailer(sender, logger), v, logger),
		Store:   db,
		Index:   index,
	}

	cfg := Config{
		CookieDuration: time.Hour,
		PublicURL:      "https://tours.example.com",
	}
	var limiter ratelimit.Limiter
	for _, opt := range opts {
		opt(&cfg, &limiter)
	}

	s := NewServer(services, cfg, limiter, logger)
	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		sender: sender,
	}
}

// testEnvelope mirrors Envelope for decoding responses.
type testEnvelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Results *int   `json:"results"`
	Token   string `json:"token"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func signupBody(name, addr string) map[string]any {
	return map[string]any{
		"name":            name,
		"email":           addr,
		"password":        "pass1234",
		"passwordConfirm": "pass1234",
	}
}

// signup registers a regular user through the API and returns its token and id.
func (ts *testServer) signup(t *testing.T, name, addr string) (token, userID string) {
	t.Helper()
	resp := ts.api.Post("/api/v1/users/signup", signupBody(name, addr))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	env := decode[UserData](t, resp)
	return env.Token, env.Data.User.ID
}

// userWithRole creates a user with role directly and logs them in.
func (ts *testServer) userWithRole(t *testing.T, name, addr string, role domain.Role) string {
	t.Helper()
	payload := signupBody(name, addr)
	payload["role"] = string(role)
	_, err := ts.services.Users.Create(context.Background(), payload)
	require.NoError(t, err)

	resp := ts.api.Post("/api/v1/users/login", map[string]any{"email": addr, "password": "pass1234"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decode[UserData](t, resp).Token
}

func (ts *testServer) createTour(t *testing.T, token, name string) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/tours", bearer(token), map[string]any{
		"name":         name,
		"duration":     5,
		"maxGroupSize": 10,
		"difficulty":   "easy",
		"price":        497,
		"summary":      "Exploring the jaw-dropping US east coast by foot and by boat",
		"imageCover":   "tour-2-cover.jpg",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[DocData[domain.Tour]](t, resp).Data.Data.ID
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/nope?x=1")

	assert.Equal(t, http.StatusNotFound, resp.Code)
	env := decode[any](t, resp)
	assert.Equal(t, "fail", env.Status)
	assert.Equal(t, "Can't find /api/v1/nope?x=1 on this server!", env.Message)
}

func TestSecurityHeaders(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")

	assert.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", resp.Header().Get("X-Frame-Options"))
	assert.Empty(t, resp.Header().Get("Strict-Transport-Security"))
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")

	require.Equal(t, http.StatusOK, resp.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, healthy, body.Status)
	assert.Equal(t, healthy, body.Components["database"].Status)
	assert.Equal(t, "0 tours indexed", body.Components["search"].Message)
}

func TestSignup_ReturnsTokenAndCookie(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/users/signup", signupBody("Laura Wilson", "Laura@Example.com"))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	env := decode[map[string]map[string]any](t, resp)
	assert.Equal(t, "success", env.Status)
	assert.NotEmpty(t, env.Token)
	assert.Equal(t, "laura@example.com", env.Data["user"]["email"])
	assert.Equal(t, "user", env.Data["user"]["role"])
	assert.NotContains(t, env.Data["user"], "password")

	cookie := resp.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(cookie, "jwt="+env.Token), cookie)
	assert.Contains(t, cookie, "HttpOnly")
}

func TestSignup_RefusesPrivilegedRole(t *testing.T) {
	ts := setupTestServer(t)

	body := signupBody("Mallory", "mallory@example.com")
	body["role"] = "admin"
	resp := ts.api.Post("/api/v1/users/signup", body)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "fail", decode[any](t, resp).Status)
}

func TestSignup_ValidationError(t *testing.T) {
	ts := setupTestServer(t)

	body := signupBody("Laura", "laura@example.com")
	body["passwordConfirm"] = "different"
	resp := ts.api.Post("/api/v1/users/signup", body)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	env := decode[any](t, resp)
	assert.Equal(t, "fail", env.Status)
	assert.Contains(t, env.Message, "Invalid input data.")
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)
	ts.signup(t, "Laura", "laura@example.com")

	t.Run("missing fields", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/users/login", map[string]any{"email": "laura@example.com"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "Please provide an email and password!", decode[any](t, resp).Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/users/login", map[string]any{"email": "laura@example.com", "password": "wrong-pass"})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, service.MsgInvalidCredentials, decode[any](t, resp).Message)
	})

	t.Run("success", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/users/login", map[string]any{"email": "laura@example.com", "password": "pass1234"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.NotEmpty(t, decode[UserData](t, resp).Token)
	})
}

func TestLogout_OverwritesCookie(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/users/logout")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Header().Get("Set-Cookie"), "jwt=loggedout"))
	assert.Equal(t, "success", decode[any](t, resp).Status)
}

func TestProtectedRoutes(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.signup(t, "Laura", "laura@example.com")

	t.Run("no token", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/users/me")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, service.MsgNotLoggedIn, decode[any](t, resp).Message)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/users/me", bearer("not-a-token"))
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, service.MsgInvalidToken, decode[any](t, resp).Message)
	})

	t.Run("bearer token", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/users/me", bearer(token))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, userID, decode[UserData](t, resp).Data.User.ID)
	})

	t.Run("cookie token", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/users/me", "Cookie: jwt="+token)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, userID, decode[UserData](t, resp).Data.User.ID)
	})
}

func TestRoleGates(t *testing.T) {
	ts := setupTestServer(t)
	userToken, _ := ts.signup(t, "Laura", "laura@example.com")
	adminToken := ts.userWithRole(t, "Admin", "admin@example.com", domain.RoleAdmin)

	resp := ts.api.Post("/api/v1/tours", bearer(userToken), map[string]any{"name": "The Sea Explorer"})
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, service.MsgNoPermission, decode[any](t, resp).Message)

	resp = ts.api.Get("/api/v1/users", bearer(userToken))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Get("/api/v1/users", bearer(adminToken))
	require.Equal(t, http.StatusOK, resp.Code)
	env := decode[UsersData](t, resp)
	require.NotNil(t, env.Results)
	assert.Equal(t, 2, *env.Results)
	for _, u := range env.Data.Users {
		assert.NotContains(t, u, "password")
	}
}

func TestTourLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	adminToken := ts.userWithRole(t, "Admin", "admin@example.com", domain.RoleAdmin)

	id := ts.createTour(t, adminToken, "The Sea Explorer")

	t.Run("list", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/tours?fields=name,price")
		require.Equal(t, http.StatusOK, resp.Code)
		env := decode[ToursData](t, resp)
		require.Equal(t, 1, *env.Results)
		assert.Equal(t, "The Sea Explorer", env.Data.Tours[0]["name"])
		assert.NotContains(t, env.Data.Tours[0], "summary")
	})

	t.Run("get by slug", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/tours/the-sea-explorer")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, id, decode[TourData](t, resp).Data.Tour.ID)
	})

	t.Run("update", func(t *testing.T) {
		resp := ts.api.Patch("/api/v1/tours/"+id, bearer(adminToken), map[string]any{"price": 599})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.InDelta(t, 599, decode[DocData[domain.Tour]](t, resp).Data.Data.Price, 0.001)
	})

	t.Run("search", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/tours/search?q=explorer")
		require.Equal(t, http.StatusOK, resp.Code)
		env := decode[SearchToursData](t, resp)
		require.Len(t, env.Data.Tours, 1)
		assert.Equal(t, id, env.Data.Tours[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.api.Delete("/api/v1/tours/"+id, bearer(adminToken))
		require.Equal(t, http.StatusNoContent, resp.Code)
		assert.Empty(t, resp.Body.String())

		resp = ts.api.Get("/api/v1/tours/" + id)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestTourGeoRoutes(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/tours/distances/34.1,-118.1/unit/parsec")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Get("/api/v1/tours/tours-within/200/center/34.1,-118.1/unit/mi")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0, *decode[any](t, resp).Results)
}

func TestNestedReviews(t *testing.T) {
	ts := setupTestServer(t)
	adminToken := ts.userWithRole(t, "Admin", "admin@example.com", domain.RoleAdmin)
	tourID := ts.createTour(t, adminToken, "The Forest Hiker")
	userToken, userID := ts.signup(t, "Laura", "laura@example.com")

	resp := ts.api.Post("/api/v1/tours/"+tourID+"/reviews", bearer(userToken), map[string]any{
		"review": "Amazing trip, would go again",
		"rating": 5,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	review := decode[DocData[domain.Review]](t, resp).Data.Data
	assert.Equal(t, tourID, review.Tour)
	assert.Equal(t, userID, review.User)

	t.Run("admins cannot review", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/tours/"+tourID+"/reviews", bearer(adminToken), map[string]any{
			"review": "Nice", "rating": 4,
		})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("cannot post as another user", func(t *testing.T) {
		_, benID := ts.signup(t, "Ben", "ben@example.com")
		resp := ts.api.Post("/api/v1/reviews", bearer(userToken), map[string]any{
			"review": "Posted under someone else's name",
			"rating": 1,
			"tour":   tourID,
			"user":   benID,
		})
		assert.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, service.MsgNotReviewAuthor, decode[any](t, resp).Message)
	})

	t.Run("list for tour", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/tours/"+tourID+"/reviews", bearer(userToken))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 1, *decode[ReviewsData](t, resp).Results)
	})

	t.Run("other users cannot edit", func(t *testing.T) {
		otherToken, _ := ts.signup(t, "Jonas", "jonas@example.com")
		resp := ts.api.Patch("/api/v1/reviews/"+review.ID, bearer(otherToken), map[string]any{"rating": 1})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("admin can delete", func(t *testing.T) {
		resp := ts.api.Delete("/api/v1/reviews/"+review.ID, bearer(adminToken))
		assert.Equal(t, http.StatusNoContent, resp.Code)
	})
}

func TestUpdateMe(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.signup(t, "Laura", "laura@example.com")

	resp := ts.api.Patch("/api/v1/users/update-me", bearer(token), map[string]any{"password": "newpass123"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "This route is not for password update!", decode[any](t, resp).Message)

	resp = ts.api.Patch("/api/v1/users/update-me", bearer(token), map[string]any{"name": "Laura W", "role": "admin"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	user := decode[UserData](t, resp).Data.User
	assert.Equal(t, "Laura W", user.Name)
	assert.Equal(t, domain.RoleUser, user.Role)
}

func TestDeleteMe_DeactivatesAccount(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.signup(t, "Laura", "laura@example.com")

	resp := ts.api.Delete("/api/v1/users/delete-me", bearer(token))
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Post("/api/v1/users/login", map[string]any{"email": "laura@example.com", "password": "pass1234"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

var resetLink = regexp.MustCompile(`href="([^"]+)"`)

func TestForgotAndResetPassword(t *testing.T) {
	ts := setupTestServer(t)
	ts.signup(t, "Laura", "laura@example.com")

	resp := ts.api.Post("/api/v1/users/forgot-password", map[string]any{"email": "laura@example.com"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, service.MsgResetSent, decode[any](t, resp).Message)

	msgs := ts.sender.Messages()
	require.Len(t, msgs, 1)
	match := resetLink.FindStringSubmatch(msgs[0].HTML)
	require.Len(t, match, 2)
	prefix := "https://tours.example.com/api/v1/users/reset-password/"
	require.True(t, strings.HasPrefix(match[1], prefix), match[1])
	token := strings.TrimPrefix(match[1], prefix)

	resp = ts.api.Patch("/api/v1/users/reset-password/"+token, map[string]any{
		"password":        "brandnew123",
		"passwordConfirm": "brandnew123",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.NotEmpty(t, decode[UserData](t, resp).Token)

	resp = ts.api.Patch("/api/v1/users/reset-password/"+token, map[string]any{
		"password":        "another123",
		"passwordConfirm": "another123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, service.MsgInvalidResetToken, decode[any](t, resp).Message)

	resp = ts.api.Post("/api/v1/users/login", map[string]any{"email": "laura@example.com", "password": "brandnew123"})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/users/forgot-password", map[string]any{"email": "ghost@example.com"})

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Empty(t, ts.sender.Messages())
}

func TestUpdatePassword(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.signup(t, "Laura", "laura@example.com")

	resp := ts.api.Patch("/api/v1/users/update-password", bearer(token), map[string]any{
		"currentPassword":    "wrong-pass",
		"newPassword":        "brandnew123",
		"newPasswordConfirm": "brandnew123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Patch("/api/v1/users/update-password", bearer(token), map[string]any{
		"currentPassword":    "pass1234",
		"newPassword":        "brandnew123",
		"newPasswordConfirm": "brandnew123",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.NotEmpty(t, decode[UserData](t, resp).Token)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewWindow(2, time.Hour)
	t.Cleanup(func() { _ = limiter.Close() })
	ts := setupTestServer(t, withLimiter(limiter))

	for range 2 {
		resp := ts.api.Get("/api/v1/tours")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "2", resp.Header().Get("X-RateLimit-Limit"))
	}

	resp := ts.api.Get("/api/v1/tours")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "0", resp.Header().Get("X-RateLimit-Remaining"))
	reset, err := strconv.Atoi(resp.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, reset, 3500, "the budget returns when the hour is over")
	assert.Equal(t, RateLimitMessage, decode[any](t, resp).Message)

	// Outside /api is not limited.
	resp = ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCredentialThrottle(t *testing.T) {
	limiter := ratelimit.PerMinute(1, 2)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, withCredentialLimiter(limiter))

	creds := map[string]any{"email": "nobody@example.com", "password": "wrongpass1"}
	for range 2 {
		resp := ts.api.Post("/api/v1/users/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := ts.api.Post("/api/v1/users/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, ThrottleMessage, decode[any](t, resp).Message)

	resp = ts.api.Post("/api/v1/users/forgot-password", map[string]any{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code, "the budget is shared by credential routes")

	// Other routes are not throttled.
	resp = ts.api.Get("/api/v1/tours")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestBodyLimit(t *testing.T) {
	ts := setupTestServer(t, withMaxBody(1024))

	body := signupBody(strings.Repeat("a", 2048), "big@example.com")
	resp := ts.api.Post("/api/v1/users/signup", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	assert.Equal(t, "fail", decode[any](t, resp).Status)
}
