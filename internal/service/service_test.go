package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tourbook-server/internal/auth"
	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/email"
	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
	"github.com/tourbook/tourbook-server/internal/search"
	"github.com/tourbook/tourbook-server/internal/store/badgerstore"
	"github.com/tourbook/tourbook-server/internal/validation"
)

type testEnv struct {
	db      *badgerstore.DB
	index   *search.SearchIndex
	sender  *email.RecordingSender
	tokens  *auth.TokenService
	tours   *TourService
	reviews *ReviewService
	users   *UserService
	auth    *AuthService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

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
	users := NewUserService(db, v, logger)

	return &testEnv{
		db:      db,
		index:   index,
		sender:  sender,
		tokens:  tokens,
		tours:   NewTourService(db, v, index, logger),
		reviews: NewReviewService(db, v, logger),
		users:   users,
		auth:    NewAuthService(db, users, tokens, email.NewMailer(sender, logger), v, logger),
	}
}

func tourPayload(name string, price float64) map[string]any {
	return map[string]any{
		"name":         name,
		"duration":     5,
		"maxGroupSize": 10,
		"difficulty":   "easy",
		"price":        price,
		"summary":      "Breathtaking hike through the Canadian Banff National Park",
		"imageCover":   "tour-1-cover.jpg",
	}
}

func userPayload(name, addr string) map[string]any {
	return map[string]any{
		"name":            name,
		"email":           addr,
		"password":        "pass1234",
		"passwordConfirm": "pass1234",
	}
}

func (e *testEnv) createTour(t *testing.T, name string, price float64) *domain.Tour {
	t.Helper()
	tour, err := e.tours.Create(context.Background(), tourPayload(name, price))
	require.NoError(t, err)
	return tour
}

func (e *testEnv) createUser(t *testing.T, name, addr string, role domain.Role) *domain.User {
	t.Helper()
	payload := userPayload(name, addr)
	payload["role"] = string(role)
	u, err := e.users.Create(context.Background(), payload)
	require.NoError(t, err)
	return u
}

func assertCode(t *testing.T, err error, code domainerrors.Code) *domainerrors.Error {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
	return de
}
