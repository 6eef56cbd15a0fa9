package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/tourbook/tourbook-server/internal/auth"
	"github.com/tourbook/tourbook-server/internal/domain"
	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
	"github.com/tourbook/tourbook-server/internal/store"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// Fields a user may change on their own profile.
var selfUpdatableFields = []string{"name", "email", "photo"}

// UserService handles user administration and self-service profile updates.
type UserService struct {
	users   store.Collection[domain.User]
	factory *Factory[domain.User]
	logger  *slog.Logger
}

// NewUserService creates a user service.
func NewUserService(st store.Store, v *validation.Validator, logger *slog.Logger) *UserService {
	return &UserService{
		users: st.Users(),
		factory: NewFactory[domain.User](st.Users(), v,
			WithReadOnly[domain.User]("password", "passwordChangedAt"),
			WithBeforeCreate(hashPassword),
			WithBeforeUpdate(normalizeEmail),
			WithLogger[domain.User](logger),
		),
		logger: logger,
	}
}

// List runs a user query. Inactive users are never listed.
func (s *UserService) List(ctx context.Context, raw url.Values) (*Page[domain.User], error) {
	return s.factory.GetAll(ctx, raw)
}

// Get returns an active user.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.factory.GetOne(ctx, id)
}

// Create inserts a user on behalf of an admin. Any role may be assigned.
func (s *UserService) Create(ctx context.Context, payload map[string]any) (*domain.User, error) {
	return s.factory.CreateOne(ctx, payload)
}

// Update patches a user. Password fields are ignored.
func (s *UserService) Update(ctx context.Context, id string, payload map[string]any) (*domain.User, error) {
	return s.factory.UpdateOne(ctx, id, payload)
}

// Delete removes a user for good.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.factory.DeleteOne(ctx, id)
}

// UpdateMe changes the actor's name, email or photo. Password changes are
// rejected; they go through the password update flow.
func (s *UserService) UpdateMe(ctx context.Context, actor *domain.User, payload map[string]any) (*domain.User, error) {
	_, hasPassword := payload["password"]
	_, hasConfirm := payload["passwordConfirm"]
	if hasPassword || hasConfirm {
		return nil, domainerrors.Validation("This route is not for password update!")
	}

	filtered := make(map[string]any, len(selfUpdatableFields))
	for _, field := range selfUpdatableFields {
		if v, ok := payload[field]; ok {
			filtered[field] = v
		}
	}
	return s.factory.UpdateOne(ctx, actor.ID, filtered)
}

// DeleteMe deactivates the actor's account. The document is kept.
func (s *UserService) DeleteMe(ctx context.Context, actor *domain.User) error {
	if _, err := s.users.FindByIDAndUpdate(ctx, actor.ID, map[string]any{"active": false}); err != nil {
		if store.IsNotFound(err) {
			return domainerrors.NotFound(NotFoundMessage)
		}
		return fmt.Errorf("deactivate user: %w", err)
	}
	s.logger.Info("user deactivated", "user_id", actor.ID)
	return nil
}

// hashPassword replaces the validated plaintext with its argon2id hash.
func hashPassword(_ context.Context, u *domain.User) error {
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = hash
	u.PasswordConfirm = ""
	return nil
}

func normalizeEmail(_ context.Context, _ string, patch *domain.User, set map[string]any) error {
	if _, ok := set["email"]; ok {
		set["email"] = domain.NormalizeEmail(patch.Email)
	}
	return nil
}
