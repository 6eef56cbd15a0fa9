package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tourbook/tourbook-server/internal/auth"
	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/email"
	domainerrors "github.com/tourbook/tourbook-server/internal/errors"
	"github.com/tourbook/tourbook-server/internal/query"
	"github.com/tourbook/tourbook-server/internal/store"
	"github.com/tourbook/tourbook-server/internal/validation"
)

// Messages returned by the authentication flows.
const (
	MsgNotLoggedIn        = "You're not logged in!"
	MsgInvalidToken       = "Invalid token. Please log in again!"
	MsgUserGone           = "The user no longer exists"
	MsgUserInactive       = "This user is no longer active"
	MsgPasswordChanged    = "Password has changed, please login again"
	MsgNoPermission       = "You don't have permission to perform this action!"
	MsgResetSent          = "Password reset token sent to user email"
	MsgResetSendFailed    = "There was an error sending the email. Try again"
	MsgInvalidResetToken  = "Invalid or expired token"
	MsgInvalidCredentials = "Invalid email or password"
)

// signupFields are the payload fields honoured by signup.
var signupFields = []string{"name", "email", "photo", "password", "passwordConfirm", "role"}

// AuthService implements signup, login, token checks and the password flows.
type AuthService struct {
	users     store.Collection[domain.User]
	accounts  *UserService
	tokens    *auth.TokenService
	mailer    *email.Mailer
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an authentication service.
func NewAuthService(
	st store.Store,
	accounts *UserService,
	tokens *auth.TokenService,
	mailer *email.Mailer,
	v *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     st.Users(),
		accounts:  accounts,
		tokens:    tokens,
		mailer:    mailer,
		validator: v,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult is a signed-in user and their session token.
type AuthResult struct {
	Token string
	User  *domain.User
}

// LoginRequest holds login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest holds the new password of a reset.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=1024"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdatePasswordRequest holds a password change of a signed-in user.
type UpdatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword" validate:"required,min=8,max=1024"`
	NewPasswordConfirm string `json:"newPasswordConfirm" validate:"required,eqfield=NewPassword"`
}

// Signup creates a regular user and signs them in. Any role other than
// "user" is refused before anything is stored; no role means "user".
func (s *AuthService) Signup(ctx context.Context, payload map[string]any) (*AuthResult, error) {
	if role, ok := payload["role"]; ok && role != nil && role != "" && role != string(domain.RoleUser) {
		return nil, domainerrors.Forbidden("You can't sign up as an admin!")
	}

	filtered := make(map[string]any, len(signupFields))
	for _, field := range signupFields {
		if v, ok := payload[field]; ok {
			filtered[field] = v
		}
	}

	user, err := s.accounts.Create(ctx, filtered)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return s.issue(user)
}

// Login checks credentials and signs the user in.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if req.Email == "" || req.Password == "" {
		return nil, domainerrors.Validation("Please provide an email and password!")
	}

	user, err := s.users.FindOne(ctx, query.Eq("email", domain.NormalizeEmail(req.Email)))
	if err != nil {
		if store.IsNotFound(err) {
			// Don't leak whether the email exists
			return nil, domainerrors.Unauthorized(MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(user.Password, req.Password) {
		return nil, domainerrors.Unauthorized(MsgInvalidCredentials)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return s.issue(user)
}

// Authenticate resolves the user behind a session token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domainerrors.Unauthorized(MsgNotLoggedIn)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, MsgInvalidToken)
	}

	user, err := s.users.FindByIDUnscoped(ctx, claims.UserID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.Unauthorized(MsgUserGone)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive() {
		return nil, domainerrors.Unauthorized(MsgUserInactive)
	}
	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, domainerrors.Unauthorized(MsgPasswordChanged)
	}
	return user, nil
}

// Authorize refuses actors whose role is not in roles.
func Authorize(actor *domain.User, roles ...domain.Role) error {
	if actor == nil || !actor.HasRole(roles...) {
		return domainerrors.Forbidden(MsgNoPermission)
	}
	return nil
}

// ForgotPassword stores a reset token for the account of addr and emails its
// plaintext inside resetURL(token). When the mail cannot be sent the token is
// withdrawn again.
func (s *AuthService) ForgotPassword(ctx context.Context, addr string, resetURL func(token string) string) error {
	user, err := s.users.FindOne(ctx, query.Eq("email", domain.NormalizeEmail(addr)))
	if err != nil {
		if store.IsNotFound(err) {
			return domainerrors.NotFound("User not found")
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	plain, hashed, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(auth.ResetTokenTTL).UTC()
	if _, err := s.users.FindByIDAndUpdate(ctx, user.ID, map[string]any{
		"passwordResetToken":      hashed,
		"passwordResetExpiration": expires,
	}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, resetURL(plain)); err != nil {
		s.logger.Error("password reset email failed", "user_id", user.ID, "error", err)
		if _, clearErr := s.users.FindByIDAndUpdate(ctx, user.ID, clearedReset()); clearErr != nil {
			s.logger.Error("failed to clear reset token", "user_id", user.ID, "error", clearErr)
		}
		return domainerrors.Wrap(err, domainerrors.CodeTransport, MsgResetSendFailed)
	}
	return nil
}

// ResetPassword sets a new password for the holder of a live reset token and
// signs them in. The token is single use.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*AuthResult, error) {
	user, err := s.users.FindOne(ctx,
		query.Eq("passwordResetToken", auth.HashResetToken(token)),
		query.Predicate{Field: "passwordResetExpiration", Op: query.OpGt, Value: s.now().UTC()},
	)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.InvalidOrExpired(MsgInvalidResetToken)
		}
		return nil, fmt.Errorf("lookup reset token: %w", err)
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return nil, err
	}

	s.logger.Info("password reset", "user_id", user.ID)
	return s.issue(user)
}

// UpdatePassword changes the actor's password after checking the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, actor *domain.User, req UpdatePasswordRequest) (*AuthResult, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.Unauthorized(MsgUserGone)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(user.Password, req.CurrentPassword) {
		return nil, domainerrors.Unauthorized("Current password is not valid")
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, req.NewPassword); err != nil {
		return nil, err
	}

	s.logger.Info("password updated", "user_id", user.ID)
	return s.issue(user)
}

// setPassword stores the hash of password, stamps passwordChangedAt one
// second in the past and clears any reset token.
func (s *AuthService) setPassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) {
			return domainerrors.Validation("Invalid input data. password is required")
		}
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().Add(-time.Second).UTC()
	user.Password = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpiration = nil

	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Sign(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func clearedReset() map[string]any {
	return map[string]any{
		"passwordResetToken":      "",
		"passwordResetExpiration": nil,
	}
}
