package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/service"
)

// loggedOutTTL is how long the placeholder cookie set on logout lives.
const loggedOutTTL = 10 * time.Second

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/api/v1/users/signup",
		Summary:       "Sign up",
		Description:   "Creates a regular user account and signs it in",
		Tags:          []string{"Authentication"},
		MaxBodyBytes:  s.bodyLimit(),
		DefaultStatus: http.StatusCreated,
	}, s.handleSignup)

	huma.Register(s.api, huma.Operation{
		OperationID:  "login",
		Method:       http.MethodPost,
		Path:         "/api/v1/users/login",
		Summary:      "User login",
		Description:  "Checks email and password and returns a session token",
		Tags:         []string{"Authentication"},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/logout",
		Summary:     "Logout",
		Description: "Overwrites the session cookie with a short-lived placeholder",
		Tags:        []string{"Authentication"},
	}, s.handleLogout)

	huma.Register(s.api, huma.Operation{
		OperationID:  "forgotPassword",
		Method:       http.MethodPost,
		Path:         "/api/v1/users/forgot-password",
		Summary:      "Forgot password",
		Description:  "Emails a password reset link valid for ten minutes",
		Tags:         []string{"Authentication"},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleForgotPassword)

	huma.Register(s.api, huma.Operation{
		OperationID:  "resetPassword",
		Method:       http.MethodPatch,
		Path:         "/api/v1/users/reset-password/{token}",
		Summary:      "Reset password",
		Description:  "Sets a new password with an emailed reset token and signs the user in",
		Tags:         []string{"Authentication"},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleResetPassword)

	huma.Register(s.api, huma.Operation{
		OperationID:  "updatePassword",
		Method:       http.MethodPatch,
		Path:         "/api/v1/users/update-password",
		Summary:      "Update password",
		Description:  "Changes the password of the signed-in user after checking the current one",
		Tags:         []string{"Authentication"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleUpdatePassword)
}

// === DTOs ===

// UserData holds one user.
type UserData struct {
	User *domain.UserView `json:"user"`
}

// AuthOutput is the response of every route that signs a user in. The token
// is returned in the body and mirrored into the jwt cookie.
type AuthOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      Envelope[UserData]
}

// LoginBody holds login credentials. Missing fields are reported by the
// service with its own message.
type LoginBody struct {
	_        struct{} `json:"-" additionalProperties:"true"`
	Email    string   `json:"email,omitempty" doc:"Email address"`
	Password string   `json:"password,omitempty" doc:"Password"`
}

// LoginInput wraps the login body.
type LoginInput struct {
	Body LoginBody
}

// LogoutOutput clears the session cookie.
type LogoutOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Status string `json:"status" example:"success"`
	}
}

// ForgotPasswordBody names the account to reset.
type ForgotPasswordBody struct {
	_     struct{} `json:"-" additionalProperties:"true"`
	Email string   `json:"email,omitempty" doc:"Email address of the account"`
}

// ForgotPasswordInput carries the account email and the origin the request
// was made against, used for the emailed link.
type ForgotPasswordInput struct {
	Body   ForgotPasswordBody
	origin string
}

// Resolve implements huma.Resolver.
func (i *ForgotPasswordInput) Resolve(ctx huma.Context) []error {
	scheme := "http"
	if ctx.TLS() != nil || strings.EqualFold(ctx.Header("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	i.origin = scheme + "://" + ctx.Host()
	return nil
}

// ResetPasswordBody holds the new password.
type ResetPasswordBody struct {
	_               struct{} `json:"-" additionalProperties:"true"`
	Password        string   `json:"password,omitempty" doc:"New password, at least 8 characters"`
	PasswordConfirm string   `json:"passwordConfirm,omitempty" doc:"Repeat of the new password"`
}

// ResetPasswordInput addresses a reset by its emailed token.
type ResetPasswordInput struct {
	Token string `path:"token" doc:"Plaintext reset token from the email"`
	Body  ResetPasswordBody
}

// UpdatePasswordBody holds a password change.
type UpdatePasswordBody struct {
	_                  struct{} `json:"-" additionalProperties:"true"`
	CurrentPassword    string   `json:"currentPassword,omitempty" doc:"Current password"`
	NewPassword        string   `json:"newPassword,omitempty" doc:"New password, at least 8 characters"`
	NewPasswordConfirm string   `json:"newPasswordConfirm,omitempty" doc:"Repeat of the new password"`
}

// UpdatePasswordInput wraps the password change.
type UpdatePasswordInput struct {
	Body UpdatePasswordBody
}

// === Handlers ===

func (s *Server) handleSignup(ctx context.Context, input *PayloadInput) (*AuthOutput, error) {
	result, err := s.services.Auth.Signup(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return s.signedIn(result), nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	result, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return s.signedIn(result), nil
}

func (s *Server) handleLogout(_ context.Context, _ *struct{}) (*LogoutOutput, error) {
	out := &LogoutOutput{SetCookie: s.sessionCookie("loggedout", loggedOutTTL)}
	out.Body.Status = "success"
	return out, nil
}

func (s *Server) handleForgotPassword(ctx context.Context, input *ForgotPasswordInput) (*MessageOutput, error) {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		base = input.origin
	}
	resetURL := func(token string) string {
		return base + "/api/v1/users/reset-password/" + token
	}

	if err := s.services.Auth.ForgotPassword(ctx, input.Body.Email, resetURL); err != nil {
		return nil, err
	}

	out := &MessageOutput{}
	out.Body.Status = "success"
	out.Body.Message = service.MsgResetSent
	return out, nil
}

func (s *Server) handleResetPassword(ctx context.Context, input *ResetPasswordInput) (*AuthOutput, error) {
	result, err := s.services.Auth.ResetPassword(ctx, input.Token, service.ResetPasswordRequest{
		Password:        input.Body.Password,
		PasswordConfirm: input.Body.PasswordConfirm,
	})
	if err != nil {
		return nil, err
	}
	return s.signedIn(result), nil
}

func (s *Server) handleUpdatePassword(ctx context.Context, input *UpdatePasswordInput) (*AuthOutput, error) {
	actor, err := s.protect(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Auth.UpdatePassword(ctx, actor, service.UpdatePasswordRequest{
		CurrentPassword:    input.Body.CurrentPassword,
		NewPassword:        input.Body.NewPassword,
		NewPasswordConfirm: input.Body.NewPasswordConfirm,
	})
	if err != nil {
		return nil, err
	}
	return s.signedIn(result), nil
}

// signedIn renders a session: the token in the body and in the jwt cookie,
// and the user without credentials.
func (s *Server) signedIn(result *service.AuthResult) *AuthOutput {
	return &AuthOutput{
		SetCookie: s.sessionCookie(result.Token, s.cfg.CookieDuration),
		Body: Envelope[UserData]{
			Status: "success",
			Token:  result.Token,
			Data:   UserData{User: result.User.View()},
		},
	}
}

func (s *Server) sessionCookie(value string, ttl time.Duration) http.Cookie {
	return http.Cookie{
		Name:     jwtCookie,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
