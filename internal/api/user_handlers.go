package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tourbook/tourbook-server/internal/domain"
	"github.com/tourbook/tourbook-server/internal/query"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's information",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID:  "updateCurrentUser",
		Method:       http.MethodPatch,
		Path:         "/api/v1/users/update-me",
		Summary:      "Update current user",
		Description:  "Changes name, email or photo. Passwords are changed through update-password.",
		Tags:         []string{"Users"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleUpdateCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteCurrentUser",
		Method:        http.MethodDelete,
		Path:          "/api/v1/users/delete-me",
		Summary:       "Deactivate current user",
		Description:   "Marks the account inactive; it can no longer sign in",
		Tags:          []string{"Users"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createUser",
		Method:        http.MethodPost,
		Path:          "/api/v1/users",
		Summary:       "Create user",
		Description:   "Creates a user with any role",
		Tags:          []string{"Users"},
		Security:      []map[string][]string{{"bearer": {}}},
		MaxBodyBytes:  s.bodyLimit(),
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get user",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID:  "updateUser",
		Method:       http.MethodPatch,
		Path:         "/api/v1/users/{id}",
		Summary:      "Update user",
		Description:  "Password fields are ignored",
		Tags:         []string{"Users"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: s.bodyLimit(),
	}, s.handleUpdateUser)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteUser",
		Method:        http.MethodDelete,
		Path:          "/api/v1/users/{id}",
		Summary:       "Delete user",
		Tags:          []string{"Users"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteUser)
}

// === DTOs ===

// UsersData holds projected users.
type UsersData struct {
	Users []map[string]any `json:"users"`
}

// === Handlers ===

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*Output[UserData], error) {
	actor, err := s.protect(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.services.Users.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return ok(UserData{User: user.View()}), nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *PayloadInput) (*Output[UserData], error) {
	actor, err := s.protect(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.services.Users.UpdateMe(ctx, actor, input.Body)
	if err != nil {
		return nil, err
	}
	return ok(UserData{User: user.View()}), nil
}

func (s *Server) handleDeleteCurrentUser(ctx context.Context, _ *struct{}) (*struct{}, error) {
	actor, err := s.protect(ctx)
	if err != nil {
		return nil, err
	}
	return nil, s.services.Users.DeleteMe(ctx, actor)
}

func (s *Server) handleListUsers(ctx context.Context, input *ListInput) (*Output[UsersData], error) {
	if _, err := s.restrictTo(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	page, err := s.services.Users.List(ctx, input.Values())
	if err != nil {
		return nil, err
	}
	users, err := query.ProjectAll(domain.Views(page.Items), page.Projection)
	if err != nil {
		return nil, err
	}
	return okList(len(users), UsersData{Users: users}), nil
}

func (s *Server) handleCreateUser(ctx context.Context, input *PayloadInput) (*Output[DocData[*domain.UserView]], error) {
	if _, err := s.restrictTo(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.services.Users.Create(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return ok(DocData[*domain.UserView]{Data: user.View()}), nil
}

func (s *Server) handleGetUser(ctx context.Context, input *IDInput) (*Output[UserData], error) {
	if _, err := s.restrictTo(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.services.Users.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return ok(UserData{User: user.View()}), nil
}

func (s *Server) handleUpdateUser(ctx context.Context, input *IDPayloadInput) (*Output[DocData[*domain.UserView]], error) {
	if _, err := s.restrictTo(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.services.Users.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return ok(DocData[*domain.UserView]{Data: user.View()}), nil
}

func (s *Server) handleDeleteUser(ctx context.Context, input *IDInput) (*struct{}, error) {
	if _, err := s.restrictTo(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return nil, s.services.Users.Delete(ctx, input.ID)
}
