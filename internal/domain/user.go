package domain

import (
	"strings"
	"time"
)

// Role represents the user's permission level in the system.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// DefaultPhoto is assigned to users without a photo.
const DefaultPhoto = "default.jpg"

// User is an account. Password holds the argon2id hash once persisted.
type User struct {
	Document                `bson:",inline"`
	Name                    string     `json:"name" bson:"name" validate:"required,max=100"`
	Email                   string     `json:"email" bson:"email" validate:"required,email,max=254"`
	Photo                   string     `json:"photo" bson:"photo"`
	Role                    Role       `json:"role" bson:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password                string     `json:"password" bson:"password" validate:"required,min=8,max=1024"`
	PasswordConfirm         string     `json:"passwordConfirm" bson:"-" validate:"required,eqfield=Password"`
	PasswordChangedAt       *time.Time `json:"passwordChangedAt,omitempty" bson:"passwordChangedAt,omitempty"`
	PasswordResetToken      string     `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpiration *time.Time `json:"-" bson:"passwordResetExpiration,omitempty"`
	Active                  *bool      `json:"-" bson:"active"`
}

// SetDefaults implements Defaulter.
func (u *User) SetDefaults() {
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}
	if u.Active == nil {
		active := true
		u.Active = &active
	}
}

// IsActive reports whether the account has not been deactivated.
func (u *User) IsActive() bool {
	return u.Active == nil || *u.Active
}

// ChangedPasswordAfter reports whether the password changed after a token was issued.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Truncate(time.Second).After(issuedAt.Truncate(time.Second))
}

// HasRole reports whether the user holds one of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Summary returns the guide-facing view of the user.
func (u *User) Summary() GuideSummary {
	return GuideSummary{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.Photo, Role: u.Role}
}

// Author returns the author view embedded in reviews.
func (u *User) Author() *Author {
	return &Author{ID: u.ID, Name: u.Name, Photo: u.Photo}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserView is the rendered form of a user. Credentials never leave the server.
type UserView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Photo             string     `json:"photo"`
	Role              Role       `json:"role"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
}

// View returns the rendered form of u.
func (u *User) View() *UserView {
	return &UserView{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Photo:             u.Photo,
		Role:              u.Role,
		PasswordChangedAt: u.PasswordChangedAt,
	}
}

// Views renders a list of users.
func Views(users []*User) []*UserView {
	out := make([]*UserView, len(users))
	for i, u := range users {
		out[i] = u.View()
	}
	return out
}
