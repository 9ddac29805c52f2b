package model

import (
	"strings"
	"time"
)

// User is the authenticated identity returned by the auth endpoints.
type User struct {
	ID        int64     `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	FirstName string    `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
}

// DisplayName returns the combined name, the first/last pair, or "".
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegistrationVariant selects the field layout the register endpoint expects.
type RegistrationVariant string

const (
	// RegistrationSplit sends password confirmation and first/last name.
	RegistrationSplit RegistrationVariant = "split"
	// RegistrationCombined sends a single password and a combined name.
	RegistrationCombined RegistrationVariant = "combined"
)

// Registration holds every field either register variant may need.
type Registration struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	Name            string
}

// Payload builds the request body for the given variant.
func (r Registration) Payload(variant RegistrationVariant) map[string]string {
	switch variant {
	case RegistrationCombined:
		body := map[string]string{
			"email":    r.Email,
			"password": r.Password,
		}
		name := r.Name
		if name == "" {
			name = strings.TrimSpace(r.FirstName + " " + r.LastName)
		}
		if name != "" {
			body["name"] = name
		}
		return body
	default:
		confirm := r.PasswordConfirm
		if confirm == "" {
			confirm = r.Password
		}
		first, last := r.FirstName, r.LastName
		if first == "" && last == "" && r.Name != "" {
			first, last, _ = strings.Cut(r.Name, " ")
		}
		return map[string]string{
			"email":      r.Email,
			"password1":  r.Password,
			"password2":  confirm,
			"first_name": first,
			"last_name":  last,
		}
	}
}
