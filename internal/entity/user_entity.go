package entity

import (
	"encoding/json"
	"fmt"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "Admin"
	UserRoleStaff UserRole = "Staff"
)

// Storage keys shared by every credential store.
const (
	CredentialKeyToken = "token"
	CredentialKeyUser  = "user"
)

// User is the signed-in user record as handed out by the backend at sign-in.
// Top-level fields the kiosk does not interpret are kept verbatim in Extra and
// written back on save.
type User struct {
	Id       string                     `json:"id,omitempty"`
	Email    string                     `json:"email,omitempty"`
	FullName string                     `json:"fullName,omitempty"`
	Role     UserRole                   `json:"role" validate:"required"`
	Extra    map[string]json.RawMessage `json:"-"`
}

// Session is the client-held authenticated identity.
type Session struct {
	Token string `json:"token" validate:"required"`
	User  *User  `json:"user" validate:"required"`
}

func (r UserRole) String() string {
	return string(r)
}

func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*u = User{}
	known := map[string]interface{}{
		"id":       &u.Id,
		"email":    &u.Email,
		"fullName": &u.FullName,
		"role":     &u.Role,
	}
	for key, raw := range fields {
		dst, ok := known[key]
		if !ok {
			if u.Extra == nil {
				u.Extra = make(map[string]json.RawMessage)
			}
			u.Extra[key] = raw
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("user.%s: %w", key, err)
		}
	}
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(u.Extra)+4)
	for key, raw := range u.Extra {
		out[key] = raw
	}
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set("id", u.Id)
	set("email", u.Email)
	set("fullName", u.FullName)
	out["role"] = u.Role
	return json.Marshal(out)
}
