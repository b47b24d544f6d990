package auth

import "errors"

// ErrIncompleteIdentity is returned when a provider profile lacks one of
// the fields required to log in.
var ErrIncompleteIdentity = errors.New("auth: incomplete identity")

// Identity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
type Identity struct {
	Provider string // e.g. "github", "google"
	Username string // provider-scoped unique identifier
	Name     string
	Email    string
	Image    string // avatar URL, optional
}

// Validate reports ErrIncompleteIdentity unless provider, username,
// name and email are all present.
func (i Identity) Validate() error {
	if i.Provider == "" || i.Username == "" || i.Name == "" || i.Email == "" {
		return ErrIncompleteIdentity
	}
	return nil
}
