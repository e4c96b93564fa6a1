package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/nerrad567/homesim-core/internal/infrastructure/config"
)

// Authenticator checks the single configured login.
type Authenticator struct {
	username     string
	password     string
	passwordHash string
}

// NewAuthenticator creates an Authenticator from the login config. A
// password_hash, when set, is decoded up front so a typo fails at startup
// rather than on the first login.
func NewAuthenticator(cfg config.LoginConfig) (*Authenticator, error) {
	if cfg.PasswordHash != "" {
		if _, err := parsePHC(cfg.PasswordHash); err != nil {
			return nil, fmt.Errorf("login password hash: %w", err)
		}
	}
	return &Authenticator{
		username:     cfg.Username,
		password:     cfg.Password,
		passwordHash: cfg.PasswordHash,
	}, nil
}

// Verify returns nil when username and password match the configured
// login, ErrInvalidCredentials otherwise.
func (a *Authenticator) Verify(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	var passOK bool
	if a.passwordHash != "" {
		ok, err := VerifyPassword(password, a.passwordHash)
		if err != nil {
			return fmt.Errorf("verifying password: %w", err)
		}
		passOK = ok
	} else {
		passOK = a.password != "" && subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	}

	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}
