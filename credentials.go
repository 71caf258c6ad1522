package whispers

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// Credentials carries the fields of a local signup or login form.
type Credentials struct {
	Email    string
	Username string // optional, not required unique
	Password string
}

// SignupValidator validates credentials during registration.
type SignupValidator func(creds *Credentials) error

// CredentialsValidator validates a login attempt and returns the
// authenticated account, or ErrInvalidCredentials.
type CredentialsValidator func(ctx context.Context, email, password string) (*Account, error)

// CreateAccountFunc creates a new local account from validated signup
// credentials.
type CreateAccountFunc func(ctx context.Context, creds *Credentials) (*Account, error)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// DefaultSignupValidator provides sensible default validation for signup.
var DefaultSignupValidator SignupValidator = func(creds *Credentials) error {
	if creds.Email == "" {
		return fmt.Errorf("email required")
	}
	if !emailRegex.MatchString(creds.Email) {
		return fmt.Errorf("invalid email format")
	}
	// Password: minimum 8 characters
	if len(creds.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// HashPassword hashes a plaintext password for storage. The bcrypt
// output embeds the salt and cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// NewCredentialsValidator builds a CredentialsValidator on top of an
// AccountStore. A missing account, a federated-only account (no stored
// hash) and a wrong password all collapse into ErrInvalidCredentials so
// the failure mode is not observable from the outside.
func NewCredentialsValidator(store AccountStore) CredentialsValidator {
	return func(ctx context.Context, email, password string) (*Account, error) {
		account, err := store.GetAccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}

		if account.PasswordHash == nil {
			return nil, ErrInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		return account, nil
	}
}

// NewCreateAccountFunc builds a CreateAccountFunc on top of an
// AccountStore.
func NewCreateAccountFunc(store AccountStore) CreateAccountFunc {
	return func(ctx context.Context, creds *Credentials) (*Account, error) {
		passwordHash, err := HashPassword(creds.Password)
		if err != nil {
			return nil, err
		}
		return store.CreateLocalAccount(ctx, creds.Email, passwordHash, creds.Username)
	}
}
