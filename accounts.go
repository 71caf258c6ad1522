package whispers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider is the closed set of authentication mechanisms. Handlers for
// the enabled providers are resolved once at startup; nothing dispatches
// on free-form provider strings at request time.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

func (p Provider) String() string { return string(p) }

func (p Provider) Valid() error {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderFacebook:
		return nil
	default:
		return fmt.Errorf("unknown provider: %q", p)
	}
}

// Federated reports whether the provider is an external identity
// provider rather than local password auth.
func (p Provider) Federated() bool {
	return p == ProviderGoogle || p == ProviderFacebook
}

// Account is the sole persistent entity: an identity plus the user's
// optional submitted secret.
//
// Email and the per-provider subject IDs are each unique when present.
// Username carries no uniqueness guarantee and is never used as a key;
// it only decorates the secrets listing. An account holds a password
// hash, a federated subject ID, or both (after the same person signs up
// both ways against the same email).
type Account struct {
	ID                string
	Email             *string
	PasswordHash      *string
	Username          *string
	GoogleSubjectID   *string
	FacebookSubjectID *string
	Secret            *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasSecret reports whether the account has ever submitted a secret.
func (a *Account) HasSecret() bool { return a.Secret != nil && *a.Secret != "" }

// DisplayName picks a presentable handle for listings.
func (a *Account) DisplayName() string {
	if a.Username != nil && *a.Username != "" {
		return *a.Username
	}
	if a.Email != nil && *a.Email != "" {
		return *a.Email
	}
	return "anonymous"
}

// NewAccountID generates the opaque primary key for a new account.
func NewAccountID() string { return uuid.NewString() }

// AccountStore is the persistence boundary for accounts.
//
// Lookups return ErrAccountNotFound for missing records and wrap any
// transport or driver failure with ErrStoreUnavailable so callers can
// degrade instead of crashing.
type AccountStore interface {
	// CreateLocalAccount creates an account from a local registration.
	// The email must not already belong to an account (ErrEmailTaken).
	CreateLocalAccount(ctx context.Context, email, passwordHash, username string) (*Account, error)

	// GetAccountByID retrieves an account by its primary key.
	GetAccountByID(ctx context.Context, id string) (*Account, error)

	// GetAccountByEmail retrieves an account by its unique email.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// EnsureFederatedAccount finds the account holding the provider's
	// subject ID, creating one with only that field populated if none
	// exists. The find-or-create is a single atomic conditional insert
	// against the unique subject-id column: concurrent first logins for
	// the same subject resolve to exactly one account. Returns the
	// account and whether it was newly created.
	EnsureFederatedAccount(ctx context.Context, provider Provider, subjectID string) (*Account, bool, error)

	// SetSecret overwrites the account's submitted secret. Each
	// submission replaces the previous value.
	SetSecret(ctx context.Context, accountID, secret string) error

	// AccountsWithSecrets returns exactly the accounts that have a
	// non-empty submitted secret.
	AccountsWithSecrets(ctx context.Context) ([]*Account, error)
}
