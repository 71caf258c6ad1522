package whispers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/panyam/whispers"
	"github.com/panyam/whispers/stores"
)

func setupTestStore(t *testing.T) whispers.AccountStore {
	t.Helper()
	return stores.NewFSAccountStore(t.TempDir())
}

func TestCredentialsValidator(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createAccount := whispers.NewCreateAccountFunc(store)
	validate := whispers.NewCredentialsValidator(store)

	registered, err := createAccount(ctx, &whispers.Credentials{
		Email:    "a@x.com",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("createAccount failed: %v", err)
	}

	// A federated-only account has no password to log in with.
	if _, _, err := store.EnsureFederatedAccount(ctx, whispers.ProviderGoogle, "goog-123"); err != nil {
		t.Fatalf("EnsureFederatedAccount failed: %v", err)
	}
	fedAccount, _, err := store.EnsureFederatedAccount(ctx, whispers.ProviderGoogle, "goog-123")
	if err != nil {
		t.Fatalf("EnsureFederatedAccount lookup failed: %v", err)
	}
	if fedAccount.Email != nil {
		t.Fatalf("expected federated-only account to have no email")
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"same pair succeeds", "a@x.com", "password1", nil},
		{"mutated password fails", "a@x.com", "password2", whispers.ErrInvalidCredentials},
		{"unknown email fails", "b@x.com", "password1", whispers.ErrInvalidCredentials},
		{"empty password fails", "a@x.com", "", whispers.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := validate(ctx, tt.email, tt.password)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if account.ID != registered.ID {
					t.Errorf("expected account %s, got %s", registered.ID, account.ID)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultSignupValidator(t *testing.T) {
	tests := []struct {
		name    string
		creds   whispers.Credentials
		wantErr bool
	}{
		{"valid", whispers.Credentials{Email: "a@x.com", Password: "password1"}, false},
		{"valid with username", whispers.Credentials{Email: "a@x.com", Username: "someone", Password: "password1"}, false},
		{"missing email", whispers.Credentials{Password: "password1"}, true},
		{"bad email", whispers.Credentials{Email: "not-an-email", Password: "password1"}, true},
		{"weak password", whispers.Credentials{Email: "a@x.com", Password: "pass"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := whispers.DefaultSignupValidator(&tt.creds)
			if (err != nil) != tt.wantErr {
				t.Errorf("got err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestHashPasswordRoundtrip(t *testing.T) {
	hash, err := whispers.HashPassword("hunter222")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter222" || hash == "" {
		t.Fatalf("expected non-trivial hash, got %q", hash)
	}

	// Two hashes of the same password differ (per-hash salt).
	hash2, err := whispers.HashPassword("hunter222")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == hash2 {
		t.Errorf("expected salted hashes to differ")
	}
}
