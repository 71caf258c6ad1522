// Package stores provides a filesystem-backed AccountStore. Accounts are
// JSON files; uniqueness of email and provider subject IDs is enforced
// with index files claimed via O_EXCL, which makes find-or-create atomic
// across goroutines sharing the store. Intended for development and
// tests; production uses the gorm subpackage.
package stores

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panyam/whispers"
)

// FSAccountStore stores accounts as JSON files under StoragePath.
type FSAccountStore struct {
	StoragePath string

	mu sync.Mutex // serializes read-modify-write of account files
}

func NewFSAccountStore(storagePath string) *FSAccountStore {
	return &FSAccountStore{StoragePath: storagePath}
}

// fsAccount is the on-disk shape of an account.
type fsAccount struct {
	ID                string    `json:"id"`
	Email             *string   `json:"email,omitempty"`
	PasswordHash      *string   `json:"password_hash,omitempty"`
	Username          *string   `json:"username,omitempty"`
	GoogleSubjectID   *string   `json:"google_subject_id,omitempty"`
	FacebookSubjectID *string   `json:"facebook_subject_id,omitempty"`
	Secret            *string   `json:"secret,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (a *fsAccount) toAccount() *whispers.Account {
	return &whispers.Account{
		ID:                a.ID,
		Email:             a.Email,
		PasswordHash:      a.PasswordHash,
		Username:          a.Username,
		GoogleSubjectID:   a.GoogleSubjectID,
		FacebookSubjectID: a.FacebookSubjectID,
		Secret:            a.Secret,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func fromAccount(a *whispers.Account) *fsAccount {
	return &fsAccount{
		ID:                a.ID,
		Email:             a.Email,
		PasswordHash:      a.PasswordHash,
		Username:          a.Username,
		GoogleSubjectID:   a.GoogleSubjectID,
		FacebookSubjectID: a.FacebookSubjectID,
		Secret:            a.Secret,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func (s *FSAccountStore) accountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", id+".json")
}

// indexPath maps a unique key (email or provider subject id) to the file
// holding the owning account's ID.
func (s *FSAccountStore) indexPath(kind, value string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(value))
	return filepath.Join(s.StoragePath, "by"+kind, name)
}

func (s *FSAccountStore) CreateLocalAccount(ctx context.Context, email, passwordHash, username string) (*whispers.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	account := &fsAccount{
		ID:           whispers.NewAccountID(),
		Email:        &email,
		PasswordHash: &passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if username != "" {
		account.Username = &username
	}

	claimed, _, err := s.claimIndex("email", email, account.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, whispers.ErrEmailTaken
	}

	if err := s.saveAccount(account); err != nil {
		// release the claim so a retry is possible
		os.Remove(s.indexPath("email", email))
		return nil, err
	}
	return account.toAccount(), nil
}

func (s *FSAccountStore) GetAccountByID(ctx context.Context, id string) (*whispers.Account, error) {
	account, err := s.loadAccount(id)
	if err != nil {
		return nil, err
	}
	return account.toAccount(), nil
}

func (s *FSAccountStore) GetAccountByEmail(ctx context.Context, email string) (*whispers.Account, error) {
	id, err := s.readIndex("email", email)
	if err != nil {
		return nil, err
	}
	return s.GetAccountByID(ctx, id)
}

func (s *FSAccountStore) EnsureFederatedAccount(ctx context.Context, provider whispers.Provider, subjectID string) (*whispers.Account, bool, error) {
	if !provider.Federated() {
		return nil, false, fmt.Errorf("provider %s has no subject id", provider)
	}

	now := time.Now()
	account := &fsAccount{
		ID:        whispers.NewAccountID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch provider {
	case whispers.ProviderGoogle:
		account.GoogleSubjectID = &subjectID
	case whispers.ProviderFacebook:
		account.FacebookSubjectID = &subjectID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Claiming the index file with O_EXCL is the atomic conditional
	// insert: exactly one of any number of concurrent first logins wins.
	claimed, existingID, err := s.claimIndex(provider.String(), subjectID, account.ID)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		existing, err := s.loadAccount(existingID)
		if err != nil {
			return nil, false, err
		}
		return existing.toAccount(), false, nil
	}

	if err := s.saveAccount(account); err != nil {
		os.Remove(s.indexPath(provider.String(), subjectID))
		return nil, false, err
	}
	return account.toAccount(), true, nil
}

func (s *FSAccountStore) SetSecret(ctx context.Context, accountID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.loadAccount(accountID)
	if err != nil {
		return err
	}
	account.Secret = &secret
	account.UpdatedAt = time.Now()
	return s.saveAccount(account)
}

func (s *FSAccountStore) AccountsWithSecrets(ctx context.Context) ([]*whispers.Account, error) {
	dir := filepath.Join(s.StoragePath, "accounts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}

	var out []*whispers.Account
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		account, err := s.loadAccount(entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			continue
		}
		full := account.toAccount()
		if full.HasSecret() {
			out = append(out, full)
		}
	}
	return out, nil
}

// claimIndex atomically claims the unique key for accountID. Returns
// claimed=false and the current owner's ID when the key is already held.
func (s *FSAccountStore) claimIndex(kind, value, accountID string) (claimed bool, existingID string, err error) {
	path := s.indexPath(kind, value)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, "", fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			id, rerr := s.readIndex(kind, value)
			if rerr != nil {
				return false, "", rerr
			}
			return false, id, nil
		}
		return false, "", fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	defer f.Close()

	if _, err := f.WriteString(accountID); err != nil {
		os.Remove(path)
		return false, "", fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	return true, "", nil
}

func (s *FSAccountStore) readIndex(kind, value string) (string, error) {
	data, err := os.ReadFile(s.indexPath(kind, value))
	if err != nil {
		if os.IsNotExist(err) {
			return "", whispers.ErrAccountNotFound
		}
		return "", fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	return string(data), nil
}

func (s *FSAccountStore) loadAccount(id string) (*fsAccount, error) {
	data, err := os.ReadFile(s.accountPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, whispers.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}

	var account fsAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	return &account, nil
}

func (s *FSAccountStore) saveAccount(account *fsAccount) error {
	path := s.accountPath(account.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return err
	}
	return s.writeAccountFile(path, data)
}

// writeAccountFile stages the JSON in a temp file and renames it into
// place, so a concurrent reader never observes a partially written
// account. Failures classify as ErrStoreUnavailable.
func (s *FSAccountStore) writeAccountFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".account-*")
	if err != nil {
		return fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
	}
	return nil
}
