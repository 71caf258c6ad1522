package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panyam/whispers"
)

// AutoMigrate runs database migrations for the whispers tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AccountStore implements whispers.AccountStore using GORM.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) CreateLocalAccount(ctx context.Context, email, passwordHash, username string) (*whispers.Account, error) {
	model := &AccountModel{
		ID:           whispers.NewAccountID(),
		Email:        &email,
		PasswordHash: &passwordHash,
	}
	if username != "" {
		model.Username = &username
	}

	// Conditional insert against the unique email index; a conflicting
	// row means the email is taken, with no read-then-write window.
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(model)
	if res.Error != nil {
		return nil, storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, whispers.ErrEmailTaken
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*whispers.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, storeErr(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*whispers.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		return nil, storeErr(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) EnsureFederatedAccount(ctx context.Context, provider whispers.Provider, subjectID string) (*whispers.Account, bool, error) {
	column, err := subjectColumn(provider)
	if err != nil {
		return nil, false, err
	}

	model := &AccountModel{ID: whispers.NewAccountID()}
	switch provider {
	case whispers.ProviderGoogle:
		model.GoogleSubjectID = &subjectID
	case whispers.ProviderFacebook:
		model.FacebookSubjectID = &subjectID
	}

	// A single conditional insert keyed on the subject-id unique index:
	// concurrent first logins race on the index, not on a find.
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: column}}, DoNothing: true}).
		Create(model)
	if res.Error != nil {
		return nil, false, storeErr(res.Error)
	}
	if res.RowsAffected > 0 {
		return model.ToAccount(), true, nil
	}

	var existing AccountModel
	if err := s.db.WithContext(ctx).First(&existing, column+" = ?", subjectID).Error; err != nil {
		return nil, false, storeErr(err)
	}
	return existing.ToAccount(), false, nil
}

func (s *AccountStore) SetSecret(ctx context.Context, accountID, secret string) error {
	res := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", accountID).
		Updates(map[string]any{"secret": secret, "updated_at": time.Now()})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return whispers.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) AccountsWithSecrets(ctx context.Context) ([]*whispers.Account, error) {
	var models []AccountModel
	if err := s.db.WithContext(ctx).
		Where("secret IS NOT NULL AND secret <> ''").
		Find(&models).Error; err != nil {
		return nil, storeErr(err)
	}

	accounts := make([]*whispers.Account, len(models))
	for i := range models {
		accounts[i] = models[i].ToAccount()
	}
	return accounts, nil
}

func subjectColumn(provider whispers.Provider) (string, error) {
	switch provider {
	case whispers.ProviderGoogle:
		return "google_subject_id", nil
	case whispers.ProviderFacebook:
		return "facebook_subject_id", nil
	default:
		return "", fmt.Errorf("provider %s has no subject id", provider)
	}
}

// storeErr classifies driver errors into the domain taxonomy.
func storeErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return whispers.ErrAccountNotFound
	}
	return fmt.Errorf("%w: %v", whispers.ErrStoreUnavailable, err)
}
