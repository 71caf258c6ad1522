package gorm

import (
	"time"

	"github.com/panyam/whispers"
)

// AccountModel is the GORM model for accounts. Email and the provider
// subject IDs are nullable with partial unique indexes: many rows may
// hold NULL, at most one row may hold any given value.
type AccountModel struct {
	ID                string    `gorm:"primaryKey;size:64"`
	Email             *string   `gorm:"uniqueIndex;size:255"`
	PasswordHash      *string   `gorm:"size:128"`
	Username          *string   `gorm:"size:255"`
	GoogleSubjectID   *string   `gorm:"uniqueIndex;size:255"`
	FacebookSubjectID *string   `gorm:"uniqueIndex;size:255"`
	Secret            *string   `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *whispers.Account {
	return &whispers.Account{
		ID:                m.ID,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		Username:          m.Username,
		GoogleSubjectID:   m.GoogleSubjectID,
		FacebookSubjectID: m.FacebookSubjectID,
		Secret:            m.Secret,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
