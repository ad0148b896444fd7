package models

import (
	"time"

	"github.com/erp/customer/internal/domain/customer"
)

// AccountModel is the persistence model for the accounts table
type AccountModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Username     string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	Roles        []string  `gorm:"type:text;serializer:json"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account, without the hash
func (m *AccountModel) ToDomain() *customer.Account {
	return &customer.Account{
		ID:       m.ID,
		Username: m.Username,
		Roles:    append([]string(nil), m.Roles...),
	}
}
