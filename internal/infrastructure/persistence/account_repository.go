package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAccountRepository stores user accounts in the accounts table
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Create inserts an account. A taken username returns shared.ErrUsernameExists.
func (r *GormAccountRepository) Create(ctx context.Context, account *models.AccountModel) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewUsernameExistsError(account.Username)
		}
		return fmt.Errorf("insert account %s: %w", account.Username, err)
	}
	return nil
}

// FindByUsername loads an account by its normalized username
func (r *GormAccountRepository) FindByUsername(ctx context.Context, username string) (*models.AccountModel, error) {
	var account models.AccountModel
	if err := r.db.WithContext(ctx).First(&account, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find account %s: %w", username, err)
	}
	return &account, nil
}

// Delete removes the account with id. Deleting a missing account succeeds.
func (r *GormAccountRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&models.AccountModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return nil
}

// ExistsByUsername checks if an account uses username
func (r *GormAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check account %s: %w", username, err)
	}
	return count > 0, nil
}
