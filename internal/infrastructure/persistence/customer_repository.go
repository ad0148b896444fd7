package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const streamBatchSize = 100

// GormCustomerRepository implements customer.Repository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find customer %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// FindAll returns every customer ordered by last name
func (r *GormCustomerRepository) FindAll(ctx context.Context) ([]customer.Customer, error) {
	return r.FindMatching(ctx, nil)
}

// FindMatching returns the customers satisfying every criterion
func (r *GormCustomerRepository) FindMatching(ctx context.Context, criteria []customer.Criterion) ([]customer.Customer, error) {
	pushed, inMemory := r.splitCriteria(criteria)
	query, err := applyCriteria(r.db.WithContext(ctx).Model(&models.CustomerModel{}), pushed)
	if err != nil {
		return nil, err
	}

	var customerModels []models.CustomerModel
	if err := query.Order("last_name, id").Find(&customerModels).Error; err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	found := toDomainCustomers(customerModels)
	if len(inMemory) == 0 {
		return found, nil
	}
	return slices.DeleteFunc(found, func(c customer.Customer) bool {
		return !customer.MatchesAll(inMemory, c)
	}), nil
}

// splitCriteria keeps case-insensitive substring matches out of SQL on
// sqlite, whose LOWER folds ASCII letters only.
func (r *GormCustomerRepository) splitCriteria(criteria []customer.Criterion) (pushed, inMemory []customer.Criterion) {
	if r.db.Dialector.Name() != "sqlite" {
		return criteria, nil
	}
	for _, c := range criteria {
		if c.Op == customer.OpContains {
			inMemory = append(inMemory, c)
		} else {
			pushed = append(pushed, c)
		}
	}
	return pushed, inMemory
}

// Stream walks the table in primary key order, one batch at a time
func (r *GormCustomerRepository) Stream(ctx context.Context, fn func(customer.Customer) error) error {
	var batch []models.CustomerModel
	var fnErr error
	result := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		FindInBatches(&batch, streamBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				if err := fn(*batch[i].ToDomain()); err != nil {
					fnErr = err
					return err
				}
			}
			return nil
		})
	if fnErr != nil {
		return fnErr
	}
	if result.Error != nil {
		return fmt.Errorf("stream customers: %w", result.Error)
	}
	return nil
}

// ExistsByEmail checks if an email is already taken. Emails are stored lowercased.
func (r *GormCustomerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		Where("email = ?", customer.NormalizeEmail(email)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return count > 0, nil
}

// ExistsByUsername checks if a username is already linked to a customer
func (r *GormCustomerRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		Where("username = ?", customer.NormalizeUsername(username)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return count > 0, nil
}

// Save inserts a new customer
func (r *GormCustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	model := models.CustomerModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.duplicateError(ctx, c)
		}
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	c.CreatedAt = model.CreatedAt
	c.ModifiedAt = model.ModifiedAt
	return nil
}

// duplicateError names the unique column a failed insert collided on
func (r *GormCustomerRepository) duplicateError(ctx context.Context, c *customer.Customer) error {
	if c.Username != "" {
		if taken, err := r.ExistsByUsername(ctx, c.Username); err == nil && taken {
			return shared.NewUsernameExistsError(c.Username)
		}
	}
	return shared.NewEmailExistsError(c.Email)
}

// SaveWithLock updates every mutable column if the stored version still
// equals c.Version, then advances c.Version.
func (r *GormCustomerRepository) SaveWithLock(ctx context.Context, c *customer.Customer) error {
	next := c.NextRevision(time.Now().UTC())
	model := models.CustomerModelFromDomain(c)
	model.Version = next.Version
	model.ModifiedAt = next.ModifiedAt

	result := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Select("*").
		Omit("id", "created_at", "username").
		Updates(model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return shared.NewEmailExistsError(c.Email)
		}
		return fmt.Errorf("update customer %s: %w", c.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	c.BaseAggregateRoot = next
	return nil
}

// DeleteByID removes a customer, shared.ErrNotFound if absent
func (r *GormCustomerRepository) DeleteByID(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.CustomerModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete customer %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteByEmail removes the customer owning email, if any
func (r *GormCustomerRepository) DeleteByEmail(ctx context.Context, email string) error {
	if err := r.db.WithContext(ctx).
		Where("email = ?", customer.NormalizeEmail(email)).
		Delete(&models.CustomerModel{}).Error; err != nil {
		return fmt.Errorf("delete customer by email: %w", err)
	}
	return nil
}

// Count returns the number of customers
func (r *GormCustomerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return count, nil
}

// FindLastNamesByPrefix returns the distinct last names starting with prefix
func (r *GormCustomerRepository) FindLastNamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.pluckByPrefix(ctx, "last_name", prefix)
}

// FindEmailsByPrefix returns the emails starting with prefix
func (r *GormCustomerRepository) FindEmailsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.pluckByPrefix(ctx, "email", prefix)
}

func (r *GormCustomerRepository) pluckByPrefix(ctx context.Context, column, prefix string) ([]string, error) {
	values := []string{}
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		Distinct(column).
		Where("LOWER("+column+") LIKE ? ESCAPE '\\'", escapeLike(customer.Lower(prefix))+"%").
		Order(column).
		Pluck(column, &values).Error; err != nil {
		return nil, fmt.Errorf("find %s by prefix: %w", column, err)
	}
	return values, nil
}

// criterionColumns maps criteria fields to customers columns
var criterionColumns = map[customer.Field]string{
	customer.FieldLastName:      "last_name",
	customer.FieldEmail:         "email",
	customer.FieldCategory:      "category",
	customer.FieldPostalCode:    "postal_code",
	customer.FieldCity:          "city",
	customer.FieldRevenue:       "revenue_amount",
	customer.FieldGender:        "gender",
	customer.FieldMaritalStatus: "marital_status",
	customer.FieldInterests:     "interests",
}

// applyCriteria ANDs the SQL translation of every criterion onto query
func applyCriteria(query *gorm.DB, criteria []customer.Criterion) (*gorm.DB, error) {
	for _, c := range criteria {
		column, ok := criterionColumns[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", customer.ErrInvalidCriterion, c.Field)
		}
		switch v := c.Value.(type) {
		case string:
			switch c.Op {
			case customer.OpContains:
				query = query.Where("LOWER("+column+") LIKE ? ESCAPE '\\'", "%"+escapeLike(customer.Lower(v))+"%")
			case customer.OpPrefix:
				query = query.Where(column+" LIKE ? ESCAPE '\\'", escapeLike(v)+"%")
			default:
				query = query.Where(column+" = ?", v)
			}
		case int:
			query = query.Where(column+" = ?", v)
		case customer.Gender:
			query = query.Where(column+" = ?", string(v))
		case customer.MaritalStatus:
			query = query.Where(column+" = ?", string(v))
		case decimal.Decimal:
			query = query.Where(column+" >= ?", v)
		case []customer.Interest:
			// interests are stored as a JSON array of quoted names
			for _, interest := range v {
				query = query.Where(column+" LIKE ?", `%"`+string(interest)+`"%`)
			}
		default:
			return nil, fmt.Errorf("%w: unsupported value %T for %s", customer.ErrInvalidCriterion, c.Value, c.Field)
		}
	}
	return query, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE wildcards in user input
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func toDomainCustomers(customerModels []models.CustomerModel) []customer.Customer {
	customers := make([]customer.Customer, len(customerModels))
	for i := range customerModels {
		customers[i] = *customerModels[i].ToDomain()
	}
	return customers
}
