package customer

import (
	"context"
)

// Repository defines the interface for customer persistence.
// Lookups of a missing id return shared.ErrNotFound.
type Repository interface {
	// FindByID finds a customer by id
	FindByID(ctx context.Context, id string) (*Customer, error)

	// FindAll returns every customer
	FindAll(ctx context.Context) ([]Customer, error)

	// FindMatching returns the customers satisfying every criterion
	FindMatching(ctx context.Context, criteria []Criterion) ([]Customer, error)

	// Stream calls fn for every customer without loading the full set.
	// Iteration stops at the first error returned by fn.
	Stream(ctx context.Context, fn func(Customer) error) error

	// ExistsByEmail checks if an email is already taken (case-insensitive)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ExistsByUsername checks if a username is already linked to a customer
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Save inserts a new customer with version 0
	Save(ctx context.Context, c *Customer) error

	// SaveWithLock updates an existing customer if its stored version still
	// equals c.Version, then increments c.Version. A lost race returns
	// shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, c *Customer) error

	// DeleteByID removes a customer, shared.ErrNotFound if absent
	DeleteByID(ctx context.Context, id string) error

	// DeleteByEmail removes the customer owning email, if any
	DeleteByEmail(ctx context.Context, email string) error

	// Count returns the number of customers
	Count(ctx context.Context) (int64, error)

	// FindLastNamesByPrefix returns the distinct last names starting with
	// prefix (case-insensitive), sorted
	FindLastNamesByPrefix(ctx context.Context, prefix string) ([]string, error)

	// FindEmailsByPrefix returns the emails starting with prefix (case-insensitive), sorted
	FindEmailsByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Cache holds customer snapshots keyed by id.
// Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, id string) (*Customer, error)
	Put(ctx context.Context, id string, c *Customer) error
	Evict(ctx context.Context, id string) error
}

// Credentials is the account payload supplied when a customer is created
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Account is the user account linked to a customer by username
type Account struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// AccountService creates user accounts
type AccountService interface {
	// CreateAccount creates an account with a normalized username.
	// It fails with shared.ErrUsernameExists when the username is taken.
	CreateAccount(ctx context.Context, username, password, role string) (*Account, error)

	// DeleteAccount removes the account with the given id. A missing
	// account is not an error.
	DeleteAccount(ctx context.Context, id string) error
}

// Notifier announces a newly created customer. Delivery failures are
// handled by the implementation and never reported to the caller.
type Notifier interface {
	Notify(ctx context.Context, c Customer)
}
