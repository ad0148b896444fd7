package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const streamBatchSize = 100

// CustomerRepository implements customer.Repository on a MongoDB collection
type CustomerRepository struct {
	coll *mongo.Collection
}

// NewCustomerRepository creates a CustomerRepository over coll
func NewCustomerRepository(coll *mongo.Collection) *CustomerRepository {
	return &CustomerRepository{coll: coll}
}

var _ customer.Repository = (*CustomerRepository)(nil)

// EnsureIndexes creates the unique email and username indexes and the lookup
// indexes used by criteria queries.
func (r *CustomerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_1")},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_1").
				SetPartialFilterExpression(bson.D{{Key: "username", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
		{Keys: bson.D{{Key: "lastName", Value: 1}}, Options: options.Index().SetName("lastName_1")},
		{Keys: bson.D{{Key: "address.postalCode", Value: 1}}, Options: options.Index().SetName("address.postalCode_1")},
	})
	if err != nil {
		return fmt.Errorf("create customer indexes: %w", err)
	}
	return nil
}

// FindByID finds a customer by its ID
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	var doc customerDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find customer %s: %w", id, err)
	}
	return doc.toDomain()
}

// FindAll returns every customer ordered by last name
func (r *CustomerRepository) FindAll(ctx context.Context) ([]customer.Customer, error) {
	return r.FindMatching(ctx, nil)
}

// FindMatching returns the customers satisfying every criterion
func (r *CustomerRepository) FindMatching(ctx context.Context, criteria []customer.Criterion) ([]customer.Customer, error) {
	filter, err := BuildFilter(criteria)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "lastName", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	var docs []customerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}

	customers := make([]customer.Customer, 0, len(docs))
	for i := range docs {
		c, err := docs[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode customer %s: %w", docs[i].ID, err)
		}
		customers = append(customers, *c)
	}
	return customers, nil
}

// Stream iterates the collection with a bounded batch size
func (r *CustomerRepository) Stream(ctx context.Context, fn func(customer.Customer) error) error {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetBatchSize(streamBatchSize))
	if err != nil {
		return fmt.Errorf("stream customers: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc customerDocument
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("decode customer: %w", err)
		}
		c, err := doc.toDomain()
		if err != nil {
			return fmt.Errorf("decode customer %s: %w", doc.ID, err)
		}
		if err := fn(*c); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("stream customers: %w", err)
	}
	return nil
}

// ExistsByEmail checks if an email is already taken
func (r *CustomerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", customer.NormalizeEmail(email))
}

// ExistsByUsername checks if a username is already linked to a customer
func (r *CustomerRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", customer.NormalizeUsername(username))
}

func (r *CustomerRepository) exists(ctx context.Context, path, value string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.D{{Key: path, Value: value}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check %s: %w", path, err)
	}
	return count > 0, nil
}

// Save inserts a new customer
func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	c.Touch(time.Now().UTC().Truncate(time.Millisecond))

	doc, err := fromDomain(c)
	if err != nil {
		return fmt.Errorf("encode customer %s: %w", c.ID, err)
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "username") {
				return shared.NewUsernameExistsError(c.Username)
			}
			return shared.NewEmailExistsError(c.Email)
		}
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	return nil
}

// SaveWithLock replaces the mutable fields if the stored version still equals
// c.Version, then advances c.Version.
func (r *CustomerRepository) SaveWithLock(ctx context.Context, c *customer.Customer) error {
	next := c.Clone()
	next.BaseAggregateRoot = c.NextRevision(time.Now().UTC().Truncate(time.Millisecond))

	doc, err := fromDomain(&next)
	if err != nil {
		return fmt.Errorf("encode customer %s: %w", c.ID, err)
	}

	filter := bson.D{{Key: "_id", Value: c.ID}, {Key: "version", Value: c.Version}}
	result, err := r.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: doc.mutableFields()}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.NewEmailExistsError(c.Email)
		}
		return fmt.Errorf("update customer %s: %w", c.ID, err)
	}
	if result.MatchedCount == 0 {
		return shared.ErrConcurrencyConflict
	}

	c.BaseAggregateRoot = next.BaseAggregateRoot
	return nil
}

// DeleteByID removes a customer, shared.ErrNotFound if absent
func (r *CustomerRepository) DeleteByID(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteByEmail removes the customer owning email, if any
func (r *CustomerRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.D{{Key: "email", Value: customer.NormalizeEmail(email)}}); err != nil {
		return fmt.Errorf("delete customer by email: %w", err)
	}
	return nil
}

// Count returns the number of customers
func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return count, nil
}

// FindLastNamesByPrefix returns the distinct last names starting with prefix
func (r *CustomerRepository) FindLastNamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.distinctByPrefix(ctx, "lastName", prefix)
}

// FindEmailsByPrefix returns the emails starting with prefix
func (r *CustomerRepository) FindEmailsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.distinctByPrefix(ctx, "email", prefix)
}

func (r *CustomerRepository) distinctByPrefix(ctx context.Context, path, prefix string) ([]string, error) {
	raw, err := r.coll.Distinct(ctx, path, prefixFilter(path, prefix))
	if err != nil {
		return nil, fmt.Errorf("find %s by prefix: %w", path, err)
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	sort.Strings(values)
	return values, nil
}
