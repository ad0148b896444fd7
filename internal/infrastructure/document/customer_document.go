package document

import (
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type revenueDocument struct {
	Amount   primitive.Decimal128 `bson:"amount"`
	Currency string               `bson:"currency"`
}

type addressDocument struct {
	PostalCode string `bson:"postalCode"`
	City       string `bson:"city"`
}

// customerDocument is the stored shape of a customer
type customerDocument struct {
	ID              string           `bson:"_id"`
	Version         int              `bson:"version"`
	LastName        string           `bson:"lastName"`
	Email           string           `bson:"email"`
	Category        int              `bson:"category"`
	NewsletterOptIn bool             `bson:"newsletterOptIn"`
	BirthDate       *time.Time       `bson:"birthDate,omitempty"`
	Revenue         *revenueDocument `bson:"revenue,omitempty"`
	Homepage        string           `bson:"homepage,omitempty"`
	Gender          string           `bson:"gender,omitempty"`
	MaritalStatus   string           `bson:"maritalStatus,omitempty"`
	Interests       []string         `bson:"interests,omitempty"`
	Address         addressDocument  `bson:"address"`
	Username        string           `bson:"username,omitempty"`
	CreatedAt       time.Time        `bson:"createdAt"`
	ModifiedAt      time.Time        `bson:"modifiedAt"`
}

func fromDomain(c *customer.Customer) (*customerDocument, error) {
	doc := &customerDocument{
		ID:              c.ID,
		Version:         c.Version,
		LastName:        c.LastName,
		Email:           c.Email,
		Category:        c.Category,
		NewsletterOptIn: c.NewsletterOptIn,
		BirthDate:       c.BirthDate,
		Homepage:        c.Homepage,
		Gender:          string(c.Gender),
		MaritalStatus:   string(c.MaritalStatus),
		Address:         addressDocument{PostalCode: c.Address.PostalCode, City: c.Address.City},
		Username:        c.Username,
		CreatedAt:       c.CreatedAt,
		ModifiedAt:      c.ModifiedAt,
	}
	if c.Revenue != nil {
		amount, err := toDecimal128(c.Revenue.Amount)
		if err != nil {
			return nil, err
		}
		doc.Revenue = &revenueDocument{Amount: amount, Currency: c.Revenue.Currency}
	}
	for _, interest := range c.Interests {
		doc.Interests = append(doc.Interests, string(interest))
	}
	return doc, nil
}

func (d *customerDocument) toDomain() (*customer.Customer, error) {
	c := &customer.Customer{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{ID: d.ID, CreatedAt: d.CreatedAt, ModifiedAt: d.ModifiedAt},
			Version:    d.Version,
		},
		LastName:        d.LastName,
		Email:           d.Email,
		Category:        d.Category,
		NewsletterOptIn: d.NewsletterOptIn,
		Homepage:        d.Homepage,
		Gender:          customer.Gender(d.Gender),
		MaritalStatus:   customer.MaritalStatus(d.MaritalStatus),
		Address:         customer.Address{PostalCode: d.Address.PostalCode, City: d.Address.City},
		Username:        d.Username,
	}
	if d.BirthDate != nil {
		birth := d.BirthDate.UTC()
		c.BirthDate = &birth
	}
	if d.Revenue != nil {
		amount, err := decimal.NewFromString(d.Revenue.Amount.String())
		if err != nil {
			return nil, err
		}
		c.Revenue = &customer.Revenue{Amount: amount, Currency: d.Revenue.Currency}
	}
	for _, interest := range d.Interests {
		c.Interests = append(c.Interests, customer.Interest(interest))
	}
	return c, nil
}

// mutableFields lists every field an update may overwrite. Absent optionals
// are written as null so a cleared value does not survive.
func (d *customerDocument) mutableFields() bson.D {
	var revenue any
	if d.Revenue != nil {
		revenue = d.Revenue
	}
	var birthDate any
	if d.BirthDate != nil {
		birthDate = d.BirthDate
	}
	return bson.D{
		{Key: "version", Value: d.Version},
		{Key: "lastName", Value: d.LastName},
		{Key: "email", Value: d.Email},
		{Key: "category", Value: d.Category},
		{Key: "newsletterOptIn", Value: d.NewsletterOptIn},
		{Key: "birthDate", Value: birthDate},
		{Key: "revenue", Value: revenue},
		{Key: "homepage", Value: d.Homepage},
		{Key: "gender", Value: d.Gender},
		{Key: "maritalStatus", Value: d.MaritalStatus},
		{Key: "interests", Value: d.Interests},
		{Key: "address", Value: d.Address},
		{Key: "modifiedAt", Value: d.ModifiedAt},
	}
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}
