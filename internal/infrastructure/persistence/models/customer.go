package models

import (
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the customers table
type CustomerModel struct {
	AggregateModel
	LastName        string              `gorm:"type:varchar(40);not null;index"`
	Email           string              `gorm:"type:varchar(200);not null;uniqueIndex"`
	Category        int                 `gorm:"not null;default:0"`
	NewsletterOptIn bool                `gorm:"not null;default:false"`
	BirthDate       *time.Time          `gorm:"type:date"`
	RevenueAmount   decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	RevenueCurrency string              `gorm:"type:varchar(3)"`
	Homepage        string              `gorm:"type:varchar(255)"`
	Gender          string              `gorm:"type:varchar(10)"`
	MaritalStatus   string              `gorm:"type:varchar(10)"`
	Interests       []string            `gorm:"type:text;serializer:json"`
	PostalCode      string              `gorm:"type:varchar(5);not null;index"`
	City            string              `gorm:"type:varchar(100);not null"`
	Username        *string             `gorm:"type:varchar(100);uniqueIndex"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *customer.Customer {
	c := &customer.Customer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		LastName:          m.LastName,
		Email:             m.Email,
		Category:          m.Category,
		NewsletterOptIn:   m.NewsletterOptIn,
		Homepage:          m.Homepage,
		Gender:            customer.Gender(m.Gender),
		MaritalStatus:     customer.MaritalStatus(m.MaritalStatus),
		Address: customer.Address{
			PostalCode: m.PostalCode,
			City:       m.City,
		},
	}
	if m.BirthDate != nil {
		d := m.BirthDate.UTC()
		c.BirthDate = &d
	}
	if m.RevenueAmount.Valid {
		c.Revenue = &customer.Revenue{Amount: m.RevenueAmount.Decimal, Currency: m.RevenueCurrency}
	}
	if len(m.Interests) > 0 {
		c.Interests = make([]customer.Interest, len(m.Interests))
		for i, interest := range m.Interests {
			c.Interests[i] = customer.Interest(interest)
		}
	}
	if m.Username != nil {
		c.Username = *m.Username
	}
	return c
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *customer.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.LastName = c.LastName
	m.Email = c.Email
	m.Category = c.Category
	m.NewsletterOptIn = c.NewsletterOptIn
	m.BirthDate = c.BirthDate
	m.RevenueAmount = decimal.NullDecimal{}
	m.RevenueCurrency = ""
	if c.Revenue != nil {
		m.RevenueAmount = decimal.NewNullDecimal(c.Revenue.Amount)
		m.RevenueCurrency = c.Revenue.Currency
	}
	m.Homepage = c.Homepage
	m.Gender = string(c.Gender)
	m.MaritalStatus = string(c.MaritalStatus)
	m.Interests = make([]string, len(c.Interests))
	for i, interest := range c.Interests {
		m.Interests[i] = string(interest)
	}
	m.PostalCode = c.Address.PostalCode
	m.City = c.Address.City
	m.Username = nil
	if c.Username != "" {
		username := c.Username
		m.Username = &username
	}
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer
func CustomerModelFromDomain(c *customer.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}
