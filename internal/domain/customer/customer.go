package customer

import (
	"slices"
	"strings"
	"time"

	"github.com/erp/customer/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category bounds
const (
	MinCategory = 0
	MaxCategory = 9
)

// RoleCustomer is the role granted to the account created with a customer
const RoleCustomer = "ROLE_CUSTOMER"

// Customer is the aggregate root of this service.
// It is handled as a value: mutations produce a new snapshot via Clone.
type Customer struct {
	shared.BaseAggregateRoot
	LastName        string        `json:"lastName" validate:"required,lastname"`
	Email           string        `json:"email" validate:"required,email,max=200"`
	Category        int           `json:"category" validate:"min=0,max=9"`
	NewsletterOptIn bool          `json:"newsletterOptIn"`
	BirthDate       *time.Time    `json:"birthDate,omitempty" validate:"omitempty,lt"`
	Revenue         *Revenue      `json:"revenue,omitempty" validate:"omitempty"`
	Homepage        string        `json:"homepage,omitempty" validate:"omitempty,url"`
	Gender          Gender        `json:"gender,omitempty" validate:"omitempty,gender"`
	MaritalStatus   MaritalStatus `json:"maritalStatus,omitempty" validate:"omitempty,marital_status"`
	Interests       []Interest    `json:"interests,omitempty" validate:"omitempty,unique,dive,interest"`
	Address         Address       `json:"address"`
	Username        string        `json:"username,omitempty"`
}

// Clone returns a deep copy of the customer
func (c Customer) Clone() Customer {
	cp := c
	if c.BirthDate != nil {
		d := *c.BirthDate
		cp.BirthDate = &d
	}
	if c.Revenue != nil {
		r := *c.Revenue
		cp.Revenue = &r
	}
	if c.Interests != nil {
		cp.Interests = slices.Clone(c.Interests)
	}
	return cp
}

// Equals compares customers by email, case-insensitively
func (c Customer) Equals(other Customer) bool {
	return NormalizeEmail(c.Email) == NormalizeEmail(other.Email)
}

// HasInterest reports whether the customer declared interest i
func (c Customer) HasInterest(i Interest) bool {
	return slices.Contains(c.Interests, i)
}

// ApplyChanges copies every non-identity field of candidate onto c.
// ID, version, username and timestamps are left untouched.
func (c *Customer) ApplyChanges(candidate Customer) {
	src := candidate.Clone()
	c.LastName = src.LastName
	c.Email = NormalizeEmail(src.Email)
	c.Category = src.Category
	c.NewsletterOptIn = src.NewsletterOptIn
	c.BirthDate = src.BirthDate
	c.Revenue = src.Revenue
	c.Homepage = src.Homepage
	c.Gender = src.Gender
	c.MaritalStatus = src.MaritalStatus
	c.Interests = src.Interests
	c.Address = src.Address
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return Lower(strings.TrimSpace(email))
}

// NormalizeUsername trims and lowercases a username
func NormalizeUsername(username string) string {
	return Lower(strings.TrimSpace(username))
}

// Lower lowercases s with Unicode-aware rules, so "ÄRGER" becomes "ärger".
// A fresh caser is used per call since cases.Caser is not safe for concurrent use.
func Lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
