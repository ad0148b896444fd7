package customer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Gender of a customer
type Gender string

const (
	GenderFemale  Gender = "FEMALE"
	GenderMale    Gender = "MALE"
	GenderDiverse Gender = "DIVERSE"
)

var genderCodes = map[string]Gender{
	"F": GenderFemale,
	"W": GenderFemale,
	"M": GenderMale,
	"D": GenderDiverse,
}

// ParseGender accepts the name (any case) or the short code.
// ok is false when the input is not a gender; that is not an error.
func ParseGender(s string) (Gender, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch Gender(s) {
	case GenderFemale, GenderMale, GenderDiverse:
		return Gender(s), true
	}
	g, ok := genderCodes[s]
	return g, ok
}

// IsValid reports whether g is a known gender
func (g Gender) IsValid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderDiverse:
		return true
	}
	return false
}

// MaritalStatus of a customer
type MaritalStatus string

const (
	MaritalStatusSingle   MaritalStatus = "SINGLE"
	MaritalStatusMarried  MaritalStatus = "MARRIED"
	MaritalStatusDivorced MaritalStatus = "DIVORCED"
	MaritalStatusWidowed  MaritalStatus = "WIDOWED"
)

var maritalStatusCodes = map[string]MaritalStatus{
	"S": MaritalStatusSingle,
	"M": MaritalStatusMarried,
	"D": MaritalStatusDivorced,
	"W": MaritalStatusWidowed,
}

// ParseMaritalStatus accepts the name (any case) or the short code
func ParseMaritalStatus(s string) (MaritalStatus, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch MaritalStatus(s) {
	case MaritalStatusSingle, MaritalStatusMarried, MaritalStatusDivorced, MaritalStatusWidowed:
		return MaritalStatus(s), true
	}
	m, ok := maritalStatusCodes[s]
	return m, ok
}

// IsValid reports whether m is a known marital status
func (m MaritalStatus) IsValid() bool {
	switch m {
	case MaritalStatusSingle, MaritalStatusMarried, MaritalStatusDivorced, MaritalStatusWidowed:
		return true
	}
	return false
}

// Interest is a hobby a customer declared
type Interest string

const (
	InterestSports  Interest = "SPORTS"
	InterestReading Interest = "READING"
	InterestTravel  Interest = "TRAVEL"
)

var interestCodes = map[string]Interest{
	"S": InterestSports,
	"R": InterestReading,
	"T": InterestTravel,
}

// ParseInterest accepts the name (any case) or the short code
func ParseInterest(s string) (Interest, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch Interest(s) {
	case InterestSports, InterestReading, InterestTravel:
		return Interest(s), true
	}
	i, ok := interestCodes[s]
	return i, ok
}

// IsValid reports whether i is a known interest
func (i Interest) IsValid() bool {
	switch i {
	case InterestSports, InterestReading, InterestTravel:
		return true
	}
	return false
}

// Address is the postal address of a customer
type Address struct {
	PostalCode string `json:"postalCode" validate:"required,len=5,numeric"`
	City       string `json:"city" validate:"required,max=100"`
}

// Revenue is the yearly revenue of a customer in a given currency
type Revenue struct {
	Amount   decimal.Decimal `json:"amount" validate:"gte=0"`
	Currency string          `json:"currency" validate:"required,iso4217"`
}

// Equal compares amount numerically and currency exactly
func (r Revenue) Equal(other Revenue) bool {
	return r.Amount.Equal(other.Amount) && r.Currency == other.Currency
}
