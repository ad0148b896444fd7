package customer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Field identifies a queryable customer attribute
type Field string

const (
	FieldLastName      Field = "lastName"
	FieldEmail         Field = "email"
	FieldCategory      Field = "category"
	FieldPostalCode    Field = "postalCode"
	FieldCity          Field = "city"
	FieldRevenue       Field = "revenue"
	FieldGender        Field = "gender"
	FieldMaritalStatus Field = "maritalStatus"
	FieldInterests     Field = "interests"
)

// Operator is the comparison a criterion applies
type Operator string

const (
	// OpContains is a case-insensitive substring match
	OpContains Operator = "contains"
	// OpPrefix is a case-sensitive prefix match
	OpPrefix Operator = "prefix"
	// OpEquals is an exact match
	OpEquals Operator = "eq"
	// OpGreaterOrEqual is a numeric lower bound
	OpGreaterOrEqual Operator = "gte"
	// OpContainsAll requires every listed element to be present
	OpContainsAll Operator = "all"
)

// Criterion is a single store-agnostic predicate. Value holds a string, int,
// decimal.Decimal, Gender, MaritalStatus or []Interest depending on Field.
type Criterion struct {
	Field Field
	Op    Operator
	Value any
}

// ErrInvalidCriterion marks a query parameter that cannot become a predicate
var ErrInvalidCriterion = errors.New("invalid criterion")

// CriteriaError names the query parameter that could not be translated
type CriteriaError struct {
	Key    string
	Values []string
}

func (e *CriteriaError) Error() string {
	return fmt.Sprintf("invalid criterion %q: %q", e.Key, e.Values)
}

func (e *CriteriaError) Unwrap() error {
	return ErrInvalidCriterion
}

type criterionBuilder func(value string) (Criterion, bool)

var criteriaBuilders = map[string]criterionBuilder{
	"lastName": func(v string) (Criterion, bool) {
		return Criterion{Field: FieldLastName, Op: OpContains, Value: v}, true
	},
	"email": func(v string) (Criterion, bool) {
		return Criterion{Field: FieldEmail, Op: OpContains, Value: v}, true
	},
	"category": func(v string) (Criterion, bool) {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Criterion{}, false
		}
		return Criterion{Field: FieldCategory, Op: OpEquals, Value: n}, true
	},
	"postalCode": func(v string) (Criterion, bool) {
		return Criterion{Field: FieldPostalCode, Op: OpPrefix, Value: v}, true
	},
	"city": func(v string) (Criterion, bool) {
		return Criterion{Field: FieldCity, Op: OpContains, Value: v}, true
	},
	"revenueMin": func(v string) (Criterion, bool) {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return Criterion{}, false
		}
		return Criterion{Field: FieldRevenue, Op: OpGreaterOrEqual, Value: d}, true
	},
	"gender": func(v string) (Criterion, bool) {
		g, ok := ParseGender(v)
		if !ok {
			return Criterion{}, false
		}
		return Criterion{Field: FieldGender, Op: OpEquals, Value: g}, true
	},
	"maritalStatus": func(v string) (Criterion, bool) {
		m, ok := ParseMaritalStatus(v)
		if !ok {
			return Criterion{}, false
		}
		return Criterion{Field: FieldMaritalStatus, Op: OpEquals, Value: m}, true
	},
	"interests": func(v string) (Criterion, bool) {
		interests, ok := parseInterestList(v)
		if !ok {
			return Criterion{}, false
		}
		return Criterion{Field: FieldInterests, Op: OpContainsAll, Value: interests}, true
	},
}

// parseInterestList splits a comma-separated list, dropping blank elements.
// An empty result or an unknown interest is rejected.
func parseInterestList(v string) ([]Interest, bool) {
	var interests []Interest
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, ok := ParseInterest(part)
		if !ok {
			return nil, false
		}
		interests = append(interests, i)
	}
	return interests, len(interests) > 0
}

// BuildCriteria translates query parameters into predicates. Unknown keys are
// ignored. A recognized key with zero or several values, or with a value that
// cannot be parsed, fails the whole query with a *CriteriaError.
func BuildCriteria(params map[string][]string) ([]Criterion, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	criteria := make([]Criterion, 0, len(keys))
	for _, key := range keys {
		build, ok := criteriaBuilders[key]
		if !ok {
			continue
		}
		values := params[key]
		if len(values) != 1 {
			return nil, &CriteriaError{Key: key, Values: values}
		}
		c, ok := build(values[0])
		if !ok {
			return nil, &CriteriaError{Key: key, Values: values}
		}
		criteria = append(criteria, c)
	}
	return criteria, nil
}

// Matches evaluates the criterion against an in-memory customer, with the same
// semantics the store translations implement.
func (c Criterion) Matches(cust Customer) bool {
	switch c.Field {
	case FieldLastName:
		return containsFold(cust.LastName, c.Value.(string))
	case FieldEmail:
		return containsFold(cust.Email, c.Value.(string))
	case FieldCity:
		return containsFold(cust.Address.City, c.Value.(string))
	case FieldPostalCode:
		return strings.HasPrefix(cust.Address.PostalCode, c.Value.(string))
	case FieldCategory:
		return cust.Category == c.Value.(int)
	case FieldRevenue:
		return cust.Revenue != nil && cust.Revenue.Amount.GreaterThanOrEqual(c.Value.(decimal.Decimal))
	case FieldGender:
		return cust.Gender == c.Value.(Gender)
	case FieldMaritalStatus:
		return cust.MaritalStatus == c.Value.(MaritalStatus)
	case FieldInterests:
		for _, i := range c.Value.([]Interest) {
			if !cust.HasInterest(i) {
				return false
			}
		}
		return true
	}
	return false
}

// MatchesAll reports whether cust satisfies every criterion
func MatchesAll(criteria []Criterion, cust Customer) bool {
	for _, c := range criteria {
		if !c.Matches(cust) {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(Lower(s), Lower(substr))
}
