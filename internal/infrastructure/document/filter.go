package document

import (
	"fmt"
	"regexp"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var criterionPaths = map[customer.Field]string{
	customer.FieldLastName:      "lastName",
	customer.FieldEmail:         "email",
	customer.FieldCategory:      "category",
	customer.FieldPostalCode:    "address.postalCode",
	customer.FieldCity:          "address.city",
	customer.FieldRevenue:       "revenue.amount",
	customer.FieldGender:        "gender",
	customer.FieldMaritalStatus: "maritalStatus",
	customer.FieldInterests:     "interests",
}

// BuildFilter translates criteria into a conjunctive query document.
// No criteria yields an empty filter that matches every customer.
func BuildFilter(criteria []customer.Criterion) (bson.D, error) {
	filter := bson.D{}
	for _, c := range criteria {
		path, ok := criterionPaths[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", customer.ErrInvalidCriterion, c.Field)
		}
		cond, err := condition(c)
		if err != nil {
			return nil, err
		}
		filter = append(filter, bson.E{Key: path, Value: cond})
	}
	return filter, nil
}

func condition(c customer.Criterion) (any, error) {
	switch v := c.Value.(type) {
	case string:
		switch c.Op {
		case customer.OpContains:
			return primitive.Regex{Pattern: regexp.QuoteMeta(v), Options: "i"}, nil
		case customer.OpPrefix:
			return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(v)}, nil
		default:
			return v, nil
		}
	case int:
		return v, nil
	case customer.Gender:
		return string(v), nil
	case customer.MaritalStatus:
		return string(v), nil
	case decimal.Decimal:
		amount, err := toDecimal128(v)
		if err != nil {
			return nil, fmt.Errorf("%w: revenue %s: %v", customer.ErrInvalidCriterion, v, err)
		}
		return bson.D{{Key: "$gte", Value: amount}}, nil
	case []customer.Interest:
		all := make(bson.A, len(v))
		for i, interest := range v {
			all[i] = string(interest)
		}
		return bson.D{{Key: "$all", Value: all}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value %T for %s", customer.ErrInvalidCriterion, c.Value, c.Field)
	}
}

// prefixFilter matches values of path starting with prefix, ignoring case
func prefixFilter(path, prefix string) bson.D {
	return bson.D{{Key: path, Value: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix), Options: "i"}}}
}
