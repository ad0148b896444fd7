package customer

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/erp/customer/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	lastNamePrefix = "o'|von|von der|von und zu|van"
	namePart       = "[A-ZÄÖÜ][a-zäöüß]+"
)

var (
	// LastNamePattern is the accepted form of a last name, e.g. "von Müller-Lüdenscheidt"
	LastNamePattern = regexp.MustCompile("^(" + lastNamePrefix + ")?" + namePart + "(-" + namePart + ")?$")
	// IDPattern is the accepted form of a customer id
	IDPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// engine returns the shared validator with the customer tags registered
func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Use JSON tag names for field names in violations
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		mustRegister(v, "lastname", func(fl validator.FieldLevel) bool {
			return LastNamePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "gender", func(fl validator.FieldLevel) bool {
			return Gender(fl.Field().String()).IsValid()
		})
		mustRegister(v, "marital_status", func(fl validator.FieldLevel) bool {
			return MaritalStatus(fl.Field().String()).IsValid()
		})
		mustRegister(v, "interest", func(fl validator.FieldLevel) bool {
			return Interest(fl.Field().String()).IsValid()
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Validate checks every constraint of c and returns a *shared.ValidationError
// listing all violations, or nil.
func Validate(c Customer) error {
	var violations []shared.Violation
	if c.ID != "" && !IDPattern.MatchString(c.ID) {
		violations = append(violations, shared.Violation{Field: "id", Message: "Invalid id format"})
	}
	if c.Version < 0 {
		violations = append(violations, shared.Violation{Field: "version", Message: "Must be at least 0"})
	}

	err := engine().Struct(c)
	var verrs validator.ValidationErrors
	if err != nil && !errors.As(err, &verrs) {
		return err
	}
	for _, e := range verrs {
		violations = append(violations, shared.Violation{
			Field:   fieldPath(e),
			Message: validationMessage(e),
		})
	}

	if len(violations) == 0 {
		return nil
	}
	return shared.NewValidationError(violations...)
}

// fieldPath strips the root struct name: "Customer.address.city" -> "address.city"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "lastname":
		return "Invalid last name"
	case "min":
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "numeric":
		return "Must be numeric"
	case "lt":
		return "Must be in the past"
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "url":
		return "Invalid URL format"
	case "iso4217":
		return "Invalid currency code"
	case "unique":
		return "Elements must be unique"
	case "gender", "marital_status", "interest":
		return "Unknown value"
	default:
		return "Invalid value"
	}
}
