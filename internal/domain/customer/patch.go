package customer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/erp/customer/internal/domain/shared"
)

// Patch operation kinds
const (
	PatchReplace = "replace"
	PatchAdd     = "add"
	PatchRemove  = "remove"
)

// DateLayout is the wire form of a birth date
const DateLayout = "2006-01-02"

// PatchOperation is one JSON-Patch style change: {"op":"replace","path":"/lastName","value":"Doe"}
type PatchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Replace builds a replace operation, encoding value as JSON
func Replace(path string, value any) PatchOperation {
	raw, err := json.Marshal(value)
	if err != nil {
		raw = nil
	}
	return PatchOperation{Op: PatchReplace, Path: path, Value: raw}
}

// AddInterest builds an add operation on /interests
func AddInterest(i Interest) PatchOperation {
	raw, _ := json.Marshal(i)
	return PatchOperation{Op: PatchAdd, Path: "/interests", Value: raw}
}

// RemoveInterest builds a remove operation on /interests
func RemoveInterest(i Interest) PatchOperation {
	raw, _ := json.Marshal(i)
	return PatchOperation{Op: PatchRemove, Path: "/interests", Value: raw}
}

type fieldSetter func(c *Customer, raw json.RawMessage) error

// replaceWith decodes a non-null value into a fresh T and assigns it whole
func replaceWith[T any](field func(*Customer) *T) fieldSetter {
	return func(c *Customer, raw json.RawMessage) error {
		v, err := decodeValue[T](raw)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

// optionalString is replaceWith for string paths where null clears the field
func optionalString(field func(*Customer) *string) fieldSetter {
	return func(c *Customer, raw json.RawMessage) error {
		v, _, err := decodeOptional[string](raw)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

// patchableFields is the closed set of paths a patch may touch.
// id, version and username are deliberately absent.
var patchableFields = map[string]fieldSetter{
	"/lastName":           replaceWith(func(c *Customer) *string { return &c.LastName }),
	"/email":              replaceWith(func(c *Customer) *string { return &c.Email }),
	"/category":           replaceWith(func(c *Customer) *int { return &c.Category }),
	"/newsletterOptIn":    replaceWith(func(c *Customer) *bool { return &c.NewsletterOptIn }),
	"/homepage":           optionalString(func(c *Customer) *string { return &c.Homepage }),
	"/address":            replaceWith(func(c *Customer) *Address { return &c.Address }),
	"/address/postalCode": replaceWith(func(c *Customer) *string { return &c.Address.PostalCode }),
	"/address/city":       replaceWith(func(c *Customer) *string { return &c.Address.City }),
	"/birthDate": func(c *Customer, raw json.RawMessage) error {
		s, ok, err := decodeOptional[string](raw)
		if err != nil {
			return err
		}
		if !ok {
			c.BirthDate = nil
			return nil
		}
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return fmt.Errorf("expected date in form %s", DateLayout)
		}
		c.BirthDate = &d
		return nil
	},
	"/revenue": func(c *Customer, raw json.RawMessage) error {
		r, ok, err := decodeOptional[Revenue](raw)
		if err != nil {
			return err
		}
		if !ok {
			c.Revenue = nil
			return nil
		}
		c.Revenue = &r
		return nil
	},
	"/gender": func(c *Customer, raw json.RawMessage) error {
		s, _, err := decodeOptional[string](raw)
		if err != nil {
			return err
		}
		if s == "" {
			c.Gender = ""
			return nil
		}
		g, ok := ParseGender(s)
		if !ok {
			return fmt.Errorf("unknown gender %q", s)
		}
		c.Gender = g
		return nil
	},
	"/maritalStatus": func(c *Customer, raw json.RawMessage) error {
		s, _, err := decodeOptional[string](raw)
		if err != nil {
			return err
		}
		if s == "" {
			c.MaritalStatus = ""
			return nil
		}
		m, ok := ParseMaritalStatus(s)
		if !ok {
			return fmt.Errorf("unknown marital status %q", s)
		}
		c.MaritalStatus = m
		return nil
	},
	"/interests": func(c *Customer, raw json.RawMessage) error {
		names, ok, err := decodeOptional[[]string](raw)
		if err != nil {
			return err
		}
		if !ok {
			c.Interests = nil
			return nil
		}
		interests := make([]Interest, 0, len(names))
		for _, n := range names {
			i, ok := ParseInterest(n)
			if !ok {
				return fmt.Errorf("unknown interest %q", n)
			}
			interests = append(interests, i)
		}
		c.Interests = interests
		return nil
	},
}

// PatchablePaths lists the paths ApplyPatch accepts
func PatchablePaths() []string {
	paths := make([]string, 0, len(patchableFields))
	for p := range patchableFields {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeValue decodes raw into a fresh T. A missing value or null is rejected.
func decodeValue[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		return v, fmt.Errorf("value is required")
	}
	if isNull(raw) {
		return v, fmt.Errorf("value must not be null")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("value has the wrong type")
	}
	return v, nil
}

// decodeOptional is decodeValue for paths null clears. ok is false for null.
func decodeOptional[T any](raw json.RawMessage) (v T, ok bool, err error) {
	if isNull(raw) {
		return v, false, nil
	}
	v, err = decodeValue[T](raw)
	return v, err == nil, err
}

// ApplyPatch applies ops in order to a copy of c and validates the result.
// Later operations on the same path override earlier ones. On any failure the
// input is untouched and a *shared.ValidationError is returned.
func ApplyPatch(c Customer, ops []PatchOperation) (Customer, error) {
	patched := c.Clone()
	for _, op := range ops {
		if err := applyOperation(&patched, op); err != nil {
			return c, shared.NewValidationError(shared.Violation{Field: op.Path, Message: err.Error()})
		}
	}
	if err := Validate(patched); err != nil {
		return c, err
	}
	return patched, nil
}

func applyOperation(c *Customer, op PatchOperation) error {
	setter, ok := patchableFields[op.Path]
	if !ok {
		return fmt.Errorf("path is not patchable")
	}
	switch op.Op {
	case PatchReplace:
		return setter(c, op.Value)
	case PatchAdd, PatchRemove:
		if op.Path != "/interests" {
			return fmt.Errorf("operation %q is only supported on /interests", op.Op)
		}
		return applyInterestChange(c, op)
	default:
		return fmt.Errorf("unsupported operation %q", op.Op)
	}
}

func applyInterestChange(c *Customer, op PatchOperation) error {
	s, err := decodeValue[string](op.Value)
	if err != nil {
		return err
	}
	i, ok := ParseInterest(s)
	if !ok {
		return fmt.Errorf("unknown interest %q", s)
	}
	if op.Op == PatchAdd {
		if !c.HasInterest(i) {
			c.Interests = append(c.Interests, i)
		}
		return nil
	}
	c.Interests = slices.DeleteFunc(c.Interests, func(x Interest) bool { return x == i })
	return nil
}
