package customer

import (
	"strconv"
	"strings"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest carries a new customer and the credentials of the
// account to link with it. Account is never persisted with the customer.
type CreateCustomerRequest struct {
	Customer customer.Customer     `json:"customer"`
	Account  *customer.Credentials `json:"account,omitempty"`
}

// RevenueResponse represents revenue in API responses
type RevenueResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// AddressResponse represents an address in API responses
type AddressResponse struct {
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID              string           `json:"id"`
	Version         int              `json:"version"`
	ETag            string           `json:"etag"`
	LastName        string           `json:"lastName"`
	Email           string           `json:"email"`
	Category        int              `json:"category"`
	NewsletterOptIn bool             `json:"newsletterOptIn"`
	BirthDate       string           `json:"birthDate,omitempty"`
	Revenue         *RevenueResponse `json:"revenue,omitempty"`
	Homepage        string           `json:"homepage,omitempty"`
	Gender          string           `json:"gender,omitempty"`
	MaritalStatus   string           `json:"maritalStatus,omitempty"`
	Interests       []string         `json:"interests,omitempty"`
	Address         AddressResponse  `json:"address"`
	Username        string           `json:"username,omitempty"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty"`
	ModifiedAt      *time.Time       `json:"modifiedAt,omitempty"`
}

// ToCustomerResponse converts a domain Customer to CustomerResponse
func ToCustomerResponse(c *customer.Customer) CustomerResponse {
	resp := CustomerResponse{
		ID:              c.ID,
		Version:         c.Version,
		ETag:            FormatVersion(c.Version),
		LastName:        c.LastName,
		Email:           c.Email,
		Category:        c.Category,
		NewsletterOptIn: c.NewsletterOptIn,
		Homepage:        c.Homepage,
		Gender:          string(c.Gender),
		MaritalStatus:   string(c.MaritalStatus),
		Address: AddressResponse{
			PostalCode: c.Address.PostalCode,
			City:       c.Address.City,
		},
		Username: c.Username,
	}
	if c.BirthDate != nil {
		resp.BirthDate = c.BirthDate.Format(customer.DateLayout)
	}
	if c.Revenue != nil {
		resp.Revenue = &RevenueResponse{Amount: c.Revenue.Amount, Currency: c.Revenue.Currency}
	}
	if len(c.Interests) > 0 {
		resp.Interests = make([]string, len(c.Interests))
		for i, interest := range c.Interests {
			resp.Interests[i] = string(interest)
		}
	}
	if !c.CreatedAt.IsZero() {
		t := c.CreatedAt
		resp.CreatedAt = &t
	}
	if !c.ModifiedAt.IsZero() {
		t := c.ModifiedAt
		resp.ModifiedAt = &t
	}
	return resp
}

// ToCustomerResponses converts a slice of customers
func ToCustomerResponses(customers []customer.Customer) []CustomerResponse {
	responses := make([]CustomerResponse, len(customers))
	for i := range customers {
		responses[i] = ToCustomerResponse(&customers[i])
	}
	return responses
}

// FormatVersion renders a version as an entity tag: 3 -> "\"3\""
func FormatVersion(version int) string {
	return strconv.Quote(strconv.Itoa(version))
}

// ParseVersion reads a version token. Surrounding whitespace and one pair of
// double quotes are accepted, so both `3` and `"3"` yield 3.
func ParseVersion(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"' {
		token = token[1 : len(token)-1]
	}
	version, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return version, true
}
