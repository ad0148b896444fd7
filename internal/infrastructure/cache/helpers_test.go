package cache

import (
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/domain/shared"
	"github.com/shopspring/decimal"
)

func testCustomer(id string) *customer.Customer {
	birth := time.Date(1979, time.March, 3, 0, 0, 0, 0, time.UTC)
	return &customer.Customer{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:         id,
				CreatedAt:  time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC),
				ModifiedAt: time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC),
			},
			Version: 2,
		},
		LastName:  "Alpha",
		Email:     "alpha@example.com",
		Category:  3,
		BirthDate: &birth,
		Revenue:   &customer.Revenue{Amount: decimal.RequireFromString("1200.50"), Currency: "EUR"},
		Interests: []customer.Interest{customer.InterestSports},
		Address:   customer.Address{PostalCode: "12345", City: "Berlin"},
	}
}
