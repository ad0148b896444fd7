package main

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"
	customerapp "github.com/erp/customer/internal/application/customer"
	"github.com/erp/customer/internal/domain/customer"
	"github.com/shopspring/decimal"
)

var (
	fakeInterests = []customer.Interest{customer.InterestSports, customer.InterestReading, customer.InterestTravel}
	fakeGenders   = []customer.Gender{customer.GenderFemale, customer.GenderMale, customer.GenderDiverse}
	fakeStatuses  = []customer.MaritalStatus{
		customer.MaritalStatusSingle, customer.MaritalStatusMarried,
		customer.MaritalStatusDivorced, customer.MaritalStatusWidowed,
	}
	oldestBirth   = time.Date(1940, time.January, 1, 0, 0, 0, 0, time.UTC)
	youngestBirth = time.Date(2005, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// fakeCustomers generates valid create requests. A zero seed is random.
type fakeCustomers struct {
	faker *gofakeit.Faker
	n     int
}

func newFakeCustomers(seed uint64) *fakeCustomers {
	return &fakeCustomers{faker: gofakeit.New(seed)}
}

func (g *fakeCustomers) next() customerapp.CreateCustomerRequest {
	f := g.faker
	g.n++
	tag := fmt.Sprintf("%d%04d", g.n, f.IntRange(0, 9999))

	birth := f.DateRange(oldestBirth, youngestBirth).UTC().Truncate(24 * time.Hour)
	var interests []customer.Interest
	for _, i := range fakeInterests {
		if f.Bool() {
			interests = append(interests, i)
		}
	}

	return customerapp.CreateCustomerRequest{
		Customer: customer.Customer{
			LastName:        fakeLastName(f.LastName()),
			Email:           tag + "." + f.Email(),
			Category:        f.IntRange(customer.MinCategory, customer.MaxCategory),
			NewsletterOptIn: f.Bool(),
			BirthDate:       &birth,
			Revenue: &customer.Revenue{
				Amount:   decimal.NewFromFloat(f.Float64Range(0, 250000)).Round(2),
				Currency: "EUR",
			},
			Homepage:      "https://" + f.DomainName(),
			Gender:        fakeGenders[f.IntRange(0, len(fakeGenders)-1)],
			MaritalStatus: fakeStatuses[f.IntRange(0, len(fakeStatuses)-1)],
			Interests:     interests,
			Address:       customer.Address{PostalCode: fmt.Sprintf("%05d", f.IntRange(1000, 99999)), City: f.City()},
		},
		Account: &customer.Credentials{
			Username: strings.ToLower(f.Username()) + tag,
			Password: f.Password(true, true, true, false, false, 16),
		},
	}
}

// fakeLastName reduces a generated name to the accepted "Xxxx" form
func fakeLastName(raw string) string {
	letters := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, raw)
	if len(letters) < 2 {
		letters = "doe"
	}
	return strings.ToUpper(letters[:1]) + letters[1:]
}
