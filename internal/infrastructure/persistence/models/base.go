package models

import (
	"time"

	"github.com/erp/customer/internal/domain/shared"
)

// AggregateModel holds the persistence fields shared by aggregate roots.
// Version backs optimistic locking and starts at 0.
type AggregateModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	Version    int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// FromDomainAggregateRoot populates AggregateModel from a domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.ID = a.ID
	m.Version = a.Version
	m.CreatedAt = a.CreatedAt
	m.ModifiedAt = a.ModifiedAt
}

// ToDomainAggregateRoot converts the persistence fields to a domain BaseAggregateRoot
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: shared.BaseEntity{
			ID:         m.ID,
			CreatedAt:  m.CreatedAt,
			ModifiedAt: m.ModifiedAt,
		},
		Version: m.Version,
	}
}
