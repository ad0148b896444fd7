package shared

import "time"

// BaseEntity carries the identity and the timestamps managed by the store.
// ID stays empty until the entity is created.
type BaseEntity struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// IsNew reports whether the entity has not been assigned an identity yet
func (e BaseEntity) IsNew() bool {
	return e.ID == ""
}

// Touch records a write at now, setting CreatedAt on the first one
func (e *BaseEntity) Touch(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.ModifiedAt = now
}

// BaseAggregateRoot adds the optimistic locking version. Version starts at 0
// and advances by one with every persisted mutation.
type BaseAggregateRoot struct {
	BaseEntity
	Version int `json:"version"`
}

// AcceptsVersion reports whether a write based on version may replace this
// state. Versions ahead of the stored one are accepted.
func (a BaseAggregateRoot) AcceptsVersion(version int) bool {
	return version >= a.Version
}

// NextRevision returns the root as it is after one more mutation at now
func (a BaseAggregateRoot) NextRevision(now time.Time) BaseAggregateRoot {
	a.Version++
	a.Touch(now)
	return a
}
