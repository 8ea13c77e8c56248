// Package expiry classifies events into active, expired and deleted ones
package expiry

import "time"

// DefaultTTL is the time an event stays joinable after its creation
const DefaultTTL = 48 * time.Hour

// Status is the temporal state of an event
type Status int

const (
	// Active events are neither deleted nor older than the TTL
	Active Status = iota
	// Expired events have outlived their TTL
	Expired
	// Deleted events have been soft-deleted by their host
	Deleted
)

// String implements fmt.Stringer
func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Expired:
		return "expired"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Policy classifies events using a fixed lifetime
type Policy struct {
	TTL time.Duration
}

// DefaultPolicy is the 48 hour policy events use unless configured otherwise
var DefaultPolicy = Policy{TTL: DefaultTTL}

// New returns a policy with the given TTL, falling back to the default for non-positive values
func New(ttl time.Duration) Policy {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Policy{TTL: ttl}
}

// Status classifies an event. Deletion wins over everything else; an event is expired once more than TTL has passed
// since its creation. A zero creation time counts as the epoch and thus as expired.
func (p Policy) Status(createdAt time.Time, isDeleted bool, now time.Time) Status {
	if isDeleted {
		return Deleted
	}
	if createdAt.IsZero() {
		createdAt = time.Unix(0, 0)
	}
	if now.Sub(createdAt) > p.TTL {
		return Expired
	}
	return Active
}

// ExpiresAt returns the point in time an event created at createdAt expires
func (p Policy) ExpiresAt(createdAt time.Time) time.Time {
	return createdAt.Add(p.TTL)
}

