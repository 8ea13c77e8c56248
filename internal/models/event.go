package models

import "time"

// DefaultHostName is used for events whose host identity carries no display name
const DefaultHostName = "Unknown Host"

// Event describes an anonymous messaging session created by a host.
// Events are never removed from the storage; deleting an event only flags it.
type Event struct {
	// Unique ID of the event - assigned on creation
	ID string `db:"id" json:"id" bson:"_id"`
	// Name of the event
	Name string `db:"name" json:"name" bson:"name"`
	// A little description of the event
	Description string `db:"description" json:"description,omitempty" bson:"description"`
	// Where the event takes place
	Location string `db:"location" json:"location,omitempty" bson:"location"`
	// The identity that created the event
	HostID string `db:"host_id" json:"hostId" bson:"hostId"`
	// Display name of the host at creation time
	HostName string `db:"host_name" json:"hostName" bson:"hostName"`
	// Can guests leave messages that other guests are able to read?
	AllowPublicMessages bool `db:"allow_public_messages" json:"allowPublicMessages" bson:"allowPublicMessages"`
	// The short code guests can type in to find the event
	StringCode string `db:"string_code" json:"stringCode" bson:"stringCode"`
	// Host toggle - guests cannot join inactive events
	IsActive bool `db:"is_active" json:"isActive" bson:"isActive"`
	// Soft-delete flag
	IsDeleted bool `db:"is_deleted" json:"isDeleted" bson:"isDeleted"`
	// Creation date of this entry
	CreatedAt time.Time `db:"created_at" json:"createdAt" bson:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt" bson:"updatedAt"`
	// Date of the deletion of this entry
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty" bson:"deletedAt,omitempty"`
}

// EventSummary is a shortened version of the event data type that is sent to guests hiding the host's identity and
// the internal state flags
type EventSummary struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	Location            string    `json:"location,omitempty"`
	HostName            string    `json:"hostName"`
	AllowPublicMessages bool      `json:"allowPublicMessages"`
	StringCode          string    `json:"stringCode"`
	CreatedAt           time.Time `json:"createdAt"`
	ExpiresAt           time.Time `json:"expiresAt"`
}

// Summary repacks the event into its guest view
func (e *Event) Summary(expiresAt time.Time) EventSummary {
	return EventSummary{
		ID:                  e.ID,
		Name:                e.Name,
		Description:         e.Description,
		Location:            e.Location,
		HostName:            e.HostName,
		AllowPublicMessages: e.AllowPublicMessages,
		StringCode:          e.StringCode,
		CreatedAt:           e.CreatedAt,
		ExpiresAt:           expiresAt,
	}
}

// EventDraft contains the fields a host provides when creating an event
type EventDraft struct {
	Name                string `json:"name" validate:"required,min=3,max=100"`
	Description         string `json:"description" validate:"max=500"`
	Location            string `json:"location" validate:"max=100"`
	AllowPublicMessages bool   `json:"allowPublicMessages"`
}

// HostEvents is the list of a host's events split by their expiry status
type HostEvents struct {
	Active  []Event `json:"active"`
	Expired []Event `json:"expired"`
}

// ShareInfo contains everything a host needs to invite guests to an event
type ShareInfo struct {
	EventID    string `json:"eventId"`
	URL        string `json:"url"`
	StringCode string `json:"stringCode"`
	Text       string `json:"text"`
}
