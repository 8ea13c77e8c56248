package internal

import "github.com/derWhity/whispqr/internal/models"

// -- Request data -----------------------------------------------------------------------------------------------------

// A request toggling the active flag of an event
type setActiveRequest struct {
	EventID string
	Active  bool `json:"isActive"`
}

// A request leaving a message on an event
type addMessageRequest struct {
	EventID string
	Draft   models.MessageDraft
}

// A request deleting a single message
type deleteMessageRequest struct {
	EventID   string
	MessageID string
}

// A request resolving a scanned QR code
type resolveRequest struct {
	URL string `json:"url"`
}
