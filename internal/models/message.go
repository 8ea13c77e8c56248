package models

import "time"

// Message is an anonymous message left by a guest.
// It carries no information about its author.
type Message struct {
	ID        string     `db:"id" json:"id" bson:"_id"`
	EventID   string     `db:"event_id" json:"eventId" bson:"eventId"`
	Content   string     `db:"content" json:"content" bson:"content"`
	IsPublic  bool       `db:"is_public" json:"isPublic" bson:"isPublic"`
	IsDeleted bool       `db:"is_deleted" json:"-" bson:"isDeleted"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt" bson:"createdAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"-" bson:"deletedAt,omitempty"`
}

// MessageDraft is the content of a message as sent by a guest
type MessageDraft struct {
	Content  string `json:"content" validate:"required,max=1000"`
	IsPublic bool   `json:"isPublic"`
}
