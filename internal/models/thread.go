package models

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a conversation between a brand and an organization, optionally about one event.
type Thread struct {
	ID        uuid.UUID  `json:"id"`
	BrandID   uuid.UUID  `json:"brand_id"`
	OrgID     uuid.UUID  `json:"org_id"`
	EventID   *uuid.UUID `json:"event_id,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Message is one append-only entry in a thread.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	ThreadID  uuid.UUID  `json:"thread_id"`
	SenderID  uuid.UUID  `json:"sender_id"`
	Content   string     `json:"content"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ThreadSummary is a thread with its counterpart names, latest message and unread count for the caller.
type ThreadSummary struct {
	Thread
	OrgName       string   `json:"org_name"`
	University    string   `json:"university"`
	CompanyName   string   `json:"company_name"`
	EventTitle    string   `json:"event_title,omitempty"`
	LatestMessage *Message `json:"latest_message,omitempty"`
	UnreadCount   int      `json:"unread_count"`
}
