package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthorRole identifies who wrote a discussion or reply
type AuthorRole string

const (
	RoleTeacher AuthorRole = "Teacher"
	RoleStudent AuthorRole = "Student"
)

// Author is a value snapshot of the acting user, embedded in the entity.
// It carries no identity lifecycle of its own.
type Author struct {
	Name   string     `json:"name"`
	Role   AuthorRole `json:"role"`
	Avatar string     `json:"avatar,omitempty"`
}

// ModerationStatus is the canonical moderation state vocabulary.
// The classifier's verdict vocabulary is normalized into these values
// at the mapping boundary; this side is authoritative.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationFlagged  ModerationStatus = "flagged"
	ModerationRemoved  ModerationStatus = "removed"
)

// Discussion is a forum thread. Replies hang off it as a rooted tree:
// the discussion holds top-level reply ids, each reply holds its own
// child ids (arena-style, id lists rather than object graphs).
type Discussion struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	Title  string `gorm:"type:text;not null" json:"title"`
	Prompt string `gorm:"type:text;not null" json:"prompt"`
	Tags   Tags   `gorm:"type:jsonb;serializer:json" json:"tags"`
	Author Author `gorm:"type:jsonb;serializer:json" json:"author"`

	// Toggle ledgers - membership means "has voted" / "has reported"
	Upvotes    UserIDSet `gorm:"type:jsonb;serializer:json" json:"upvotes"`
	ReportedBy UserIDSet `gorm:"type:jsonb;serializer:json" json:"reported_by"`

	// Top-level reply ids in insertion order (= display order)
	ReplyIDs ReplyIDList `gorm:"type:jsonb;serializer:json" json:"-"`

	// Resolved reply tree, populated on read paths only
	Replies []*Reply `gorm:"-" json:"replies,omitempty"`

	ModerationStatus ModerationStatus `gorm:"type:text;default:approved;index" json:"moderation_status"`
	IsActive         bool             `gorm:"default:true" json:"is_active"`
	IsDeleted        bool             `gorm:"default:false;index" json:"is_deleted"`

	// Derived caches from the assistant pipeline, mutable and not authoritative
	AISummary     string `gorm:"type:text" json:"ai_summary,omitempty"`
	AISuggestions Tags   `gorm:"type:jsonb;serializer:json" json:"ai_suggestions,omitempty"`

	// Annotation computed on list reads, never stored
	Inactive bool `gorm:"-" json:"inactive"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `gorm:"index" json:"last_activity"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Reply is one node of a discussion's reply tree. A reply may own child
// replies, so the structure nests to unbounded depth on the write path.
type Reply struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	DiscussionID string `gorm:"type:uuid;not null;index" json:"discussion_id"`

	// Owner: either the discussion (nil) or another reply
	ParentID *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Content string `gorm:"type:text;not null" json:"content"`
	Author  Author `gorm:"type:jsonb;serializer:json" json:"author"`

	Upvotes    UserIDSet   `gorm:"type:jsonb;serializer:json" json:"upvotes"`
	ReportedBy UserIDSet   `gorm:"type:jsonb;serializer:json" json:"reported_by"`
	ReplyIDs   ReplyIDList `gorm:"type:jsonb;serializer:json" json:"-"`

	Replies []*Reply `gorm:"-" json:"replies,omitempty"`

	ModerationStatus ModerationStatus `gorm:"type:text;default:approved;index" json:"moderation_status"`
	IsDeleted        bool             `gorm:"default:false;index" json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReportReason categorizes a content report
type ReportReason string

const (
	ReportReasonSpam          ReportReason = "spam"
	ReportReasonHarassment    ReportReason = "harassment"
	ReportReasonInappropriate ReportReason = "inappropriate"
	ReportReasonOffTopic      ReportReason = "off_topic"
	ReportReasonOther         ReportReason = "other"
)

// ValidReportReason reports whether r is a known reason value
func ValidReportReason(r ReportReason) bool {
	switch r {
	case ReportReasonSpam, ReportReasonHarassment, ReportReasonInappropriate,
		ReportReasonOffTopic, ReportReasonOther:
		return true
	}
	return false
}

// BeforeCreate hooks for GORM
func (d *Discussion) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = generateUUID()
	}
	return nil
}

func (r *Reply) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

// Helper function for UUID generation
func generateUUID() string {
	return uuid.New().String()
}
