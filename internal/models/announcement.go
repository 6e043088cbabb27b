package models

import "time"

// AnnouncementAudience defines who an announcement targets.
type AnnouncementAudience string

const (
	AnnouncementAudienceAll      AnnouncementAudience = "ALL"
	AnnouncementAudienceTeachers AnnouncementAudience = "TEACHERS"
	AnnouncementAudienceParents  AnnouncementAudience = "PARENTS"
	AnnouncementAudienceClass    AnnouncementAudience = "CLASS"
	AnnouncementAudienceUsers    AnnouncementAudience = "USERS"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID            int64                `db:"id" json:"id"`
	Title         string               `db:"title" json:"title"`
	Content       string               `db:"content" json:"content"`
	Audience      AnnouncementAudience `db:"audience" json:"audience"`
	TargetClassID *int64               `db:"target_class_id" json:"target_class_id,omitempty"`
	AuthorID      int64                `db:"author_id" json:"author_id"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter allows listing announcements.
type AnnouncementFilter struct {
	AuthorID int64
	ClassID  int64
	Page     int
	PageSize int
}
