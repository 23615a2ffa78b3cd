package model

import (
	"time"

	"class_forum/internal/moderation"
)

type Post struct {
	ID         uint64            `gorm:"primaryKey" json:"id"`
	AuthorID   uint64            `gorm:"not null;index:idx_author_time,priority:1" json:"author_id"`
	Title      string            `gorm:"size:200;not null" json:"title"`
	Content    string            `gorm:"type:text" json:"content"`
	Category   string            `gorm:"size:32;index" json:"category"`
	ImageURL   string            `gorm:"size:512" json:"image_url,omitempty"`
	AudioURL   string            `gorm:"size:512" json:"audio_url,omitempty"`
	LinkURL    string            `gorm:"size:512" json:"link_url,omitempty"`
	Status     moderation.Status `gorm:"size:16;not null;default:pending;index:idx_status_pin_time,priority:1" json:"status"`
	Pinned     bool              `gorm:"not null;default:false;index:idx_status_pin_time,priority:2" json:"pinned"`
	Locked     bool              `gorm:"not null;default:false" json:"locked"`
	ReviewedBy *uint64           `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time         `gorm:"index:idx_status_pin_time,priority:3,sort:desc;index:idx_author_time,priority:2" json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Resource 判定用快照
func (p *Post) Resource() moderation.Resource {
	return moderation.Resource{AuthorID: p.AuthorID, Status: p.Status, Locked: p.Locked}
}
