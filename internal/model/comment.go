package model

import (
	"time"

	"class_forum/internal/moderation"
)

type Comment struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	PostID    uint64    `gorm:"not null;index:idx_post_time,priority:1" json:"post_id"`
	AuthorID  uint64    `gorm:"not null;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AudioURL  string    `gorm:"size:512" json:"audio_url,omitempty"`
	ImageURL  string    `gorm:"size:512" json:"image_url,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_post_time,priority:2" json:"created_at"`
}

func (c *Comment) Resource() moderation.Resource {
	return moderation.Resource{AuthorID: c.AuthorID}
}
