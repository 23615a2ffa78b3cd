package model

import "time"

const (
	NotifyComment      = "comment"
	NotifyReaction     = "reaction"
	NotifyNewPost      = "new_post"
	NotifyPostApproved = "post_approved"
	NotifyPostRejected = "post_rejected"
)

// Notification 持久化通知，除 read 外创建后不再修改
type Notification struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	UserID    uint64    `gorm:"not null;index:idx_user_read_time,priority:1" json:"user_id"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Message   string    `gorm:"size:512;not null" json:"message"`
	Link      string    `gorm:"size:512" json:"link"`
	Read      bool      `gorm:"not null;default:false;index:idx_user_read_time,priority:2" json:"read"`
	CreatedAt time.Time `gorm:"index:idx_user_read_time,priority:3,sort:desc" json:"created_at"`
}
