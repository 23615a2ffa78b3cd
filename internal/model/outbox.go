package model

import "time"

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// NotificationOutbox 通知事件投递表，与通知在同一事务写入
type NotificationOutbox struct {
	ID             uint64 `gorm:"primaryKey"`
	NotificationID uint64 `gorm:"not null;index"`
	UserID         uint64 `gorm:"not null"`
	Payload        string `gorm:"type:json;not null"`
	Status         int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry          int    `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }
