package model

import "time"

type SubjectType string

const (
	SubjectPost    SubjectType = "post"
	SubjectComment SubjectType = "comment"
)

// Reaction 每个用户对同一对象最多一个 emoji，由唯一索引保证
type Reaction struct {
	ID          uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SubjectType SubjectType `gorm:"size:16;not null;uniqueIndex:uk_subject_user,priority:1" json:"subject_type"`
	SubjectID   uint64      `gorm:"not null;uniqueIndex:uk_subject_user,priority:2" json:"subject_id"`
	UserID      uint64      `gorm:"not null;uniqueIndex:uk_subject_user,priority:3;index" json:"user_id"`
	Emoji       string      `gorm:"size:16;not null" json:"emoji"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

// ReactionCount 按 emoji 聚合的计数
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int64  `json:"count"`
}
