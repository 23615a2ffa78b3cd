package mysql

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"class_forum/internal/model"
)

type NotificationRepository struct {
	DB *gorm.DB
}

// CreateNotification 通知与 outbox 事件在同一事务写入
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n.Read = false
		if err := tx.Create(n).Error; err != nil {
			return err
		}
		return insertOutbox(tx, n)
	})
}

func insertOutbox(tx *gorm.DB, n *model.Notification) error {
	payload, err := json.Marshal(map[string]any{
		"id":         n.ID,
		"user_id":    n.UserID,
		"type":       n.Type,
		"message":    n.Message,
		"link":       n.Link,
		"created_at": n.CreatedAt,
	})
	if err != nil {
		return err
	}
	return tx.Create(&model.NotificationOutbox{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Payload:        string(payload),
		Status:         model.OutboxPending,
	}).Error
}

// ListByUser 拉取接口，新的在前
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	cond := map[string]any{"user_id": userID}
	if unreadOnly {
		// read 在 mysql 中是保留字，用 map 条件交给方言加引号
		cond["read"] = false
	}
	q := r.DB.WithContext(ctx).Where(cond)
	var list []model.Notification
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkRead 只能标记自己的通知；返回是否命中（已读的也算命中）
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	tx := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where(map[string]any{"user_id": userID, "read": false}).
		Update("read", true)
	return tx.RowsAffected, tx.Error
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where(map[string]any{"user_id": userID, "read": false}).
		Count(&n).Error
	return n, err
}
