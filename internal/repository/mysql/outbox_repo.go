package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"class_forum/internal/model"
)

// MaxOutboxRetry 超过后不再投递，留待人工处理
const MaxOutboxRetry = 10

type OutboxRepository struct {
	DB *gorm.DB
}

// List 待投递或失败可重试的事件
func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.NotificationOutbox, error) {
	var list []model.NotificationOutbox
	if err := r.DB.WithContext(ctx).
		Where("status IN ? AND retry < ?", []int8{model.OutboxPending, model.OutboxFailed}, MaxOutboxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate outbox记录消息失败重试
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.NotificationOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate outbox成功记录消息更新
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.NotificationOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}

// PruneSent 删除 before 之前已投递的事件，返回删除条数
func (r *OutboxRepository) PruneSent(ctx context.Context, before time.Time) (int64, error) {
	tx := r.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.OutboxSent, before).
		Delete(&model.NotificationOutbox{})
	return tx.RowsAffected, tx.Error
}
