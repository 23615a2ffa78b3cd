package service

import (
	"context"
	"errors"
	"fmt"

	"class_forum/internal/model"
	"class_forum/internal/notify"
	"class_forum/internal/repository/mysql"
)

type NotificationService struct {
	store    NotificationStore
	users    UserStore
	notifier Notifier
	limit    int
}

func NewNotificationService(store NotificationStore, users UserStore, notifier Notifier, limit int) *NotificationService {
	if limit <= 0 {
		limit = 50
	}
	return &NotificationService{store: store, users: users, notifier: notifier, limit: limit}
}

// List 拉取通知，新的在前；limit 超出上限时截断
func (s *NotificationService) List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	return s.store.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkRead 只能标记自己的通知，别人的与不存在的一样处理
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint64) error {
	ok, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

type CreateNotificationInput struct {
	UserID  uint64
	Type    string
	Message string
	Link    string
}

// Create 内部接口：直接走分发器。写库失败会返回给调用方
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*model.Notification, error) {
	if in.UserID == 0 {
		return nil, fmt.Errorf("%w: user_id required", ErrInvalidParam)
	}
	if _, err := s.users.FindByID(ctx, in.UserID); err != nil {
		if errors.Is(err, mysql.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	n, err := s.notifier.Notify(ctx, in.UserID, notify.Message{Type: in.Type, Message: in.Message, Link: in.Link})
	if errors.Is(err, notify.ErrEmptyMessage) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return n, err
}
