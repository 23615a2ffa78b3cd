package service

import (
	"context"
	"time"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/notify"
)

// 以下接口由 repository 包实现，测试中使用内存替身。
// 查询不到时返回 mysql.ErrNotFound。

type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uint64) (*model.Post, error)
	ListVisible(ctx context.Context, scope moderation.ListScope, category string, offset, limit int) ([]model.Post, error)
	ListPending(ctx context.Context, limit int) ([]model.Post, error)
	TransitionStatus(ctx context.Context, postID uint64, from, to moderation.Status, reviewerID uint64) error
	SetPinned(ctx context.Context, postID uint64, pinned bool) error
	SetLocked(ctx context.Context, postID uint64, locked bool) error
	DeleteCascade(ctx context.Context, postID uint64) error
}

type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, id uint64) (*model.Comment, error)
	ListByPost(ctx context.Context, postID uint64) ([]model.Comment, error)
	Delete(ctx context.Context, id uint64) error
}

type ReactionStore interface {
	Upsert(ctx context.Context, subject model.SubjectType, subjectID, userID uint64, emoji string) (string, error)
	Delete(ctx context.Context, subject model.SubjectType, subjectID, userID uint64) error
	Find(ctx context.Context, subject model.SubjectType, subjectID, userID uint64) (string, error)
	Counts(ctx context.Context, subject model.SubjectType, subjectID uint64) ([]model.ReactionCount, error)
}

// ReactionCountCache 可为 nil，此时每次都回源
type ReactionCountCache interface {
	GetCounts(ctx context.Context, subject model.SubjectType, id uint64) ([]model.ReactionCount, bool, error)
	SetCounts(ctx context.Context, subject model.SubjectType, id uint64, counts []model.ReactionCount) error
	DeleteCounts(ctx context.Context, subject model.SubjectType, id uint64, delay ...time.Duration) error
}

type Locker interface {
	Acquire(ctx context.Context, subject model.SubjectType, id uint64, token string) (bool, error)
	Release(ctx context.Context, subject model.SubjectType, id uint64, token string) error
}

type NotificationStore interface {
	ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id uint64) (bool, error)
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
	UnreadCount(ctx context.Context, userID uint64) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID uint64, hash string) error
	UpdateRole(ctx context.Context, userID uint64, role moderation.Role) (bool, error)
	ListModeratorIDs(ctx context.Context, superAdminName string) ([]uint64, error)
}

type TokenStore interface {
	AddUserToken(ctx context.Context, userID uint64, token string) error
	GetUserToken(ctx context.Context, userID uint64) (string, error)
	ExtendUserToken(ctx context.Context, userID uint64) error
	DeleteUserToken(ctx context.Context, userID uint64) error
}

type CodeStore interface {
	SetPending(ctx context.Context, scope, email, code string) error
	Confirm(ctx context.Context, scope, email string) error
	DeletePending(ctx context.Context, scope, email string) error
	GetConfirmed(ctx context.Context, scope, email string) (string, error)
	DeleteConfirmed(ctx context.Context, scope, email string) error
}

// Notifier 即 notify.Dispatcher
type Notifier interface {
	Notify(ctx context.Context, recipientID uint64, msg notify.Message) (*model.Notification, error)
	NotifyMany(ctx context.Context, recipients []uint64, msg notify.Message) error
}

type OutboxStore interface {
	List(ctx context.Context, batchSize int) ([]model.NotificationOutbox, error)
	RetryUpdate(ctx context.Context, id uint64) error
	SuccessUpdate(ctx context.Context, id uint64) error
	PruneSent(ctx context.Context, before time.Time) (int64, error)
}
