package service

import "errors"

var (
	ErrInvalidParam = errors.New("invalid params")

	// ErrPostNotAvailable 对无权查看的人隐藏帖子是否存在
	ErrPostNotAvailable     = errors.New("post not available")
	ErrPostNotFound         = errors.New("post not found")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUserNotFound         = errors.New("user not found")

	ErrForbidden      = errors.New("forbidden")
	ErrPostLocked     = errors.New("post is locked")
	ErrStatusConflict = errors.New("post is no longer pending")

	ErrInvalidEmoji       = errors.New("emoji not allowed")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrVerificationFailed = errors.New("verification failed")
)
