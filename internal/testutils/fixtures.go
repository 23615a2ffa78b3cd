package testutils

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
)

// CreateTestUser 用户名与邮箱带随机后缀，避免唯一索引冲突
func CreateTestUser(t *testing.T, db *gorm.DB, opts ...UserOption) *model.User {
	t.Helper()
	suffix := uuid.NewString()[:8]
	u := &model.User{
		Username: "user_" + suffix,
		Email:    fmt.Sprintf("test_%s@example.com", suffix),
		Password: "x",
		Role:     string(moderation.RoleMember),
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

type UserOption func(*model.User)

func WithUsername(name string) UserOption {
	return func(u *model.User) { u.Username = name }
}

func WithRole(role moderation.Role) UserOption {
	return func(u *model.User) { u.Role = string(role) }
}

func CreateTestPost(t *testing.T, db *gorm.DB, authorID uint64, opts ...PostOption) *model.Post {
	t.Helper()
	p := &model.Post{
		AuthorID: authorID,
		Title:    "post " + uuid.NewString()[:8],
		Content:  "content",
		Category: "general",
		Status:   moderation.StatusPending,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create test post: %v", err)
	}
	return p
}

type PostOption func(*model.Post)

func WithStatus(s moderation.Status) PostOption {
	return func(p *model.Post) { p.Status = s }
}

func WithCategory(c string) PostOption {
	return func(p *model.Post) { p.Category = c }
}

func WithPinned() PostOption {
	return func(p *model.Post) { p.Pinned = true }
}
