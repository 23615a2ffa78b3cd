package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
)

type UserRepository struct {
	DB *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

// FindByUsername 用户名或邮箱均可登录
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	return first(&user, r.DB.WithContext(ctx).Where("username = ? OR email = ?", username, username).First(&user).Error)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	return first(&user, r.DB.WithContext(ctx).First(&user, id).Error)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var usr model.User
	return first(&usr, r.DB.WithContext(ctx).Where("email = ?", email).First(&usr).Error)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint64, hash string) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("password", hash).Error
}

// UpdateRole 返回是否命中用户
func (r *UserRepository) UpdateRole(ctx context.Context, userID uint64, role moderation.Role) (bool, error) {
	tx := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("role", string(role))
	if tx.Error != nil || tx.RowsAffected > 0 {
		return tx.Error == nil, tx.Error
	}
	// mysql 对未变化的行返回 0，再确认一次是否存在
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Count(&n).Error
	return n > 0, err
}

// ListModeratorIDs teacher/admin 以及名字匹配超级管理员的用户
func (r *UserRepository) ListModeratorIDs(ctx context.Context, superAdminName string) ([]uint64, error) {
	var ids []uint64
	q := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("role IN ?", []string{string(moderation.RoleTeacher), string(moderation.RoleAdmin)})
	if superAdminName != "" {
		q = q.Or("LOWER(username) = LOWER(?)", superAdminName)
	}
	err := q.Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// first 把 gorm 的未找到统一为 ErrNotFound
func first[T any](row *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
