package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
)

var (
	// ErrNotFound 目标行不存在
	ErrNotFound = errors.New("record not found")
	// ErrStatusChanged 条件更新未命中：状态已被他人修改
	ErrStatusChanged = errors.New("status changed concurrently")
)

type PostRepository struct {
	DB *gorm.DB
}

func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	return r.DB.WithContext(ctx).Create(post).Error
}

func (r *PostRepository) FindByID(ctx context.Context, id uint64) (*model.Post, error) {
	var post model.Post
	err := r.DB.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListVisible 列表查询：已通过的帖子，加上 scope.OwnerID 自己的 pending/rejected。
// 置顶优先，其次按时间倒序；索引 (status, pinned, created_at DESC)
func (r *PostRepository) ListVisible(ctx context.Context, scope moderation.ListScope, category string, offset, limit int) ([]model.Post, error) {
	q := r.DB.WithContext(ctx).Model(&model.Post{})
	if scope.OwnerID > 0 {
		q = q.Where("(status = ? OR (author_id = ? AND status IN ?))",
			moderation.StatusApproved, scope.OwnerID,
			[]moderation.Status{moderation.StatusPending, moderation.StatusRejected})
	} else {
		q = q.Where("status = ?", moderation.StatusApproved)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var list []model.Post
	err := q.Order("pinned DESC, created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListPending 待审队列，先到先审
func (r *PostRepository) ListPending(ctx context.Context, limit int) ([]model.Post, error) {
	var list []model.Post
	err := r.DB.WithContext(ctx).
		Where("status = ?", moderation.StatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// TransitionStatus 条件更新：仅当当前状态为 from 时写入 to。
// 并发审核中只有一个请求能命中，其余返回 ErrStatusChanged。
func (r *PostRepository) TransitionStatus(ctx context.Context, postID uint64, from, to moderation.Status, reviewerID uint64) error {
	now := time.Now()
	tx := r.DB.WithContext(ctx).Model(&model.Post{}).
		Where("id = ? AND status = ?", postID, from).
		Updates(map[string]any{
			"status":      to,
			"reviewed_by": reviewerID,
			"reviewed_at": now,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 1 {
		return nil
	}
	// 未命中：区分不存在与状态已变
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusChanged
}

func (r *PostRepository) SetPinned(ctx context.Context, postID uint64, pinned bool) error {
	return r.setFlag(ctx, postID, "pinned", pinned)
}

func (r *PostRepository) SetLocked(ctx context.Context, postID uint64, locked bool) error {
	return r.setFlag(ctx, postID, "locked", locked)
}

// setFlag 幂等：值未变化也视为成功
func (r *PostRepository) setFlag(ctx context.Context, postID uint64, column string, value bool) error {
	tx := r.DB.WithContext(ctx).Model(&model.Post{}).Where("id = ?", postID).Update(column, value)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		var n int64
		if err := r.DB.WithContext(ctx).Model(&model.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// DeleteCascade 同一事务内删除帖子、其评论以及帖子和评论上的回应
func (r *PostRepository) DeleteCascade(ctx context.Context, postID uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&model.Comment{}).Select("id").Where("post_id = ?", postID)
		if err := tx.Where("subject_type = ? AND subject_id IN (?)", model.SubjectComment, commentIDs).
			Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("subject_type = ? AND subject_id = ?", model.SubjectPost, postID).
			Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Post{}, postID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
