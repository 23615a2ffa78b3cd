package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"class_forum/internal/model"
)

type ReactionRepository struct {
	DB *gorm.DB
}

// Upsert 唯一键 (subject_type, subject_id, user_id) 冲突时替换 emoji。
// 返回此前的 emoji（不存在时为空），供上层判断是否真的发生变化。
// 旧值不加锁读取：不存在的行上 FOR UPDATE 会持有间隙锁，与并发 upsert 死锁。
func (r *ReactionRepository) Upsert(ctx context.Context, subject model.SubjectType, subjectID, userID uint64, emoji string) (string, error) {
	previous, err := r.Find(ctx, subject, subjectID, userID)
	if err != nil {
		return "", err
	}

	err = r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_type"}, {Name: "subject_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"emoji", "updated_at"}),
	}).Create(&model.Reaction{
		SubjectType: subject,
		SubjectID:   subjectID,
		UserID:      userID,
		Emoji:       emoji,
	}).Error
	return previous, err
}

// Delete 幂等：不存在也返回 nil
func (r *ReactionRepository) Delete(ctx context.Context, subject model.SubjectType, subjectID, userID uint64) error {
	return r.DB.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ? AND user_id = ?", subject, subjectID, userID).
		Delete(&model.Reaction{}).Error
}

// Find 用户在对象上的 emoji，没有时返回空串
func (r *ReactionRepository) Find(ctx context.Context, subject model.SubjectType, subjectID, userID uint64) (string, error) {
	var rc model.Reaction
	err := r.DB.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ? AND user_id = ?", subject, subjectID, userID).
		First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return rc.Emoji, err
}

// Counts 按 emoji 聚合
func (r *ReactionRepository) Counts(ctx context.Context, subject model.SubjectType, subjectID uint64) ([]model.ReactionCount, error) {
	var out []model.ReactionCount
	err := r.DB.WithContext(ctx).Model(&model.Reaction{}).
		Select("emoji, COUNT(*) AS count").
		Where("subject_type = ? AND subject_id = ?", subject, subjectID).
		Group("emoji").
		Order("count DESC, emoji ASC").
		Scan(&out).Error
	return out, err
}
