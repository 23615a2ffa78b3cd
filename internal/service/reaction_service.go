package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/notify"
	"class_forum/internal/repository/mysql"
)

// AllowedEmojis 固定的可选集合
var AllowedEmojis = []string{"👍", "❤️", "😂", "😮", "😢", "🎉"}

func IsAllowedEmoji(e string) bool {
	for _, a := range AllowedEmojis {
		if a == e {
			return true
		}
	}
	return false
}

// 延迟二删的间隔
const countCacheRedelete = 500 * time.Millisecond

type ReactionSummary struct {
	Counts []model.ReactionCount `json:"counts"`
	Mine   string                `json:"mine"`
}

type ReactionService struct {
	posts     PostStore
	comments  CommentStore
	reactions ReactionStore
	cache     ReactionCountCache
	lock      Locker
	notifier  Notifier
	policy    moderation.Policy
	log       zerolog.Logger
}

// NewReactionService cache 与 lock 可以为 nil
func NewReactionService(posts PostStore, comments CommentStore, reactions ReactionStore, cache ReactionCountCache, lock Locker,
	notifier Notifier, policy moderation.Policy, log zerolog.Logger) *ReactionService {
	return &ReactionService{
		posts:     posts,
		comments:  comments,
		reactions: reactions,
		cache:     cache,
		lock:      lock,
		notifier:  notifier,
		policy:    policy,
		log:       log.With().Str("component", "reaction_service").Logger(),
	}
}

// target 回应对象解析后的结果
type target struct {
	subject  model.SubjectType
	id       uint64
	authorID uint64
	title    string
	link     string
}

// resolve 回应对象必须对请求者可见；评论的可见性跟随所属帖子
func (s *ReactionService) resolve(ctx context.Context, actor *moderation.Identity, subject model.SubjectType, id uint64) (*target, error) {
	switch subject {
	case model.SubjectPost:
		post, err := s.visiblePost(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		return &target{subject: subject, id: id, authorID: post.AuthorID, title: post.Title, link: postLink(post.ID)}, nil
	case model.SubjectComment:
		c, err := s.comments.FindByID(ctx, id)
		if errors.Is(err, mysql.ErrNotFound) {
			return nil, ErrCommentNotFound
		}
		if err != nil {
			return nil, err
		}
		post, err := s.visiblePost(ctx, actor, c.PostID)
		if err != nil {
			return nil, err
		}
		return &target{subject: subject, id: id, authorID: c.AuthorID, title: post.Title, link: commentLink(post.ID, c.ID)}, nil
	default:
		return nil, ErrInvalidParam
	}
}

func (s *ReactionService) visiblePost(ctx context.Context, actor *moderation.Identity, postID uint64) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if errors.Is(err, mysql.ErrNotFound) {
		return nil, ErrPostNotAvailable
	}
	if err != nil {
		return nil, err
	}
	if !s.policy.CanView(actor, post.Resource()) {
		return nil, ErrPostNotAvailable
	}
	return post, nil
}

// Set 设置新 emoji 替换旧值；空串删除。删除不发通知。
func (s *ReactionService) Set(ctx context.Context, actor *moderation.Identity, subject model.SubjectType, id uint64, emoji string) (*ReactionSummary, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	emoji = strings.TrimSpace(emoji)
	if emoji != "" && !IsAllowedEmoji(emoji) {
		return nil, ErrInvalidEmoji
	}
	t, err := s.resolve(ctx, actor, subject, id)
	if err != nil {
		return nil, err
	}

	if emoji == "" {
		if err := s.reactions.Delete(ctx, subject, id, actor.ID); err != nil {
			return nil, err
		}
		s.invalidate(ctx, t)
		return s.summary(ctx, actor, t)
	}

	previous, err := s.reactions.Upsert(ctx, subject, id, actor.ID, emoji)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, t)

	if previous != emoji && t.authorID != actor.ID {
		_, err := s.notifier.Notify(ctx, t.authorID, notify.Message{
			Type:    model.NotifyReaction,
			Message: fmt.Sprintf("%s reacted %s to \"%s\"", actor.Name, emoji, t.title),
			Link:    t.link,
		})
		if err != nil {
			s.log.Error().Err(err).Str("subject", string(subject)).Uint64("subject_id", id).Msg("notify reaction")
		}
	}
	return s.summary(ctx, actor, t)
}

// Summary 按 emoji 聚合的计数，以及请求者自己的 emoji
func (s *ReactionService) Summary(ctx context.Context, actor *moderation.Identity, subject model.SubjectType, id uint64) (*ReactionSummary, error) {
	t, err := s.resolve(ctx, actor, subject, id)
	if err != nil {
		return nil, err
	}
	return s.summary(ctx, actor, t)
}

func (s *ReactionService) summary(ctx context.Context, actor *moderation.Identity, t *target) (*ReactionSummary, error) {
	counts, err := s.counts(ctx, t.subject, t.id)
	if err != nil {
		return nil, err
	}
	out := &ReactionSummary{Counts: counts}
	if actor != nil {
		if out.Mine, err = s.reactions.Find(ctx, t.subject, t.id, actor.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// counts 先读缓存；未命中时拿到锁的请求负责回源并回填，其余直接回源不回填
func (s *ReactionService) counts(ctx context.Context, subject model.SubjectType, id uint64) ([]model.ReactionCount, error) {
	if s.cache == nil {
		return s.reactions.Counts(ctx, subject, id)
	}
	if v, ok, err := s.cache.GetCounts(ctx, subject, id); err == nil && ok {
		return v, nil
	}

	if s.lock != nil {
		token := uuid.NewString()
		got, err := s.lock.Acquire(ctx, subject, id, token)
		if err == nil && got {
			defer func() {
				if err := s.lock.Release(ctx, subject, id, token); err != nil {
					s.log.Warn().Err(err).Msg("release count lock")
				}
			}()
			// 第二次检查
			if v, ok, err := s.cache.GetCounts(ctx, subject, id); err == nil && ok {
				return v, nil
			}
			v, err := s.reactions.Counts(ctx, subject, id)
			if err != nil {
				return nil, err
			}
			if err := s.cache.SetCounts(ctx, subject, id, v); err != nil {
				s.log.Warn().Err(err).Msg("backfill reaction counts")
			}
			return v, nil
		}
	}
	return s.reactions.Counts(ctx, subject, id)
}

func (s *ReactionService) invalidate(ctx context.Context, t *target) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteCounts(ctx, t.subject, t.id, countCacheRedelete); err != nil {
		s.log.Warn().Err(err).Str("subject", string(t.subject)).Uint64("subject_id", t.id).Msg("invalidate reaction counts")
	}
}
