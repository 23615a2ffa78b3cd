package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/notify"
	"class_forum/internal/repository/mysql"
)

const (
	maxTitleLen     = 200
	defaultCategory = "general"
	defaultPageSize = 20
	maxPageSize     = 50
)

type CreatePostInput struct {
	Title    string
	Content  string
	Category string
	ImageURL string
	AudioURL string
	LinkURL  string
}

type PostService struct {
	posts        PostStore
	users        UserStore
	notifier     Notifier
	policy       moderation.Policy
	pendingLimit int
	log          zerolog.Logger
}

func NewPostService(posts PostStore, users UserStore, notifier Notifier, policy moderation.Policy, pendingLimit int, log zerolog.Logger) *PostService {
	if pendingLimit <= 0 {
		pendingLimit = 100
	}
	return &PostService{
		posts:        posts,
		users:        users,
		notifier:     notifier,
		policy:       policy,
		pendingLimit: pendingLimit,
		log:          log.With().Str("component", "post_service").Logger(),
	}
}

// CreatePost 新帖一律进入待审，并通知所有版主
func (s *PostService) CreatePost(ctx context.Context, actor *moderation.Identity, in CreatePostInput) (*model.Post, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title required, at most %d characters", ErrInvalidParam, maxTitleLen)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = defaultCategory
	}

	post := &model.Post{
		AuthorID: actor.ID,
		Title:    title,
		Content:  in.Content,
		Category: category,
		ImageURL: in.ImageURL,
		AudioURL: in.AudioURL,
		LinkURL:  in.LinkURL,
		Status:   moderation.StatusPending,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.notifyModerators(ctx, actor, post)
	return post, nil
}

func (s *PostService) notifyModerators(ctx context.Context, actor *moderation.Identity, post *model.Post) {
	ids, err := s.users.ListModeratorIDs(ctx, s.policy.SuperAdminName())
	if err != nil {
		s.log.Warn().Err(err).Uint64("post_id", post.ID).Msg("list moderators")
		return
	}
	recipients := ids[:0]
	for _, id := range ids {
		if id != actor.ID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	err = s.notifier.NotifyMany(ctx, recipients, notify.Message{
		Type:    model.NotifyNewPost,
		Message: fmt.Sprintf("%s submitted \"%s\" for review", actor.Name, post.Title),
		Link:    postLink(post.ID),
	})
	if err != nil {
		s.log.Error().Err(err).Uint64("post_id", post.ID).Msg("notify moderators")
	}
}

// ListPosts 已通过的帖子加上自己的待审/被拒帖子；置顶优先
func (s *PostService) ListPosts(ctx context.Context, actor *moderation.Identity, category string, page, size int) ([]model.Post, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	offset := (page - 1) * size

	list, err := s.posts.ListVisible(ctx, s.policy.ListScope(actor), strings.TrimSpace(category), offset, size)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for i := range list {
		if s.policy.VisibleInList(actor, list[i].Resource()) {
			out = append(out, list[i])
		}
	}
	return out, nil
}

// ListPending 待审队列只看 status == pending
func (s *PostService) ListPending(ctx context.Context, actor *moderation.Identity) ([]model.Post, error) {
	if !s.policy.CanModerate(actor) {
		return nil, ErrForbidden
	}
	return s.posts.ListPending(ctx, s.pendingLimit)
}

// GetPost 无权查看与不存在返回同一个错误
func (s *PostService) GetPost(ctx context.Context, actor *moderation.Identity, postID uint64) (*model.Post, error) {
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

func (s *PostService) Approve(ctx context.Context, actor *moderation.Identity, postID uint64) (*model.Post, error) {
	return s.review(ctx, actor, postID, moderation.ActionApprove, moderation.StatusApproved)
}

func (s *PostService) Reject(ctx context.Context, actor *moderation.Identity, postID uint64) (*model.Post, error) {
	return s.review(ctx, actor, postID, moderation.ActionReject, moderation.StatusRejected)
}

// review 前置校验之后由存储层做条件更新；并发审核时只有一个成功
func (s *PostService) review(ctx context.Context, actor *moderation.Identity, postID uint64, action moderation.Action, to moderation.Status) (*model.Post, error) {
	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanModerate(actor) {
		return nil, s.denied(actor, post)
	}
	if !s.policy.CanMutate(actor, post.Resource(), action) {
		// 版主但帖子已不在待审状态
		return nil, ErrStatusConflict
	}

	switch err := s.posts.TransitionStatus(ctx, postID, moderation.StatusPending, to, actor.ID); {
	case errors.Is(err, mysql.ErrStatusChanged):
		return nil, ErrStatusConflict
	case errors.Is(err, mysql.ErrNotFound):
		return nil, ErrPostNotFound
	case err != nil:
		return nil, err
	}
	post.Status = to
	reviewer := actor.ID
	post.ReviewedBy = &reviewer

	if post.AuthorID != actor.ID {
		s.notifyAuthor(ctx, post, to)
	}
	return post, nil
}

func (s *PostService) notifyAuthor(ctx context.Context, post *model.Post, to moderation.Status) {
	msg := notify.Message{Link: postLink(post.ID)}
	if to == moderation.StatusApproved {
		msg.Type = model.NotifyPostApproved
		msg.Message = fmt.Sprintf("Your post \"%s\" was approved", post.Title)
	} else {
		msg.Type = model.NotifyPostRejected
		msg.Message = fmt.Sprintf("Your post \"%s\" was rejected", post.Title)
	}
	if _, err := s.notifier.Notify(ctx, post.AuthorID, msg); err != nil {
		s.log.Error().Err(err).Uint64("post_id", post.ID).Uint64("user_id", post.AuthorID).Msg("notify author")
	}
}

func (s *PostService) Pin(ctx context.Context, actor *moderation.Identity, postID uint64, pinned bool) error {
	action := moderation.ActionPin
	if !pinned {
		action = moderation.ActionUnpin
	}
	post, err := s.authorize(ctx, actor, postID, action)
	if err != nil {
		return err
	}
	return s.mapStoreErr(s.posts.SetPinned(ctx, post.ID, pinned))
}

func (s *PostService) Lock(ctx context.Context, actor *moderation.Identity, postID uint64, locked bool) error {
	action := moderation.ActionLock
	if !locked {
		action = moderation.ActionUnlock
	}
	post, err := s.authorize(ctx, actor, postID, action)
	if err != nil {
		return err
	}
	return s.mapStoreErr(s.posts.SetLocked(ctx, post.ID, locked))
}

// DeletePost 作者或版主；评论与回应一起删除
func (s *PostService) DeletePost(ctx context.Context, actor *moderation.Identity, postID uint64) error {
	post, err := s.authorize(ctx, actor, postID, moderation.ActionDelete)
	if err != nil {
		return err
	}
	return s.mapStoreErr(s.posts.DeleteCascade(ctx, post.ID))
}

func (s *PostService) authorize(ctx context.Context, actor *moderation.Identity, postID uint64, action moderation.Action) (*model.Post, error) {
	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanMutate(actor, post.Resource(), action) {
		return nil, s.denied(actor, post)
	}
	return post, nil
}

func (s *PostService) load(ctx context.Context, postID uint64) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if errors.Is(err, mysql.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	return post, err
}

// denied 看不到的帖子不暴露其状态
func (s *PostService) denied(actor *moderation.Identity, post *model.Post) error {
	if !s.policy.CanView(actor, post.Resource()) {
		return ErrPostNotAvailable
	}
	return ErrForbidden
}

func (s *PostService) mapStoreErr(err error) error {
	if errors.Is(err, mysql.ErrNotFound) {
		return ErrPostNotFound
	}
	return err
}

func postLink(id uint64) string {
	return fmt.Sprintf("/posts/%d", id)
}
