package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/notify"
	"class_forum/internal/repository/mysql"
)

type CreateCommentInput struct {
	Content  string
	AudioURL string
	ImageURL string
}

type CommentService struct {
	posts    PostStore
	comments CommentStore
	notifier Notifier
	policy   moderation.Policy
	log      zerolog.Logger
}

func NewCommentService(posts PostStore, comments CommentStore, notifier Notifier, policy moderation.Policy, log zerolog.Logger) *CommentService {
	return &CommentService{
		posts:    posts,
		comments: comments,
		notifier: notifier,
		policy:   policy,
		log:      log.With().Str("component", "comment_service").Logger(),
	}
}

// Create 锁定的帖子对任何人都不可评论
func (s *CommentService) Create(ctx context.Context, actor *moderation.Identity, postID uint64, in CreateCommentInput) (*model.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.AudioURL == "" && in.ImageURL == "" {
		return nil, fmt.Errorf("%w: empty comment", ErrInvalidParam)
	}
	post, err := s.visiblePost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	if post.Locked {
		return nil, ErrPostLocked
	}
	if !s.policy.CanMutate(actor, post.Resource(), moderation.ActionComment) {
		return nil, ErrForbidden
	}

	c := &model.Comment{
		PostID:   post.ID,
		AuthorID: actor.ID,
		Content:  content,
		AudioURL: in.AudioURL,
		ImageURL: in.ImageURL,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}

	if post.AuthorID != actor.ID {
		_, err := s.notifier.Notify(ctx, post.AuthorID, notify.Message{
			Type:    model.NotifyComment,
			Message: fmt.Sprintf("%s commented on \"%s\"", actor.Name, post.Title),
			Link:    commentLink(post.ID, c.ID),
		})
		if err != nil {
			s.log.Error().Err(err).Uint64("post_id", post.ID).Uint64("comment_id", c.ID).Msg("notify comment")
		}
	}
	return c, nil
}

func (s *CommentService) List(ctx context.Context, actor *moderation.Identity, postID uint64) ([]model.Comment, error) {
	if _, err := s.visiblePost(ctx, actor, postID); err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, postID)
}

// Delete 作者或版主
func (s *CommentService) Delete(ctx context.Context, actor *moderation.Identity, commentID uint64) error {
	c, err := s.comments.FindByID(ctx, commentID)
	if errors.Is(err, mysql.ErrNotFound) {
		return ErrCommentNotFound
	}
	if err != nil {
		return err
	}
	if !s.policy.CanMutate(actor, c.Resource(), moderation.ActionDelete) {
		return ErrForbidden
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, mysql.ErrNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	return nil
}

func (s *CommentService) visiblePost(ctx context.Context, actor *moderation.Identity, postID uint64) (*model.Post, error) {
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

func commentLink(postID, commentID uint64) string {
	return fmt.Sprintf("/posts/%d#comment-%d", postID, commentID)
}
