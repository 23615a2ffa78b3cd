package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
)

func TestCommentService_LockedPostRejectsEveryRole(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	actors := []*moderation.Identity{
		author,
		f.db.addUser("bob", moderation.RoleMember),
		f.db.addUser("tom", moderation.RoleTeacher),
		f.db.addUser("ada", moderation.RoleAdmin),
		f.db.addUser("owner", moderation.RoleMember),
	}
	post := f.seedPost(author, moderation.StatusApproved)
	require.NoError(t, f.posts.Lock(ctx, actors[3], post.ID, true))

	for _, actor := range actors {
		t.Run(actor.Name, func(t *testing.T) {
			_, err := f.comments.Create(ctx, actor, post.ID, CreateCommentInput{Content: "let me in"})
			assert.ErrorIs(t, err, ErrPostLocked)
		})
	}
	list, err := f.comments.List(ctx, nil, post.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCommentService_NotifiesPostAuthorExceptSelf(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	bob := f.db.addUser("bob", moderation.RoleMember)
	post := f.seedPost(author, moderation.StatusApproved)

	c, err := f.comments.Create(ctx, bob, post.ID, CreateCommentInput{Content: " nice "})
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)

	_, err = f.comments.Create(ctx, author, post.ID, CreateCommentInput{Content: "thanks"})
	require.NoError(t, err)

	sent := f.notifier.byType(model.NotifyComment)
	require.Len(t, sent, 1)
	assert.Equal(t, author.ID, sent[0].to)
	assert.Equal(t, commentLink(post.ID, c.ID), sent[0].msg.Link)
	assert.Contains(t, sent[0].msg.Message, "bob")

	list, err := f.comments.List(ctx, nil, post.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCommentService_NotificationFailureDoesNotFailComment(t *testing.T) {
	f := newForum()
	author := f.db.addUser("alice", moderation.RoleMember)
	bob := f.db.addUser("bob", moderation.RoleMember)
	post := f.seedPost(author, moderation.StatusApproved)
	f.notifier.fail = errors.New("db down")

	c, err := f.comments.Create(context.Background(), bob, post.ID, CreateCommentInput{Content: "hi"})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
}

func TestCommentService_HiddenPost(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	bob := f.db.addUser("bob", moderation.RoleMember)
	mod := f.db.addUser("tom", moderation.RoleTeacher)
	post := f.seedPost(author, moderation.StatusPending)

	_, err := f.comments.Create(ctx, bob, post.ID, CreateCommentInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrPostNotAvailable)
	_, err = f.comments.List(ctx, bob, post.ID)
	assert.ErrorIs(t, err, ErrPostNotAvailable)

	// 作者与版主在未锁定时可以评论待审帖
	_, err = f.comments.Create(ctx, author, post.ID, CreateCommentInput{Content: "draft note"})
	assert.NoError(t, err)
	_, err = f.comments.Create(ctx, mod, post.ID, CreateCommentInput{Content: "please fix title"})
	assert.NoError(t, err)

	_, err = f.comments.Create(ctx, nil, post.ID, CreateCommentInput{Content: "anon"})
	assert.ErrorIs(t, err, ErrPostNotAvailable)
}

func TestCommentService_Validation(t *testing.T) {
	f := newForum()
	author := f.db.addUser("alice", moderation.RoleMember)
	post := f.seedPost(author, moderation.StatusApproved)

	_, err := f.comments.Create(context.Background(), author, post.ID, CreateCommentInput{Content: "  "})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = f.comments.Create(context.Background(), author, post.ID, CreateCommentInput{AudioURL: "https://media/voice.ogg"})
	assert.NoError(t, err)

	_, err = f.comments.Create(context.Background(), nil, post.ID, CreateCommentInput{Content: "anon"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCommentService_Delete(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	bob := f.db.addUser("bob", moderation.RoleMember)
	carol := f.db.addUser("carol", moderation.RoleMember)
	mod := f.db.addUser("tom", moderation.RoleTeacher)
	post := f.seedPost(author, moderation.StatusApproved)

	c1, err := f.comments.Create(ctx, bob, post.ID, CreateCommentInput{Content: "one"})
	require.NoError(t, err)
	c2, err := f.comments.Create(ctx, bob, post.ID, CreateCommentInput{Content: "two"})
	require.NoError(t, err)

	// 帖子作者不是评论作者
	assert.ErrorIs(t, f.comments.Delete(ctx, author, c1.ID), ErrForbidden)
	assert.ErrorIs(t, f.comments.Delete(ctx, carol, c1.ID), ErrForbidden)
	assert.NoError(t, f.comments.Delete(ctx, bob, c1.ID))
	assert.NoError(t, f.comments.Delete(ctx, mod, c2.ID))
	assert.ErrorIs(t, f.comments.Delete(ctx, bob, c1.ID), ErrCommentNotFound)
}
