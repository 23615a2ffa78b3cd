package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
)

func TestPostService_CreateStartsPendingAndNotifiesModerators(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	teacher := f.db.addUser("tom", moderation.RoleTeacher)
	admin := f.db.addUser("ada", moderation.RoleAdmin)
	owner := f.db.addUser("owner", moderation.RoleMember)
	f.db.addUser("bob", moderation.RoleMember)

	post, err := f.posts.CreatePost(ctx, author, CreatePostInput{Title: "  Homework 3  ", Content: "help"})
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusPending, post.Status)
	assert.Equal(t, "Homework 3", post.Title)
	assert.Equal(t, defaultCategory, post.Category)

	var recipients []uint64
	for _, n := range f.notifier.byType(model.NotifyNewPost) {
		recipients = append(recipients, n.to)
		assert.Equal(t, postLink(post.ID), n.msg.Link)
	}
	assert.ElementsMatch(t, []uint64{teacher.ID, admin.ID, owner.ID}, recipients)
}

func TestPostService_CreateValidatesTitle(t *testing.T) {
	f := newForum()
	author := f.db.addUser("alice", moderation.RoleMember)

	_, err := f.posts.CreatePost(context.Background(), author, CreatePostInput{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = f.posts.CreatePost(context.Background(), nil, CreatePostInput{Title: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPostService_CreateSurvivesNotificationFailure(t *testing.T) {
	f := newForum()
	f.db.addUser("tom", moderation.RoleTeacher)
	author := f.db.addUser("alice", moderation.RoleMember)
	f.notifier.fail = errors.New("db down")

	post, err := f.posts.CreatePost(context.Background(), author, CreatePostInput{Title: "still saved"})
	require.NoError(t, err)
	_, err = memPosts{f.db}.FindByID(context.Background(), post.ID)
	assert.NoError(t, err)
}

func TestPostService_ApproveRevealsPostToOthers(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	a := f.db.addUser("alice", moderation.RoleMember)
	b := f.db.addUser("bob", moderation.RoleMember)
	m := f.db.addUser("tom", moderation.RoleTeacher)

	post, err := f.posts.CreatePost(ctx, a, CreatePostInput{Title: "P"})
	require.NoError(t, err)

	_, err = f.posts.GetPost(ctx, b, post.ID)
	assert.ErrorIs(t, err, ErrPostNotAvailable)
	_, err = f.posts.GetPost(ctx, nil, post.ID)
	assert.ErrorIs(t, err, ErrPostNotAvailable)

	got, err := f.posts.GetPost(ctx, a, post.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusPending, got.Status)

	_, err = f.posts.Approve(ctx, m, post.ID)
	require.NoError(t, err)

	got, err = f.posts.GetPost(ctx, b, post.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusApproved, got.Status)

	approved := f.notifier.byType(model.NotifyPostApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, a.ID, approved[0].to)
}

func TestPostService_GetMissingPostIsNotAvailable(t *testing.T) {
	f := newForum()
	_, err := f.posts.GetPost(context.Background(), nil, 999)
	assert.ErrorIs(t, err, ErrPostNotAvailable)
}

func TestPostService_ReviewPermissions(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	other := f.db.addUser("bob", moderation.RoleMember)
	owner := f.db.addUser(" OWNER ", moderation.RoleMember)

	post := f.seedPost(author, moderation.StatusPending)

	// 看不到的帖子不暴露状态
	_, err := f.posts.Approve(ctx, other, post.ID)
	assert.ErrorIs(t, err, ErrPostNotAvailable)
	// 作者能看到但不能审核自己
	_, err = f.posts.Approve(ctx, author, post.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.posts.Reject(ctx, owner, post.ID)
	require.NoError(t, err)

	_, err = f.posts.Approve(ctx, owner, post.ID)
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = f.posts.Approve(ctx, owner, 12345)
	assert.ErrorIs(t, err, ErrPostNotFound)

	rejected := f.notifier.byType(model.NotifyPostRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, author.ID, rejected[0].to)
}

func TestPostService_ConcurrentReviewExactlyOneWins(t *testing.T) {
	cases := []struct {
		name    string
		actions [2]moderation.Action
	}{
		{"approve+approve", [2]moderation.Action{moderation.ActionApprove, moderation.ActionApprove}},
		{"approve+reject", [2]moderation.Action{moderation.ActionApprove, moderation.ActionReject}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for round := 0; round < 20; round++ {
				f := newForum()
				ctx := context.Background()
				author := f.db.addUser("alice", moderation.RoleMember)
				mods := []*moderation.Identity{
					f.db.addUser("tom", moderation.RoleTeacher),
					f.db.addUser("ada", moderation.RoleAdmin),
				}
				post := f.seedPost(author, moderation.StatusPending)

				var (
					wg      sync.WaitGroup
					start   = make(chan struct{})
					results [2]error
					winners [2]moderation.Status
				)
				for i := 0; i < 2; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						<-start
						var p *model.Post
						if tc.actions[i] == moderation.ActionApprove {
							p, results[i] = f.posts.Approve(ctx, mods[i], post.ID)
						} else {
							p, results[i] = f.posts.Reject(ctx, mods[i], post.ID)
						}
						if p != nil {
							winners[i] = p.Status
						}
					}(i)
				}
				close(start)
				wg.Wait()

				ok, conflicts := 0, 0
				var winner moderation.Status
				for i, err := range results {
					switch {
					case err == nil:
						ok++
						winner = winners[i]
					case errors.Is(err, ErrStatusConflict):
						conflicts++
					default:
						t.Fatalf("unexpected error: %v", err)
					}
				}
				require.Equal(t, 1, ok)
				require.Equal(t, 1, conflicts)

				final, err := memPosts{f.db}.FindByID(ctx, post.ID)
				require.NoError(t, err)
				assert.Equal(t, winner, final.Status)
			}
		})
	}
}

func TestPostService_ListVisibility(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	alice := f.db.addUser("alice", moderation.RoleMember)
	bob := f.db.addUser("bob", moderation.RoleMember)
	mod := f.db.addUser("tom", moderation.RoleTeacher)

	approved := f.seedPost(bob, moderation.StatusApproved)
	alicePending := f.seedPost(alice, moderation.StatusPending)
	aliceRejected := f.seedPost(alice, moderation.StatusRejected)
	bobPending := f.seedPost(bob, moderation.StatusPending)
	pinned := f.seedPost(bob, moderation.StatusApproved)
	require.NoError(t, f.posts.Pin(ctx, mod, pinned.ID, true))

	ids := func(list []model.Post) []uint64 {
		out := make([]uint64, 0, len(list))
		for _, p := range list {
			out = append(out, p.ID)
		}
		return out
	}

	anon, err := f.posts.ListPosts(ctx, nil, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []uint64{pinned.ID, approved.ID}, ids(anon))

	mine, err := f.posts.ListPosts(ctx, alice, "", 1, 20)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{pinned.ID, approved.ID, alicePending.ID, aliceRejected.ID}, ids(mine))
	assert.Equal(t, pinned.ID, mine[0].ID)

	// 版主在普通列表里看不到别人的待审帖
	modList, err := f.posts.ListPosts(ctx, mod, "", 1, 20)
	require.NoError(t, err)
	assert.NotContains(t, ids(modList), bobPending.ID)

	queue, err := f.posts.ListPending(ctx, mod)
	require.NoError(t, err)
	assert.Equal(t, []uint64{alicePending.ID, bobPending.ID}, ids(queue))

	_, err = f.posts.ListPending(ctx, alice)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPostService_PinAndLockAreModeratorOnly(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	mod := f.db.addUser("ada", moderation.RoleAdmin)
	post := f.seedPost(author, moderation.StatusApproved)

	assert.ErrorIs(t, f.posts.Pin(ctx, author, post.ID, true), ErrForbidden)
	assert.ErrorIs(t, f.posts.Lock(ctx, author, post.ID, true), ErrForbidden)

	require.NoError(t, f.posts.Lock(ctx, mod, post.ID, true))
	got, _ := memPosts{f.db}.FindByID(ctx, post.ID)
	assert.True(t, got.Locked)

	require.NoError(t, f.posts.Lock(ctx, mod, post.ID, false))
	require.NoError(t, f.posts.Pin(ctx, mod, post.ID, true))
	got, _ = memPosts{f.db}.FindByID(ctx, post.ID)
	assert.False(t, got.Locked)
	assert.True(t, got.Pinned)

	assert.ErrorIs(t, f.posts.Pin(ctx, mod, 999, true), ErrPostNotFound)
}

func TestPostService_DeleteCascades(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.db.addUser("alice", moderation.RoleMember)
	other := f.db.addUser("bob", moderation.RoleMember)

	post := f.seedPost(author, moderation.StatusApproved)
	c, err := f.comments.Create(ctx, other, post.ID, CreateCommentInput{Content: "hi"})
	require.NoError(t, err)
	_, err = f.reactions.Set(ctx, other, model.SubjectPost, post.ID, "👍")
	require.NoError(t, err)
	_, err = f.reactions.Set(ctx, author, model.SubjectComment, c.ID, "🎉")
	require.NoError(t, err)

	assert.ErrorIs(t, f.posts.DeletePost(ctx, other, post.ID), ErrForbidden)
	require.NoError(t, f.posts.DeletePost(ctx, author, post.ID))

	_, err = memComments{f.db}.FindByID(ctx, c.ID)
	assert.Error(t, err)
	assert.Zero(t, f.db.reactionRows(model.SubjectPost, post.ID, other.ID))
	assert.Zero(t, f.db.reactionRows(model.SubjectComment, c.ID, author.ID))

	assert.ErrorIs(t, f.posts.DeletePost(ctx, author, post.ID), ErrPostNotFound)
}

func TestPostService_AuthorDeletesOwnPendingPost(t *testing.T) {
	f := newForum()
	author := f.db.addUser("alice", moderation.RoleMember)
	other := f.db.addUser("bob", moderation.RoleMember)
	post := f.seedPost(author, moderation.StatusPending)

	assert.ErrorIs(t, f.posts.DeletePost(context.Background(), other, post.ID), ErrPostNotAvailable)
	assert.NoError(t, f.posts.DeletePost(context.Background(), author, post.ID))
}
