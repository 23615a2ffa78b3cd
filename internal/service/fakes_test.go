package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/notify"
	"class_forum/internal/repository/mysql"
)

var errDuplicate = errors.New("duplicate")

type reactionKey struct {
	subject model.SubjectType
	id      uint64
	user    uint64
}

// memDB 各个仓储替身共享的内存数据
type memDB struct {
	mu        sync.Mutex
	seq       uint64
	posts     map[uint64]*model.Post
	comments  map[uint64]*model.Comment
	reactions map[reactionKey]string
	users     map[uint64]*model.User
}

func newMemDB() *memDB {
	return &memDB{
		posts:     map[uint64]*model.Post{},
		comments:  map[uint64]*model.Comment{},
		reactions: map[reactionKey]string{},
		users:     map[uint64]*model.User{},
	}
}

func (db *memDB) next() uint64 {
	db.seq++
	return db.seq
}

func (db *memDB) reactionRows(subject model.SubjectType, id, user uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for k := range db.reactions {
		if k.subject == subject && k.id == id && k.user == user {
			n++
		}
	}
	return n
}

type memPosts struct{ *memDB }

func (m memPosts) Create(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.next()
	p.CreatedAt = time.Now().Add(time.Duration(p.ID) * time.Millisecond)
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m memPosts) FindByID(_ context.Context, id uint64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, mysql.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m memPosts) ListVisible(_ context.Context, scope moderation.ListScope, category string, offset, limit int) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Post
	for _, p := range m.posts {
		if category != "" && p.Category != category {
			continue
		}
		own := scope.OwnerID != 0 && p.AuthorID == scope.OwnerID &&
			(p.Status == moderation.StatusPending || p.Status == moderation.StatusRejected)
		if p.Status == moderation.StatusApproved || own {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memPosts) ListPending(_ context.Context, limit int) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Post
	for _, p := range m.posts {
		if p.Status == moderation.StatusPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TransitionStatus 与真实仓储一致：比较并设置在同一临界区内完成
func (m memPosts) TransitionStatus(_ context.Context, postID uint64, from, to moderation.Status, reviewerID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return mysql.ErrNotFound
	}
	if p.Status != from {
		return mysql.ErrStatusChanged
	}
	p.Status = to
	p.ReviewedBy = &reviewerID
	return nil
}

func (m memPosts) SetPinned(_ context.Context, postID uint64, pinned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return mysql.ErrNotFound
	}
	p.Pinned = pinned
	return nil
}

func (m memPosts) SetLocked(_ context.Context, postID uint64, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return mysql.ErrNotFound
	}
	p.Locked = locked
	return nil
}

func (m memPosts) DeleteCascade(_ context.Context, postID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return mysql.ErrNotFound
	}
	for id, c := range m.comments {
		if c.PostID != postID {
			continue
		}
		for k := range m.reactions {
			if k.subject == model.SubjectComment && k.id == id {
				delete(m.reactions, k)
			}
		}
		delete(m.comments, id)
	}
	for k := range m.reactions {
		if k.subject == model.SubjectPost && k.id == postID {
			delete(m.reactions, k)
		}
	}
	delete(m.posts, postID)
	return nil
}

type memComments struct{ *memDB }

func (m memComments) Create(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.next()
	c.CreatedAt = time.Now()
	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

func (m memComments) FindByID(_ context.Context, id uint64) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, mysql.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m memComments) ListByPost(_ context.Context, postID uint64) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memComments) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return mysql.ErrNotFound
	}
	for k := range m.reactions {
		if k.subject == model.SubjectComment && k.id == id {
			delete(m.reactions, k)
		}
	}
	delete(m.comments, id)
	return nil
}

type memReactions struct{ *memDB }

func (m memReactions) Upsert(_ context.Context, subject model.SubjectType, id, user uint64, emoji string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := reactionKey{subject, id, user}
	prev := m.reactions[k]
	m.reactions[k] = emoji
	return prev, nil
}

func (m memReactions) Delete(_ context.Context, subject model.SubjectType, id, user uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reactions, reactionKey{subject, id, user})
	return nil
}

func (m memReactions) Find(_ context.Context, subject model.SubjectType, id, user uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reactions[reactionKey{subject, id, user}], nil
}

func (m memReactions) Counts(_ context.Context, subject model.SubjectType, id uint64) ([]model.ReactionCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg := map[string]int64{}
	for k, e := range m.reactions {
		if k.subject == subject && k.id == id {
			agg[e]++
		}
	}
	out := []model.ReactionCount{}
	for e, n := range agg {
		out = append(out, model.ReactionCount{Emoji: e, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out, nil
}

type memUsers struct{ *memDB }

func (m memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Username == u.Username || x.Email == u.Email {
			return errDuplicate
		}
	}
	u.ID = m.next()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mysql.ErrNotFound
}

func (m memUsers) FindByUsername(_ context.Context, name string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == name || u.Email == name })
}

func (m memUsers) FindByID(_ context.Context, id uint64) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id })
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m memUsers) UpdatePassword(_ context.Context, id uint64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Password = hash
	}
	return nil
}

func (m memUsers) UpdateRole(_ context.Context, id uint64, role moderation.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.Role = string(role)
	return true, nil
}

func (m memUsers) ListModeratorIDs(_ context.Context, superAdminName string) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for _, u := range m.users {
		if u.Role == string(moderation.RoleTeacher) || u.Role == string(moderation.RoleAdmin) ||
			(superAdminName != "" && strings.EqualFold(u.Username, superAdminName)) {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// addUser 直接写入用户并返回其身份
func (db *memDB) addUser(name string, role moderation.Role) *moderation.Identity {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.next()
	db.users[id] = &model.User{ID: id, Username: name, Email: name + "@class.test", Role: string(role)}
	return &moderation.Identity{ID: id, Name: name, Role: role}
}

type sentNotice struct {
	to  uint64
	msg notify.Message
}

// fakeNotifier 记录分发请求；fail 非空时全部失败
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	fail error
}

func (f *fakeNotifier) Notify(_ context.Context, to uint64, msg notify.Message) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.sent = append(f.sent, sentNotice{to: to, msg: msg})
	return &model.Notification{ID: uint64(len(f.sent)), UserID: to, Type: msg.Type, Message: msg.Message, Link: msg.Link}, nil
}

func (f *fakeNotifier) NotifyMany(ctx context.Context, to []uint64, msg notify.Message) error {
	for _, id := range to {
		if _, err := f.Notify(ctx, id, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeNotifier) byType(typ string) []sentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotice
	for _, n := range f.sent {
		if n.msg.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

const superAdminName = "Owner"

// forum 一套接好替身的服务
type forum struct {
	db        *memDB
	notifier  *fakeNotifier
	policy    moderation.Policy
	posts     *PostService
	comments  *CommentService
	reactions *ReactionService
}

func newForum() *forum {
	db := newMemDB()
	n := &fakeNotifier{}
	policy := moderation.NewPolicy(superAdminName)
	log := zerolog.Nop()
	return &forum{
		db:        db,
		notifier:  n,
		policy:    policy,
		posts:     NewPostService(memPosts{db}, memUsers{db}, n, policy, 100, log),
		comments:  NewCommentService(memPosts{db}, memComments{db}, n, policy, log),
		reactions: NewReactionService(memPosts{db}, memComments{db}, memReactions{db}, nil, nil, n, policy, log),
	}
}

// seedPost 直接写入指定状态的帖子
func (f *forum) seedPost(author *moderation.Identity, status moderation.Status) *model.Post {
	p := &model.Post{AuthorID: author.ID, Title: "post by " + author.Name, Category: "general", Status: status}
	_ = memPosts{f.db}.Create(context.Background(), p)
	return p
}
