package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"class_forum/internal/model"
	"class_forum/internal/moderation"
	"class_forum/internal/repository/mysql"
)

// memNotifications 同时充当分发器的持久化和通知查询
type memNotifications struct {
	mu   sync.Mutex
	rows []model.Notification
	fail error
}

func (m *memNotifications) CreateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	n.ID = uint64(len(m.rows) + 1)
	n.CreatedAt = time.Now()
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		n := m.rows[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			m.rows[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		if m.rows[i].UserID == userID && !m.rows[i].Read {
			m.rows[i].Read = true
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) UnreadCount(_ context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.UserID == userID && !r.Read {
			n++
		}
	}
	return n, nil
}

// memUsers 只实现通知接口需要的查询
type memUsers map[uint64]*model.User

func (m memUsers) Create(context.Context, *model.User) error { return errors.New("not supported") }

func (m memUsers) FindByUsername(context.Context, string) (*model.User, error) {
	return nil, mysql.ErrNotFound
}

func (m memUsers) FindByID(_ context.Context, id uint64) (*model.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, mysql.ErrNotFound
}

func (m memUsers) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, mysql.ErrNotFound
}

func (m memUsers) UpdatePassword(context.Context, uint64, string) error { return nil }

func (m memUsers) UpdateRole(context.Context, uint64, moderation.Role) (bool, error) {
	return false, nil
}

func (m memUsers) ListModeratorIDs(context.Context, string) ([]uint64, error) { return nil, nil }

type memTokens map[uint64]string

func (m memTokens) GetUserToken(_ context.Context, id uint64) (string, error) {
	t, ok := m[id]
	if !ok {
		return "", errors.New("token not found")
	}
	return t, nil
}

func (m memTokens) ExtendUserToken(context.Context, uint64) error { return nil }
