// Package notify 通知分发：先持久化，再尽力在线推送
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"class_forum/internal/model"
	"class_forum/internal/realtime"
)

var ErrEmptyMessage = errors.New("notification type and message required")

// Store 通知的持久化，写入失败必须返回错误
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

type Message struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// Payload 推送到 websocket 的 JSON
type Payload struct {
	ID        uint64    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

func PayloadOf(n *model.Notification) Payload {
	return Payload{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
	}
}

type Dispatcher struct {
	store    Store
	registry realtime.Registry
	log      zerolog.Logger
}

func NewDispatcher(store Store, registry realtime.Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Notify 每次调用恰好写入一条通知（不去重），然后最多推送一次。
// 只有持久化失败会返回错误；推送失败只记录日志。
func (d *Dispatcher) Notify(ctx context.Context, recipientID uint64, msg Message) (*model.Notification, error) {
	if msg.Type == "" || msg.Message == "" {
		return nil, ErrEmptyMessage
	}
	n := &model.Notification{
		UserID:  recipientID,
		Type:    msg.Type,
		Message: msg.Message,
		Link:    msg.Link,
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	d.push(n)
	return n, nil
}

// NotifyMany 逐个通知，单个失败不影响其余接收者
func (d *Dispatcher) NotifyMany(ctx context.Context, recipients []uint64, msg Message) error {
	var errs []error
	for _, uid := range recipients {
		if _, err := d.Notify(ctx, uid, msg); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", uid, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) push(n *model.Notification) {
	body, err := json.Marshal(PayloadOf(n))
	if err != nil {
		d.log.Error().Err(err).Uint64("notification_id", n.ID).Msg("encode payload")
		return
	}
	if !d.registry.Send(n.UserID, body) {
		d.log.Debug().Uint64("user_id", n.UserID).Uint64("notification_id", n.ID).Msg("recipient offline, kept for pull")
	}
}
