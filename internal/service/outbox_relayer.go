package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"class_forum/internal/model"
	"class_forum/internal/pkg"
)

type Sender func(ctx context.Context, ob *model.NotificationOutbox) error

const (
	DefaultOutboxRetention = 24 * time.Hour
	outboxPruneInterval    = 10 * time.Minute
)

// OutboxRelayer 从 outbox 表读取通知事件异步交给 kafka，
// 已投递的事件保留 retention 后删除
type OutboxRelayer struct {
	repo      OutboxStore
	batchSize int
	interval  time.Duration
	retention time.Duration
	sender    Sender
	log       zerolog.Logger
}

func NewOutboxRelayer(repo OutboxStore, sender Sender, batchSize int, interval, retention time.Duration, log zerolog.Logger) *OutboxRelayer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	if retention <= 0 {
		retention = DefaultOutboxRetention
	}
	return &OutboxRelayer{
		repo:      repo,
		batchSize: batchSize,
		interval:  interval,
		retention: retention,
		sender:    sender,
		log:       log.With().Str("component", "outbox_relayer").Logger(),
	}
}

// Run outbox启动器，ctx 取消后退出
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	prune := time.NewTicker(outboxPruneInterval)
	defer prune.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		case <-prune.C:
			r.PruneOnce(ctx, time.Now())
		}
	}
}

// PruneOnce 删除 now-retention 之前已投递的事件
func (r *OutboxRelayer) PruneOnce(ctx context.Context, now time.Time) int64 {
	n, err := r.repo.PruneSent(ctx, now.Add(-r.retention))
	if err != nil {
		r.log.Error().Err(err).Msg("outbox prune")
		return 0
	}
	if n > 0 {
		r.log.Debug().Int64("deleted", n).Msg("outbox pruned")
	}
	return n
}

// DrainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("outbox query")
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err = r.sender(ctx, &ob); err != nil {
			r.log.Warn().Err(err).Uint64("outbox_id", ob.ID).Int("retry", ob.Retry).Msg("outbox send")
			if err = r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.log.Error().Err(err).Uint64("outbox_id", ob.ID).Msg("outbox retry update")
			}
			continue
		}
		if err = r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.log.Error().Err(err).Uint64("outbox_id", ob.ID).Msg("outbox success update")
			continue
		}
		sent++
	}
	return sent
}

// KafkaSender 同一接收者的事件落在同一分区
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.UserID), []byte(ob.Payload))
	}
}

// LogSender 未配置 kafka 时使用，只打印
func LogSender(log zerolog.Logger) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		log.Info().
			Uint64("notification_id", ob.NotificationID).
			Uint64("user_id", ob.UserID).
			RawJSON("payload", []byte(ob.Payload)).
			Msg("outbox send")
		return nil
	}
}
