package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"class_forum/internal/model"
)

const (
	ReactionCntTTL       = 10 * time.Minute
	ReactionLockTTL      = 300 * time.Millisecond
	ReactionCntKeyPrefix = "reaction:cnt"  // 缓存某个对象按 emoji 聚合的计数
	ReactionLockPrefix   = "lock:reaction" // 回源重建时的分布式锁
)

// ReactionCache 计数以 JSON 整体缓存；任何写操作都直接删除，由读侧回填
type ReactionCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func (r *ReactionCache) countKey(subject model.SubjectType, id uint64) string {
	return fmt.Sprintf("%s:%s:%d", ReactionCntKeyPrefix, subject, id)
}

// GetCounts 第二个返回值表示是否命中
func (r *ReactionCache) GetCounts(ctx context.Context, subject model.SubjectType, id uint64) ([]model.ReactionCount, bool, error) {
	raw, err := r.RDB.Get(ctx, r.countKey(subject, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var counts []model.ReactionCount
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, false, err
	}
	return counts, true, nil
}

// SetCounts 回填
func (r *ReactionCache) SetCounts(ctx context.Context, subject model.SubjectType, id uint64, counts []model.ReactionCount) error {
	if counts == nil {
		counts = []model.ReactionCount{}
	}
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = ReactionCntTTL
	}
	return r.RDB.Set(ctx, r.countKey(subject, id), raw, ttl).Err()
}

// DeleteCounts 立刻删除计数 Key；delay>0 时再异步删除一次，抵消并发回填窗口
func (r *ReactionCache) DeleteCounts(ctx context.Context, subject model.SubjectType, id uint64, delay ...time.Duration) error {
	key := r.countKey(subject, id)
	if err := r.RDB.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if len(delay) > 0 && delay[0] > 0 {
		d := delay[0]
		go func() {
			t := time.NewTimer(d)
			defer t.Stop()
			<-t.C
			_ = r.RDB.Del(context.Background(), key).Err()
		}()
	}
	return nil
}

// DistLock 单键互斥，token 区分持有者
type DistLock struct {
	RDB *redis.Client
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

func lockKey(subject model.SubjectType, id uint64) string {
	return fmt.Sprintf("%s:%s:%d", ReactionLockPrefix, subject, id)
}

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, subject model.SubjectType, id uint64, token string) (bool, error) {
	return l.RDB.SetNX(ctx, lockKey(subject, id), token, ReactionLockTTL).Result()
}

// Release 用lua保证只释放自己的锁
func (l *DistLock) Release(ctx context.Context, subject model.SubjectType, id uint64, token string) error {
	return releaseScript.Run(ctx, l.RDB, []string{lockKey(subject, id)}, token).Err()
}
