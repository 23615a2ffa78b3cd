// Package realtime 维护 user id -> 在线推送通道 的映射
package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

// Channel 单个用户的在线推送通道。Push 必须是非阻塞的：
// 通道已满或已关闭时直接返回 false。
type Channel interface {
	Push(payload []byte) bool
	Close()
}

// Registry 注入到通知分发器中，测试里可用替身实现
type Registry interface {
	Register(userID uint64, ch Channel)
	Unregister(userID uint64)
	// Release 仅当 ch 仍是当前登记的通道时删除
	Release(userID uint64, ch Channel) bool
	Send(userID uint64, payload []byte) bool
}

// ConnRegistry 基于互斥锁的内存实现，每个用户最多一个通道
type ConnRegistry struct {
	mu    sync.RWMutex
	conns map[uint64]Channel
	log   zerolog.Logger
}

var _ Registry = (*ConnRegistry)(nil)

func NewConnRegistry(log zerolog.Logger) *ConnRegistry {
	return &ConnRegistry{
		conns: make(map[uint64]Channel),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Register 后连接者覆盖先连接者；旧通道不会被主动关闭
func (r *ConnRegistry) Register(userID uint64, ch Channel) {
	r.mu.Lock()
	_, replaced := r.conns[userID]
	r.conns[userID] = ch
	r.mu.Unlock()

	r.log.Debug().Uint64("user_id", userID).Bool("replaced", replaced).Msg("channel registered")
}

// Unregister 幂等删除
func (r *ConnRegistry) Unregister(userID uint64) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
}

// Release 防止旧连接的断开把新连接的登记抹掉。返回是否删除。
func (r *ConnRegistry) Release(userID uint64, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[userID]; ok && cur == ch {
		delete(r.conns, userID)
		return true
	}
	return false
}

// Send 尽力投递，不阻塞调用方；未在线或通道拒收都返回 false
func (r *ConnRegistry) Send(userID uint64, payload []byte) bool {
	r.mu.RLock()
	ch, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if !ch.Push(payload) {
		r.log.Warn().Uint64("user_id", userID).Msg("live push dropped")
		return false
	}
	return true
}

// Online 当前在线用户数
func (r *ConnRegistry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
