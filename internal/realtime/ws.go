package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// WSChannel 把一条 websocket 连接包装成 Channel。
// 写操作只发生在 writeLoop 中；Push 仅向有界队列投递。
type WSChannel struct {
	ID string

	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	once         sync.Once
	writeTimeout time.Duration
	log          zerolog.Logger
}

func NewWSChannel(conn *websocket.Conn, buffer int, writeTimeout time.Duration, log zerolog.Logger) *WSChannel {
	if buffer <= 0 {
		buffer = 16
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	id := uuid.NewString()
	return &WSChannel{
		ID:           id,
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log.With().Str("conn_id", id).Logger(),
	}
}

// Push 队列满或连接已关闭时立即返回 false
func (c *WSChannel) Push(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close 可重复调用
func (c *WSChannel) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Serve 启动写协程并在当前协程读取，直到连接断开
func (c *WSChannel) Serve() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop 客户端不发送业务消息，读取只用于感知断线与处理 pong
func (c *WSChannel) readLoop() {
	defer c.Close()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

func (c *WSChannel) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeTimeout))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Warn().Err(err).Msg("websocket write")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
