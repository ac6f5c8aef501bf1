package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/pkg/logger"
	"exam_practice_backend/pkg/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 8
)

const (
	TimerTick    = "TICK"
	TimerLowTime = "LOW_TIME"
	TimerTimeUp  = "TIME_UP"
)

// TimerMessage 下行的计时消息
type TimerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Remaining int    `json:"remainingSeconds"`
}

// timerClient 一个连接对应一个会话的倒计时
type timerClient struct {
	hub       *ExamHub
	conn      *websocket.Conn
	send      chan []byte
	userID    uint
	sessionID string
	cancel    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (c *timerClient) push(msgType string, remaining int) {
	data, _ := json.Marshal(TimerMessage{Type: msgType, SessionID: c.sessionID, Remaining: remaining})
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// 客户端读取过慢时丢弃 TICK
		if msgType != TimerTick {
			logger.Log.Warn("Timer message dropped", zap.String("session_id", c.sessionID), zap.String("type", msgType))
		}
	}
}

func (c *timerClient) close() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 只处理 pong 与关闭
func (c *timerClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.String("session_id", c.sessionID))
			}
			return
		}
	}
}

func (c *timerClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ExamHub 通过 WebSocket 推送会话倒计时，归零时判定会话过期
type ExamHub struct {
	Exams *ExamService

	mu       sync.Mutex
	clients  map[*timerClient]struct{}
	warnAt   atomic.Int64
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewExamHub checkOrigin 与 HTTP 跨域共用同一份来源白名单
func NewExamHub(exams *ExamService, lowTimeWarning int, checkOrigin func(*http.Request) bool) *ExamHub {
	h := &ExamHub{
		Exams:    exams,
		clients:  make(map[*timerClient]struct{}),
		interval: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
	h.warnAt.Store(int64(lowTimeWarning))
	return h
}

// SetLowTimeWarning 配置热更新，对之后建立的连接生效
func (h *ExamHub) SetLowTimeWarning(seconds int) {
	h.warnAt.Store(int64(seconds))
}

func (h *ExamHub) LowTimeWarning() int {
	return int(h.warnAt.Load())
}

func (h *ExamHub) register(c *timerClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	monitoring.TimerConnections.Inc()
}

func (h *ExamHub) unregister(c *timerClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
		monitoring.TimerConnections.Dec()
	}
}

// ServeTimer 校验会话后升级连接；会话不存在或已结束时返回错误且不升级
func (h *ExamHub) ServeTimer(w http.ResponseWriter, r *http.Request, userID uint, sessionID string) error {
	remaining, err := h.Exams.RemainingSeconds(userID, sessionID)
	if err != nil {
		return err
	}

	// Upgrade 失败时已写回错误响应
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &timerClient{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		userID:    userID,
		sessionID: sessionID,
		cancel:    cancel,
	}
	h.register(client)

	timer := exam.NewTimer(remaining,
		exam.WithLowTimeWarning(h.LowTimeWarning()),
		exam.OnTick(func(rem int) { client.push(TimerTick, rem) }),
		exam.OnLowTime(func(rem int) { client.push(TimerLowTime, rem) }),
		exam.OnExpired(func() {
			if _, err := h.Exams.ExpireSession(sessionID); err != nil {
				logger.Log.Error("Failed to expire session on time up", zap.String("session_id", sessionID), zap.Error(err))
			}
			client.push(TimerTimeUp, 0)
		}),
	)

	// 先推送一次当前剩余时间
	client.push(TimerTick, remaining)

	go client.writePump()
	go client.readPump()
	go timer.Run(ctx, h.interval)
	return nil
}

// Stop 关闭所有计时连接
func (h *ExamHub) Stop() {
	h.mu.Lock()
	clients := make([]*timerClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*timerClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	monitoring.TimerConnections.Set(0)
	logger.Log.Info("ExamHub stopped", zap.Int("closedConnections", len(clients)))
}
