package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Channel 管理单个交易所 WebSocket 连接（携带会话令牌认证）。
// 按事件名称分发消息；未注册的事件静默丢弃。
type Channel struct {
	// 连接相关
	conn      *websocket.Conn
	connMu    sync.Mutex
	name      string
	url       string
	token     string
	config    *Config
	running   bool
	runningMu sync.RWMutex

	// 事件处理。Close 时统一注销，访问需持有 handlerMu。
	handlerMu      sync.RWMutex
	handlers       map[string]func(json.RawMessage)
	onConnected    ConnectHandler
	onDisconnected DisconnectHandler

	log *logrus.Entry

	// 生命周期管理
	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}

	// 重连状态
	reconnectAttempts int
	reconnectMu       sync.Mutex
}

// NewChannel 创建一个未连接的通道。name 仅用于日志。
func NewChannel(name, url, token string, config *Config, log *logrus.Entry) *Channel {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Channel{
		name:     name,
		url:      url,
		token:    token,
		config:   config,
		handlers: make(map[string]func(json.RawMessage)),
		log:      log.WithField("channel", name),
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Handle 注册事件处理器。必须在 Connect 之前调用。
func (c *Channel) Handle(event string, fn func(json.RawMessage)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[event] = fn
}

// OnConnected 注册连接成功回调（重连成功同样触发）
func (c *Channel) OnConnected(fn ConnectHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onConnected = fn
}

// OnDisconnected 注册断开回调
func (c *Channel) OnDisconnected(fn DisconnectHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onDisconnected = fn
}

func (c *Channel) fireConnected() {
	c.handlerMu.RLock()
	fn := c.onConnected
	c.handlerMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Channel) fireDisconnected(reason string) {
	c.handlerMu.RLock()
	fn := c.onDisconnected
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(reason)
	}
}

// Connect 建立连接并开始监听
func (c *Channel) Connect(ctx context.Context) error {
	c.runningMu.Lock()
	if c.running {
		c.runningMu.Unlock()
		return errors.Errorf("channel %s already running", c.name)
	}
	c.running = true
	c.runningMu.Unlock()

	if ctx != nil {
		c.cancel()
		c.ctx, c.cancel = context.WithCancel(ctx)
	}

	if err := c.connect(); err != nil {
		c.runningMu.Lock()
		c.running = false
		c.runningMu.Unlock()
		return errors.Wrapf(err, "channel %s initial connect", c.name)
	}

	go c.readLoop()
	go c.pingLoop()

	c.log.Infof("已连接 %s", c.url)
	c.fireConnected()
	return nil
}

// Close 优雅地关闭连接。可重复调用，不会 panic。
func (c *Channel) Close() {
	c.runningMu.Lock()
	if !c.running {
		c.runningMu.Unlock()
		return
	}
	c.running = false
	c.runningMu.Unlock()

	// 拆除前先注销全部回调：主动关闭不向订阅者投递任何信号
	c.handlerMu.Lock()
	c.handlers = make(map[string]func(json.RawMessage))
	c.onConnected = nil
	c.onDisconnected = nil
	c.handlerMu.Unlock()

	c.cancel()
	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		// 发送关闭消息，错误只记录不上抛
		if err := c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
			c.log.Debugf("发送关闭消息失败: %v", err)
		}
		if err := c.conn.Close(); err != nil {
			c.log.Debugf("关闭连接失败: %v", err)
		}
		c.conn = nil
	}
	c.connMu.Unlock()

	// 等待 readLoop 完成
	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
		c.log.Warn("关闭超时")
	}

	c.log.Info("已停止")
}

// IsRunning 检查通道是否正在运行
func (c *Channel) IsRunning() bool {
	c.runningMu.RLock()
	defer c.runningMu.RUnlock()
	return c.running
}

// connect 建立 WebSocket 连接并认证
func (c *Channel) connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}

	dialer := websocket.Dialer{
		ReadBufferSize:   c.config.ReadBufferSize,
		WriteBufferSize:  c.config.WriteBufferSize,
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	// 交易所通过 authorization 头校验会话令牌
	headers := make(http.Header)
	headers.Set("authorization", c.token)

	var conn *websocket.Conn
	var err error
	for i := 0; i < defaultMaxRetries; i++ {
		conn, _, err = dialer.DialContext(c.ctx, c.url, headers)
		if err == nil {
			break
		}
		if i < defaultMaxRetries-1 {
			c.log.Warnf("连接尝试 %d/%d 失败: %v, 重试中...", i+1, defaultMaxRetries, err)
			time.Sleep(time.Duration(i+1) * c.config.ReconnectDelay)
		}
	}
	if err != nil {
		return errors.Wrap(err, "dial")
	}

	c.conn = conn

	c.reconnectMu.Lock()
	c.reconnectAttempts = 0
	c.reconnectMu.Unlock()

	return nil
}

// readLoop 读取循环，持续从 WebSocket 读取消息
func (c *Channel) readLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.runningMu.RLock()
		running := c.running
		c.runningMu.RUnlock()
		if !running {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if c.config.ReconnectEnabled {
				if !c.reconnect() {
					return
				}
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		// 不设置读取超时：连接正常时 ReadMessage 一直阻塞等待消息，
		// 连接失败时返回错误，由下面的错误处理触发重连
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("连接正常关闭")
				return
			}

			c.runningMu.RLock()
			running = c.running
			c.runningMu.RUnlock()
			if !running {
				return
			}

			c.log.Warnf("读取错误: %v, 重连中...", err)
			c.fireDisconnected(err.Error())
			if c.config.ReconnectEnabled {
				if !c.reconnect() {
					return
				}
			} else {
				time.Sleep(1 * time.Second)
			}
			continue
		}

		if message != nil {
			c.dispatch(message)
		}
	}
}

// dispatch 按事件名称分发消息。处理器在读取 goroutine 上运行，
// 只做反序列化和归一化，不做 I/O。
func (c *Channel) dispatch(data []byte) {
	name, payload, err := decodeFrame(data)
	if err != nil {
		c.log.Debugf("丢弃无法解析的帧: %v", err)
		return
	}

	c.handlerMu.RLock()
	fn, ok := c.handlers[name]
	c.handlerMu.RUnlock()
	if !ok {
		// 未知事件静默丢弃（交易所可能新增事件类型）
		return
	}
	fn(payload)
}

// pingLoop 心跳循环，定期发送 ping 消息
func (c *Channel) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.runningMu.RLock()
			running := c.running
			c.runningMu.RUnlock()
			if !running {
				return
			}

			// 与 Close 的关闭帧共用 connMu，同一连接不允许并发写
			c.connMu.Lock()
			if c.conn != nil {
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.log.Debugf("ping 发送失败: %v", err)
				}
			}
			c.connMu.Unlock()
		}
	}
}

// reconnect 重连逻辑（线性退避，封顶）。返回 false 表示重连已放弃：
// 通道停止运行，并投递一次终止断开信号，不再空转。
func (c *Channel) reconnect() bool {
	c.reconnectMu.Lock()
	c.reconnectAttempts++
	attempts := c.reconnectAttempts
	c.reconnectMu.Unlock()

	if attempts > c.config.MaxReconnectAttempts {
		c.log.Errorf("达到最大重连次数 (%d)，通道停止", c.config.MaxReconnectAttempts)
		c.runningMu.Lock()
		c.running = false
		c.runningMu.Unlock()
		c.fireDisconnected("max reconnect attempts reached")
		return false
	}

	delay := c.config.ReconnectDelay * time.Duration(attempts)
	if delay > c.config.MaxReconnectDelay {
		delay = c.config.MaxReconnectDelay
	}

	c.log.Infof("%v 后重连 (尝试 %d/%d)...", delay, attempts, c.config.MaxReconnectAttempts)

	select {
	case <-c.ctx.Done():
		return true
	case <-c.stopCh:
		return true
	case <-time.After(delay):
	}

	if err := c.connect(); err != nil {
		c.log.Warnf("重连失败: %v", err)
		return true
	}

	c.log.Info("重连成功")
	c.fireConnected()
	return true
}
