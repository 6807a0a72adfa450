package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager 统一管理两条推送通道：
//   - 用户通道 <socketBase>v2/user/<username>，推送 positionUpdate
//   - 公共通道 <socketBase>priceUpdates，推送 gameUpdate / orderUpdate
//
// Initialise 总是先拆除旧通道再建立新通道，可重复调用；
// 每条通道内的消息按到达顺序分发，两条通道之间没有顺序保证。
type Manager struct {
	socketBase string
	username   string
	config     *Config
	log        *logrus.Entry

	mu     sync.Mutex
	user   *Channel
	public *Channel

	// 事件处理器在 Initialise 之前注册，之后只读
	userHandlers   map[string]func(json.RawMessage)
	publicHandlers map[string]func(json.RawMessage)

	userConnected      ConnectHandler
	userDisconnected   DisconnectHandler
	publicConnected    ConnectHandler
	publicDisconnected DisconnectHandler
}

// NewManager 创建通道管理器。socketBase 形如 wss://socket-api.4casters.io/
func NewManager(socketBase, username string, config *Config, log *logrus.Entry) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if !strings.HasSuffix(socketBase, "/") {
		socketBase += "/"
	}

	return &Manager{
		socketBase:     socketBase,
		username:       username,
		config:         config,
		log:            log.WithField("component", "ws-manager"),
		userHandlers:   make(map[string]func(json.RawMessage)),
		publicHandlers: make(map[string]func(json.RawMessage)),
	}
}

// HandleUser 注册用户通道事件处理器
func (m *Manager) HandleUser(event string, fn func(json.RawMessage)) {
	m.userHandlers[event] = fn
}

// HandlePublic 注册公共通道事件处理器
func (m *Manager) HandlePublic(event string, fn func(json.RawMessage)) {
	m.publicHandlers[event] = fn
}

// OnUserConnected 注册用户通道连接回调
func (m *Manager) OnUserConnected(fn ConnectHandler) { m.userConnected = fn }

// OnUserDisconnected 注册用户通道断开回调
func (m *Manager) OnUserDisconnected(fn DisconnectHandler) { m.userDisconnected = fn }

// OnPublicConnected 注册公共通道连接回调
func (m *Manager) OnPublicConnected(fn ConnectHandler) { m.publicConnected = fn }

// OnPublicDisconnected 注册公共通道断开回调
func (m *Manager) OnPublicDisconnected(fn DisconnectHandler) { m.publicDisconnected = fn }

// Initialise 建立（或重建）两条通道。旧通道先拆除，拆除失败只记录日志。
func (m *Manager) Initialise(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()

	user := NewChannel("user", m.socketBase+userPathPrefix+m.username, token, m.config, m.log)
	for event, fn := range m.userHandlers {
		user.Handle(event, fn)
	}
	if m.userConnected != nil {
		user.OnConnected(m.userConnected)
	}
	if m.userDisconnected != nil {
		user.OnDisconnected(m.userDisconnected)
	}

	public := NewChannel("public", m.socketBase+publicPath, token, m.config, m.log)
	for event, fn := range m.publicHandlers {
		public.Handle(event, fn)
	}
	if m.publicConnected != nil {
		public.OnConnected(m.publicConnected)
	}
	if m.publicDisconnected != nil {
		public.OnDisconnected(m.publicDisconnected)
	}

	if err := user.Connect(ctx); err != nil {
		return err
	}
	if err := public.Connect(ctx); err != nil {
		user.Close()
		return err
	}

	m.user = user
	m.public = public
	return nil
}

// Close 拆除两条通道。从未初始化或已关闭时调用也安全。
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// Initialised 检查两条通道是否都已建立
func (m *Manager) Initialised() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil && m.public != nil
}

// teardownLocked 拆除现有通道。拆除必须完成，不能让旧连接泄漏。
func (m *Manager) teardownLocked() {
	if m.user != nil {
		m.user.Close()
		m.user = nil
	}
	if m.public != nil {
		m.public.Close()
		m.public = nil
	}
}
