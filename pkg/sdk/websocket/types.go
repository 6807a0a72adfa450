// Package websocket 提供交易所双通道 WebSocket 客户端：
// 用户通道推送持仓变化，公共通道推送赛事与订单簿变化。
package websocket

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	// 通道路径（相对于 socket 基地址）
	userPathPrefix = "v2/user/"
	publicPath     = "priceUpdates"

	// 重连设置
	defaultReconnectDelay    = 2 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second
	defaultPingInterval      = 25 * time.Second

	// 连接重试设置
	defaultMaxRetries = 3
)

// 事件名称。每个通道只识别自己的事件集合，未知事件静默丢弃。
const (
	// 用户通道
	EventPositionUpdate = "positionUpdate"

	// 公共通道
	EventGameUpdate  = "gameUpdate"
	EventOrderUpdate = "orderUpdate"
)

// ConnectHandler 连接（或重连）成功时调用
type ConnectHandler func()

// DisconnectHandler 连接断开时调用，reason 为断开原因
type DisconnectHandler func(reason string)

// Config 是 WebSocket 通道配置
type Config struct {
	// 重连设置
	ReconnectEnabled     bool          // 是否启用自动重连
	ReconnectDelay       time.Duration // 重连延迟
	MaxReconnectDelay    time.Duration // 最大重连延迟
	MaxReconnectAttempts int           // 最大重连尝试次数

	// 心跳设置
	PingInterval time.Duration // Ping 间隔

	// 连接设置
	ReadBufferSize   int           // 读缓冲区大小
	WriteBufferSize  int           // 写缓冲区大小
	HandshakeTimeout time.Duration // 握手超时时间
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ReconnectEnabled:     true,
		ReconnectDelay:       defaultReconnectDelay,
		MaxReconnectDelay:    defaultMaxReconnectDelay,
		MaxReconnectAttempts: 10,
		PingInterval:         defaultPingInterval,
		ReadBufferSize:       4096,
		WriteBufferSize:      4096,
		HandshakeTimeout:     15 * time.Second,
	}
}

// decodeFrame 解析交易所推送帧：JSON 数组 ["<eventName>", <payload>]
func decodeFrame(data []byte) (string, json.RawMessage, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", nil, errors.Wrap(err, "decode frame")
	}
	if len(frame) < 1 {
		return "", nil, errors.New("empty frame")
	}
	var name string
	if err := json.Unmarshal(frame[0], &name); err != nil {
		return "", nil, errors.Wrap(err, "decode event name")
	}
	var payload json.RawMessage
	if len(frame) > 1 {
		payload = frame[1]
	}
	return name, payload, nil
}
