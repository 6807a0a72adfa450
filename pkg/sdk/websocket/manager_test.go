package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dualChannelServer 模拟交易所的两个推送端点
type dualChannelServer struct {
	srv         *httptest.Server
	userConns   atomic.Int32
	publicConns atomic.Int32
	userFrame   chan string
}

func newDualChannelServer(t *testing.T) *dualChannelServer {
	t.Helper()

	s := &dualChannelServer{userFrame: make(chan string, 4)}
	upgrader := websocket.Upgrader{}

	hold := func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/user/trader", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "session-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.userConns.Add(1)

		go hold(conn)
		for frame := range s.userFrame {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/priceUpdates", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.publicConns.Add(1)
		hold(conn)
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *dualChannelServer) socketBase() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/"
}

func TestManager_CloseNeverInitialised(t *testing.T) {
	m := NewManager("wss://example.invalid/", "trader", nil, nil)

	// 从未初始化、重复关闭都安全
	m.Close()
	m.Close()

	if m.Initialised() {
		t.Fatal("未初始化的管理器不应报告已初始化")
	}
}

func TestManager_InitialiseConnectsBothChannels(t *testing.T) {
	srv := newDualChannelServer(t)
	m := NewManager(srv.socketBase(), "trader", nil, nil)

	received := make(chan json.RawMessage, 1)
	m.HandleUser(EventPositionUpdate, func(payload json.RawMessage) {
		received <- payload
	})

	if err := m.Initialise(context.Background(), "session-token"); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	defer m.Close()

	if !m.Initialised() {
		t.Fatal("两条通道连接后应报告已初始化")
	}
	if got := srv.userConns.Load(); got != 1 {
		t.Errorf("用户通道连接数 = %d, 期望 1", got)
	}
	if got := srv.publicConns.Load(); got != 1 {
		t.Errorf("公共通道连接数 = %d, 期望 1", got)
	}

	// 用户通道收到 positionUpdate 时，恰好产生一个事件
	srv.userFrame <- `["positionUpdate", {"gameID":"g1"}]`

	select {
	case payload := <-received:
		if string(payload) != `{"gameID":"g1"}` {
			t.Errorf("负载 = %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("等待 positionUpdate 超时")
	}

	select {
	case extra := <-received:
		t.Fatalf("收到了多余的事件: %s", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_ReinitialiseTearsDownOldChannels(t *testing.T) {
	srv := newDualChannelServer(t)
	m := NewManager(srv.socketBase(), "trader", nil, nil)

	disconnects := make(chan string, 8)
	m.OnUserDisconnected(func(reason string) { disconnects <- reason })
	m.OnPublicDisconnected(func(reason string) { disconnects <- reason })

	if err := m.Initialise(context.Background(), "session-token"); err != nil {
		t.Fatalf("首次 Initialise: %v", err)
	}

	// 重新初始化：先拆除旧通道，再建立新通道
	if err := m.Initialise(context.Background(), "session-token"); err != nil {
		t.Fatalf("再次 Initialise: %v", err)
	}
	defer m.Close()

	if got := srv.userConns.Load(); got != 2 {
		t.Errorf("用户通道总连接数 = %d, 期望 2", got)
	}
	if got := srv.publicConns.Load(); got != 2 {
		t.Errorf("公共通道总连接数 = %d, 期望 2", got)
	}
	if !m.Initialised() {
		t.Fatal("重新初始化后应报告已初始化")
	}

	// 主动拆除旧通道不向订阅者投递断开信号
	select {
	case reason := <-disconnects:
		t.Fatalf("重建通道投递了断开信号: %s", reason)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestManager_CloseThenInitialised(t *testing.T) {
	srv := newDualChannelServer(t)
	m := NewManager(srv.socketBase(), "trader", nil, nil)

	if err := m.Initialise(context.Background(), "session-token"); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	m.Close()
	if m.Initialised() {
		t.Fatal("关闭后不应报告已初始化")
	}
	m.Close()
}

func TestManager_ConnectionSignals(t *testing.T) {
	srv := newDualChannelServer(t)
	m := NewManager(srv.socketBase(), "trader", nil, nil)

	userUp := make(chan struct{}, 1)
	publicUp := make(chan struct{}, 1)
	m.OnUserConnected(func() { userUp <- struct{}{} })
	m.OnPublicConnected(func() { publicUp <- struct{}{} })

	if err := m.Initialise(context.Background(), "session-token"); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	defer m.Close()

	for name, ch := range map[string]chan struct{}{"user": userUp, "public": publicUp} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s 通道连接信号超时", name)
		}
	}
}
