package ws

import (
	"log"
	"net/http"
	"strings"
	"time"

	"editSessionServer/backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 全局的WebSocket upgrader（允许本地开发环境的来源）。
// 通道本身不鉴别消息来源，任何拿到连接的帧都能发命令、读编辑内容，
// 这是已知限制，不在这一层修。
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" { // 一些环境可能不发送 Origin，或为 "null"
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
		"",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type Manager struct {
	h   *Hub
	reg *session.Registry
}

func NewManager(h *Hub, reg *session.Registry) *Manager {
	return &Manager{h: h, reg: reg}
}

// WebSocketConnect 宿主帧接入。
// 接入后立刻把当前模式和整份编辑快照推过去，让宿主先和现状对齐，
// 之后的变化靠 Hub 广播。
func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")
	docID := c.Query("docId")
	if docID == "" {
		c.String(http.StatusBadRequest, "missing docId")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	sess := m.reg.GetOrCreate(ctx, docID, userID)

	wsConn := NewConn(conn, m.h, docID, userID, username, sess)
	m.h.Join(docID, wsConn)
	defer m.h.Leave(docID, wsConn)

	if err := m.h.presence.AddWatcher(ctx, docID, userID, username, 600*time.Second); err != nil {
		log.Printf("add watcher error: %v", err)
	}

	// 先启动写循环，确保后续写入 send 通道的消息可以被及时发送
	go wsConn.writeLoop()

	snap := sess.Snapshot()
	wsConn.send <- EditingModeMessage{Type: "editing-mode-changed", DocID: docID, IsEditing: sess.IsEditing()}
	wsConn.send <- EditsChangedMessage{Type: "edits-changed", DocID: docID, Edits: snap, Count: len(snap)}

	// 最后再进入读循环（阻塞至连接关闭）
	wsConn.readLoop(ctx)
}
