package ws

import (
	"context"
	"log"
	"time"

	"editSessionServer/backend/internal/session"

	"github.com/gorilla/websocket"
)

// Conn 一条宿主帧连接。
type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	docID    string
	userID   uint64
	username string
	// send 出站队列，writeLoop 持续消费
	send chan OutboundMessage
	// sess 这条连接盯着的编辑会话
	sess *session.Session
}

func NewConn(ws *websocket.Conn, hub *Hub, docID string, userID uint64, username string, sess *session.Session) *Conn {
	return &Conn{ws: ws, hub: hub, docID: docID, userID: userID, username: username, send: make(chan OutboundMessage, 32), sess: sess}
}

func (c *Conn) SendMessage_Enqueue(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
		// 队列满了就丢。通道本来就是尽力而为的，
		// 下一次全量广播会把状态补齐
	}
}

// handleHostMessage 处理一条宿主命令。
// 类型不认识、或者该带载荷却没带的，一律忽略且不回任何消息。
func (c *Conn) handleHostMessage(ctx context.Context, msg HostMessage) {
	switch msg.Type {
	case "set-editing-mode":
		if msg.Enabled == nil {
			return
		}
		if *msg.Enabled {
			c.sess.EnableEditing(ctx)
		} else {
			c.sess.DisableEditing(ctx)
		}

	case "clear-edits":
		c.sess.ClearAllEdits(ctx)

	case "request-edits":
		// 必须读会话的最新快照寄存器，不能用连接建立时抓的旧值——
		// 否则紧跟在变更后面的 request-edits 会答出变更前的数据
		snap := c.sess.Snapshot()
		c.SendMessage_Enqueue(EditsResponseMessage{Type: "edits-response", DocID: c.docID, Edits: snap, Count: len(snap)})

	case "heartbeat":
		if err := c.hub.presence.AddWatcher(ctx, c.docID, c.userID, c.username, 600*time.Second); err != nil {
			log.Printf("add watcher error: %v", err)
		}

	default:
		// 忽略未知类型，不回应
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.send)
	for {
		var msg HostMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Printf("read json error (user=%d, doc=%s): %v", c.userID, c.docID, err)
			return
		}
		c.handleHostMessage(ctx, msg)
	}
}

func (c *Conn) writeLoop() {
	// 持续消费通道中的出站消息
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}
