package ws

import (
	"sync"

	"editSessionServer/backend/internal/cache"
	"editSessionServer/backend/internal/session"
)

// Hub 宿主连接的集散点，同时是 session.Notifier 的实现：
// 会话每次变更都经这里广播给订阅同一文档的所有宿主帧。
// 广播是尽力而为的单向通知，没有确认、没有序号。
type Hub struct {
	// 在线状态的外部存储句柄（Redis 实现）
	presence cache.PresenceCache
	// 读写锁保护 rooms，加入/离开/广播都要先拿锁
	mu sync.RWMutex
	// docID -> set of connections
	// 房间存连接而不是 userID：同一宿主页面可以开多个标签页（多连接），
	// 广播要逐连接发
	rooms map[string]map[*Conn]struct{}
}

func NewHub(p cache.PresenceCache) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{})}
}

// Join 将连接加入指定文档房间
func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

// Leave 将连接从指定文档房间移除
func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// EditsChanged 实现 session.Notifier：集合变了就把整份快照推给房间里所有宿主
func (h *Hub) EditsChanged(docID string, edits []session.Edit) {
	h.mu.RLock()
	conns := h.rooms[docID]
	h.mu.RUnlock()
	msg := EditsChangedMessage{Type: "edits-changed", DocID: docID, Edits: edits, Count: len(edits)}
	for c := range conns {
		c.SendMessage_Enqueue(msg)
	}
}

// EditingModeChanged 实现 session.Notifier
func (h *Hub) EditingModeChanged(docID string, isEditing bool) {
	h.mu.RLock()
	conns := h.rooms[docID]
	h.mu.RUnlock()
	msg := EditingModeMessage{Type: "editing-mode-changed", DocID: docID, IsEditing: isEditing}
	for c := range conns {
		c.SendMessage_Enqueue(msg)
	}
}
