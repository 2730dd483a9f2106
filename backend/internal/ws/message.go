package ws

import (
	"editSessionServer/backend/internal/session"
)

// HostMessage 宿主帧发来的命令。
// 命令都是绝对语义（"enabled": true/false），不是 toggle——
// 宿主和文档是两个执行上下文，广播和命令之间没有先后保证，
// 语义必须在乱序下幂等。
type HostMessage struct {
	Type  string `json:"type"`
	DocID string `json:"docId,omitempty"`
	// set-editing-mode 的载荷；缺载荷的消息直接忽略
	Enabled *bool `json:"enabled,omitempty"`
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

func (m EditingModeMessage) MessageType() string   { return m.Type }
func (m EditsChangedMessage) MessageType() string  { return m.Type }
func (m EditsResponseMessage) MessageType() string { return m.Type }

// EditingModeMessage 编辑模式变化通知
type EditingModeMessage struct {
	Type      string `json:"type"` // 固定 "editing-mode-changed"
	DocID     string `json:"docId,omitempty"`
	IsEditing bool   `json:"isEditing"`
}

// EditsChangedMessage 待定编辑集合变化通知。
// 每次变更都发整份快照，不发增量，宿主不可能看到半新半旧的状态。
type EditsChangedMessage struct {
	Type  string         `json:"type"` // 固定 "edits-changed"
	DocID string         `json:"docId,omitempty"`
	Edits []session.Edit `json:"edits"`
	Count int            `json:"count"`
}

// EditsResponseMessage 对 request-edits 的应答，载荷和 edits-changed 相同
type EditsResponseMessage struct {
	Type  string         `json:"type"` // 固定 "edits-response"
	DocID string         `json:"docId,omitempty"`
	Edits []session.Edit `json:"edits"`
	Count int            `json:"count"`
}
