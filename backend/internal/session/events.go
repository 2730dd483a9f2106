package session

import (
	"time"
)

// 编辑事件类型
const (
	EventEditRecorded = "EDIT_RECORDED"
	EventEditUpdated  = "EDIT_UPDATED"
	EventEditReverted = "EDIT_REVERTED"
	EventEditRemoved  = "EDIT_REMOVED"
	EventEditsCleared = "EDITS_CLEARED"
	EventModeChanged  = "MODE_CHANGED"
)

// EditEvent 发往 Kafka 的编辑变更事件，给需要跟踪编辑活动的兄弟服务消费。
// 待定集合本身不落库（撤销即消失），这里只是变更通知流。
type EditEvent struct {
	EventType string    `json:"eventType"`
	DocID     string    `json:"docId"`
	EditID    string    `json:"editId,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	SectionID string    `json:"sectionId,omitempty"`
	Count     int       `json:"count"` // 事件发生后集合的大小
	IsEditing bool      `json:"isEditing,omitempty"`
	At        time.Time `json:"at"`
}
