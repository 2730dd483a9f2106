package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Notifier 宿主同步通道的出站口。
// 只声明，实现在 ws 包中（Hub 实现了这个接口）。
// 约定：每次待定编辑集合变化都广播一次“整份新快照”，不发增量，
// 这样宿主永远不会看到半新半旧的状态，代价是每次都重传全量。
type Notifier interface {
	EditsChanged(docID string, edits []Edit)
	EditingModeChanged(docID string, isEditing bool)
}

// EventSink 编辑事件流的出口（Kafka 调度器实现）。
type EventSink interface {
	Enqueue(ctx context.Context, evt EditEvent) error
}

// Session 单个文档的编辑会话。
// 待定编辑集合 + 编辑模式开关 + 公式编辑浮层，生命周期跟随文档，
// 集合只允许这里改，外部只读快照。
type Session struct {
	mu    sync.RWMutex
	docID string

	// isEditor 能力位，外部（capability store）在创建时给定，之后不变。
	// 会话只消费它，不拥有它。
	isEditor  bool
	isEditing bool

	edits []*Edit
	draft *EquationDraft

	// snapshot “最新快照寄存器”：每次变更都无条件刷新。
	// 通道监听方回答 request-edits 时读这里，而不是读注册监听时捕获的旧值。
	snapshot []Edit

	notifier Notifier
	events   EventSink
}

func NewSession(docID string, isEditor bool, notifier Notifier, events EventSink) *Session {
	return &Session{
		docID:    docID,
		isEditor: isEditor,
		edits:    make([]*Edit, 0),
		snapshot: make([]Edit, 0),
		notifier: notifier,
		events:   events,
	}
}

func (s *Session) DocID() string { return s.docID }

func (s *Session) IsEditor() bool { return s.isEditor }

func (s *Session) IsEditing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEditing
}

// Snapshot 返回当前待定编辑集合的一份拷贝（读最新快照寄存器）。
func (s *Session) Snapshot() []Edit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edit, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// EditingEquation 返回浮层里正在编辑的公式，没有则为 nil。
func (s *Session) EditingEquation() *EquationDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return nil
	}
	d := *s.draft
	return &d
}

// refreshSnapshot 在持锁状态下重建快照寄存器，返回这份快照。
func (s *Session) refreshSnapshot() []Edit {
	snap := make([]Edit, len(s.edits))
	for i, e := range s.edits {
		snap[i] = *e
	}
	s.snapshot = snap
	return snap
}

func (s *Session) notifyEdits(snap []Edit) {
	if s.notifier != nil {
		s.notifier.EditsChanged(s.docID, snap)
	}
}

func (s *Session) emit(ctx context.Context, evt EditEvent) {
	if s.events == nil {
		return
	}
	evt.DocID = s.docID
	evt.At = time.Now()
	_ = s.events.Enqueue(ctx, evt) // 尽力而为，不阻塞主流程
}

// EnableEditing 进入编辑模式。没有编辑能力时静默忽略：
// 不报错、不广播，调用方得不到任何信号。
func (s *Session) EnableEditing(ctx context.Context) {
	s.mu.Lock()
	if !s.isEditor {
		s.mu.Unlock()
		return
	}
	s.isEditing = true
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.EditingModeChanged(s.docID, true)
	}
	s.emit(ctx, EditEvent{EventType: EventModeChanged, IsEditing: true})
}

// DisableEditing 退出编辑模式。即使本来就是关闭状态也照样广播一次。
func (s *Session) DisableEditing(ctx context.Context) {
	s.mu.Lock()
	s.isEditing = false
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.EditingModeChanged(s.docID, false)
	}
	s.emit(ctx, EditEvent{EventType: EventModeChanged, IsEditing: false})
}

// AddTextEdit 文本编辑的插入/合并/撤销归并。
// 同一 (sectionId, elementPath) 最多一条记录：
//   - 没有旧记录：新建（originalText/originalHtml 此刻定格）
//   - 改回原值：整条移除（幂等撤销）
//   - 其他情况：原地覆盖 newText/newHtml 和时间戳
//
// 调用方负责给出真实的编辑前文本，这里不做任何校验，照单全收。
func (s *Session) AddTextEdit(ctx context.Context, sectionID, elementPath, originalText, originalHTML, newText, newHTML string) {
	s.mu.Lock()
	var evt EditEvent
	idx := -1
	for i, e := range s.edits {
		if e.matchText(sectionID, elementPath) {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		e := &Edit{
			ID:           newEditID(),
			Kind:         KindText,
			SectionID:    sectionID,
			Timestamp:    time.Now(),
			ElementPath:  elementPath,
			OriginalText: originalText,
			OriginalHTML: originalHTML,
			NewText:      newText,
			NewHTML:      newHTML,
		}
		s.edits = append(s.edits, e)
		evt = EditEvent{EventType: EventEditRecorded, EditID: e.ID, Kind: KindText, SectionID: sectionID}
	case s.textReverted(s.edits[idx], newText, newHTML):
		evt = EditEvent{EventType: EventEditReverted, EditID: s.edits[idx].ID, Kind: KindText, SectionID: sectionID}
		s.edits = append(s.edits[:idx], s.edits[idx+1:]...)
	default:
		e := s.edits[idx]
		e.NewText = newText
		e.NewHTML = newHTML
		e.Timestamp = time.Now()
		evt = EditEvent{EventType: EventEditUpdated, EditID: e.ID, Kind: KindText, SectionID: sectionID}
	}
	snap := s.refreshSnapshot()
	s.mu.Unlock()

	s.notifyEdits(snap)
	evt.Count = len(snap)
	s.emit(ctx, evt)
}

// 撤销判定：newText 回到 originalText。
// html 只在双方都带 html 时参与比较（空串视为没带）。
func (s *Session) textReverted(e *Edit, newText, newHTML string) bool {
	if newText != e.OriginalText {
		return false
	}
	if e.OriginalHTML != "" && newHTML != "" {
		return newHTML == e.OriginalHTML
	}
	return true
}

// AddEquationEdit 公式编辑的插入/合并/撤销归并，键是 (sectionId, originalLatex)。
// 撤销只比较 newLatex == originalLatex；latex 没变、只改 colorMap 的编辑
// 会一直留在集合里，不会被判为撤销。
func (s *Session) AddEquationEdit(ctx context.Context, sectionID, componentType, originalLatex, newLatex string, colorMap map[string]string) {
	s.mu.Lock()
	var evt EditEvent
	idx := -1
	for i, e := range s.edits {
		if e.matchEquation(sectionID, originalLatex) {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		e := &Edit{
			ID:            newEditID(),
			Kind:          KindEquation,
			SectionID:     sectionID,
			Timestamp:     time.Now(),
			ComponentType: componentType,
			OriginalLatex: originalLatex,
			NewLatex:      newLatex,
			ColorMap:      colorMap,
		}
		s.edits = append(s.edits, e)
		evt = EditEvent{EventType: EventEditRecorded, EditID: e.ID, Kind: KindEquation, SectionID: sectionID}
	case newLatex == originalLatex && len(colorMap) == 0:
		evt = EditEvent{EventType: EventEditReverted, EditID: s.edits[idx].ID, Kind: KindEquation, SectionID: sectionID}
		s.edits = append(s.edits[:idx], s.edits[idx+1:]...)
	default:
		e := s.edits[idx]
		e.NewLatex = newLatex
		e.ColorMap = colorMap
		e.Timestamp = time.Now()
		evt = EditEvent{EventType: EventEditUpdated, EditID: e.ID, Kind: KindEquation, SectionID: sectionID}
	}
	snap := s.refreshSnapshot()
	s.mu.Unlock()

	s.notifyEdits(snap)
	evt.Count = len(snap)
	s.emit(ctx, evt)
}

// RemoveEdit 按 id 无条件移除，不分变体。id 不存在也照样广播一次。
func (s *Session) RemoveEdit(ctx context.Context, id string) {
	s.mu.Lock()
	evt := EditEvent{EventType: EventEditRemoved, EditID: id}
	for i, e := range s.edits {
		if e.ID == id {
			evt.Kind = e.Kind
			evt.SectionID = e.SectionID
			s.edits = append(s.edits[:i], s.edits[i+1:]...)
			break
		}
	}
	snap := s.refreshSnapshot()
	s.mu.Unlock()

	s.notifyEdits(snap)
	evt.Count = len(snap)
	s.emit(ctx, evt)
}

// ClearAllEdits 清空集合。
func (s *Session) ClearAllEdits(ctx context.Context) {
	s.mu.Lock()
	s.edits = s.edits[:0]
	snap := s.refreshSnapshot()
	s.mu.Unlock()

	s.notifyEdits(snap)
	s.emit(ctx, EditEvent{EventType: EventEditsCleared, Count: 0})
}

// OpenEquationEditor 打开公式编辑浮层。单槽位：已经开着就直接顶掉旧的。
func (s *Session) OpenEquationEditor(latex string, colorMap map[string]string, sectionID, elementPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = &EquationDraft{
		Latex:       latex,
		ColorMap:    colorMap,
		SectionID:   sectionID,
		ElementPath: elementPath,
	}
}

// CloseEquationEditor 关闭浮层并丢弃内容，不产生编辑记录。
func (s *Session) CloseEquationEditor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

// SaveEquationEdit 保存浮层内容。浮层没开时是 no-op。
// latex 或整张 colorMap 任一有变化才落一条公式编辑；
// 浮层不记得是哪种控件打开的它，componentType 统一记通用值。
// 无论是否落了记录，浮层之后一律关闭。
func (s *Session) SaveEquationEdit(ctx context.Context, newLatex string, newColorMap map[string]string) {
	s.mu.Lock()
	d := s.draft
	if d == nil {
		s.mu.Unlock()
		return
	}
	s.draft = nil
	changed := newLatex != d.Latex || !maps.Equal(newColorMap, d.ColorMap)
	s.mu.Unlock()

	if changed {
		s.AddEquationEdit(ctx, d.SectionID, ComponentEquation, d.Latex, newLatex, newColorMap)
	}
}
