package session

import (
	"context"
	"sync"
)

// CapabilityStore 编辑能力的外部来源。
// 只声明，实现在 store 中（MySQL）。
type CapabilityStore interface {
	IsEditor(ctx context.Context, docID string, userID uint64) (bool, error)
}

// Registry 持有所有文档的编辑会话（内存版）。
// 会话在第一次接入时创建，能力位也在那一刻从 store 查定，之后不再变。
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// 依赖注入
	caps       CapabilityStore
	notifier   Notifier
	dispatcher *KafkaDispatcher
}

func NewRegistry(caps CapabilityStore, notifier Notifier, dispatcher *KafkaDispatcher) *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		caps:       caps,
		notifier:   notifier,
		dispatcher: dispatcher,
	}
}

// Get 只查不建。
func (r *Registry) Get(docID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[docID]
}

// GetOrCreate 获取或创建指定文档的会话。
// 创建时用 userID 查一次编辑能力；查询失败按 viewer 处理（能力位为 false，
// 之后 EnableEditing 全是静默 no-op），不把错误往上抛。
func (r *Registry) GetOrCreate(ctx context.Context, docID string, userID uint64) *Session {
	r.mu.RLock()
	s := r.sessions[docID]
	r.mu.RUnlock()
	if s != nil {
		return s
	}

	isEditor := false
	if r.caps != nil {
		if ok, err := r.caps.IsEditor(ctx, docID, userID); err == nil {
			isEditor = ok
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s = r.sessions[docID]; s == nil {
		var sink EventSink
		if r.dispatcher != nil {
			sink = r.dispatcher
		}
		s = NewSession(docID, isEditor, r.notifier, sink)
		r.sessions[docID] = s
	}
	return s
}

// Teardown 文档卸载时销毁会话，待定编辑随之丢弃。
func (r *Registry) Teardown(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, docID)
}
