package session

import (
	"context"
	"testing"
)

// fakeNotifier 记录每次广播，测试用
type fakeNotifier struct {
	editsCalls [][]Edit
	modeCalls  []bool
}

func (f *fakeNotifier) EditsChanged(docID string, edits []Edit) {
	f.editsCalls = append(f.editsCalls, edits)
}

func (f *fakeNotifier) EditingModeChanged(docID string, isEditing bool) {
	f.modeCalls = append(f.modeCalls, isEditing)
}

type fakeSink struct {
	events []EditEvent
}

func (f *fakeSink) Enqueue(ctx context.Context, evt EditEvent) error {
	f.events = append(f.events, evt)
	return nil
}

func newTestSession(isEditor bool) (*Session, *fakeNotifier) {
	n := &fakeNotifier{}
	return NewSession("doc-1", isEditor, n, &fakeSink{}), n
}

func TestAddTextEdit_InsertThenRevertRemoves(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	s.AddTextEdit(ctx, "sec-1", "p[3]", "old", "", "new", "")
	if got := len(s.Snapshot()); got != 1 {
		t.Fatalf("len(Snapshot()) = %d, want 1", got)
	}

	// 改回原值 => 整条消失
	s.AddTextEdit(ctx, "sec-1", "p[3]", "old", "", "old", "")
	if got := len(s.Snapshot()); got != 0 {
		t.Fatalf("after revert len(Snapshot()) = %d, want 0", got)
	}
}

func TestAddTextEdit_MergeNotDuplicate(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	s.AddTextEdit(ctx, "sec-1", "p[3]", "old", "", "first", "")
	firstID := s.Snapshot()[0].ID

	s.AddTextEdit(ctx, "sec-1", "p[3]", "old", "", "second", "")
	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(Snapshot()) = %d, want 1", len(snap))
	}
	if snap[0].NewText != "second" {
		t.Fatalf("NewText = %q, want %q", snap[0].NewText, "second")
	}
	// id 和 original 字段创建后不变
	if snap[0].ID != firstID {
		t.Fatalf("ID changed on update: %q -> %q", firstID, snap[0].ID)
	}
	if snap[0].OriginalText != "old" {
		t.Fatalf("OriginalText = %q, want %q", snap[0].OriginalText, "old")
	}
}

func TestAddTextEdit_HTMLComparedOnlyWhenBothPresent(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	// 带 html 的记录，候选不带 html：html 不参与比较，按文本判撤销
	s.AddTextEdit(ctx, "sec-1", "p[0]", "old", "<p>old</p>", "new", "<p>new</p>")
	s.AddTextEdit(ctx, "sec-1", "p[0]", "old", "<p>old</p>", "old", "")
	if got := len(s.Snapshot()); got != 0 {
		t.Fatalf("len(Snapshot()) = %d, want 0", got)
	}

	// 双方都带 html 且 html 不同：文本回去了也不算撤销
	s.AddTextEdit(ctx, "sec-1", "p[1]", "old", "<p>old</p>", "new", "<p>new</p>")
	s.AddTextEdit(ctx, "sec-1", "p[1]", "old", "<p>old</p>", "old", "<p>old-bold</p>")
	if got := len(s.Snapshot()); got != 1 {
		t.Fatalf("len(Snapshot()) = %d, want 1", got)
	}
}

func TestAddEquationEdit_ColorMapOnlyChangeRetained(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	s.AddEquationEdit(ctx, "sec-1", ComponentEquation, "x=1", "x=1", map[string]string{"x": "red"})
	s.AddEquationEdit(ctx, "sec-1", ComponentEquation, "x=1", "x=1", map[string]string{"x": "blue"})

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(Snapshot()) = %d, want 1", len(snap))
	}
	if snap[0].NewLatex != "x=1" {
		t.Fatalf("NewLatex = %q, want %q", snap[0].NewLatex, "x=1")
	}
	if got := snap[0].ColorMap["x"]; got != "blue" {
		t.Fatalf("ColorMap[x] = %q, want %q", got, "blue")
	}
}

func TestAddEquationEdit_RevertOnLatexReturn(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	s.AddEquationEdit(ctx, "sec-1", ComponentEquation, "x=1", "x=2", nil)
	s.AddEquationEdit(ctx, "sec-1", ComponentEquation, "x=1", "x=1", nil)
	if got := len(s.Snapshot()); got != 0 {
		t.Fatalf("len(Snapshot()) = %d, want 0", got)
	}
}

func TestBroadcastOnEveryMutation(t *testing.T) {
	s, n := newTestSession(true)
	ctx := context.Background()

	s.AddTextEdit(ctx, "sec-1", "p[0]", "a", "", "b", "")
	s.AddEquationEdit(ctx, "sec-1", ComponentEquation, "x=1", "x=2", nil)
	id := s.Snapshot()[0].ID
	s.RemoveEdit(ctx, id)
	s.RemoveEdit(ctx, "no-such-id") // 无效 id 也照样广播
	s.ClearAllEdits(ctx)

	if got := len(n.editsCalls); got != 5 {
		t.Fatalf("edits-changed broadcasts = %d, want 5", got)
	}
	wantCounts := []int{1, 2, 1, 1, 0}
	for i, call := range n.editsCalls {
		if len(call) != wantCounts[i] {
			t.Fatalf("broadcast %d count = %d, want %d", i, len(call), wantCounts[i])
		}
	}
}

func TestSnapshotFreshAfterMutation(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	stale := s.Snapshot() // 监听方注册时抓的旧值
	s.AddTextEdit(ctx, "sec-1", "p[0]", "a", "", "b", "")

	if len(stale) != 0 {
		t.Fatalf("stale snapshot mutated, len = %d", len(stale))
	}
	fresh := s.Snapshot()
	if len(fresh) != 1 || fresh[0].NewText != "b" {
		t.Fatalf("fresh snapshot = %+v, want one edit with NewText=b", fresh)
	}
}

func TestCapabilityGate(t *testing.T) {
	s, n := newTestSession(false)
	ctx := context.Background()

	s.EnableEditing(ctx)
	if s.IsEditing() {
		t.Fatalf("IsEditing() = true, want false for viewer")
	}
	for _, mode := range n.modeCalls {
		if mode {
			t.Fatalf("viewer EnableEditing broadcast isEditing=true")
		}
	}
}

func TestDisableEditingAlwaysBroadcasts(t *testing.T) {
	s, n := newTestSession(true)
	ctx := context.Background()

	s.DisableEditing(ctx) // 本来就是关的
	s.DisableEditing(ctx)
	if got := len(n.modeCalls); got != 2 {
		t.Fatalf("mode broadcasts = %d, want 2", got)
	}

	s.EnableEditing(ctx)
	if !s.IsEditing() {
		t.Fatalf("IsEditing() = false, want true for editor")
	}
	if got := len(n.modeCalls); got != 3 {
		t.Fatalf("mode broadcasts = %d, want 3", got)
	}
}

func TestEquationOverlaySingleSlot(t *testing.T) {
	s, _ := newTestSession(true)

	s.OpenEquationEditor("x=1", nil, "sec-1", "eq[0]")
	s.OpenEquationEditor("y=2", map[string]string{"y": "green"}, "sec-2", "eq[1]")

	d := s.EditingEquation()
	if d == nil {
		t.Fatalf("EditingEquation() = nil, want draft")
	}
	if d.Latex != "y=2" || d.SectionID != "sec-2" {
		t.Fatalf("draft = %+v, want second open's data", d)
	}
}

func TestSaveEquationEdit_NoopWhenClosed(t *testing.T) {
	s, n := newTestSession(true)
	ctx := context.Background()

	s.SaveEquationEdit(ctx, "x=2", nil)
	if got := len(s.Snapshot()); got != 0 {
		t.Fatalf("len(Snapshot()) = %d, want 0", got)
	}
	if got := len(n.editsCalls); got != 0 {
		t.Fatalf("broadcasts = %d, want 0", got)
	}
}

func TestSaveEquationEdit_UnchangedClosesWithoutRecording(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	cm := map[string]string{"x": "red"}
	s.OpenEquationEditor("x=1", cm, "sec-1", "eq[0]")
	s.SaveEquationEdit(ctx, "x=1", map[string]string{"x": "red"})

	if got := len(s.Snapshot()); got != 0 {
		t.Fatalf("len(Snapshot()) = %d, want 0", got)
	}
	if s.EditingEquation() != nil {
		t.Fatalf("EditingEquation() != nil, want closed after save")
	}
}

func TestSaveEquationEdit_ChangeRecordsGenericComponent(t *testing.T) {
	s, _ := newTestSession(true)
	ctx := context.Background()

	s.OpenEquationEditor("x=1", nil, "sec-1", "eq[0]")
	s.SaveEquationEdit(ctx, "x=2", map[string]string{"x": "red"})

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(Snapshot()) = %d, want 1", len(snap))
	}
	e := snap[0]
	if e.Kind != KindEquation || e.OriginalLatex != "x=1" || e.NewLatex != "x=2" {
		t.Fatalf("edit = %+v, want equation x=1 -> x=2", e)
	}
	// 浮层不记得打开它的控件类型，统一记通用值
	if e.ComponentType != ComponentEquation {
		t.Fatalf("ComponentType = %q, want %q", e.ComponentType, ComponentEquation)
	}
	if s.EditingEquation() != nil {
		t.Fatalf("EditingEquation() != nil, want closed after save")
	}
}

func TestEditEventsEmitted(t *testing.T) {
	sink := &fakeSink{}
	s := NewSession("doc-1", true, &fakeNotifier{}, sink)
	ctx := context.Background()

	s.AddTextEdit(ctx, "sec-1", "p[0]", "a", "", "b", "")
	s.AddTextEdit(ctx, "sec-1", "p[0]", "a", "", "a", "")
	s.ClearAllEdits(ctx)

	wantTypes := []string{EventEditRecorded, EventEditReverted, EventEditsCleared}
	if len(sink.events) != len(wantTypes) {
		t.Fatalf("events = %d, want %d", len(sink.events), len(wantTypes))
	}
	for i, evt := range sink.events {
		if evt.EventType != wantTypes[i] {
			t.Fatalf("event %d type = %q, want %q", i, evt.EventType, wantTypes[i])
		}
		if evt.DocID != "doc-1" {
			t.Fatalf("event %d docId = %q, want doc-1", i, evt.DocID)
		}
	}
}
