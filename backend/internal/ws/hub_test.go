package ws

import (
	"context"
	"testing"
	"time"

	"editSessionServer/backend/internal/session"
)

func timeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(2 * time.Second)
}

func TestHub_BroadcastsToAllRoomConns(t *testing.T) {
	hub := NewHub(&fakePresence{})
	sess := session.NewSession("doc-1", true, hub, nil)

	c1 := NewConn(nil, hub, "doc-1", 1, "a", sess)
	c2 := NewConn(nil, hub, "doc-1", 2, "b", sess)
	other := NewConn(nil, hub, "doc-2", 3, "c", sess)
	hub.Join("doc-1", c1)
	hub.Join("doc-1", c2)
	hub.Join("doc-2", other)

	sess.AddTextEdit(context.Background(), "sec-1", "p[0]", "a", "", "b", "")

	for _, c := range []*Conn{c1, c2} {
		msg, ok := tryRecv(t, c)
		if !ok {
			t.Fatalf("conn missed broadcast")
		}
		ec, ok := msg.(EditsChangedMessage)
		if !ok {
			t.Fatalf("message type = %T, want EditsChangedMessage", msg)
		}
		if ec.Type != "edits-changed" || ec.Count != 1 {
			t.Fatalf("broadcast = %+v, want edits-changed count=1", ec)
		}
	}
	// 别的文档房间收不到
	if msg, ok := tryRecv(t, other); ok {
		t.Fatalf("other room got %v, want none", msg)
	}
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	hub := NewHub(&fakePresence{})
	sess := session.NewSession("doc-1", true, hub, nil)
	c := NewConn(nil, hub, "doc-1", 1, "a", sess)
	hub.Join("doc-1", c)
	hub.Leave("doc-1", c)

	sess.DisableEditing(context.Background())
	if msg, ok := tryRecv(t, c); ok {
		t.Fatalf("left conn got %v, want none", msg)
	}
}

func TestHub_FullQueueDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(&fakePresence{})
	sess := session.NewSession("doc-1", true, hub, nil)
	c := NewConn(nil, hub, "doc-1", 1, "a", sess)
	hub.Join("doc-1", c)

	// 塞满出站队列，之后的广播应当被丢弃而不是卡死广播方
	for i := 0; i < cap(c.send); i++ {
		c.SendMessage_Enqueue(EditingModeMessage{Type: "editing-mode-changed"})
	}
	done := make(chan struct{})
	go func() {
		sess.DisableEditing(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-timeout(t):
		t.Fatalf("broadcast blocked on full queue")
	}
}
