package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestAddWatcherAndAlive(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	defer rdb.FlushAll(context.Background()).Err()

	ctx := context.Background()
	p := NewRedisPresence(rdb)

	if err := p.AddWatcher(ctx, "doc-t1", 1, "alice", 10*time.Second); err != nil {
		t.Fatalf("AddWatcher error: %v", err)
	}
	if err := p.AddWatcher(ctx, "doc-t1", 2, "bob", 1*time.Millisecond); err != nil {
		t.Fatalf("AddWatcher error: %v", err)
	}

	// bob 的心跳键过期后就不算活着
	time.Sleep(50 * time.Millisecond)

	watchers, err := p.GetAliveWatchers(ctx, "doc-t1")
	if err != nil {
		t.Fatalf("GetAliveWatchers error: %v", err)
	}
	if len(watchers) != 1 {
		t.Fatalf("len(watchers) = %d, want 1", len(watchers))
	}
	if watchers[0].UserID != 1 || watchers[0].Username != "alice" {
		t.Fatalf("watcher = %+v, want alice(1)", watchers[0])
	}
}

func TestGetAliveWatchers_EmptyRoom(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}

	p := NewRedisPresence(rdb)
	watchers, err := p.GetAliveWatchers(context.Background(), "doc-empty")
	if err != nil {
		t.Fatalf("GetAliveWatchers error: %v", err)
	}
	if len(watchers) != 0 {
		t.Fatalf("len(watchers) = %d, want 0", len(watchers))
	}
}
