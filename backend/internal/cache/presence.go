package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// PresenceCache 记录哪些宿主帧正盯着哪个文档的编辑会话。
// 心跳靠 TTL 过期：宿主断了不汇报，键自己消失。
type PresenceCache interface {
	AddWatcher(ctx context.Context, docID string, userID uint64, username string, ttl time.Duration) error
	GetAliveWatchers(ctx context.Context, docID string) ([]Watcher, error)
}

type Watcher struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

// 具体实现：基于 redis 的 PresenceCache
type redisPresence struct {
	rdb redis.Cmdable
}

func NewRedisPresence(rdb redis.Cmdable) PresenceCache {
	return &redisPresence{rdb: rdb}
}

func (p *redisPresence) AddWatcher(ctx context.Context, docID string, userID uint64, username string, ttl time.Duration) error {
	pipe := p.rdb.Pipeline()
	// 房间集合加成员
	pipe.SAdd(ctx, roomKey(docID), userID)
	// 心跳键带 TTL
	pipe.Set(ctx, watcherKey(docID, userID), "1", ttl)
	// 名字表(哈希)
	pipe.HSet(ctx, namesKey(docID), userID, username)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *redisPresence) GetAliveWatchers(ctx context.Context, docID string) ([]Watcher, error) {
	// step1: get members
	userIDs, err := p.rdb.SMembers(ctx, roomKey(docID)).Result()
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	// step2: check TTL
	// 心跳键还在的就是活着的
	existscmds := make([]*redis.IntCmd, 0, len(userIDs))
	pipe := p.rdb.Pipeline()
	for _, userID := range userIDs {
		uid, err := strconv.ParseUint(userID, 10, 64)
		if err != nil {
			return nil, err
		}
		existscmds = append(existscmds, pipe.Exists(ctx, watcherKey(docID, uid)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	aliveIDs := make([]uint64, 0, len(userIDs))
	aliveKeyFields := make([]string, 0, len(userIDs))
	for i, cmd := range existscmds {
		if cmd.Val() == 1 {
			uid, err := strconv.ParseUint(userIDs[i], 10, 64)
			if err != nil {
				return nil, err
			}
			aliveIDs = append(aliveIDs, uid)
			aliveKeyFields = append(aliveKeyFields, userIDs[i])
		}
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}

	// step3: get names
	names, err := p.rdb.HMGet(ctx, namesKey(docID), aliveKeyFields...).Result()
	if err != nil {
		return nil, err
	}
	watchers := make([]Watcher, 0, len(aliveIDs))
	for i, v := range names {
		name := ""
		if v != nil {
			name, _ = v.(string)
		}
		watchers = append(watchers, Watcher{UserID: aliveIDs[i], Username: name})
	}
	return watchers, nil
}
