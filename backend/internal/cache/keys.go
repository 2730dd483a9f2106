package cache

import "fmt"

// 键语义：
// - roomKey(docID):            文档的宿主观察者集合（Set<userId>）
// - watcherKey(docID,userID):  观察者心跳键（String，占位"1"，带 TTL）
// - namesKey(docID):           userId→username 映射（Hash）

const (
	keyRoomFmt    = "editsession:room:%s"       // Set<userId>
	keyWatcherFmt = "editsession:watcher:%s:%d" // String "1" with TTL
	keyNamesFmt   = "editsession:room:names:%s" // Hash<userId -> username>
)

func roomKey(docID string) string                   { return fmt.Sprintf(keyRoomFmt, docID) }
func watcherKey(docID string, userID uint64) string { return fmt.Sprintf(keyWatcherFmt, docID, userID) }
func namesKey(docID string) string                  { return fmt.Sprintf(keyNamesFmt, docID) }
