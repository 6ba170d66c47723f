package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Cache defines the interface for caching parsed values
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T, ttl time.Duration)
	Delete(key string)
	Clear()
}

// FileKey generates a cache key for a file version. A rewritten file gets a
// new key because its size or modification time changes.
func FileKey(path string, size int64, modTime time.Time) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", path, size, modTime.UnixNano())))
	return "detlab:v1:" + hex.EncodeToString(hash[:])
}
