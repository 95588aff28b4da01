package database

import (
	"os"

	"github.com/bradfitz/gomemcache/memcache"
)

// FeedCacheKey holds the serialized first page of the global
// feed; it is short-lived and dropped on every post creation
const FeedCacheKey = "feed:first"

// InitCache connects to memcached
func InitCache() *memcache.Client {
	return memcache.New(os.Getenv("MEM_URL"))
}

// CacheSet permits to set a temporary value, on the cache
// via Memcached
func CacheSet(mem *memcache.Client, key string, value []byte, seconds int32) {
	if mem == nil {
		return
	}
	mem.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: seconds,
	})
}

// CacheGet reads a value back; a miss or a cache failure is
// reported as absent
func CacheGet(mem *memcache.Client, key string) ([]byte, bool) {
	if mem == nil {
		return nil, false
	}
	item, err := mem.Get(key)
	if err != nil {
		return nil, false
	}
	return item.Value, true
}

// CacheDelete drops a key; missing keys are fine
func CacheDelete(mem *memcache.Client, key string) {
	if mem == nil {
		return
	}
	mem.Delete(key)
}
