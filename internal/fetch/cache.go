package fetch

import (
	"net/url"
	"sync"
	"time"
)

// Entry: запись кэша. Валидна, пока now - FetchedAt < TTL.
type Entry struct {
	Key       string
	Payload   []byte
	FetchedAt time.Time
	TTL       time.Duration
}

func (e Entry) FreshAt(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

type LookupResult string

const (
	LookupHit     LookupResult = "hit"
	LookupMiss    LookupResult = "miss"
	LookupExpired LookupResult = "expired"
)

// Cache: TTL кэш ответов по сигнатуре запроса.
// Фоновой чистки нет: протухшая запись удаляется при обращении и считается отсутствующей.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]Entry
	now     func() time.Time
}

func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]Entry),
		now:     now,
	}
}

func (c *Cache) Lookup(key string) ([]byte, LookupResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, LookupMiss
	}
	if !e.FreshAt(c.now()) {
		delete(c.entries, key)
		return nil, LookupExpired
	}
	return e.Payload, LookupHit
}

func (c *Cache) Store(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Key:       key,
		Payload:   payload,
		FetchedAt: c.now(),
		TTL:       c.ttl,
	}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey: сигнатура запроса: endpoint + параметры, отсортированные по ключу.
func cacheKey(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}
