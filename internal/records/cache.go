package records

import (
	"context"
	"sync"
	"time"
)

const gradeCacheDefaultTTL = 10 * time.Minute

// GradeReader is the read side of grade storage. *Store satisfies it.
type GradeReader interface {
	GradesByStudent(ctx context.Context, studentID string) ([]Grade, error)
}

type gradeCacheEntry struct {
	grades    []Grade
	expiresAt time.Time
}

// GradeCache is a read-through cache over a GradeReader. Batch export
// encoders hit grade storage once per student per format; the cache
// collapses those repeat lookups within a run.
type GradeCache struct {
	mu      sync.RWMutex
	src     GradeReader
	ttl     time.Duration
	entries map[string]gradeCacheEntry
}

func NewGradeCache(src GradeReader, ttl time.Duration) *GradeCache {
	if ttl <= 0 {
		ttl = gradeCacheDefaultTTL
	}
	return &GradeCache{
		src:     src,
		ttl:     ttl,
		entries: make(map[string]gradeCacheEntry),
	}
}

func (c *GradeCache) GradesByStudent(ctx context.Context, studentID string) ([]Grade, error) {
	c.mu.RLock()
	entry, ok := c.entries[studentID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.grades, nil
	}

	grades, err := c.src.GradesByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[studentID] = gradeCacheEntry{
		grades:    grades,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
	return grades, nil
}

// Invalidate drops the cached grades for one student.
func (c *GradeCache) Invalidate(studentID string) {
	c.mu.Lock()
	delete(c.entries, studentID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry. Called after bulk imports.
func (c *GradeCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]gradeCacheEntry)
	c.mu.Unlock()
}

// Len reports the number of cached students, expired entries included.
func (c *GradeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
