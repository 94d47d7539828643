package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Velocity-Developer/newads/internal/ports"
)

// DefaultBlacklistTTL is how long a loaded word set is reused.
const DefaultBlacklistTTL = 5 * time.Minute

// Blacklist caches the active blacklist words in memory. Concurrent reloads of an
// expired set collapse into one repository query.
type Blacklist struct {
	repo ports.BlacklistRepository
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	words    map[string]struct{}
	loadedAt time.Time
}

var _ ports.Blacklist = (*Blacklist)(nil)

// NewBlacklist wraps repo with a TTL cache. A non-positive ttl falls back to DefaultBlacklistTTL.
func NewBlacklist(repo ports.BlacklistRepository, ttl time.Duration) *Blacklist {
	if ttl <= 0 {
		ttl = DefaultBlacklistTTL
	}
	return &Blacklist{repo: repo, ttl: ttl, now: time.Now}
}

// Contains reports whether word, compared case-insensitively, is an active blacklist word.
func (b *Blacklist) Contains(ctx context.Context, word string) (bool, error) {
	words, err := b.load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := words[strings.ToLower(strings.TrimSpace(word))]
	return ok, nil
}

// Invalidate drops the cached set so the next lookup reloads it.
func (b *Blacklist) Invalidate() {
	b.mu.Lock()
	b.words = nil
	b.loadedAt = time.Time{}
	b.mu.Unlock()
}

func (b *Blacklist) load(ctx context.Context) (map[string]struct{}, error) {
	if words := b.fresh(); words != nil {
		return words, nil
	}

	v, err, _ := b.group.Do("blacklist", func() (any, error) {
		if words := b.fresh(); words != nil {
			return words, nil
		}
		// Waiting callers share this load; it outlives the caller that started it.
		entries, err := b.repo.ListActive(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("load blacklist: %w", err)
		}
		set := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			if !e.Active {
				continue
			}
			if w := strings.ToLower(strings.TrimSpace(e.Word)); w != "" {
				set[w] = struct{}{}
			}
		}

		b.mu.Lock()
		b.words = set
		b.loadedAt = b.now()
		b.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]struct{}), nil
}

func (b *Blacklist) fresh() map[string]struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.words != nil && b.now().Sub(b.loadedAt) < b.ttl {
		return b.words
	}
	return nil
}
