package loopback

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	paper "github.com/jimsnab/go-paper-cmdline"
	"github.com/jimsnab/go-lane"
	"github.com/jimsnab/go-treestore"
)

var errValueTooLarge = errors.New("value exceeds cache size")

type (
	// cacheStore keeps the cache entries in a treestore, one top-level key
	// per cache key, and tracks the counters reported by stats.
	cacheStore struct {
		mu         sync.Mutex
		appVersion int
		basePath   string
		ts         *treestore.TreeStore
		maxSize    uint64
		policy     paper.Policy
		totalGets  atomic.Uint64
		misses     atomic.Uint64
		dirty      atomic.Int32
	}
)

var allKeys = treestore.MakeStoreKeyFromPath("/*")

func newCacheStore(l lane.Lane, basePath string, appVersion int, maxSize uint64, policy paper.Policy) (st *cacheStore, err error) {
	st = &cacheStore{
		basePath:   basePath,
		appVersion: appVersion,
		ts:         treestore.NewTreeStore(l.Derive(), appVersion),
		maxSize:    maxSize,
		policy:     policy,
	}

	if basePath != "" {
		filename := st.fileName()
		if _, statErr := os.Stat(filename); statErr != nil {
			if !errors.Is(statErr, fs.ErrNotExist) {
				return nil, statErr
			}
			return
		}

		l.Tracef("loading cache from %s", filename)
		if err = st.ts.Load(l, filename); err != nil {
			l.Errorf("error loading %s: %s", filename, err.Error())
			st = nil
			return
		}
	}

	return
}

func (st *cacheStore) fileName() string {
	if st.basePath == "" {
		return ""
	}
	return st.basePath + ".db"
}

func (st *cacheStore) save(l lane.Lane) error {
	if st.dirty.Swap(0) > 0 {
		filename := st.fileName()
		l.Tracef("saving cache to %s", filename)
		if err := st.store().Save(l, filename); err != nil {
			l.Errorf("failed to save cache to %s: %s", filename, err.Error())
			return err
		}
	}
	return nil
}

func (st *cacheStore) store() *treestore.TreeStore {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ts
}

func cacheKey(key string) treestore.StoreKey {
	return treestore.MakeStoreKey(key)
}

func valueBytes(v any) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return nil
	}
}

// get looks up key; counted lookups feed total_gets and miss_ratio, peek
// does not count.
func (st *cacheStore) get(key string, counted bool) (value []byte, found bool) {
	val, _, valExists := st.store().GetKeyValue(cacheKey(key))

	if counted {
		st.totalGets.Add(1)
		if !valExists {
			st.misses.Add(1)
		}
	}

	if !valExists {
		return
	}
	return valueBytes(val), true
}

// set stores value under key. A ttl of 0 means the entry never expires.
func (st *cacheStore) set(key string, value []byte, ttl uint32) error {
	st.mu.Lock()
	maxSize := st.maxSize
	ts := st.ts
	st.mu.Unlock()

	if maxSize > 0 && uint64(len(value)) > maxSize {
		return errValueTooLarge
	}

	ts.SetKeyValueEx(cacheKey(key), value, 0, ttlToExpireNs(ttl), nil)
	st.dirty.Add(1)
	return nil
}

func (st *cacheStore) del(key string) bool {
	removed, _ := st.store().DeleteKeyWithValue(cacheKey(key), true)
	if removed {
		st.dirty.Add(1)
	}
	return removed
}

func (st *cacheStore) has(key string) bool {
	_, _, valExists := st.store().GetKeyValue(cacheKey(key))
	return valExists
}

// setTtl replaces the expiration of an existing entry; 0 removes it.
func (st *cacheStore) setTtl(key string, ttl uint32) bool {
	exists := st.store().SetKeyValueTtl(cacheKey(key), ttlToExpiration(ttl, time.Now()))
	if exists {
		st.dirty.Add(1)
	}
	return exists
}

func (st *cacheStore) size(key string) (size uint64, found bool) {
	value, found := st.get(key, false)
	return uint64(len(value)), found
}

func (st *cacheStore) wipe(l lane.Lane) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.ts = treestore.NewTreeStore(l.Derive(), st.appVersion)
	st.totalGets.Store(0)
	st.misses.Store(0)
	st.dirty.Add(1)
}

func (st *cacheStore) resize(maxSize uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.maxSize = maxSize
}

func (st *cacheStore) setPolicy(policy paper.Policy) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.policy = policy
}

func (st *cacheStore) usedSize() (used uint64) {
	for _, kv := range st.store().GetMatchingKeyValues(allKeys, 0, math.MaxInt32) {
		used += uint64(len(valueBytes(kv.CurrentValue)))
	}
	return
}

func (st *cacheStore) stats() *paper.Stats {
	st.mu.Lock()
	maxSize := st.maxSize
	policy := st.policy
	st.mu.Unlock()

	stats := &paper.Stats{
		MaxSize:   maxSize,
		UsedSize:  st.usedSize(),
		TotalGets: st.totalGets.Load(),
		Policy:    string(policy),
	}

	if stats.TotalGets > 0 {
		stats.MissRatio = float64(st.misses.Load()) / float64(stats.TotalGets)
	}
	return stats
}

// ttlToExpireNs converts seconds to the treestore expiration form, where a
// negative value is relative to now and 0 is no expiration.
func ttlToExpireNs(ttl uint32) int64 {
	if ttl == 0 {
		return 0
	}
	return -int64(time.Duration(ttl) * time.Second)
}

// ttlToExpiration converts seconds to the absolute Unix nanosecond time that
// SetKeyValueTtl takes; 0 is no expiration.
func ttlToExpiration(ttl uint32, now time.Time) int64 {
	if ttl == 0 {
		return 0
	}
	return now.Add(time.Duration(ttl) * time.Second).UnixNano()
}
