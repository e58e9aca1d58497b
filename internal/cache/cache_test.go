package cache

import (
	"fmt"
	"testing"
	"time"
)

type testVal struct {
	id   int64
	name string
}

func (v testVal) CacheID() int64     { return v.id }
func (v testVal) CacheName() string  { return v.name }

func TestGetMissOnExpiry(t *testing.T) {
	c := New[testVal](WithDefaultTTL[testVal](10 * time.Millisecond))
	c.Add(testVal{id: 1, name: "a"})

	if _, ok := c.Get(1); !ok {
		t.Fatalf("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(1); ok {
		t.Fatalf("expected miss after expiry")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed as a side effect of Get, size=%d", c.Size())
	}
}

func TestAddEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[testVal](WithCapacity[testVal](2))
	c.Add(testVal{id: 1, name: "a"})
	c.Add(testVal{id: 2, name: "b"})

	// touch 1 so 2 becomes the LRU entry
	c.Get(1)

	c.Add(testVal{id: 3, name: "c"})

	if _, ok := c.Get(2); ok {
		t.Fatalf("expected id=2 to be evicted as least-recently-used")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatalf("expected id=1 to survive eviction")
	}
	if _, ok := c.Get(3); !ok {
		t.Fatalf("expected id=3 to be present")
	}
}

func TestFindByName(t *testing.T) {
	c := New[testVal]()
	c.Add(testVal{id: 1, name: "alpha"})

	v, ok := c.Find("alpha")
	if !ok || v.id != 1 {
		t.Fatalf("Find(alpha) = %v, %v", v, ok)
	}

	c.Remove(1)
	if _, ok := c.Find("alpha"); ok {
		t.Fatalf("expected name index to be cleaned up on Remove")
	}
}

func TestTrueSizeSweepsExpired(t *testing.T) {
	c := New[testVal](WithDefaultTTL[testVal](5 * time.Millisecond))
	c.Add(testVal{id: 1, name: "a"})
	c.Add(testVal{id: 2, name: "b"})

	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}

	time.Sleep(15 * time.Millisecond)

	if got := c.TrueSize(); got != 0 {
		t.Fatalf("TrueSize() = %d, want 0", got)
	}
}

func TestWithIDListCachingLoadsOnlyMisses(t *testing.T) {
	c := New[testVal]()
	c.Add(testVal{id: 1, name: "a"})

	var loadedIDs []int64
	loadFn := func(missing []int64) ([]testVal, error) {
		loadedIDs = append(loadedIDs, missing...)
		out := make([]testVal, len(missing))
		for i, id := range missing {
			out[i] = testVal{id: id, name: fmt.Sprintf("n%d", id)}
		}
		return out, nil
	}

	result, err := WithIDListCaching(c, []int64{1, 2, 3}, loadFn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("len(result) = %d, want 3", len(result))
	}
	if len(loadedIDs) != 2 || loadedIDs[0] != 2 || loadedIDs[1] != 3 {
		t.Fatalf("loadFn called with %v, want [2 3]", loadedIDs)
	}
	for _, id := range []int64{2, 3} {
		if !c.IsCached(id) {
			t.Fatalf("expected id=%d to be cached after load", id)
		}
	}
}

func TestWithCacheIDDeletionInvalidatesBeforeRunning(t *testing.T) {
	c := New[testVal]()
	c.Add(testVal{id: 1, name: "a"})

	err := WithCacheIDDeletion(c, []int64{1}, func() error {
		if c.IsCached(1) {
			t.Fatalf("expected id=1 to be invalidated before fn runs")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOSMCacheVersioning(t *testing.T) {
	oc := NewOSMCache(10, time.Hour)
	key := OSMKey{Type: OSMNode, ID: 42}

	oc.Put(key, OSMVersion{Version: 1, Tags: map[string]string{"highway": "residential"}})
	oc.Put(key, OSMVersion{Version: 2, Tags: map[string]string{"highway": "residential", "surface": "asphalt"}})

	latest, ok := oc.Latest(key)
	if !ok || latest.Version != 2 {
		t.Fatalf("Latest() = %+v, %v, want version 2", latest, ok)
	}

	v1, ok := oc.Version(key, 1)
	if !ok || v1.Tags["surface"] != "" {
		t.Fatalf("Version(1) = %+v, %v, want original tags without surface", v1, ok)
	}
}

func TestOSMCacheSweepExpired(t *testing.T) {
	oc := NewOSMCache(10, 5*time.Millisecond)
	key := OSMKey{Type: OSMWay, ID: 7}
	oc.Put(key, OSMVersion{Version: 1})

	time.Sleep(15 * time.Millisecond)

	if evicted := oc.Sweep(); evicted != 1 {
		t.Fatalf("Sweep() evicted %d, want 1", evicted)
	}
	if _, ok := oc.Latest(key); ok {
		t.Fatalf("expected key to be gone after sweep")
	}
}
