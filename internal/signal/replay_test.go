package signal

import (
	"testing"
	"time"
)

func TestReplayCacheAdmitsOnce(t *testing.T) {
	c := newReplayCache(16, time.Minute)
	now := time.Now().UnixNano()
	key := replayKey{entropy: 7, timestamp: now}
	if !c.admit(key, now) {
		t.Fatal("first admission must succeed")
	}
	if c.admit(key, now) {
		t.Fatal("second admission of the same key must fail")
	}
	if !c.seen(key) {
		t.Fatal("admitted key must be visible")
	}
}

func TestReplayCacheDistinguishesKeys(t *testing.T) {
	c := newReplayCache(16, time.Minute)
	now := time.Now().UnixNano()
	if !c.admit(replayKey{entropy: 7, timestamp: now}, now) {
		t.Fatal("first admission must succeed")
	}
	if !c.admit(replayKey{entropy: 8, timestamp: now}, now) {
		t.Fatal("different entropy must be a different key")
	}
	if !c.admit(replayKey{entropy: 7, timestamp: now + 1}, now) {
		t.Fatal("different timestamp must be a different key")
	}
}

func TestReplayCacheNeverEvictsInsideWindow(t *testing.T) {
	c := newReplayCache(2, time.Minute)
	now := time.Now().UnixNano()
	keys := []replayKey{
		{entropy: 1, timestamp: now},
		{entropy: 2, timestamp: now},
		{entropy: 3, timestamp: now},
		{entropy: 4, timestamp: now},
	}
	for _, k := range keys {
		if !c.admit(k, now) {
			t.Fatalf("admission of %+v must succeed", k)
		}
	}
	// Over capacity, but every entry is still inside the temporal window:
	// all must survive, or a replay hole opens.
	for _, k := range keys {
		if !c.seen(k) {
			t.Fatalf("unexpired entry %+v was evicted", k)
		}
	}
}

func TestReplayCacheEvictsExpiredEntries(t *testing.T) {
	c := newReplayCache(2, time.Minute)
	base := time.Now().UnixNano()
	old := replayKey{entropy: 1, timestamp: base}
	if !c.admit(old, base) {
		t.Fatal("admission must succeed")
	}

	later := base + int64(3*time.Minute)
	for i := uint64(2); i <= 4; i++ {
		if !c.admit(replayKey{entropy: i, timestamp: later}, later) {
			t.Fatal("admission must succeed")
		}
	}
	if c.seen(old) {
		t.Fatal("entry far outside the temporal window must age out")
	}
	if c.len() != 3 {
		t.Fatalf("expected 3 live entries, got %d", c.len())
	}
}
