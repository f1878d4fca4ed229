package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeyDerivation(t *testing.T) {
	key := SessionKey("ya29.some-access-token")

	// Deterministic and fixed-length.
	assert.Equal(t, key, SessionKey("ya29.some-access-token"))
	assert.Len(t, key, 20)

	// Distinct credentials partition into distinct journals.
	assert.NotEqual(t, key, SessionKey("ya29.other-token"))

	// The credential is not recoverable from the key.
	assert.NotContains(t, "ya29.some-access-token", key)
}

func TestAddEvictsOldestPastCapacity(t *testing.T) {
	store := New(WithCapacity(3))
	defer store.Close()

	for i := 0; i < 4; i++ {
		store.Add("s", NewRecord(TypeCreate, fmt.Sprintf("evt%d", i), RollbackPayload{}))
	}

	records := store.History("s", 10)
	require.Len(t, records, 3)

	// Most-recent-first; evt0 has been evicted.
	assert.Equal(t, "evt3", records[0].EventID)
	assert.Equal(t, "evt2", records[1].EventID)
	assert.Equal(t, "evt1", records[2].EventID)
}

func TestGetLastUnknownSession(t *testing.T) {
	store := New()
	defer store.Close()

	assert.Nil(t, store.GetLast("missing"))
}

func TestGetLastSkipsRolledBackRecords(t *testing.T) {
	store := New()
	defer store.Close()

	older := NewRecord(TypeUpdate, "evt1", RollbackPayload{})
	newer := NewRecord(TypeDelete, "evt2", RollbackPayload{})
	store.Add("s", older)
	store.Add("s", newer)

	last := store.GetLast("s")
	require.NotNil(t, last)
	assert.Equal(t, newer.ID, last.ID)

	store.MarkRolledBack("s", newer.ID)

	last = store.GetLast("s")
	require.NotNil(t, last)
	assert.Equal(t, older.ID, last.ID)

	store.MarkRolledBack("s", older.ID)
	assert.Nil(t, store.GetLast("s"))
}

func TestGetLastReturnsCopy(t *testing.T) {
	store := New()
	defer store.Close()

	store.Add("s", NewRecord(TypeCreate, "evt1", RollbackPayload{}))

	last := store.GetLast("s")
	require.NotNil(t, last)
	last.RolledBack = true

	// Mutating the returned copy must not touch the journal.
	assert.NotNil(t, store.GetLast("s"))
}

func TestMarkRolledBackIdempotent(t *testing.T) {
	store := New()
	defer store.Close()

	record := NewRecord(TypeDelete, "evt1", RollbackPayload{})
	store.Add("s", record)

	store.MarkRolledBack("s", record.ID)
	store.MarkRolledBack("s", record.ID)
	store.MarkRolledBack("s", "no-such-id")
	store.MarkRolledBack("other-session", record.ID)

	records := store.History("s", 1)
	require.Len(t, records, 1)
	assert.True(t, records[0].RolledBack)
	assert.Nil(t, store.GetLast("s"))
}

func TestHistoryLimitIncludesRolledBack(t *testing.T) {
	store := New()
	defer store.Close()

	first := NewRecord(TypeCreate, "evt1", RollbackPayload{})
	store.Add("s", first)
	store.Add("s", NewRecord(TypeUpdate, "evt2", RollbackPayload{}))
	store.MarkRolledBack("s", first.ID)

	records := store.History("s", 10)
	require.Len(t, records, 2)
	assert.Equal(t, "evt2", records[0].EventID)
	assert.True(t, records[1].RolledBack)

	limited := store.History("s", 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "evt2", limited[0].EventID)

	assert.Nil(t, store.History("missing", 10))
}

func TestConcurrentAddAndScan(t *testing.T) {
	store := New(WithCapacity(DefaultCapacity))
	defer store.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.Add("shared", NewRecord(TypeCreate, fmt.Sprintf("w%d-%d", w, i), RollbackPayload{}))
				_ = store.GetLast("shared")
				_ = store.History("shared", 10)
			}
		}(w)
	}
	wg.Wait()

	records := store.History("shared", DefaultCapacity+10)
	assert.Len(t, records, DefaultCapacity)
}

func TestIdleSessionEviction(t *testing.T) {
	store := New(WithSessionTTL(time.Minute))
	defer store.Close()

	store.Add("stale", NewRecord(TypeCreate, "evt1", RollbackPayload{}))
	store.Add("fresh", NewRecord(TypeCreate, "evt2", RollbackPayload{}))
	require.Equal(t, 2, store.Sessions())

	// Backdate the stale session past the TTL, then run one sweep.
	store.mu.Lock()
	store.sessions["stale"].lastAccess = time.Now().Add(-2 * time.Minute)
	store.mu.Unlock()

	store.evictOnce(time.Now())

	assert.Equal(t, 1, store.Sessions())
	assert.Nil(t, store.GetLast("stale"))
	assert.NotNil(t, store.GetLast("fresh"))
}

func TestNoTTLMeansNoJanitor(t *testing.T) {
	store := New()
	defer store.Close()

	assert.Nil(t, store.janitorTicker)
}

func TestNewRecordFields(t *testing.T) {
	before := time.Now().UTC()
	record := NewRecord(TypeUpdate, "evt9", RollbackPayload{})

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, TypeUpdate, record.ActionType)
	assert.Equal(t, "evt9", record.EventID)
	assert.False(t, record.RolledBack)
	assert.False(t, record.Timestamp.Before(before.Add(-time.Second)))

	other := NewRecord(TypeUpdate, "evt9", RollbackPayload{})
	assert.NotEqual(t, record.ID, other.ID)
}
