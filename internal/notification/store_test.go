package notification

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parikshasetu/portal-agent/internal/clock"
)

var storeStart = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(clock.NewManual(storeStart), zerolog.Nop())
}

func rec(id string, read bool) Record {
	return Record{ID: id, Message: "msg-" + id, Read: read, CreatedAt: storeStart}
}

func TestStore_UpsertInsertAndMerge(t *testing.T) {
	s := newTestStore(t)

	s.Upsert(rec("1", false), OriginPushed)
	assert.Equal(t, Counts{Total: 1, Unread: 1}, s.Counts())

	// Same id from the snapshot side: merged, not duplicated.
	s.Upsert(rec("1", false), OriginFetched)
	assert.Equal(t, Counts{Total: 1, Unread: 1}, s.Counts())

	// Server-confirmed content wins.
	updated := rec("1", false)
	updated.Message = "corrected"
	s.Upsert(updated, OriginFetched)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "corrected", list[0].Message)
}

func TestStore_CountsAlwaysDerived(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		s.Upsert(rec(fmt.Sprintf("%d", i), i >= 3), OriginFetched)
	}
	// 5 total, ids 0..2 unread.
	assert.Equal(t, Counts{Total: 5, Unread: 3}, s.Counts())

	s.MarkRead("0")
	assert.Equal(t, Counts{Total: 5, Unread: 2}, s.Counts())

	s.MarkAllRead()
	assert.Equal(t, Counts{Total: 5, Unread: 0}, s.Counts())
}

func TestStore_MarkReadUnknownIDIsNoOp(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(rec("1", false), OriginPushed)

	s.MarkRead("does-not-exist")
	assert.Equal(t, Counts{Total: 1, Unread: 1}, s.Counts())
}

// A stale snapshot racing a local optimistic read must not flicker the entry
// back to unread; a later snapshot confirming the read is adopted.
func TestStore_OptimisticReadSurvivesStaleSnapshot(t *testing.T) {
	s := newTestStore(t)

	s.Upsert(rec("1", false), OriginPushed)
	s.MarkRead("1")
	require.Equal(t, Counts{Total: 1, Unread: 0}, s.Counts())

	// Stale server view still says unread.
	s.ApplySnapshot([]Record{rec("1", false)})
	assert.Equal(t, Counts{Total: 1, Unread: 0}, s.Counts(), "stale snapshot rolled back an optimistic read")

	// Server catches up.
	s.ApplySnapshot([]Record{rec("1", true)})
	assert.Equal(t, Counts{Total: 1, Unread: 0}, s.Counts())
}

func TestStore_ServerReadStateAdopted(t *testing.T) {
	s := newTestStore(t)

	// Read elsewhere (another device): server truth wins.
	s.Upsert(rec("1", false), OriginPushed)
	s.ApplySnapshot([]Record{rec("1", true)})
	assert.Equal(t, Counts{Total: 1, Unread: 0}, s.Counts())

	// Never locally touched: server may also move it back.
	s.ApplySnapshot([]Record{rec("1", false)})
	assert.Equal(t, Counts{Total: 1, Unread: 1}, s.Counts())
}

// Push and fetch deliveries of the same logical updates produce the same
// store regardless of interleaving.
func TestStore_UpsertCommutative(t *testing.T) {
	records := []Record{rec("a", false), rec("b", true), rec("c", false)}

	forward := newTestStore(t)
	forward.ApplySnapshot(records)
	for _, r := range records {
		forward.Upsert(r, OriginPushed)
	}

	reversed := newTestStore(t)
	for i := len(records) - 1; i >= 0; i-- {
		reversed.Upsert(records[i], OriginPushed)
	}
	reversed.ApplySnapshot(records)

	assert.Equal(t, forward.Counts(), reversed.Counts())
	assert.ElementsMatch(t, forward.List(), reversed.List())
}

func TestStore_LocalOptimisticEntries(t *testing.T) {
	s := newTestStore(t)

	s.Upsert(rec("1", false), OriginFetched)
	local, ok := s.NotifyLocal("exam submitted")
	require.True(t, ok)
	assert.NotEmpty(t, local.ID)
	assert.Equal(t, storeStart, local.CreatedAt)

	// Visible to the UI, excluded from the authoritative total.
	assert.Equal(t, Counts{Total: 2, Unread: 2}, s.Counts())
	assert.Equal(t, Counts{Total: 1, Unread: 1}, s.AuthoritativeCounts())

	// Confirmation by id upgrades it.
	s.Upsert(Record{ID: local.ID, Message: local.Message, CreatedAt: storeStart}, OriginFetched)
	assert.Equal(t, Counts{Total: 2, Unread: 2}, s.AuthoritativeCounts())

	// Never forcibly deleted by snapshots that omit it.
	s.ApplySnapshot([]Record{rec("1", false)})
	assert.Equal(t, Counts{Total: 2, Unread: 2}, s.Counts())
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(rec("old", false), OriginFetched)
	s.Upsert(rec("new", false), OriginPushed)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestStore_MarkAllReadAtomic(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		s.Upsert(rec(fmt.Sprintf("%d", i), false), OriginPushed)
	}
	s.MarkAllRead()

	for _, r := range s.List() {
		assert.True(t, r.Read)
	}

	// Stale snapshot after the bulk mark: reads stay.
	s.ApplySnapshot([]Record{rec("0", false), rec("1", false), rec("2", false)})
	assert.Equal(t, Counts{Total: 3, Unread: 0}, s.Counts())
}

func TestStore_CloseFreezesState(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(rec("1", false), OriginPushed)
	s.Close()

	s.Upsert(rec("2", false), OriginPushed)
	s.MarkRead("1")
	s.MarkAllRead()
	_, ok := s.NotifyLocal("late")

	assert.False(t, ok)
	assert.Equal(t, Counts{Total: 1, Unread: 1}, s.Counts())
}

func TestStore_EmptyIDIgnored(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(Record{Message: "no id"}, OriginPushed)
	assert.Equal(t, Counts{}, s.Counts())
}
