package notification

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/clock"
)

// Counts is a consistent total/unread pair computed from the stored set.
type Counts struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// entry wraps a Record with the reconciliation bookkeeping the UI never sees.
type entry struct {
	rec Record
	// confirmed is set once the record has been observed from a server
	// source (snapshot or push). Unconfirmed local records stay visible but
	// are excluded from the authoritative total.
	confirmed bool
	// readSeq is the store mutation counter value of the last read-state
	// write. Read-state conflicts resolve by highest counter, never by wall
	// clock, so client clock skew cannot reorder mutations.
	readSeq uint64
	// localRead is set when the read flag was last written by a local
	// optimistic action rather than a server observation.
	localRead bool
}

// Store is the in-memory inbox: an insertion-ordered set of records keyed by
// id plus derived counts. It is the sole owner of the record set; the
// channel and the status API mutate it only through these operations.
//
// Reconciliation rules applied on Upsert:
//   - server-sourced data wins on Message/CreatedAt;
//   - read-state resolves last-write-wins on the mutation counter, with the
//     refinement that a server-sourced read=false never rolls back a local
//     optimistic read=true (the best-effort PUT for it may still be in
//     flight);
//   - unknown ids insert, known ids merge, so interleavings of push and
//     fetch deliveries are commutative and duplicates are harmless.
type Store struct {
	clk clock.Clock
	log zerolog.Logger

	mu     sync.Mutex
	order  []string
	byID   map[string]*entry
	seq    uint64
	closed bool
}

// NewStore creates an empty Store.
func NewStore(clk clock.Clock, log zerolog.Logger) *Store {
	return &Store{
		clk:  clk,
		log:  log.With().Str("component", "notification_store").Logger(),
		byID: make(map[string]*entry),
	}
}

// Upsert inserts rec if its id is unseen, otherwise merges it according to
// the reconciliation rules. Idempotent per id; safe to feed the same record
// from both the push topic and a snapshot fetch in any order.
func (s *Store) Upsert(rec Record, origin Origin) {
	if rec.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.seq++
	fromServer := origin == OriginFetched || origin == OriginPushed

	e, ok := s.byID[rec.ID]
	if !ok {
		s.order = append(s.order, rec.ID)
		s.byID[rec.ID] = &entry{
			rec:       rec,
			confirmed: fromServer,
			readSeq:   s.seq,
		}
		return
	}

	if fromServer {
		// Authoritative content always wins.
		e.rec.Message = rec.Message
		if !rec.CreatedAt.IsZero() {
			e.rec.CreatedAt = rec.CreatedAt
		}
		e.confirmed = true

		switch {
		case rec.Read == e.rec.Read:
			// No read-state change.
		case rec.Read:
			// Server confirms the entry was read somewhere.
			e.rec.Read = true
			e.readSeq = s.seq
			e.localRead = false
		case e.localRead:
			// Stale snapshot racing a local optimistic read: the local
			// mutation carries the higher counter, keep read=true.
		default:
			e.rec.Read = false
			e.readSeq = s.seq
		}
		return
	}

	// Local re-upsert of a known id only moves the read flag.
	if rec.Read != e.rec.Read {
		e.rec.Read = rec.Read
		e.readSeq = s.seq
		e.localRead = true
	}
}

// ApplySnapshot feeds every record of a fetched snapshot through Upsert.
// Records missing from the snapshot are kept: this inbox favors over-display
// over silent loss.
func (s *Store) ApplySnapshot(recs []Record) {
	for _, rec := range recs {
		s.Upsert(rec, OriginFetched)
	}
}

// NotifyLocal creates a provisional local record with a generated id. It
// stays visible until (and unless) a matching server record confirms it, but
// never counts toward the authoritative total.
func (s *Store) NotifyLocal(message string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{}, false
	}

	s.seq++
	rec := Record{
		ID:        uuid.NewString(),
		Message:   message,
		CreatedAt: s.clk.Now(),
	}
	s.order = append(s.order, rec.ID)
	s.byID[rec.ID] = &entry{rec: rec, readSeq: s.seq}
	return rec, true
}

// MarkRead sets read=true on the given id. Unknown ids are a no-op, not an
// error: reconciliation may race a UI click on an entry since replaced.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	e, ok := s.byID[id]
	if !ok || e.rec.Read {
		return
	}
	s.seq++
	e.rec.Read = true
	e.readSeq = s.seq
	e.localRead = true
}

// MarkAllRead sets read=true on every entry as one atomic mutation.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.seq++
	for _, e := range s.byID {
		if !e.rec.Read {
			e.rec.Read = true
			e.readSeq = s.seq
			e.localRead = true
		}
	}
}

// List returns copies of all records, newest first.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.byID[s.order[i]].rec)
	}
	return out
}

// Counts computes total/unread fresh from the set. There is no separately
// maintained counter to drift out of sync with membership.
func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countsLocked(false)
}

// AuthoritativeCounts is Counts restricted to server-confirmed records.
func (s *Store) AuthoritativeCounts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countsLocked(true)
}

func (s *Store) countsLocked(confirmedOnly bool) Counts {
	var c Counts
	for _, e := range s.byID {
		if confirmedOnly && !e.confirmed {
			continue
		}
		c.Total++
		if !e.rec.Read {
			c.Unread++
		}
	}
	return c
}

// Close makes every further mutation a no-op. Called on teardown so a late
// channel frame or retry cannot touch state owned by a finished session.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
