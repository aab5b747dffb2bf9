package mvcc

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dQL/lib/util"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("mvcc")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Op identifies the kind of a mutation.
type Op uint8

const (
	OpPut Op = iota
	OpDelete
)

// Mutation is one key change inside a prewrite.
type Mutation struct {
	Op    Op
	Key   []byte
	Value []byte
}

// Lock is the uncommitted-write marker a prewrite places on a key.
type Lock struct {
	StartTS uint64
	Primary []byte
	Op      Op
	Value   []byte
}

// version is one committed value of a key, tombstone for deletes.
type version struct {
	commitTS  uint64
	startTS   uint64
	value     []byte
	tombstone bool
}

// entry is the full version chain of one key, newest version first.
type entry struct {
	key      []byte
	lock     *Lock
	versions []version
}

func entryLess(a, b *entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// ErrKeyLocked reports that a read or prewrite ran into an uncommitted
// lock held by another transaction.
type ErrKeyLocked struct {
	Key     []byte
	Primary []byte
	StartTS uint64
}

func (e *ErrKeyLocked) Error() string {
	return fmt.Sprintf("key %q is locked by transaction %d (primary %q)", e.Key, e.StartTS, e.Primary)
}

// ErrWriteConflict reports that a key was committed after the prewriting
// transaction's start timestamp.
type ErrWriteConflict struct {
	Key      []byte
	StartTS  uint64
	CommitTS uint64
}

func (e *ErrWriteConflict) Error() string {
	return fmt.Sprintf("write conflict on key %q: committed at %d after start ts %d", e.Key, e.CommitTS, e.StartTS)
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// StoreInfo is a point-in-time statistics summary of the store.
type StoreInfo struct {
	Keys             int   `json:"keys"`
	Locks            int   `json:"locks"`
	Versions         int64 `json:"versions"`
	AvgValueSize     int   `json:"avg_value_size"`
	P95ValueSizeEst  int   `json:"p95_value_size_est"`
	ValueSizeSamples int64 `json:"value_size_samples"`
}

// Store is an in-memory multi-versioned key-value store with a two-phase
// write protocol.
//
// Thread-safety: all methods are safe for concurrent use. Snapshots taken
// from the store remain consistent while later writes proceed, because a
// snapshot only observes versions at or below its timestamp and commits
// only ever add newer versions.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*entry]
	hist *util.SizeHistogram
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tree: btree.NewG(16, entryLess),
		hist: util.NewSizeHistogram(),
	}
}

// getOrCreate returns the entry for key, inserting an empty one if needed.
// Caller must hold the write lock.
func (s *Store) getOrCreate(key []byte) *entry {
	probe := &entry{key: key}
	if e, ok := s.tree.Get(probe); ok {
		return e
	}
	e := &entry{key: append([]byte(nil), key...)}
	s.tree.ReplaceOrInsert(e)
	return e
}

// Prewrite places locks for every mutation of a transaction. primary is
// the transaction's anchor key. On any conflict no lock of this call is
// kept.
func (s *Store) Prewrite(muts []Mutation, primary []byte, startTS uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// conflict check first so a failed prewrite leaves no partial locks
	for _, m := range muts {
		probe := &entry{key: m.Key}
		e, ok := s.tree.Get(probe)
		if !ok {
			continue
		}
		if e.lock != nil && e.lock.StartTS != startTS {
			return &ErrKeyLocked{
				Key:     append([]byte(nil), m.Key...),
				Primary: append([]byte(nil), e.lock.Primary...),
				StartTS: e.lock.StartTS,
			}
		}
		if len(e.versions) > 0 && e.versions[0].commitTS >= startTS {
			return &ErrWriteConflict{
				Key:      append([]byte(nil), m.Key...),
				StartTS:  startTS,
				CommitTS: e.versions[0].commitTS,
			}
		}
	}

	for _, m := range muts {
		e := s.getOrCreate(m.Key)
		e.lock = &Lock{
			StartTS: startTS,
			Primary: append([]byte(nil), primary...),
			Op:      m.Op,
			Value:   append([]byte(nil), m.Value...),
		}
	}
	log.Debugf("prewrite ts=%d locked %d keys", startTS, len(muts))
	return nil
}

// Commit turns the locks of transaction startTS on the given keys into
// committed versions at commitTS.
func (s *Store) Commit(startTS, commitTS uint64, keys [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		probe := &entry{key: key}
		e, ok := s.tree.Get(probe)
		if !ok || e.lock == nil || e.lock.StartTS != startTS {
			return fmt.Errorf("commit ts=%d: key %q is not locked by this transaction", startTS, key)
		}
	}

	for _, key := range keys {
		e, _ := s.tree.Get(&entry{key: key})
		v := version{
			commitTS:  commitTS,
			startTS:   startTS,
			value:     e.lock.Value,
			tombstone: e.lock.Op == OpDelete,
		}
		e.versions = append([]version{v}, e.versions...)
		e.lock = nil
		if !v.tombstone {
			s.hist.AddSample(len(v.value))
		}
	}
	log.Debugf("commit ts=%d..%d for %d keys", startTS, commitTS, len(keys))
	return nil
}

// Rollback removes the locks transaction startTS holds on the given keys.
func (s *Store) Rollback(startTS uint64, keys [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if e, ok := s.tree.Get(&entry{key: key}); ok && e.lock != nil && e.lock.StartTS == startTS {
			e.lock = nil
		}
	}
}

// Info returns current store statistics.
func (s *Store) Info() StoreInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := StoreInfo{
		Keys:             s.tree.Len(),
		AvgValueSize:     s.hist.AverageSize(),
		P95ValueSizeEst:  s.hist.GetPercentileEstimate(95),
		ValueSizeSamples: s.hist.GetCount(),
	}
	s.tree.Ascend(func(e *entry) bool {
		if e.lock != nil {
			info.Locks++
		}
		info.Versions += int64(len(e.versions))
		return true
	})
	return info
}
