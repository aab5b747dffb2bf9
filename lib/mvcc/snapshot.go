package mvcc

import (
	"bytes"
)

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// Snapshot is a consistent read view of the store fixed at a start
// timestamp. It observes every version committed at or before its
// timestamp. A key whose newest state is an uncommitted lock with a lock
// timestamp at or below the snapshot timestamp reads as ErrKeyLocked.
//
// Snapshots never mutate the store.
type Snapshot struct {
	store *Store
	ts    uint64
}

// Snapshot creates a read view at ts.
func (s *Store) Snapshot(ts uint64) *Snapshot {
	return &Snapshot{store: s, ts: ts}
}

// TS returns the snapshot's read timestamp.
func (s *Snapshot) TS() uint64 { return s.ts }

// readEntry resolves one entry under the snapshot's timestamp. The bool
// reports whether a live value exists.
func (s *Snapshot) readEntry(e *entry) ([]byte, bool, error) {
	if e.lock != nil && e.lock.StartTS <= s.ts {
		return nil, false, &ErrKeyLocked{
			Key:     append([]byte(nil), e.key...),
			Primary: append([]byte(nil), e.lock.Primary...),
			StartTS: e.lock.StartTS,
		}
	}
	for _, v := range e.versions {
		if v.commitTS > s.ts {
			continue
		}
		if v.tombstone {
			return nil, false, nil
		}
		return v.value, true, nil
	}
	return nil, false, nil
}

// Get reads the value of key visible at the snapshot timestamp. The bool
// reports whether a value exists.
func (s *Snapshot) Get(key []byte) ([]byte, bool, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	e, ok := s.store.tree.Get(&entry{key: key})
	if !ok {
		return nil, false, nil
	}
	return s.readEntry(e)
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

// Pair is one key-value result of a range scan.
type Pair struct {
	Key   []byte
	Value []byte
}

// Iterator walks the keys of a [start, end) range in one direction. It
// is lazy, forward-only and not restartable.
type Iterator struct {
	snap    *Snapshot
	next    []byte // cursor for the next step, nil once exhausted
	start   []byte
	end     []byte
	reverse bool
}

// Scan creates an iterator over the [start, end) byte-key interval in
// ascending key order.
func (s *Snapshot) Scan(start, end []byte) *Iterator {
	return &Iterator{
		snap: s,
		next: append([]byte(nil), start...),
		end:  append([]byte(nil), end...),
	}
}

// ScanReverse creates an iterator over the [start, end) byte-key
// interval in descending key order.
func (s *Snapshot) ScanReverse(start, end []byte) *Iterator {
	return &Iterator{
		snap:    s,
		next:    append([]byte(nil), end...),
		start:   append([]byte(nil), start...),
		end:     append([]byte(nil), end...),
		reverse: true,
	}
}

// Next returns the next visible pair, or nil once the range is exhausted.
// An uncommitted lock inside the range stops the scan with ErrKeyLocked.
func (it *Iterator) Next() (*Pair, error) {
	for it.next != nil {
		pair, err := it.step()
		if err != nil {
			it.next = nil
			return nil, err
		}
		if pair != nil {
			return pair, nil
		}
		if it.next == nil {
			break
		}
	}
	return nil, nil
}

// step advances to the next entry in range. A nil pair with nil error
// means the entry held no visible value (tombstone or too new).
func (it *Iterator) step() (*Pair, error) {
	it.snap.store.mu.RLock()
	defer it.snap.store.mu.RUnlock()

	var found *entry
	if it.reverse {
		// keys strictly below the cursor, at or above start
		it.snap.store.tree.DescendLessOrEqual(&entry{key: it.next}, func(e *entry) bool {
			if bytes.Compare(e.key, it.next) >= 0 {
				return true
			}
			if bytes.Compare(e.key, it.start) < 0 {
				return false
			}
			found = e
			return false
		})
		if found == nil {
			it.next = nil
			return nil, nil
		}
		it.next = append([]byte(nil), found.key...)
	} else {
		it.snap.store.tree.AscendGreaterOrEqual(&entry{key: it.next}, func(e *entry) bool {
			if len(it.end) > 0 && bytes.Compare(e.key, it.end) >= 0 {
				return false
			}
			found = e
			return false
		})
		if found == nil {
			it.next = nil
			return nil, nil
		}
		// resume strictly after this key
		it.next = append(append([]byte(nil), found.key...), 0x00)
	}

	value, ok, err := it.snap.readEntry(found)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Pair{
		Key:   append([]byte(nil), found.key...),
		Value: append([]byte(nil), value...),
	}, nil
}
