package mvcc

import (
	"testing"
)

func put(t *testing.T, s *Store, startTS, commitTS uint64, key, value string) {
	t.Helper()
	muts := []Mutation{{Op: OpPut, Key: []byte(key), Value: []byte(value)}}
	if err := s.Prewrite(muts, []byte(key), startTS); err != nil {
		t.Fatalf("prewrite %q: %v", key, err)
	}
	if err := s.Commit(startTS, commitTS, [][]byte{[]byte(key)}); err != nil {
		t.Fatalf("commit %q: %v", key, err)
	}
}

func del(t *testing.T, s *Store, startTS, commitTS uint64, key string) {
	t.Helper()
	muts := []Mutation{{Op: OpDelete, Key: []byte(key)}}
	if err := s.Prewrite(muts, []byte(key), startTS); err != nil {
		t.Fatalf("prewrite delete %q: %v", key, err)
	}
	if err := s.Commit(startTS, commitTS, [][]byte{[]byte(key)}); err != nil {
		t.Fatalf("commit delete %q: %v", key, err)
	}
}

func TestSnapshotGet(t *testing.T) {
	s := NewStore()
	put(t, s, 1, 2, "a", "v1")
	put(t, s, 3, 4, "a", "v2")

	t.Run("reads newest visible version", func(t *testing.T) {
		v, ok, err := s.Snapshot(10).Get([]byte("a"))
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		if string(v) != "v2" {
			t.Fatalf("got %q", v)
		}
	})

	t.Run("old snapshot reads old version", func(t *testing.T) {
		v, ok, err := s.Snapshot(2).Get([]byte("a"))
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		if string(v) != "v1" {
			t.Fatalf("got %q", v)
		}
	})

	t.Run("snapshot before first commit sees nothing", func(t *testing.T) {
		_, ok, err := s.Snapshot(1).Get([]byte("a"))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatal("version committed at ts 2 should be invisible at ts 1")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := s.Snapshot(10).Get([]byte("nope"))
		if err != nil || ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
	})
}

func TestTombstones(t *testing.T) {
	s := NewStore()
	put(t, s, 1, 2, "a", "v1")
	del(t, s, 3, 4, "a")

	if _, ok, _ := s.Snapshot(10).Get([]byte("a")); ok {
		t.Fatal("deleted key should be invisible after the delete commits")
	}
	if v, ok, _ := s.Snapshot(3).Get([]byte("a")); !ok || string(v) != "v1" {
		t.Fatal("snapshot before the delete should still see the value")
	}
}

func TestLockVisibility(t *testing.T) {
	s := NewStore()
	put(t, s, 1, 2, "a", "v1")

	// uncommitted write by transaction 5
	muts := []Mutation{{Op: OpPut, Key: []byte("a"), Value: []byte("v2")}}
	if err := s.Prewrite(muts, []byte("a"), 5); err != nil {
		t.Fatal(err)
	}

	t.Run("later snapshot is blocked", func(t *testing.T) {
		_, _, err := s.Snapshot(10).Get([]byte("a"))
		locked, ok := err.(*ErrKeyLocked)
		if !ok {
			t.Fatalf("expected *ErrKeyLocked, got %v", err)
		}
		if locked.StartTS != 5 || string(locked.Primary) != "a" {
			t.Fatalf("lock details: %+v", locked)
		}
	})

	t.Run("earlier snapshot is not blocked", func(t *testing.T) {
		v, ok, err := s.Snapshot(4).Get([]byte("a"))
		if err != nil || !ok || string(v) != "v1" {
			t.Fatalf("v=%q ok=%v err=%v", v, ok, err)
		}
	})

	t.Run("conflicting prewrite is rejected", func(t *testing.T) {
		err := s.Prewrite(muts, []byte("a"), 6)
		if _, ok := err.(*ErrKeyLocked); !ok {
			t.Fatalf("expected *ErrKeyLocked, got %v", err)
		}
	})

	t.Run("rollback releases the lock", func(t *testing.T) {
		s.Rollback(5, [][]byte{[]byte("a")})
		v, ok, err := s.Snapshot(10).Get([]byte("a"))
		if err != nil || !ok || string(v) != "v1" {
			t.Fatalf("v=%q ok=%v err=%v", v, ok, err)
		}
	})
}

func TestWriteConflict(t *testing.T) {
	s := NewStore()
	put(t, s, 5, 6, "a", "v1")

	muts := []Mutation{{Op: OpPut, Key: []byte("a"), Value: []byte("v2")}}
	err := s.Prewrite(muts, []byte("a"), 4)
	if _, ok := err.(*ErrWriteConflict); !ok {
		t.Fatalf("expected *ErrWriteConflict, got %v", err)
	}
}

func TestScan(t *testing.T) {
	s := NewStore()
	put(t, s, 1, 2, "b", "1")
	put(t, s, 3, 4, "d", "2")
	put(t, s, 5, 6, "f", "3")
	del(t, s, 7, 8, "d")

	collect := func(ts uint64, start, end string) []string {
		t.Helper()
		it := s.Snapshot(ts).Scan([]byte(start), []byte(end))
		var keys []string
		for {
			pair, err := it.Next()
			if err != nil {
				t.Fatal(err)
			}
			if pair == nil {
				return keys
			}
			keys = append(keys, string(pair.Key))
		}
	}

	t.Run("ascending order", func(t *testing.T) {
		got := collect(6, "a", "z")
		want := []string{"b", "d", "f"}
		if len(got) != len(want) {
			t.Fatalf("got %v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("tombstone hides key", func(t *testing.T) {
		got := collect(10, "a", "z")
		if len(got) != 2 || got[0] != "b" || got[1] != "f" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("range bounds", func(t *testing.T) {
		got := collect(6, "b", "f")
		if len(got) != 2 || got[0] != "b" || got[1] != "d" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("reverse order", func(t *testing.T) {
		it := s.Snapshot(6).ScanReverse([]byte("a"), []byte("z"))
		var keys []string
		for {
			pair, err := it.Next()
			if err != nil {
				t.Fatal(err)
			}
			if pair == nil {
				break
			}
			keys = append(keys, string(pair.Key))
		}
		if len(keys) != 3 || keys[0] != "f" || keys[1] != "d" || keys[2] != "b" {
			t.Fatalf("got %v", keys)
		}
	})

	t.Run("lock stops the scan", func(t *testing.T) {
		muts := []Mutation{{Op: OpPut, Key: []byte("c"), Value: []byte("x")}}
		if err := s.Prewrite(muts, []byte("c"), 9); err != nil {
			t.Fatal(err)
		}
		defer s.Rollback(9, [][]byte{[]byte("c")})

		it := s.Snapshot(10).Scan([]byte("a"), []byte("z"))
		pair, err := it.Next()
		if err != nil || string(pair.Key) != "b" {
			t.Fatalf("pair=%v err=%v", pair, err)
		}
		_, err = it.Next()
		if _, ok := err.(*ErrKeyLocked); !ok {
			t.Fatalf("expected *ErrKeyLocked, got %v", err)
		}
		// iterator is dead after the error
		if pair, err := it.Next(); pair != nil || err != nil {
			t.Fatal("iterator should stay exhausted after a lock error")
		}
	})
}

func TestStoreInfo(t *testing.T) {
	s := NewStore()
	put(t, s, 1, 2, "a", "hello")
	put(t, s, 3, 4, "a", "world")
	put(t, s, 5, 6, "b", "x")

	info := s.Info()
	if info.Keys != 2 || info.Versions != 3 || info.Locks != 0 {
		t.Fatalf("info: %+v", info)
	}
	if info.ValueSizeSamples != 3 || info.AvgValueSize == 0 {
		t.Fatalf("histogram not wired: %+v", info)
	}
}
