package server

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/cop/coptest"
	"github.com/ValentinKolb/dQL/lib/mvcc"
	"github.com/ValentinKolb/dQL/rpc/client"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/ValentinKolb/dQL/rpc/transport/unix"
)

// The end-to-end tests run a real server on a unix socket and drive it
// with the typed client: transactional writes first, queries after.

const (
	testTableID  = int64(1)
	testHandleID = int64(2)
	testCountID  = int64(3)
)

func testTableInfo() *cop.TableInfo {
	return &cop.TableInfo{
		ID: testTableID,
		Columns: []cop.ColumnInfo{
			{ID: testHandleID, Tp: cop.ColTypeInt, PKHandle: true},
			{ID: testCountID, Tp: cop.ColTypeInt},
		},
	}
}

func testFullRange() []cop.KeyRange {
	maxSuffix := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	return []cop.KeyRange{{
		Start: codec.EncodeRowKey(testTableID, -1<<63),
		End:   codec.EncodeRowKeyWithSuffix(testTableID, maxSuffix),
	}}
}

// startServer boots a server on a fresh unix socket and returns a
// connected client. Both are shut down via test cleanup.
func startServer(t *testing.T) *client.RPCClient {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "dql.sock")
	srv := NewRPCServer(
		common.ServerConfig{
			Endpoint:      socket,
			Workers:       2,
			TimeoutSecond: 5,
			LogLevel:      "error",
		},
		unix.NewUnixDefaultServerTransport(),
		serializer.NewBinarySerializer(),
	)
	go func() {
		_ = srv.Serve()
	}()
	t.Cleanup(func() { srv.Close() })

	clientCfg := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{socket},
			RetryCount: 3,
		},
	}

	// The server listens asynchronously, poll until it accepts.
	var c *client.RPCClient
	var err error
	for i := 0; i < 100; i++ {
		c, err = client.NewRPCClient(clientCfg, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect to test server: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// rowMutation builds the primary row entry for one handle.
func rowMutation(handle, count int64) mvcc.Mutation {
	data, err := codec.EncodeRow([]codec.Datum{codec.NewIntDatum(count)}, []int64{testCountID})
	if err != nil {
		panic(err)
	}
	return mvcc.Mutation{Op: mvcc.OpPut, Key: codec.EncodeRowKey(testTableID, handle), Value: data}
}

// seedRows commits one transaction with the given handle -> count rows.
func seedRows(t *testing.T, c *client.RPCClient, startTS, commitTS uint64, rows map[int64]int64) {
	t.Helper()

	var muts []mvcc.Mutation
	for handle, count := range rows {
		muts = append(muts, rowMutation(handle, count))
	}
	keys := make([][]byte, len(muts))
	for i, m := range muts {
		keys[i] = m.Key
	}

	if err := c.Prewrite(muts, muts[0].Key, startTS); err != nil {
		t.Fatalf("prewrite failed: %v", err)
	}
	if err := c.Commit(startTS, commitTS, keys); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
}

// selectAll builds a flat full-table query at the given timestamp.
func selectAll(ts uint64) *cop.Request {
	return &cop.Request{
		Tp:     cop.ReqTypeSelect,
		Select: &cop.SelectRequest{StartTS: ts, TableInfo: testTableInfo()},
		Ranges: testFullRange(),
	}
}

// collectRows decodes all chunk rows into handle -> datums.
func collectRows(t *testing.T, resp *cop.Response) map[int64][]codec.Datum {
	t.Helper()

	if resp.OtherError != "" {
		t.Fatalf("query failed: %s", resp.OtherError)
	}
	if resp.Select == nil {
		t.Fatalf("missing select payload: %+v", resp)
	}

	rows := make(map[int64][]codec.Datum)
	splitter := cop.NewChunkSplitter(resp.Select.Chunks)
	for row := splitter.Next(); row != nil; row = splitter.Next() {
		datums, err := codec.DecodeAll(row.Data)
		if err != nil {
			t.Fatalf("failed to decode row %d: %v", row.Handle, err)
		}
		rows[row.Handle] = datums
	}
	return rows
}

func TestServerQueryRoundTrip(t *testing.T) {
	c := startServer(t)

	seedRows(t, c, 10, 20, map[int64]int64{1: 10, 2: 20, 3: 30, 4: 40})

	t.Run("select all", func(t *testing.T) {
		resp, err := c.Query(selectAll(100))
		if err != nil {
			t.Fatal(err)
		}
		rows := collectRows(t, resp)
		if len(rows) != 4 {
			t.Fatalf("got %d rows, want 4", len(rows))
		}
		for handle, datums := range rows {
			if len(datums) != 2 {
				t.Fatalf("row %d: got %d columns, want 2", handle, len(datums))
			}
			if id := datums[0].Int64(); id != handle {
				t.Errorf("row %d: id column = %d", handle, id)
			}
			if count := datums[1].Int64(); count != handle*10 {
				t.Errorf("row %d: count column = %d, want %d", handle, count, handle*10)
			}
		}
	})

	t.Run("select with filter", func(t *testing.T) {
		req := selectAll(100)
		req.Select.Where = coptest.BinOp(cop.ExprGT, cop.ColumnRefExpr(testCountID), coptest.IntLit(25))
		resp, err := c.Query(req)
		if err != nil {
			t.Fatal(err)
		}
		rows := collectRows(t, resp)
		if len(rows) != 2 {
			t.Fatalf("got %d rows, want 2", len(rows))
		}
		for _, handle := range []int64{3, 4} {
			if _, ok := rows[handle]; !ok {
				t.Errorf("missing row %d", handle)
			}
		}
	})

	t.Run("storage statistics", func(t *testing.T) {
		info, err := c.Info()
		if err != nil {
			t.Fatal(err)
		}
		if info.Keys != 4 {
			t.Errorf("info.Keys = %d, want 4", info.Keys)
		}
		if info.Locks != 0 {
			t.Errorf("info.Locks = %d, want 0", info.Locks)
		}
	})
}

func TestServerLockConflict(t *testing.T) {
	c := startServer(t)

	seedRows(t, c, 10, 20, map[int64]int64{1: 10})

	// Leave an uncommitted lock on handle 2.
	mut := rowMutation(2, 20)
	if err := c.Prewrite([]mvcc.Mutation{mut}, mut.Key, 50); err != nil {
		t.Fatal(err)
	}

	t.Run("later snapshot is blocked", func(t *testing.T) {
		resp, err := c.Query(selectAll(100))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Locked == nil {
			t.Fatalf("expected a locked response, got %+v", resp)
		}
		if string(resp.Locked.Key) != string(mut.Key) {
			t.Errorf("locked key = %x, want %x", resp.Locked.Key, mut.Key)
		}
		if resp.Locked.LockTS != 50 {
			t.Errorf("locked ts = %d, want 50", resp.Locked.LockTS)
		}
	})

	t.Run("earlier snapshot is unaffected", func(t *testing.T) {
		resp, err := c.Query(selectAll(30))
		if err != nil {
			t.Fatal(err)
		}
		rows := collectRows(t, resp)
		if len(rows) != 1 {
			t.Fatalf("got %d rows, want 1", len(rows))
		}
	})

	t.Run("rollback clears the lock", func(t *testing.T) {
		if err := c.Rollback(50, [][]byte{mut.Key}); err != nil {
			t.Fatal(err)
		}
		resp, err := c.Query(selectAll(100))
		if err != nil {
			t.Fatal(err)
		}
		rows := collectRows(t, resp)
		if len(rows) != 1 {
			t.Fatalf("got %d rows after rollback, want 1", len(rows))
		}
	})
}

func TestServerWriteConflict(t *testing.T) {
	c := startServer(t)

	seedRows(t, c, 10, 20, map[int64]int64{1: 10})

	// A prewrite whose start timestamp is below the last commit must be
	// rejected.
	mut := rowMutation(1, 99)
	err := c.Prewrite([]mvcc.Mutation{mut}, mut.Key, 15)
	if err == nil {
		t.Fatal("expected a write conflict")
	}
	if !strings.Contains(err.Error(), "prewrite failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServerBadRequest(t *testing.T) {
	c := startServer(t)

	resp, err := c.Query(&cop.Request{Tp: 999})
	if err != nil {
		t.Fatal(err)
	}
	if resp.OtherError == "" {
		t.Fatalf("expected an error response, got %+v", resp)
	}
}
