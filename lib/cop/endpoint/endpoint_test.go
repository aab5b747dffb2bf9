package endpoint

import (
	"math"
	"strings"
	"testing"

	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/cop/coptest"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

type productRow struct {
	handle int64
	name   codec.Datum
	count  int64
}

func productData() []productRow {
	return []productRow{
		{1, codec.NewStringDatum("name:0"), 2},
		{2, codec.NewStringDatum("name:3"), 3},
		{4, codec.NewStringDatum("name:0"), 1},
		{5, codec.NewStringDatum("name:5"), 4},
		{6, codec.NewStringDatum("name:5"), 4},
		{7, codec.Datum{}, 4},
	}
}

func rowValues(tbl *coptest.Table, r productRow) map[int64]codec.Datum {
	return map[int64]codec.Datum{
		tbl.Col("id"):    codec.NewIntDatum(r.handle),
		tbl.Col("name"):  r.name,
		tbl.Col("count"): codec.NewIntDatum(r.count),
	}
}

// seededProduct commits the standard product rows and returns the store,
// table and a ready handler.
func seededProduct(t *testing.T) (*coptest.Store, *coptest.Table, *Handler) {
	t.Helper()
	store := coptest.NewStore()
	tbl := coptest.ProductTable()
	store.Begin()
	for _, r := range productData() {
		if err := store.Insert(tbl, r.handle, rowValues(tbl, r)); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Commit(); err != nil {
		t.Fatal(err)
	}
	return store, tbl, NewHandler(store.MVCC)
}

// collectRows decodes every response row into its datums.
func collectRows(t *testing.T, resp *cop.Response) ([]int64, [][]codec.Datum) {
	t.Helper()
	if resp.OtherError != "" {
		t.Fatalf("request failed: %s", resp.OtherError)
	}
	if resp.Locked != nil {
		t.Fatalf("request blocked by lock: %+v", resp.Locked)
	}
	var handles []int64
	var rows [][]codec.Datum
	splitter := cop.NewChunkSplitter(resp.Select.Chunks)
	for {
		row := splitter.Next()
		if row == nil {
			return handles, rows
		}
		datums, err := codec.DecodeAll(row.Data)
		if err != nil {
			t.Fatalf("row decode: %v", err)
		}
		handles = append(handles, row.Handle)
		rows = append(rows, datums)
	}
}

func wantHandles(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got handles %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got handles %v, want %v", got, want)
		}
	}
}

// --------------------------------------------------------------------------
// Flat shape
// --------------------------------------------------------------------------

func TestSelectAll(t *testing.T) {
	_, tbl, h := seededProduct(t)

	handles, rows := collectRows(t, h.Handle(coptest.Select(tbl).Build()))
	wantHandles(t, handles, 1, 2, 4, 5, 6, 7)

	for i, r := range productData() {
		// output columns are (id, name, count) in declaration order
		if rows[i][0].Int64() != r.handle {
			t.Fatalf("row %d: id %s", i, rows[i][0])
		}
		if rows[i][1].Compare(r.name) != 0 {
			t.Fatalf("row %d: name %s", i, rows[i][1])
		}
		if rows[i][2].Int64() != r.count {
			t.Fatalf("row %d: count %s", i, rows[i][2])
		}
	}
}

func TestSelectWhere(t *testing.T) {
	_, tbl, h := seededProduct(t)

	req := coptest.Select(tbl).
		Where(coptest.BinOp(cop.ExprEQ,
			cop.ColumnRefExpr(tbl.Col("name")), coptest.StrLit("name:0"))).
		Build()
	handles, _ := collectRows(t, h.Handle(req))
	wantHandles(t, handles, 1, 4)
}

func TestSelectLimit(t *testing.T) {
	_, tbl, h := seededProduct(t)

	t.Run("truncates", func(t *testing.T) {
		handles, _ := collectRows(t, h.Handle(coptest.Select(tbl).Limit(5).Build()))
		wantHandles(t, handles, 1, 2, 4, 5, 6)
	})

	t.Run("zero", func(t *testing.T) {
		handles, _ := collectRows(t, h.Handle(coptest.Select(tbl).Limit(0).Build()))
		wantHandles(t, handles)
	})

	t.Run("huge limit returns all", func(t *testing.T) {
		handles, _ := collectRows(t, h.Handle(coptest.Select(tbl).Limit(math.MaxInt64).Build()))
		wantHandles(t, handles, 1, 2, 4, 5, 6, 7)
	})
}

func TestSelectReverse(t *testing.T) {
	_, tbl, h := seededProduct(t)

	handles, _ := collectRows(t, h.Handle(coptest.Select(tbl).Limit(5).Desc().Build()))
	wantHandles(t, handles, 7, 6, 5, 4, 2)
}

func TestOrderBy(t *testing.T) {
	_, tbl, h := seededProduct(t)

	t.Run("composite order with limit", func(t *testing.T) {
		req := coptest.Select(tbl).
			OrderBy("count", true).
			OrderBy("name", false).
			Limit(5).
			Build()
		handles, _ := collectRows(t, h.Handle(req))
		// count desc, name asc with null first, ties by arrival
		wantHandles(t, handles, 7, 5, 6, 2, 1)
	})

	t.Run("order without limit sorts everything", func(t *testing.T) {
		req := coptest.Select(tbl).OrderBy("count", false).Build()
		handles, _ := collectRows(t, h.Handle(req))
		if len(handles) != 6 || handles[0] != 4 {
			t.Fatalf("got %v", handles)
		}
	})
}

func TestOrderByPKWithSelectFromIndex(t *testing.T) {
	_, tbl, h := seededProduct(t)

	req := coptest.IndexSelect(tbl, tbl.Index("name")).
		OrderByPK(true).
		Limit(5).
		Build()
	handles, _ := collectRows(t, h.Handle(req))
	wantHandles(t, handles, 7, 6, 5, 4, 2)
}

func TestGroupBy(t *testing.T) {
	_, tbl, h := seededProduct(t)

	req := coptest.Select(tbl).GroupBy("name").Build()
	_, rows := collectRows(t, h.Handle(req))

	wantKeys := []codec.Datum{
		codec.NewStringDatum("name:0"),
		codec.NewStringDatum("name:3"),
		codec.NewStringDatum("name:5"),
		{},
	}
	if len(rows) != len(wantKeys) {
		t.Fatalf("got %d groups", len(rows))
	}
	for i, want := range wantKeys {
		key, err := codec.EncodeValue(nil, want)
		if err != nil {
			t.Fatal(err)
		}
		if string(rows[i][0].Bytes()) != string(key) {
			t.Fatalf("group %d has unexpected key", i)
		}
	}
}

func TestAggrCount(t *testing.T) {
	_, tbl, h := seededProduct(t)

	t.Run("group by name", func(t *testing.T) {
		req := coptest.Select(tbl).Aggr(cop.ExprCount, "id").GroupBy("name").Build()
		_, rows := collectRows(t, h.Handle(req))
		wantCounts := []uint64{2, 1, 2, 1}
		if len(rows) != len(wantCounts) {
			t.Fatalf("got %d groups", len(rows))
		}
		for i, want := range wantCounts {
			// row = (group key, count)
			if rows[i][1].Uint64() != want {
				t.Fatalf("group %d: count %s, want %d", i, rows[i][1], want)
			}
		}
	})

	t.Run("no group by uses the sentinel", func(t *testing.T) {
		req := coptest.Select(tbl).Aggr(cop.ExprCount, "id").Build()
		_, rows := collectRows(t, h.Handle(req))
		if len(rows) != 1 {
			t.Fatalf("got %d groups", len(rows))
		}
		if string(rows[0][0].Bytes()) != string(cop.SingleGroup) {
			t.Fatal("expected the single-group key")
		}
		if rows[0][1].Uint64() != 6 {
			t.Fatalf("count = %s", rows[0][1])
		}
	})
}

func TestAggrFirst(t *testing.T) {
	_, tbl, h := seededProduct(t)

	req := coptest.Select(tbl).Aggr(cop.ExprFirst, "id").GroupBy("name").Build()
	_, rows := collectRows(t, h.Handle(req))
	wantFirst := []int64{1, 2, 5, 7}
	for i, want := range wantFirst {
		if rows[i][1].Int64() != want {
			t.Fatalf("group %d: first %s, want %d", i, rows[i][1], want)
		}
	}
}

func TestAggrAvg(t *testing.T) {
	_, tbl, h := seededProduct(t)

	req := coptest.Select(tbl).Aggr(cop.ExprAvg, "count").GroupBy("name").Build()
	_, rows := collectRows(t, h.Handle(req))

	want := []struct {
		count uint64
		sum   int64
	}{{2, 3}, {1, 3}, {2, 8}, {1, 4}}
	if len(rows) != len(want) {
		t.Fatalf("got %d groups", len(rows))
	}
	for i, w := range want {
		// row = (group key, count, sum)
		if rows[i][1].Uint64() != w.count {
			t.Fatalf("group %d: count %s", i, rows[i][1])
		}
		if !rows[i][2].Decimal().Equal(decimal.NewFromInt(w.sum)) {
			t.Fatalf("group %d: sum %s", i, rows[i][2])
		}
	}
}

func TestAggrSumAndExtremes(t *testing.T) {
	_, tbl, h := seededProduct(t)

	req := coptest.Select(tbl).
		Aggr(cop.ExprSum, "count").
		Aggr(cop.ExprMax, "count").
		Aggr(cop.ExprMin, "count").
		GroupBy("name").
		Build()
	_, rows := collectRows(t, h.Handle(req))

	want := []struct {
		sum, max, min int64
	}{{3, 2, 1}, {3, 3, 3}, {8, 4, 4}, {4, 4, 4}}
	for i, w := range want {
		if !rows[i][1].Decimal().Equal(decimal.NewFromInt(w.sum)) {
			t.Fatalf("group %d: sum %s", i, rows[i][1])
		}
		if rows[i][2].Int64() != w.max || rows[i][3].Int64() != w.min {
			t.Fatalf("group %d: max/min %s/%s", i, rows[i][2], rows[i][3])
		}
	}
}

func TestIndexScan(t *testing.T) {
	_, tbl, h := seededProduct(t)

	t.Run("ascending", func(t *testing.T) {
		req := coptest.IndexSelect(tbl, tbl.Index("name")).Build()
		handles, _ := collectRows(t, h.Handle(req))
		// null name first, then names ascending, ties by handle
		wantHandles(t, handles, 7, 1, 4, 2, 5, 6)
	})

	t.Run("descending", func(t *testing.T) {
		req := coptest.IndexSelect(tbl, tbl.Index("name")).Desc().Build()
		handles, _ := collectRows(t, h.Handle(req))
		wantHandles(t, handles, 6, 5, 2, 4, 1, 7)
	})

	t.Run("every entry resolves to its row", func(t *testing.T) {
		req := coptest.IndexSelect(tbl, tbl.Index("name")).Build()
		handles, rows := collectRows(t, h.Handle(req))
		byHandle := map[int64]productRow{}
		for _, r := range productData() {
			byHandle[r.handle] = r
		}
		for i, handle := range handles {
			// index columns are (name, handle)
			if rows[i][0].Compare(byHandle[handle].name) != 0 {
				t.Fatalf("entry %d: name %s", i, rows[i][0])
			}
			if rows[i][1].Int64() != handle {
				t.Fatalf("entry %d: trailing handle %s", i, rows[i][1])
			}
		}
	})
}

func TestDeletedRowsAreInvisible(t *testing.T) {
	store, tbl, h := seededProduct(t)

	victim := productData()[3] // handle 5
	store.Begin()
	if err := store.Delete(tbl, victim.handle, rowValues(tbl, victim)); err != nil {
		t.Fatal(err)
	}
	if err := store.Commit(); err != nil {
		t.Fatal(err)
	}

	t.Run("table scan", func(t *testing.T) {
		handles, _ := collectRows(t, h.Handle(coptest.Select(tbl).Build()))
		wantHandles(t, handles, 1, 2, 4, 6, 7)
	})

	t.Run("index scan", func(t *testing.T) {
		req := coptest.IndexSelect(tbl, tbl.Index("name")).Build()
		handles, _ := collectRows(t, h.Handle(req))
		wantHandles(t, handles, 7, 1, 4, 2, 6)
	})
}

func TestDefaultValue(t *testing.T) {
	_, tbl, h := seededProduct(t)

	// a column added after the rows were written, carrying a default
	defVal, err := codec.EncodeValue(nil, codec.NewIntDatum(3))
	if err != nil {
		t.Fatal(err)
	}
	req := coptest.Select(tbl).Build()
	req.Select.TableInfo.Columns = append(req.Select.TableInfo.Columns, cop.ColumnInfo{
		ID:      coptest.NextID(),
		Tp:      cop.ColTypeInt,
		Default: defVal,
	})

	_, rows := collectRows(t, h.Handle(req))
	for i, row := range rows {
		if row[3].Int64() != 3 {
			t.Fatalf("row %d: default column %s, want 3", i, row[3])
		}
	}
}

func TestTruncationFlag(t *testing.T) {
	_, tbl, h := seededProduct(t)

	cond := coptest.BinOp(cop.ExprLT,
		coptest.StrLit("2x"), cop.ColumnRefExpr(tbl.Col("count")))

	t.Run("fails without the flag", func(t *testing.T) {
		resp := h.Handle(coptest.Select(tbl).Where(cond).Build())
		if resp.OtherError == "" || !strings.Contains(resp.OtherError, "truncation") {
			t.Fatalf("expected a truncation error, got %+v", resp)
		}
	})

	t.Run("coerces with the flag", func(t *testing.T) {
		req := coptest.Select(tbl).Where(cond).IgnoreTruncate().Build()
		handles, _ := collectRows(t, h.Handle(req))
		// "2x" coerces to 2; rows with count > 2
		wantHandles(t, handles, 2, 5, 6, 7)
	})
}

func TestKeyIsLocked(t *testing.T) {
	t.Run("primary", func(t *testing.T) {
		store, tbl, h := seededProduct(t)
		store.Begin()
		if err := store.Insert(tbl, 9, rowValues(tbl, productRow{9, codec.NewStringDatum("name:9"), 9})); err != nil {
			t.Fatal(err)
		}
		if err := store.Leave(); err != nil {
			t.Fatal(err)
		}

		resp := h.Handle(coptest.Select(tbl).Build())
		if resp.Locked == nil {
			t.Fatalf("expected a locked response, got %+v", resp)
		}
		if resp.Select != nil {
			t.Fatal("locked response must carry no data")
		}
	})

	t.Run("index", func(t *testing.T) {
		store, tbl, h := seededProduct(t)
		store.Begin()
		if err := store.Insert(tbl, 9, rowValues(tbl, productRow{9, codec.NewStringDatum("name:9"), 9})); err != nil {
			t.Fatal(err)
		}
		if err := store.Leave(); err != nil {
			t.Fatal(err)
		}

		resp := h.Handle(coptest.IndexSelect(tbl, tbl.Index("name")).Build())
		if resp.Locked == nil {
			t.Fatalf("expected a locked response, got %+v", resp)
		}
	})

	t.Run("snapshot below the lock is unaffected", func(t *testing.T) {
		store, tbl, h := seededProduct(t)
		before := coptest.NextTS()
		store.Begin()
		if err := store.Insert(tbl, 9, rowValues(tbl, productRow{9, codec.NewStringDatum("name:9"), 9})); err != nil {
			t.Fatal(err)
		}
		if err := store.Leave(); err != nil {
			t.Fatal(err)
		}

		req := coptest.Select(tbl).At(before).Build()
		handles, _ := collectRows(t, h.Handle(req))
		wantHandles(t, handles, 1, 2, 4, 5, 6, 7)
	})
}

// --------------------------------------------------------------------------
// DAG shape
// --------------------------------------------------------------------------

func TestDAGSelectAll(t *testing.T) {
	_, tbl, h := seededProduct(t)

	handles, rows := collectRows(t, h.Handle(coptest.DAGSelect(tbl).Build()))
	wantHandles(t, handles, 1, 2, 4, 5, 6, 7)
	for i, r := range productData() {
		if rows[i][1].Compare(r.name) != 0 || rows[i][2].Int64() != r.count {
			t.Fatalf("row %d: %v", i, rows[i])
		}
	}
}

func TestDAGOutputOffsets(t *testing.T) {
	_, tbl, h := seededProduct(t)

	// name only, then (count, id) reordered
	t.Run("projection", func(t *testing.T) {
		b := coptest.DAGSelect(tbl)
		req := b.Output(uint32(b.ColOffset("name"))).Build()
		_, rows := collectRows(t, h.Handle(req))
		for i, r := range productData() {
			if len(rows[i]) != 1 || rows[i][0].Compare(r.name) != 0 {
				t.Fatalf("row %d: %v", i, rows[i])
			}
		}
	})

	t.Run("reordering", func(t *testing.T) {
		b := coptest.DAGSelect(tbl)
		req := b.Output(uint32(b.ColOffset("count")), uint32(b.ColOffset("id"))).Build()
		_, rows := collectRows(t, h.Handle(req))
		for i, r := range productData() {
			if rows[i][0].Int64() != r.count || rows[i][1].Int64() != r.handle {
				t.Fatalf("row %d: %v", i, rows[i])
			}
		}
	})

	t.Run("out of range is a decode error", func(t *testing.T) {
		resp := h.Handle(coptest.DAGSelect(tbl).Output(99).Build())
		if resp.OtherError == "" || !strings.Contains(resp.OtherError, "out of range") {
			t.Fatalf("expected an offset error, got %+v", resp)
		}
	})
}

func TestDAGWhere(t *testing.T) {
	_, tbl, h := seededProduct(t)

	b := coptest.DAGSelect(tbl)
	req := b.Where(coptest.BinOp(cop.ExprGT, b.ColRef("count"), coptest.IntLit(3))).Build()
	handles, _ := collectRows(t, h.Handle(req))
	wantHandles(t, handles, 5, 6, 7)
}

func TestDAGTopNAndLimit(t *testing.T) {
	_, tbl, h := seededProduct(t)

	t.Run("topn", func(t *testing.T) {
		req := coptest.DAGSelect(tbl).TopN("count", true, 3).Build()
		handles, _ := collectRows(t, h.Handle(req))
		// count desc, ties by arrival order
		wantHandles(t, handles, 5, 6, 7)
	})

	t.Run("limit", func(t *testing.T) {
		req := coptest.DAGSelect(tbl).Limit(2).Build()
		handles, _ := collectRows(t, h.Handle(req))
		wantHandles(t, handles, 1, 2)
	})

	t.Run("index scan topn by handle", func(t *testing.T) {
		req := coptest.DAGIndexSelect(tbl, tbl.Index("name")).TopN("id", true, 5).Build()
		handles, _ := collectRows(t, h.Handle(req))
		wantHandles(t, handles, 7, 6, 5, 4, 2)
	})
}

func TestDAGAggregation(t *testing.T) {
	_, tbl, h := seededProduct(t)

	t.Run("count group by name", func(t *testing.T) {
		// output = (count, name)
		req := coptest.DAGSelect(tbl).
			Aggr(cop.ExprCount, "id").
			GroupBy("name").
			Output(0, 1).
			Build()
		_, rows := collectRows(t, h.Handle(req))

		want := []struct {
			count uint64
			name  codec.Datum
		}{
			{2, codec.NewStringDatum("name:0")},
			{1, codec.NewStringDatum("name:3")},
			{2, codec.NewStringDatum("name:5")},
			{1, codec.Datum{}},
		}
		if len(rows) != len(want) {
			t.Fatalf("got %d groups", len(rows))
		}
		for i, w := range want {
			if rows[i][0].Uint64() != w.count || rows[i][1].Compare(w.name) != 0 {
				t.Fatalf("group %d: %v", i, rows[i])
			}
		}
	})

	t.Run("avg occupies two offsets", func(t *testing.T) {
		req := coptest.DAGSelect(tbl).
			Aggr(cop.ExprAvg, "count").
			GroupBy("name").
			Output(0, 1, 2).
			Build()
		_, rows := collectRows(t, h.Handle(req))
		// first group: name:0 -> (2, 3, "name:0")
		if rows[0][0].Uint64() != 2 || !rows[0][1].Decimal().Equal(decimal.NewFromInt(3)) {
			t.Fatalf("avg pair: %v", rows[0])
		}
		if string(rows[0][2].Bytes()) != "name:0" {
			t.Fatalf("group value: %s", rows[0][2])
		}
	})
}

func TestDAGTopNAfterAggregation(t *testing.T) {
	_, tbl, h := seededProduct(t)

	t.Run("top group by count", func(t *testing.T) {
		// output = (count, name); the order-by offset addresses the
		// aggregated row
		req := coptest.DAGSelect(tbl).
			Aggr(cop.ExprCount, "id").
			GroupBy("name").
			TopNOffset(0, true, 1).
			Output(0, 1).
			Build()
		_, rows := collectRows(t, h.Handle(req))
		if len(rows) != 1 {
			t.Fatalf("got %d rows, want 1", len(rows))
		}
		if rows[0][0].Uint64() != 2 {
			t.Fatalf("top count = %s", rows[0][0])
		}
		// two groups share the top count, first-seen order breaks the tie
		if string(rows[0][1].Bytes()) != "name:0" {
			t.Fatalf("top group = %s", rows[0][1])
		}
	})

	t.Run("order-by offset beyond the aggregated width fails", func(t *testing.T) {
		req := coptest.DAGSelect(tbl).
			Aggr(cop.ExprCount, "id").
			GroupBy("name").
			TopNOffset(5, true, 1).
			Output(0, 1).
			Build()
		resp := h.Handle(req)
		if resp.OtherError == "" {
			t.Fatalf("expected an error response, got %+v", resp)
		}
	})
}
