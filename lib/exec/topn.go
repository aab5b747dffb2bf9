package exec

import (
	"container/heap"
	"sort"

	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/expr"
)

// --------------------------------------------------------------------------
// Order items
// --------------------------------------------------------------------------

// OrderItem is one entry of a composite sort order. A nil Expr orders by
// the row handle.
type OrderItem struct {
	Expr expr.Expr
	Desc bool
}

// topnItem is one buffered row with its evaluated sort keys. seq is the
// input arrival position and breaks all remaining ties.
type topnItem struct {
	keys []codec.Datum
	seq  int
	row  *Row
}

// compare orders two items under the composite sort order.
func compareItems(order []OrderItem, a, b *topnItem) int {
	for i := range order {
		c := a.keys[i].Compare(b.keys[i])
		if order[i].Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return a.seq - b.seq
}

// --------------------------------------------------------------------------
// Bounded heap
// --------------------------------------------------------------------------

// topnHeap keeps the current best rows with the logically worst one at
// the root, so overflow eviction is O(log n).
type topnHeap struct {
	order []OrderItem
	items []*topnItem
}

func (h *topnHeap) Len() int { return len(h.items) }

func (h *topnHeap) Less(i, j int) bool {
	// worst first
	return compareItems(h.order, h.items[i], h.items[j]) > 0
}

func (h *topnHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *topnHeap) Push(x any) { h.items = append(h.items, x.(*topnItem)) }

func (h *topnHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}

// --------------------------------------------------------------------------
// TopN executor
// --------------------------------------------------------------------------

// TopNExec buffers its child's rows and emits them sorted under the
// composite order, truncated to the limit. A negative limit disables the
// bound and turns the operator into a full sort.
type TopNExec struct {
	child Executor
	order []OrderItem
	limit int64
	ev    *expr.Evaluator

	// ByOutput evaluates the order expressions against Row.Output
	// instead of Row.Data, with column refs addressing output
	// positions. Set when an aggregation feeds the operator.
	ByOutput bool

	executed bool
	sorted   []*topnItem
	emitIdx  int
}

// NewTopN creates a top-N over child. limit < 0 means no bound.
func NewTopN(child Executor, order []OrderItem, limit int64, ev *expr.Evaluator) *TopNExec {
	return &TopNExec{child: child, order: order, limit: limit, ev: ev}
}

// sortKeys evaluates the order expressions against the current row.
func (e *TopNExec) sortKeys(row *Row) ([]codec.Datum, error) {
	if e.ByOutput {
		data := make(map[int64]codec.Datum, len(row.Output))
		for i, v := range row.Output {
			data[int64(i)] = v
		}
		e.ev.Row = data
	} else {
		e.ev.Row = row.Data
	}
	keys := make([]codec.Datum, len(e.order))
	for i, item := range e.order {
		if item.Expr == nil {
			keys[i] = codec.NewIntDatum(row.Handle)
			continue
		}
		v, err := e.ev.Eval(item.Expr)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}
	return keys, nil
}

func (e *TopNExec) consume() error {
	h := &topnHeap{order: e.order}
	seq := 0
	for {
		row, err := e.child.Next()
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		keys, err := e.sortKeys(row)
		if err != nil {
			return err
		}
		item := &topnItem{keys: keys, seq: seq, row: row}
		seq++

		if e.limit >= 0 && int64(len(h.items)) >= e.limit {
			if e.limit == 0 {
				continue
			}
			// replace the worst element if the new row beats it
			if compareItems(e.order, item, h.items[0]) < 0 {
				h.items[0] = item
				heap.Fix(h, 0)
			}
			continue
		}
		heap.Push(h, item)
	}

	e.sorted = h.items
	sort.Slice(e.sorted, func(i, j int) bool {
		return compareItems(e.order, e.sorted[i], e.sorted[j]) < 0
	})
	return nil
}

func (e *TopNExec) Next() (*Row, error) {
	if !e.executed {
		if err := e.consume(); err != nil {
			return nil, err
		}
		e.executed = true
	}
	if e.emitIdx >= len(e.sorted) {
		return nil, nil
	}
	row := e.sorted[e.emitIdx].row
	e.emitIdx++
	return row, nil
}
