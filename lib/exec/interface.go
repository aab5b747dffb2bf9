// Package exec implements the pull-based physical operators a request
// pipeline is assembled from: table scan, index scan, selection,
// aggregation, top-N and limit.
package exec

import (
	"github.com/ValentinKolb/dQL/lib/codec"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Row is one row flowing through an operator chain.
//
// Scan-side operators fill Data, keyed by column id. An aggregation
// replaces the column view with Output, the already projected result
// datums of one group.
type Row struct {
	Handle int64
	Data   map[int64]codec.Datum
	Output []codec.Datum
}

// Executor produces a lazy, finite, forward-only row sequence. Next
// returns nil once the sequence is exhausted, permanently. Executors are
// owned by a single request and are not safe for concurrent use.
type Executor interface {
	Next() (*Row, error)
}
