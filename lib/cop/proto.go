package cop

import (
	"github.com/ValentinKolb/dQL/lib/codec"
)

// --------------------------------------------------------------------------
// Request envelope
// --------------------------------------------------------------------------

// RequestType selects the request shape.
type RequestType int64

const (
	// ReqTypeSelect is the flat shape scanning the primary table data.
	ReqTypeSelect RequestType = 101
	// ReqTypeIndex is the flat shape scanning a secondary index.
	ReqTypeIndex RequestType = 102
	// ReqTypeDAG is the chained-executor shape.
	ReqTypeDAG RequestType = 103
)

// Request flags.
const (
	// FlagIgnoreTruncate coerces lossy conversions instead of failing
	// the request.
	FlagIgnoreTruncate uint64 = 1 << 0
)

// SingleGroup is the sentinel group key used when an aggregation has no
// group-by clause.
var SingleGroup = []byte("SingleGroup")

// KeyRange is a [Start, End) byte-key interval bounding a scan.
type KeyRange struct {
	Start []byte `json:"start"`
	End   []byte `json:"end"`
}

// Request is the unit of work submitted to the endpoint. Exactly one of
// Select and DAG is set, matching Tp.
type Request struct {
	Tp     RequestType    `json:"tp"`
	Select *SelectRequest `json:"select,omitempty"`
	DAG    *DAGRequest    `json:"dag,omitempty"`
	Ranges []KeyRange     `json:"ranges"`
}

// --------------------------------------------------------------------------
// Schema descriptors
// --------------------------------------------------------------------------

// ColType is the declared value class of a column.
type ColType uint8

const (
	ColTypeInt ColType = iota
	ColTypeBytes
	ColTypeDecimal
)

// ColumnInfo describes one column as supplied per request. Schema is
// never cached across requests.
type ColumnInfo struct {
	ID       int64   `json:"id"`
	Tp       ColType `json:"tp"`
	PKHandle bool    `json:"pk_handle"`
	// Default is the value-encoded default datum, applied when a stored
	// row predates the column. Nil means no default.
	Default []byte `json:"default,omitempty"`
}

// TableInfo describes the scanned table in the flat select shape.
type TableInfo struct {
	ID      int64        `json:"id"`
	Columns []ColumnInfo `json:"columns"`
}

// IndexInfo describes the scanned secondary index in the flat index
// shape. Columns lists the indexed columns in key order; the trailing
// handle column (PKHandle set) is included so order-by-handle can refer
// to it.
type IndexInfo struct {
	TableID int64        `json:"table_id"`
	IndexID int64        `json:"index_id"`
	Columns []ColumnInfo `json:"columns"`
}

// --------------------------------------------------------------------------
// Expressions on the wire
// --------------------------------------------------------------------------

// ExprType identifies a wire expression node.
type ExprType int32

const (
	// ExprValue is a literal; Val holds one value-encoded datum.
	ExprValue ExprType = iota
	// ExprColumnRef references a column; Val holds a value-encoded
	// int64 that is an absolute column id in the flat shape and an
	// offset into the scan's column list in the DAG shape.
	ExprColumnRef

	ExprLT
	ExprLE
	ExprEQ
	ExprNE
	ExprGE
	ExprGT
	ExprPlus
	ExprAnd
	ExprOr
	ExprNot

	ExprCount
	ExprFirst
	ExprSum
	ExprAvg
	ExprMax
	ExprMin
)

// Expr is a serializable expression tree node.
type Expr struct {
	Tp       ExprType `json:"tp"`
	Val      []byte   `json:"val,omitempty"`
	Children []*Expr  `json:"children,omitempty"`
}

// ByItem is one order-by entry. A nil Expr in the flat shape orders by
// the row handle.
type ByItem struct {
	Expr *Expr `json:"expr,omitempty"`
	Desc bool  `json:"desc"`
}

// ValueExpr builds a literal node from a datum.
func ValueExpr(d codec.Datum) (*Expr, error) {
	val, err := codec.EncodeValue(nil, d)
	if err != nil {
		return nil, err
	}
	return &Expr{Tp: ExprValue, Val: val}, nil
}

// ColumnRefExpr builds a column reference node from an id or offset.
func ColumnRefExpr(ref int64) *Expr {
	val, _ := codec.EncodeValue(nil, codec.NewIntDatum(ref))
	return &Expr{Tp: ExprColumnRef, Val: val}
}

// --------------------------------------------------------------------------
// Flat select shape
// --------------------------------------------------------------------------

// SelectRequest is the flat request shape: separately named clauses over
// one table or one index.
type SelectRequest struct {
	StartTS    uint64     `json:"start_ts"`
	TableInfo  *TableInfo `json:"table_info,omitempty"`
	IndexInfo  *IndexInfo `json:"index_info,omitempty"`
	Where      *Expr      `json:"where,omitempty"`
	GroupBy    []*Expr    `json:"group_by,omitempty"`
	Aggregates []*Expr    `json:"aggregates,omitempty"`
	OrderBy    []ByItem   `json:"order_by,omitempty"`
	Limit      *int64     `json:"limit,omitempty"`
	Desc       bool       `json:"desc,omitempty"`
	Flags      uint64     `json:"flags"`
}

// --------------------------------------------------------------------------
// Chained-executor (DAG) shape
// --------------------------------------------------------------------------

// ExecType identifies one executor descriptor.
type ExecType int32

const (
	ExecTypeTableScan ExecType = iota
	ExecTypeIndexScan
	ExecTypeSelection
	ExecTypeAggregation
	ExecTypeTopN
	ExecTypeLimit
)

// Executor is one element of the DAG request's executor list. Exactly
// one of the configuration fields matching Tp is set.
type Executor struct {
	Tp          ExecType     `json:"tp"`
	TblScan     *TableScan   `json:"tbl_scan,omitempty"`
	IdxScan     *IndexScan   `json:"idx_scan,omitempty"`
	Selection   *Selection   `json:"selection,omitempty"`
	Aggregation *Aggregation `json:"aggregation,omitempty"`
	TopN        *TopN        `json:"top_n,omitempty"`
	Limit       *Limit       `json:"limit,omitempty"`
}

// TableScan reads primary rows. Columns declares the scan's output
// column list, which offset-based references resolve against.
type TableScan struct {
	TableID int64        `json:"table_id"`
	Columns []ColumnInfo `json:"columns"`
	Desc    bool         `json:"desc,omitempty"`
}

// IndexScan reads secondary index entries.
type IndexScan struct {
	TableID int64        `json:"table_id"`
	IndexID int64        `json:"index_id"`
	Columns []ColumnInfo `json:"columns"`
	Desc    bool         `json:"desc,omitempty"`
}

// Selection keeps rows where every condition is truthy.
type Selection struct {
	Conditions []*Expr `json:"conditions"`
}

// Aggregation groups rows and computes aggregate functions per group.
type Aggregation struct {
	GroupBy  []*Expr `json:"group_by,omitempty"`
	AggFuncs []*Expr `json:"agg_funcs"`
}

// TopN keeps the first Limit rows under its composite order.
type TopN struct {
	OrderBy []ByItem `json:"order_by"`
	Limit   uint64   `json:"limit"`
}

// Limit passes through at most Limit rows.
type Limit struct {
	Limit uint64 `json:"limit"`
}

// DAGRequest is the chained-executor request shape. Executors are listed
// leaf first; OutputOffsets selects and orders the returned columns.
type DAGRequest struct {
	StartTS       uint64     `json:"start_ts"`
	Executors     []Executor `json:"executors"`
	OutputOffsets []uint32   `json:"output_offsets"`
	Flags         uint64     `json:"flags"`
}

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// LockInfo describes the uncommitted lock that blocked a request.
type LockInfo struct {
	Key     []byte `json:"key"`
	Primary []byte `json:"primary"`
	LockTS  uint64 `json:"lock_ts"`
}

// Response is the outcome of one request. Exactly one of Select, Locked
// and OtherError is populated.
type Response struct {
	Select     *SelectResponse `json:"select,omitempty"`
	Locked     *LockInfo       `json:"locked,omitempty"`
	OtherError string          `json:"other_error,omitempty"`
}

// SelectResponse is the success payload: the result rows batched into
// chunks.
type SelectResponse struct {
	Chunks []Chunk `json:"chunks"`
}

// RowMeta locates one row inside a chunk's data buffer.
type RowMeta struct {
	Handle int64 `json:"handle"`
	Length int64 `json:"length"`
}

// Chunk is a batch of encoded rows: per-row metadata plus one
// concatenated payload buffer.
type Chunk struct {
	RowsMeta []RowMeta `json:"rows_meta"`
	RowsData []byte    `json:"rows_data"`
}
