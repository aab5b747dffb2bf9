// Package endpoint executes pushdown requests against a store: it takes
// a snapshot at the request's start timestamp, builds the operator
// pipeline and assembles the chunked response.
package endpoint

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/mvcc"
	"github.com/ValentinKolb/dQL/lib/plan"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("cop")

// Handler executes requests against one store.
//
// Thread-safety: Handle may be called concurrently; requests never share
// mutable state.
type Handler struct {
	store *mvcc.Store
}

// NewHandler creates a handler over store.
func NewHandler(store *mvcc.Store) *Handler {
	return &Handler{store: store}
}

// Handle runs one request to completion. The response always has exactly
// one of its three outcomes populated; a panic inside the pipeline is
// converted into an error outcome.
func (h *Handler) Handle(req *cop.Request) (resp *cop.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic while executing request: %v", r)
			resp = &cop.Response{OtherError: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	var startTS uint64
	switch {
	case req.Select != nil:
		startTS = req.Select.StartTS
	case req.DAG != nil:
		startTS = req.DAG.StartTS
	}
	snap := h.store.Snapshot(startTS)

	p, err := plan.Build(req, snap)
	if err != nil {
		return errResponse(err)
	}

	sel := &cop.SelectResponse{}
	for {
		row, err := p.Root.Next()
		if err != nil {
			return errResponse(err)
		}
		if row == nil {
			break
		}
		handle, data, err := p.EncodeRow(row)
		if err != nil {
			return errResponse(err)
		}
		sel.AppendRow(handle, data)
	}
	return &cop.Response{Select: sel}
}

// errResponse maps an execution error to its response outcome. A lock is
// structural, everything else is an error string.
func errResponse(err error) *cop.Response {
	var locked *mvcc.ErrKeyLocked
	if errors.As(err, &locked) {
		return &cop.Response{Locked: &cop.LockInfo{
			Key:     locked.Key,
			Primary: locked.Primary,
			LockTS:  locked.StartTS,
		}}
	}
	return &cop.Response{OtherError: err.Error()}
}
