package server

import (
	"github.com/ValentinKolb/dQL/lib/mvcc"
	"github.com/ValentinKolb/dQL/lib/sched"
	"github.com/ValentinKolb/dQL/rpc/common"
)

// --------------------------------------------------------------------------
// Query adapter
// --------------------------------------------------------------------------

// queryServerAdapter runs coprocessor queries through the scheduler.
type queryServerAdapter struct {
	scheduler *sched.Scheduler
}

// NewQueryServerAdapter creates the adapter for MsgTQuery requests.
func NewQueryServerAdapter(scheduler *sched.Scheduler) IRPCServerAdapter {
	return &queryServerAdapter{scheduler: scheduler}
}

func (a *queryServerAdapter) Handle(req *common.Message, _ *mvcc.Store) *common.Message {
	query, err := req.DecodeQueryRequest()
	if err != nil {
		return common.NewErrorResponse("%v", err)
	}

	task, ok := a.scheduler.Submit(query)
	if !ok {
		return common.NewErrorResponse("server is shutting down")
	}

	resp, err := common.NewQueryResponse(<-task.Done())
	if err != nil {
		return common.NewErrorResponse("%v", err)
	}
	return resp
}

// --------------------------------------------------------------------------
// Info adapter
// --------------------------------------------------------------------------

// infoServerAdapter reports storage statistics.
type infoServerAdapter struct{}

// NewInfoServerAdapter creates the adapter for MsgTInfo requests.
func NewInfoServerAdapter() IRPCServerAdapter {
	return &infoServerAdapter{}
}

func (a *infoServerAdapter) Handle(_ *common.Message, store *mvcc.Store) *common.Message {
	resp, err := common.NewInfoResponse(store.Info())
	if err != nil {
		return common.NewErrorResponse("%v", err)
	}
	return resp
}

// --------------------------------------------------------------------------
// Transaction adapter
// --------------------------------------------------------------------------

// txnServerAdapter applies transactional writes to the store. One
// adapter instance serves prewrite, commit and rollback.
type txnServerAdapter struct{}

// NewTxnServerAdapter creates the adapter for the transaction requests.
func NewTxnServerAdapter() IRPCServerAdapter {
	return &txnServerAdapter{}
}

func (a *txnServerAdapter) Handle(req *common.Message, store *mvcc.Store) *common.Message {
	switch req.MsgType {
	case common.MsgTPrewrite:
		body, err := req.DecodePrewrite()
		if err != nil {
			return common.NewErrorResponse("%v", err)
		}
		if err := store.Prewrite(body.Mutations, body.Primary, body.StartTS); err != nil {
			return common.NewErrorResponse("prewrite failed: %v", err)
		}

	case common.MsgTCommit:
		body, err := req.DecodeCommit()
		if err != nil {
			return common.NewErrorResponse("%v", err)
		}
		if err := store.Commit(body.StartTS, body.CommitTS, body.Keys); err != nil {
			return common.NewErrorResponse("commit failed: %v", err)
		}

	case common.MsgTRollback:
		body, err := req.DecodeRollback()
		if err != nil {
			return common.NewErrorResponse("%v", err)
		}
		store.Rollback(body.StartTS, body.Keys)

	default:
		return common.NewErrorResponse("unexpected message type: %s", req.MsgType)
	}

	return common.NewAckResponse(req.MsgType)
}
