package exec

import (
	"github.com/ValentinKolb/dQL/lib/expr"
)

// SelectionExec forwards the rows where every condition evaluates
// truthy. The conditions form a conjunction.
type SelectionExec struct {
	child      Executor
	conditions []expr.Expr
	ev         *expr.Evaluator
}

// NewSelection creates a selection over child.
func NewSelection(child Executor, conditions []expr.Expr, ev *expr.Evaluator) *SelectionExec {
	return &SelectionExec{child: child, conditions: conditions, ev: ev}
}

func (e *SelectionExec) Next() (*Row, error) {
	for {
		row, err := e.child.Next()
		if err != nil || row == nil {
			return nil, err
		}

		e.ev.Row = row.Data
		keep := true
		for _, cond := range e.conditions {
			ok, err := e.ev.EvalBool(cond)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			return row, nil
		}
	}
}
