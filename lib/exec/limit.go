package exec

// LimitExec passes through at most limit rows, then stops pulling from
// its child.
type LimitExec struct {
	child     Executor
	remaining uint64
}

// NewLimit creates a limit over child.
func NewLimit(child Executor, limit uint64) *LimitExec {
	return &LimitExec{child: child, remaining: limit}
}

func (e *LimitExec) Next() (*Row, error) {
	if e.remaining == 0 {
		return nil, nil
	}
	row, err := e.child.Next()
	if err != nil || row == nil {
		e.remaining = 0
		return nil, err
	}
	e.remaining--
	return row, nil
}
