// Package sched runs request pipelines on a fixed worker pool. Each
// accepted request is owned by one worker for its full lifetime and its
// outcome is delivered through a single-shot channel.
package sched

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/cop/endpoint"
	"github.com/ValentinKolb/dQL/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("sched")

var (
	submittedTotal = metrics.NewCounter("dql_sched_requests_submitted_total")
	completedTotal = metrics.NewCounter("dql_sched_requests_completed_total")
	failedTotal    = metrics.NewCounter("dql_sched_requests_failed_total")
	lockedTotal    = metrics.NewCounter("dql_sched_requests_locked_total")
	duration       = metrics.NewHistogram("dql_sched_request_duration_seconds")
)

// --------------------------------------------------------------------------
// Task
// --------------------------------------------------------------------------

// State is the lifecycle position of one task.
type State int32

const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Task is one accepted request. Its response is delivered exactly once
// on the Done channel.
type Task struct {
	req   *cop.Request
	state atomic.Int32
	done  chan *cop.Response
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	return State(t.state.Load())
}

// Done returns the single-shot completion channel.
func (t *Task) Done() <-chan *cop.Response {
	return t.done
}

// --------------------------------------------------------------------------
// Scheduler
// --------------------------------------------------------------------------

// Scheduler drains a shared queue with a fixed pool of workers. There is
// no intra-request parallelism: a worker executes one request's whole
// pipeline serially.
//
// Thread-safety: Submit may be called concurrently. Stop drains the
// queue, lets in-flight requests finish and joins all workers.
type Scheduler struct {
	handler *endpoint.Handler
	queue   *util.LockFreeMPSC[Task]
	workers sync.WaitGroup
	stopped atomic.Bool
}

// New creates a scheduler with the given worker count and starts it.
func New(handler *endpoint.Handler, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		handler: handler,
		queue:   util.NewLockFreeMPSC[Task](),
	}
	for i := 0; i < workers; i++ {
		s.workers.Add(1)
		go s.worker()
	}
	log.Infof("scheduler started with %d workers", workers)
	return s
}

// Submit queues one request. It returns the task whose Done channel
// resolves with the response, or false if the scheduler is stopped.
func (s *Scheduler) Submit(req *cop.Request) (*Task, bool) {
	task := &Task{req: req, done: make(chan *cop.Response, 1)}
	if s.stopped.Load() || !s.queue.Push(task) {
		return nil, false
	}
	submittedTotal.Inc()
	return task, true
}

// Stop rejects new requests, lets queued and running requests finish and
// joins all workers.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.queue.Close()
	s.workers.Wait()
	log.Infof("scheduler stopped")
}

func (s *Scheduler) worker() {
	defer s.workers.Done()
	for task := range s.queue.Recv() {
		s.run(task)
	}
}

// run executes one task. A panic escaping the handler is converted to a
// failure of this task only.
func (s *Scheduler) run(task *Task) {
	task.state.Store(int32(StateRunning))
	start := time.Now()

	var resp *cop.Response
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("request panicked: %v", r)
				resp = &cop.Response{OtherError: fmt.Sprintf("internal error: %v", r)}
			}
		}()
		resp = s.handler.Handle(task.req)
	}()

	duration.UpdateDuration(start)
	switch {
	case resp.Locked != nil:
		task.state.Store(int32(StateLocked))
		lockedTotal.Inc()
	case resp.OtherError != "":
		task.state.Store(int32(StateFailed))
		failedTotal.Inc()
	default:
		task.state.Store(int32(StateCompleted))
		completedTotal.Inc()
	}
	task.done <- resp
}
