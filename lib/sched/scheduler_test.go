package sched

import (
	"sync"
	"testing"

	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/cop/coptest"
	"github.com/ValentinKolb/dQL/lib/cop/endpoint"
)

func seededHandler(t *testing.T) (*coptest.Table, *endpoint.Handler) {
	t.Helper()
	store := coptest.NewStore()
	tbl := coptest.ProductTable()
	store.Begin()
	for handle := int64(1); handle <= 10; handle++ {
		err := store.Insert(tbl, handle, map[int64]codec.Datum{
			tbl.Col("id"):    codec.NewIntDatum(handle),
			tbl.Col("name"):  codec.NewStringDatum("n"),
			tbl.Col("count"): codec.NewIntDatum(handle * 2),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Commit(); err != nil {
		t.Fatal(err)
	}
	return tbl, endpoint.NewHandler(store.MVCC)
}

func TestSchedulerLifecycle(t *testing.T) {
	tbl, h := seededHandler(t)
	s := New(h, 2)
	defer s.Stop()

	t.Run("completed request", func(t *testing.T) {
		task, ok := s.Submit(coptest.Select(tbl).Build())
		if !ok {
			t.Fatal("submit rejected")
		}
		resp := <-task.Done()
		if resp.Select == nil {
			t.Fatalf("unexpected response: %+v", resp)
		}
		if task.State() != StateCompleted {
			t.Fatalf("state = %s", task.State())
		}
	})

	t.Run("failed request", func(t *testing.T) {
		req := coptest.DAGSelect(tbl).Output(99).Build()
		task, ok := s.Submit(req)
		if !ok {
			t.Fatal("submit rejected")
		}
		resp := <-task.Done()
		if resp.OtherError == "" {
			t.Fatalf("expected an error outcome, got %+v", resp)
		}
		if task.State() != StateFailed {
			t.Fatalf("state = %s", task.State())
		}
	})

	t.Run("locked request", func(t *testing.T) {
		store := coptest.NewStore()
		tbl2 := coptest.ProductTable()
		store.Begin()
		if err := store.Insert(tbl2, 1, map[int64]codec.Datum{
			tbl2.Col("name"):  codec.NewStringDatum("n"),
			tbl2.Col("count"): codec.NewIntDatum(1),
		}); err != nil {
			t.Fatal(err)
		}
		if err := store.Leave(); err != nil {
			t.Fatal(err)
		}

		s2 := New(endpoint.NewHandler(store.MVCC), 1)
		defer s2.Stop()
		task, _ := s2.Submit(coptest.Select(tbl2).Build())
		resp := <-task.Done()
		if resp.Locked == nil {
			t.Fatalf("expected a locked outcome, got %+v", resp)
		}
		if task.State() != StateLocked {
			t.Fatalf("state = %s", task.State())
		}
	})
}

func TestSchedulerConcurrentRequests(t *testing.T) {
	tbl, h := seededHandler(t)
	s := New(h, 4)
	defer s.Stop()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, ok := s.Submit(coptest.Select(tbl).Build())
			if !ok {
				errs <- "submit rejected"
				return
			}
			resp := <-task.Done()
			if resp.Select == nil {
				errs <- "missing payload"
				return
			}
			rows := 0
			splitter := cop.NewChunkSplitter(resp.Select.Chunks)
			for splitter.Next() != nil {
				rows++
			}
			if rows != 10 {
				errs <- "wrong row count"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestSchedulerStop(t *testing.T) {
	tbl, h := seededHandler(t)
	s := New(h, 2)

	// queued work still completes during Stop
	var tasks []*Task
	for i := 0; i < 10; i++ {
		task, ok := s.Submit(coptest.Select(tbl).Build())
		if !ok {
			t.Fatal("submit rejected before stop")
		}
		tasks = append(tasks, task)
	}
	s.Stop()

	for i, task := range tasks {
		resp := <-task.Done()
		if resp.Select == nil {
			t.Fatalf("task %d: %+v", i, resp)
		}
	}

	if _, ok := s.Submit(coptest.Select(tbl).Build()); ok {
		t.Fatal("submit after stop should be rejected")
	}

	// stopping twice is a no-op
	s.Stop()
}
