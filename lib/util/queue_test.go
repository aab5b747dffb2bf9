package util

import (
	"sync"
	"testing"
)

func TestLockFreeMPSC(t *testing.T) {
	t.Run("single producer keeps order", func(t *testing.T) {
		q := NewLockFreeMPSC[int]()
		const n = 100
		for i := 0; i < n; i++ {
			v := i
			if !q.Push(&v) {
				t.Fatalf("push %d rejected", i)
			}
		}
		q.Close()
		i := 0
		for v := range q.Recv() {
			if *v != i {
				t.Fatalf("received %d at position %d", *v, i)
			}
			i++
		}
		if i != n {
			t.Fatalf("received %d items, want %d", i, n)
		}
	})

	t.Run("concurrent producers lose nothing", func(t *testing.T) {
		q := NewLockFreeMPSC[int]()
		const producers, perProducer = 8, 250

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					v := i
					q.Push(&v)
				}
			}()
		}

		done := make(chan int)
		go func() {
			count := 0
			for range q.Recv() {
				count++
			}
			done <- count
		}()

		wg.Wait()
		q.Close()
		if got := <-done; got != producers*perProducer {
			t.Fatalf("received %d items, want %d", got, producers*perProducer)
		}
	})

	t.Run("push after close fails", func(t *testing.T) {
		q := NewLockFreeMPSC[int]()
		q.Close()
		v := 1
		if q.Push(&v) {
			t.Fatal("push after close should fail")
		}
		if !q.IsClosed() {
			t.Fatal("queue should report closed")
		}
	})

	t.Run("nil is rejected", func(t *testing.T) {
		q := NewLockFreeMPSC[int]()
		defer q.Close()
		if q.Push(nil) {
			t.Fatal("nil push should fail")
		}
	})
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()

	if h.GetCount() != 0 || h.AverageSize() != 0 {
		t.Fatal("fresh histogram should be empty")
	}

	for _, s := range []int{10, 100, 1000, 10000} {
		h.AddSample(s)
	}
	if h.GetCount() != 4 {
		t.Fatalf("count = %d", h.GetCount())
	}
	if got := h.AverageSize(); got != (10+100+1000+10000)/4 {
		t.Fatalf("average = %d", got)
	}
	if h.GetPercentileEstimate(50) <= 0 {
		t.Fatal("median estimate should be positive")
	}

	h.Reset()
	if h.GetCount() != 0 {
		t.Fatal("reset should clear samples")
	}
}
