package util

import (
	"sync"
	"testing"
)

func TestSizeHistogramEmpty(t *testing.T) {
	h := NewSizeHistogram()

	if h.GetCount() != 0 {
		t.Errorf("count = %d, want 0", h.GetCount())
	}
	if h.AverageSize() != 0 {
		t.Errorf("average = %d, want 0", h.AverageSize())
	}
	if h.GetPercentileEstimate(95) != 0 {
		t.Errorf("p95 = %d, want 0", h.GetPercentileEstimate(95))
	}
}

func TestSizeHistogramBasic(t *testing.T) {
	h := NewSizeHistogram()

	for _, size := range []int{10, 20, 30, 40} {
		h.AddSample(size)
	}

	if h.GetCount() != 4 {
		t.Errorf("count = %d, want 4", h.GetCount())
	}
	if avg := h.AverageSize(); avg != 25 {
		t.Errorf("average = %d, want 25", avg)
	}
}

func TestSizeHistogramPercentiles(t *testing.T) {
	h := NewSizeHistogram()

	// 100 samples in the 17..64 bucket, one outlier above 1KiB.
	for i := 0; i < 100; i++ {
		h.AddSample(32)
	}
	h.AddSample(2048)

	// The median falls into the (16, 64] bucket, estimated at its
	// midpoint.
	if p50 := h.GetPercentileEstimate(50); p50 != (16+64)/2 {
		t.Errorf("p50 = %d, want %d", p50, (16+64)/2)
	}
	// The outlier only shows up at the very top.
	if p100 := h.GetPercentileEstimate(100); p100 <= 64 {
		t.Errorf("p100 = %d, want > 64", p100)
	}
}

func TestSizeHistogramInvalidPercentile(t *testing.T) {
	h := NewSizeHistogram()
	h.AddSample(10)

	if got := h.GetPercentileEstimate(-1); got != 0 {
		t.Errorf("percentile(-1) = %d, want 0", got)
	}
	if got := h.GetPercentileEstimate(101); got != 0 {
		t.Errorf("percentile(101) = %d, want 0", got)
	}
}

func TestSizeHistogramReset(t *testing.T) {
	h := NewSizeHistogram()
	for i := 0; i < 10; i++ {
		h.AddSample(100)
	}

	h.Reset()

	if h.GetCount() != 0 {
		t.Errorf("count after reset = %d, want 0", h.GetCount())
	}
	if h.AverageSize() != 0 {
		t.Errorf("average after reset = %d, want 0", h.AverageSize())
	}
}

func TestSizeHistogramConcurrent(t *testing.T) {
	h := NewSizeHistogram()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.AddSample(64)
				_ = h.GetPercentileEstimate(95)
			}
		}()
	}
	wg.Wait()

	if h.GetCount() != 8000 {
		t.Errorf("count = %d, want 8000", h.GetCount())
	}
}
