package cop

import (
	"fmt"
	"testing"
)

func TestChunkAssemblyAndSplit(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		resp := &SelectResponse{}
		const n = 100
		for i := 0; i < n; i++ {
			resp.AppendRow(int64(i), []byte(fmt.Sprintf("row-%03d", i)))
		}

		if len(resp.Chunks) != (n+rowsPerChunk-1)/rowsPerChunk {
			t.Fatalf("got %d chunks", len(resp.Chunks))
		}

		splitter := NewChunkSplitter(resp.Chunks)
		for i := 0; i < n; i++ {
			row := splitter.Next()
			if row == nil {
				t.Fatalf("splitter exhausted at row %d", i)
			}
			if row.Handle != int64(i) || string(row.Data) != fmt.Sprintf("row-%03d", i) {
				t.Fatalf("row %d: handle=%d data=%q", i, row.Handle, row.Data)
			}
		}
		if splitter.Next() != nil {
			t.Fatal("splitter should be exhausted")
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		if NewChunkSplitter(nil).Next() != nil {
			t.Fatal("empty splitter should yield nothing")
		}
	})

	t.Run("zero-length rows keep their place", func(t *testing.T) {
		resp := &SelectResponse{}
		resp.AppendRow(1, []byte("a"))
		resp.AppendRow(2, nil)
		resp.AppendRow(3, []byte("c"))

		splitter := NewChunkSplitter(resp.Chunks)
		handles := []int64{1, 2, 3}
		for _, want := range handles {
			row := splitter.Next()
			if row == nil || row.Handle != want {
				t.Fatalf("expected handle %d, got %v", want, row)
			}
		}
	})
}
