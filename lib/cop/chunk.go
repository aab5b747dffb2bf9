package cop

// rowsPerChunk is how many rows are packed into one response chunk
// before a new one is started.
const rowsPerChunk = 32

// --------------------------------------------------------------------------
// Chunk assembly
// --------------------------------------------------------------------------

// AppendRow adds one encoded row to the response, starting a new chunk
// every rowsPerChunk rows.
func (r *SelectResponse) AppendRow(handle int64, data []byte) {
	if len(r.Chunks) == 0 || len(r.Chunks[len(r.Chunks)-1].RowsMeta) >= rowsPerChunk {
		r.Chunks = append(r.Chunks, Chunk{})
	}
	chunk := &r.Chunks[len(r.Chunks)-1]
	chunk.RowsMeta = append(chunk.RowsMeta, RowMeta{Handle: handle, Length: int64(len(data))})
	chunk.RowsData = append(chunk.RowsData, data...)
}

// --------------------------------------------------------------------------
// Chunk iteration
// --------------------------------------------------------------------------

// ChunkRow is one row yielded by a ChunkSplitter.
type ChunkRow struct {
	Handle int64
	Data   []byte
}

// ChunkSplitter lazily walks the rows of a response payload in order. It
// is forward-only and not restartable.
type ChunkSplitter struct {
	chunks   []Chunk
	chunkIdx int
	rowIdx   int
	offset   int64
}

// NewChunkSplitter creates a splitter over the given chunks.
func NewChunkSplitter(chunks []Chunk) *ChunkSplitter {
	return &ChunkSplitter{chunks: chunks}
}

// Next returns the next row, or nil once all chunks are exhausted.
func (s *ChunkSplitter) Next() *ChunkRow {
	for s.chunkIdx < len(s.chunks) {
		chunk := &s.chunks[s.chunkIdx]
		if s.rowIdx >= len(chunk.RowsMeta) {
			s.chunkIdx++
			s.rowIdx = 0
			s.offset = 0
			continue
		}
		meta := chunk.RowsMeta[s.rowIdx]
		row := &ChunkRow{
			Handle: meta.Handle,
			Data:   chunk.RowsData[s.offset : s.offset+meta.Length],
		}
		s.rowIdx++
		s.offset += meta.Length
		return row
	}
	return nil
}
