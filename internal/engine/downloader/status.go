package downloader

import "github.com/caracaldl/caracal/internal/engine/transfer"

// ProgressChunk is the wire/status-surface shape of a chunk: the same four
// fields as the internal chunk.Chunk, exposed independently so callers don't
// depend on the engine's internal package.
type ProgressChunk struct {
	Start       uint64
	End         uint64
	Received    uint64
	IsCompleted bool
}

// Status is the snapshot handed to higher layers (spec §6's "status surface"):
// DownloaderStatus plus the aggregate counters.
type Status struct {
	FilePath             string
	ContentLength        uint64
	Chunks               []ProgressChunk
	ConcurrentNumber     int
	TotalReceived        uint64
	CompletedChunkCount  int
	TotalChunkCount      int
	Remaining            uint64
	IsCompleted          bool
}

func statusFromTransfer(filePath string, s *transfer.Status) Status {
	sorted := s.SortedChunks()
	chunks := make([]ProgressChunk, 0, len(sorted))
	for _, c := range sorted {
		chunks = append(chunks, ProgressChunk{Start: c.Start, End: c.End, Received: c.Received, IsCompleted: c.IsCompleted})
	}
	return Status{
		FilePath:            filePath,
		ContentLength:       s.ContentLength,
		Chunks:              chunks,
		ConcurrentNumber:    s.ConcurrentNumber,
		TotalReceived:       s.TotalReceived(),
		CompletedChunkCount: s.CompletedChunkCount(),
		TotalChunkCount:     s.TotalChunkCount(),
		Remaining:           s.Remaining(),
		IsCompleted:         s.IsCompleted(),
	}
}
