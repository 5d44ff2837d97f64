// Package transfer implements TransferStatus, the mutable set of Chunks that
// composes one download, plus aggregate progress queries and the
// largest-remaining-wins Split/Freeze selection used to rebalance workers.
package transfer

import (
	"sort"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/engine/chunk"
)

// Status is the set of Chunks composing one download.
type Status struct {
	ContentLength    uint64
	Chunks           map[uint64]*chunk.Chunk // keyed by Chunk.Start
	ConcurrentNumber int

	// Unbounded marks the single-chunk sentinel used when the source length
	// isn't known up front; its End grows implicitly as bytes are received.
	Unbounded bool
}

// New partitions [0, contentLength-1] into chunks of chunkSize bytes (the
// last chunk absorbing whatever remainder is left), rejecting a zero
// chunkSize.
func New(contentLength, chunkSize uint64) (*Status, error) {
	if chunkSize == 0 {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "transfer.New", caracalerr.ErrBadChunkSize)
	}
	chunks := make(map[uint64]*chunk.Chunk)
	if contentLength == 0 {
		chunks[0] = &chunk.Chunk{Start: 0, End: 0, Received: 0, IsCompleted: true}
		return &Status{ContentLength: contentLength, Chunks: chunks}, nil
	}
	var start uint64
	for start < contentLength {
		end := start + chunkSize - 1
		if end > contentLength-1 {
			end = contentLength - 1
		}
		c := chunk.New(start, end)
		chunks[start] = &c
		start = end + 1
	}
	return &Status{ContentLength: contentLength, Chunks: chunks}, nil
}

// Unknown returns the single-chunk sentinel used for sources whose length is
// not known up front; its End grows implicitly as bytes are received.
func Unknown() *Status {
	c := chunk.Chunk{Start: 0, End: 0, Received: 0}
	return &Status{ContentLength: 0, Chunks: map[uint64]*chunk.Chunk{0: &c}, Unbounded: true}
}

// UpdateProgress sets Received for the chunk keyed by start. An unknown
// start is a silent no-op — the worker may be racing a freeze that removed
// or reshaped the chunk it was writing to.
func (s *Status) UpdateProgress(start, received uint64) {
	c, ok := s.Chunks[start]
	if !ok {
		return
	}
	c.Received = received
	if s.Unbounded {
		if received > 0 {
			c.End = received - 1
		}
		s.ContentLength = received
	}
}

// MarkChunkCompleted flags the chunk keyed by start as completed. No-op for
// an unknown start.
func (s *Status) MarkChunkCompleted(start uint64) {
	if c, ok := s.Chunks[start]; ok {
		c.IsCompleted = true
	}
}

// UpdateConcurrentNumber stores an observability counter; it does not affect
// chunking.
func (s *Status) UpdateConcurrentNumber(n int) {
	s.ConcurrentNumber = n
}

// IsCompleted is the conjunction of every chunk's completion flag.
func (s *Status) IsCompleted() bool {
	for _, c := range s.Chunks {
		if !c.IsCompleted {
			return false
		}
	}
	return true
}

// TotalReceived sums Received across every chunk.
func (s *Status) TotalReceived() uint64 {
	var total uint64
	for _, c := range s.Chunks {
		total += c.Received
	}
	return total
}

// largestRemaining returns the chunk with strictly largest Remaining(), or
// nil if the status holds no chunks or all are fully received/completed.
func (s *Status) largestRemaining() *chunk.Chunk {
	keys := make([]uint64, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var best *chunk.Chunk
	for _, k := range keys {
		c := s.Chunks[k]
		if c.IsCompleted || c.Remaining() == 0 {
			continue
		}
		if best == nil || c.Remaining() > best.Remaining() {
			best = c
		}
	}
	return best
}

// Split picks the chunk with the largest remaining tail and splits it,
// inserting the new chunk into the map. Returns false when the status is
// already fully completed or no chunk can be split.
func (s *Status) Split() (origin chunk.Chunk, created chunk.Chunk, ok bool) {
	if s.IsCompleted() {
		return chunk.Chunk{}, chunk.Chunk{}, false
	}
	target := s.largestRemaining()
	if target == nil {
		return chunk.Chunk{}, chunk.Chunk{}, false
	}
	newChunk, split := target.Split()
	if !split {
		return chunk.Chunk{}, chunk.Chunk{}, false
	}
	s.Chunks[newChunk.Start] = &newChunk
	return *target, newChunk, true
}

// Freeze picks the chunk with the largest remaining tail and freezes it,
// inserting the new chunk into the map. Returns false when the status is
// already fully completed or no chunk can be frozen.
func (s *Status) Freeze() (origin chunk.Chunk, created chunk.Chunk, ok bool) {
	if s.IsCompleted() {
		return chunk.Chunk{}, chunk.Chunk{}, false
	}
	target := s.largestRemaining()
	if target == nil {
		return chunk.Chunk{}, chunk.Chunk{}, false
	}
	newChunk, froze := target.Freeze()
	if !froze {
		return chunk.Chunk{}, chunk.Chunk{}, false
	}
	s.Chunks[newChunk.Start] = &newChunk
	return *target, newChunk, true
}

// Remaining sums Remaining() across every chunk.
func (s *Status) Remaining() uint64 {
	var total uint64
	for _, c := range s.Chunks {
		total += c.Remaining()
	}
	return total
}

// TotalChunkCount and CompletedChunkCount support the status surface's
// aggregate counters (spec §6).
func (s *Status) TotalChunkCount() int { return len(s.Chunks) }

func (s *Status) CompletedChunkCount() int {
	n := 0
	for _, c := range s.Chunks {
		if c.IsCompleted {
			n++
		}
	}
	return n
}

// Clone returns a deep copy: the returned Status shares no Chunk pointers
// with s, so a serve loop can keep mutating its own copy after handing one
// off to Pause/Join.
func (s *Status) Clone() *Status {
	chunks := make(map[uint64]*chunk.Chunk, len(s.Chunks))
	for k, c := range s.Chunks {
		cp := *c
		chunks[k] = &cp
	}
	return &Status{
		ContentLength:    s.ContentLength,
		Chunks:           chunks,
		ConcurrentNumber: s.ConcurrentNumber,
		Unbounded:        s.Unbounded,
	}
}

// SortedChunks returns the chunks ordered by Start, for deterministic
// serialization and display.
func (s *Status) SortedChunks() []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(s.Chunks))
	for _, c := range s.Chunks {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
