package controlfile

import (
	"github.com/caracaldl/caracal/internal/engine/chunk"
	"github.com/caracaldl/caracal/internal/engine/transfer"
)

// schemaVersion is the only schema this implementation writes or reads.
const schemaVersion = 1

// v1Record is the exact on-disk JSON shape. IsCompleted is intentionally not
// persisted here: it is recomputed from Received/Len on load, matching the
// original protocol's v1 chunk record.
type v1Record struct {
	Schema        uint32      `json:"schema"`
	URIs          []string    `json:"uris"`
	ContentLength *uint64     `json:"content_length,omitempty"`
	Chunks        []v1Chunk   `json:"chunks"`
}

type v1Chunk struct {
	Start    uint64 `json:"start"`
	End      uint64 `json:"end"`
	Received uint64 `json:"received"`
}

func fromTransferStatus(uris []string, status *transfer.Status) v1Record {
	chunks := status.SortedChunks()
	out := make([]v1Chunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, v1Chunk{Start: c.Start, End: c.End, Received: c.Received})
	}
	length := status.ContentLength
	return v1Record{Schema: schemaVersion, URIs: uris, ContentLength: &length, Chunks: out}
}

func (r v1Record) toTransferStatus() *transfer.Status {
	contentLength := uint64(0)
	if r.ContentLength != nil {
		contentLength = *r.ContentLength
	}
	chunks := make(map[uint64]*chunk.Chunk, len(r.Chunks))
	for _, c := range r.Chunks {
		ch := chunk.Chunk{Start: c.Start, End: c.End, Received: c.Received}
		ch.IsCompleted = ch.Received >= ch.Len()
		chunks[c.Start] = &ch
	}
	return &transfer.Status{ContentLength: contentLength, Chunks: chunks}
}
