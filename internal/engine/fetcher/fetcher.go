// Package fetcher defines the Fetcher capability contract (spec §4.3) and
// the concrete adapters — file, http/https, sftp, minio — that the Factory
// dispatches to by URI scheme.
package fetcher

import "context"

// MaxBufferSize bounds a single read from a ByteStream: 64 KiB, the figure
// the protocol's generic byte-stream buffer uses for network sources.
const MaxBufferSize = 1 << 16

// Metadata describes the object a Fetcher was built against. It is resolved
// once at construction and never changes.
type Metadata struct {
	Length   uint64
	Filename string
}

// ByteStream is a finite, forward-only sequence of byte batches in
// [start, end] inclusive. A dropped stream is not restartable — callers
// needing to resume must call FetchBytes again.
type ByteStream interface {
	// Next returns the next non-empty batch, or io.EOF via ok=false when the
	// stream is exhausted. Batches may over-deliver past the requested end;
	// callers are responsible for clipping.
	Next(ctx context.Context) (data []byte, ok bool, err error)
	Close() error
}

// Fetcher is the opaque capability object the core engine depends on. It is
// a closed set of variants (file, http, sftp, minio) dispatched by scheme;
// range-support is a data-bearing flag, not a subtype marker.
type Fetcher interface {
	// FetchMetadata returns the cached Metadata computed at construction.
	FetchMetadata() Metadata

	// SupportsRangeRequest reports whether byte-range requests are honored.
	// The HTTP adapter reports true only when its Range probe was answered
	// with 206 and a known total length; an HTTP origin that reports
	// Content-Length but ignores Range reports false.
	SupportsRangeRequest() bool

	// FetchBytes opens a lazy stream over [start, end] inclusive.
	FetchBytes(ctx context.Context, start, end uint64) (ByteStream, error)

	// FetchAll opens a lazy stream over the whole object, for sources that
	// don't support ranges.
	FetchAll(ctx context.Context) (ByteStream, error)

	// Close releases any resources (file handles, SSH sessions) held by the
	// fetcher.
	Close() error
}
