package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/caracaldl/caracal/internal/caracalerr"
)

// fileMaxBufferSize is smaller than MaxBufferSize: local filesystem reads
// don't need the network-oriented 64 KiB buffer.
const fileMaxBufferSize = 1 << 12

// FileFetcher reads a local file. Grounded on the source's filesystem
// adapter: construction only stats the path, and each FetchBytes call opens
// its own read-only handle and seeks it to the requested start.
type FileFetcher struct {
	path     string
	metadata Metadata
}

// NewFile stats path for its length; it does not open the file.
func NewFile(path string) (*FileFetcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "fetcher.NewFile", err)
	}
	if info.IsDir() {
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "fetcher.NewFile", caracalerr.ErrFetchingDirectory)
	}
	filename := filepath.Base(path)
	if filename == "." || filename == "/" {
		filename = "index.html"
	}
	return &FileFetcher{
		path:     path,
		metadata: Metadata{Length: uint64(info.Size()), Filename: filename},
	}, nil
}

func (f *FileFetcher) FetchMetadata() Metadata        { return f.metadata }
func (f *FileFetcher) SupportsRangeRequest() bool     { return true }
func (f *FileFetcher) Close() error                   { return nil }

func (f *FileFetcher) FetchBytes(ctx context.Context, start, end uint64) (ByteStream, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "fetcher.FetchBytes", err)
	}
	if _, err := fh.Seek(int64(start), io.SeekStart); err != nil {
		fh.Close()
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "fetcher.FetchBytes", err)
	}
	return &fileByteStream{fh: fh, remaining: end - start + 1}, nil
}

func (f *FileFetcher) FetchAll(ctx context.Context) (ByteStream, error) {
	if f.metadata.Length == 0 {
		return f.FetchBytes(ctx, 0, 0)
	}
	return f.FetchBytes(ctx, 0, f.metadata.Length-1)
}

type fileByteStream struct {
	fh        *os.File
	remaining uint64
}

func (s *fileByteStream) Next(ctx context.Context) ([]byte, bool, error) {
	if s.remaining == 0 {
		return nil, false, nil
	}
	bufSize := uint64(fileMaxBufferSize)
	if s.remaining < bufSize {
		bufSize = s.remaining
	}
	buf := make([]byte, bufSize)
	n, err := s.fh.Read(buf)
	if n > 0 {
		s.remaining -= uint64(n)
		return buf[:n], true, nil
	}
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, caracalerr.Wrap(caracalerr.KindFilesystem, "fileByteStream.Next", err)
	}
	return nil, false, nil
}

func (s *fileByteStream) Close() error { return s.fh.Close() }
