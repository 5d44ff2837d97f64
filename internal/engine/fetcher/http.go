package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/utils"
)

// newHTTPClient builds a transport tuned the way the teacher's concurrent
// downloader tunes its client: generous idle connections, compression
// disabled so Content-Length reflects the wire size, HTTP/1.1 forced so
// Range requests parallelize predictably across a connection pool. timeout
// bounds connection setup and the wait for response headers only — not the
// body read, since a chunk transfer can legitimately outlive it.
func newHTTPClient(maxConns int, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          maxConns * 2,
		MaxIdleConnsPerHost:   maxConns + 2,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
		ForceAttemptHTTP2:     false,
	}
	return &http.Client{Transport: transport}
}

// HTTPFetcher adapts an http(s) URL. Range support is probed once at
// construction with a single GET carrying Range: bytes=0-0; no HEAD request
// is sent. A 206 reply marks the source ranged and takes the total length
// from Content-Range; a 200 reply marks it unranged and takes the length
// from Content-Length.
type HTTPFetcher struct {
	client    *http.Client
	url       string
	userAgent string
	metadata  Metadata
	ranged    bool
}

// NewHTTP probes rawurl for metadata and range support, racing against
// timeout.
func NewHTTP(ctx context.Context, rawurl, userAgent string, timeout time.Duration) (*HTTPFetcher, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := newHTTPClient(4, timeout)

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.NewHTTP", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if probeCtx.Err() != nil {
			return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewHTTP", caracalerr.ErrConnectionTimedOut)
		}
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewHTTP", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	var length uint64
	var ranged bool

	switch resp.StatusCode {
	case http.StatusPartialContent:
		ranged = true
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if idx := strings.LastIndex(cr, "/"); idx != -1 {
				sizeStr := cr[idx+1:]
				if sizeStr != "*" {
					if n, perr := strconv.ParseUint(sizeStr, 10, 64); perr == nil {
						length = n
					}
				}
			}
		}
	case http.StatusOK:
		ranged = false
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, perr := strconv.ParseUint(cl, 10, 64); perr == nil {
				length = n
			}
		}
	case http.StatusNotFound:
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewHTTP", caracalerr.ErrNotFound)
	default:
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewHTTP",
			fmt.Errorf("%w: status %d", caracalerr.ErrUnknownHTTPError, resp.StatusCode))
	}

	filename := utils.DetermineFilenameFromHeaders(rawurl, resp.Header)
	utils.Debug("http fetcher: %s ranged=%v length=%d filename=%s", rawurl, ranged, length, filename)

	return &HTTPFetcher{
		client:    newHTTPClient(8, timeout),
		url:       rawurl,
		userAgent: userAgent,
		ranged:    ranged,
		metadata:  Metadata{Length: length, Filename: filename},
	}, nil
}

func (f *HTTPFetcher) FetchMetadata() Metadata    { return f.metadata }
func (f *HTTPFetcher) SupportsRangeRequest() bool { return f.ranged && f.metadata.Length > 0 }
func (f *HTTPFetcher) Close() error               { return nil }

func (f *HTTPFetcher) FetchBytes(ctx context.Context, start, end uint64) (ByteStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.FetchBytes", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchBytes", err)
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchBytes",
			fmt.Errorf("%w: status %d", caracalerr.ErrUnknownHTTPError, resp.StatusCode))
	}
	return &httpByteStream{body: resp.Body, remaining: end - start + 1}, nil
}

func (f *HTTPFetcher) FetchAll(ctx context.Context) (ByteStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.FetchAll", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchAll", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchAll",
			fmt.Errorf("%w: status %d", caracalerr.ErrUnknownHTTPError, resp.StatusCode))
	}
	return &httpByteStream{body: resp.Body, remaining: ^uint64(0)}, nil
}

type httpByteStream struct {
	body      io.ReadCloser
	remaining uint64
}

func (s *httpByteStream) Next(ctx context.Context) ([]byte, bool, error) {
	bufSize := uint64(MaxBufferSize)
	if s.remaining < bufSize {
		bufSize = s.remaining
	}
	if bufSize == 0 {
		return nil, false, nil
	}
	buf := make([]byte, bufSize)
	n, err := s.body.Read(buf)
	if n > 0 {
		if s.remaining != ^uint64(0) {
			s.remaining -= uint64(n)
		}
		return buf[:n], true, nil
	}
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, caracalerr.Wrap(caracalerr.KindTransport, "httpByteStream.Next", err)
	}
	return nil, false, nil
}

func (s *httpByteStream) Close() error { return s.body.Close() }
