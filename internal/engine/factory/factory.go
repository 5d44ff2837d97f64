// Package factory builds a configured downloader.Downloader from a
// CreateTask descriptor (spec §4.4): resolves the Fetcher for the URI
// scheme, opens and pre-sizes the sink, and computes the initial chunk
// partition. A prior control file is not read here; the Downloader loads it
// on Start.
package factory

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/config"
	"github.com/caracaldl/caracal/internal/engine/controlfile"
	"github.com/caracaldl/caracal/internal/engine/downloader"
	"github.com/caracaldl/caracal/internal/engine/fetcher"
	"github.com/caracaldl/caracal/internal/engine/transfer"
	"github.com/caracaldl/caracal/internal/utils"
)

// CreateTask describes one download request, owned exclusively by the
// scheduler until it is handed to Factory.CreateNewTask.
type CreateTask struct {
	URI               string
	Filename          string
	OutputDirectory   string
	ConcurrentNumber  int
	ConnectionTimeout time.Duration
	Priority          Priority
	CreationTimestamp time.Time
}

// Factory holds the defaults a bare CreateTask falls back to.
type Factory struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// CreateNewTask builds a Downloader in the pre-start state: Fetcher
// resolved, sink opened and sized, initial TransferStatus computed, and any
// leftover control file's status substituted in by the Downloader itself on
// its first Start.
func (f *Factory) CreateNewTask(ctx context.Context, task CreateTask) (*downloader.Downloader, error) {
	timeout := task.ConnectionTimeout
	if timeout <= 0 {
		timeout = f.cfg.ConnectionTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	source, err := f.buildFetcher(fctx, task.URI)
	if err != nil {
		if fctx.Err() != nil {
			return nil, caracalerr.Wrap(caracalerr.KindTransport, "factory.CreateNewTask", caracalerr.ErrConnectionTimedOut)
		}
		return nil, err
	}

	metadata := source.FetchMetadata()
	rangeMode := source.SupportsRangeRequest()

	filename := task.Filename
	if filename == "" {
		filename = metadata.Filename
	}
	if filename == "" {
		filename = guessFilename(task.URI)
	}

	outputDir := task.OutputDirectory
	if outputDir == "" {
		outputDir = f.cfg.DefaultOutputDirectory
	}
	fullPath := filepath.Join(outputDir, filename)

	if _, err := os.Stat(fullPath); err == nil {
		if !controlfile.Exists(fullPath) {
			return nil, caracalerr.Wrap(caracalerr.KindBadInput, "factory.CreateNewTask", caracalerr.ErrDestinationExists)
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "factory.CreateNewTask", err)
	}

	sink, err := os.OpenFile(fullPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "factory.CreateNewTask", err)
	}

	if !rangeMode {
		if err := sink.Truncate(0); err != nil {
			sink.Close()
			return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "factory.CreateNewTask", err)
		}
		status := transfer.Unknown()
		utils.Debug("factory: %s has no known length, using single-stream mode", task.URI)
		return downloader.New(fullPath, []string{task.URI}, sink, source, status, 1, true), nil
	}

	if err := sink.Truncate(int64(metadata.Length)); err != nil {
		sink.Close()
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "factory.CreateNewTask", err)
	}

	chunkSize := metadata.Length
	workerNumber := 1
	if metadata.Length > f.cfg.MinimumChunkSize {
		workerNumber = task.ConcurrentNumber
		if workerNumber <= 0 {
			workerNumber = f.cfg.DefaultConcurrentNumber
		}
		chunkSize = metadata.Length / uint64(workerNumber)
		if chunkSize == 0 {
			chunkSize = metadata.Length
		}
	}

	status, err := transfer.New(metadata.Length, chunkSize)
	if err != nil {
		sink.Close()
		return nil, err
	}

	return downloader.New(fullPath, []string{task.URI}, sink, source, status, workerNumber, false), nil
}

func (f *Factory) buildFetcher(ctx context.Context, rawurl string) (fetcher.Fetcher, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "factory.buildFetcher", err)
	}

	switch u.Scheme {
	case "http", "https":
		return fetcher.NewHTTP(ctx, rawurl, f.cfg.UserAgent, f.cfg.ConnectionTimeout)
	case "file":
		return fetcher.NewFile(u.Path)
	case "sftp":
		return fetcher.NewSFTP(ctx, u.Host, u.Path, f.cfg.SSHServers)
	case "minio":
		alias, bucket, object, err := fetcher.ParseMinioURL(rawurl)
		if err != nil {
			return nil, err
		}
		return fetcher.NewMinio(ctx, alias, bucket, object, f.cfg.MinioAliases)
	default:
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "factory.buildFetcher", caracalerr.ErrUnsupportedScheme)
	}
}

// guessFilename derives a filename from the URI's last path segment,
// falling back to a generic name when none is present (spec §4.4 step 3).
func guessFilename(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "download.bin"
	}
	name := strings.TrimSuffix(filepath.Base(u.Path), "/")
	if name == "" || name == "." || name == "/" {
		return "index.html"
	}
	return name
}
