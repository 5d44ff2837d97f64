package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/config"
)

// SFTPFetcher reads a remote file over SFTP. alias is looked up in the
// ssh_servers config map for endpoint/user/identity_file, matching the
// "host is an alias" language of spec §6.
type SFTPFetcher struct {
	client       *sftp.Client
	sshConn      *ssh.Client
	remotePath   string
	metadata     Metadata
}

// NewSFTP dials the server named by alias and stats remotePath.
func NewSFTP(ctx context.Context, alias, remotePath string, servers map[string]config.SSHServer) (*SFTPFetcher, error) {
	server, ok := servers[alias]
	if !ok {
		return nil, caracalerr.Wrap(caracalerr.KindLookup, "fetcher.NewSFTP", caracalerr.ErrSSHConfigNotFound)
	}
	if server.Endpoint == "" {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.NewSFTP", caracalerr.ErrHostnameNotProvided)
	}

	key, err := os.ReadFile(server.IdentityFile)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "fetcher.NewSFTP", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.NewSFTP", err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            server.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // accept-unknown-hosts, matching the source adapter
		Timeout:         10 * time.Second,
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", server.Endpoint)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewSFTP", err)
	}
	sshConnConn, chans, reqs, err := ssh.NewClientConn(conn, server.Endpoint, sshCfg)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewSFTP", err)
	}
	sshClient := ssh.NewClient(sshConnConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewSFTP", err)
	}

	info, err := client.Stat(remotePath)
	if err != nil {
		client.Close()
		sshClient.Close()
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewSFTP", err)
	}
	if info.IsDir() {
		client.Close()
		sshClient.Close()
		return nil, caracalerr.Wrap(caracalerr.KindFilesystem, "fetcher.NewSFTP", caracalerr.ErrFetchingDirectory)
	}

	filename := filepath.Base(remotePath)
	if filename == "." || filename == "/" {
		filename = "index.html"
	}

	return &SFTPFetcher{
		client:     client,
		sshConn:    sshClient,
		remotePath: remotePath,
		metadata:   Metadata{Length: uint64(info.Size()), Filename: filename},
	}, nil
}

func (f *SFTPFetcher) FetchMetadata() Metadata    { return f.metadata }
func (f *SFTPFetcher) SupportsRangeRequest() bool { return true }

func (f *SFTPFetcher) Close() error {
	f.client.Close()
	return f.sshConn.Close()
}

func (f *SFTPFetcher) FetchBytes(ctx context.Context, start, end uint64) (ByteStream, error) {
	fh, err := f.client.Open(f.remotePath)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchBytes", err)
	}
	if _, err := fh.Seek(int64(start), io.SeekStart); err != nil {
		fh.Close()
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchBytes", err)
	}
	return &sftpByteStream{fh: fh, remaining: end - start + 1}, nil
}

func (f *SFTPFetcher) FetchAll(ctx context.Context) (ByteStream, error) {
	if f.metadata.Length == 0 {
		return f.FetchBytes(ctx, 0, 0)
	}
	return f.FetchBytes(ctx, 0, f.metadata.Length-1)
}

type sftpByteStream struct {
	fh        *sftp.File
	remaining uint64
}

func (s *sftpByteStream) Next(ctx context.Context) ([]byte, bool, error) {
	if s.remaining == 0 {
		return nil, false, nil
	}
	bufSize := uint64(MaxBufferSize)
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
		return nil, false, caracalerr.Wrap(caracalerr.KindTransport, "sftpByteStream.Next", fmt.Errorf("%w", err))
	}
	return nil, false, nil
}

func (s *sftpByteStream) Close() error { return s.fh.Close() }
