package fetcher

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/config"
)

// MinioFetcher reads an object from an S3-compatible endpoint identified by
// a minio:// alias, grounded on the original's OpenDAL S3 service adapter.
type MinioFetcher struct {
	client   *s3.Client
	bucket   string
	object   string
	metadata Metadata
}

// ParseMinioURL splits "minio://alias/bucket/object..." into its parts.
func ParseMinioURL(rawurl string) (alias, bucket, object string, err error) {
	trimmed := strings.TrimPrefix(rawurl, "minio://")
	if trimmed == rawurl {
		return "", "", "", caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.ParseMinioURL", caracalerr.ErrInvalidMinioURL)
	}
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.ParseMinioURL", caracalerr.ErrInvalidMinioURL)
	}
	return parts[0], parts[1], parts[2], nil
}

// NewMinio resolves alias against minioAliases and stats bucket/object.
func NewMinio(ctx context.Context, alias, bucket, object string, minioAliases map[string]config.MinioAlias) (*MinioFetcher, error) {
	entry, ok := minioAliases[alias]
	if !ok {
		return nil, caracalerr.Wrap(caracalerr.KindLookup, "fetcher.NewMinio", caracalerr.ErrMinioAliasNotFound)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(entry.AccessKey, entry.SecretKey, "")),
	)
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindBadInput, "fetcher.NewMinio", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(entry.EndpointURL)
		o.UsePathStyle = true
	})

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(object)})
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.NewMinio", err)
	}

	filename := path.Base(object)
	if filename == "." || filename == "/" {
		filename = "download.bin"
	}

	length := uint64(0)
	if head.ContentLength != nil {
		length = uint64(*head.ContentLength)
	}

	return &MinioFetcher{
		client:   client,
		bucket:   bucket,
		object:   object,
		metadata: Metadata{Length: length, Filename: filename},
	}, nil
}

func (f *MinioFetcher) FetchMetadata() Metadata    { return f.metadata }
func (f *MinioFetcher) SupportsRangeRequest() bool { return true }
func (f *MinioFetcher) Close() error               { return nil }

func (f *MinioFetcher) FetchBytes(ctx context.Context, start, end uint64) (ByteStream, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.object),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchBytes", err)
	}
	return &s3ByteStream{body: out.Body, remaining: end - start + 1}, nil
}

func (f *MinioFetcher) FetchAll(ctx context.Context) (ByteStream, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(f.bucket), Key: aws.String(f.object)})
	if err != nil {
		return nil, caracalerr.Wrap(caracalerr.KindTransport, "fetcher.FetchAll", err)
	}
	return &s3ByteStream{body: out.Body, remaining: ^uint64(0)}, nil
}

type s3ByteStream struct {
	body      io.ReadCloser
	remaining uint64
}

func (s *s3ByteStream) Next(ctx context.Context) ([]byte, bool, error) {
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
		return nil, false, caracalerr.Wrap(caracalerr.KindTransport, "s3ByteStream.Next", err)
	}
	return nil, false, nil
}

func (s *s3ByteStream) Close() error { return s.body.Close() }
