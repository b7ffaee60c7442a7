package main

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket string, key string) ([]byte, error)
}

// S3Fetcher downloads whole objects into memory.
type S3Fetcher struct {
	Downloader *s3manager.Downloader
	Log        *zap.SugaredLogger
}

func NewS3Fetcher(svc s3iface.S3API, log *zap.SugaredLogger) *S3Fetcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &S3Fetcher{
		Downloader: s3manager.NewDownloaderWithClient(svc, func(d *s3manager.Downloader) {
			// Log files are small, parts are fetched in order
			d.Concurrency = 1
		}),
		Log: log,
	}
}

func (f *S3Fetcher) Fetch(ctx context.Context, bucket string, key string) ([]byte, error) {

	f.Log.Debugf("Downloading s3://%s/%s", bucket, key)

	buff := &aws.WriteAtBuffer{}

	numBytes, err := f.Downloader.DownloadWithContext(ctx, buff,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && isNotFoundCode(aerr.Code()) {
			return nil, &ObjectNotFoundError{Bucket: bucket, Key: key, Err: err}
		}
		return nil, errors.Wrapf(err, "S3 Download Error: s3://%s/%s", bucket, key)
	}

	f.Log.Debugf("Downloaded %d bytes", numBytes)

	return buff.Bytes(), nil
}
