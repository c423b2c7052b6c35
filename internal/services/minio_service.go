package services

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// ObjectUpload describes one object written to the receipt store.
type ObjectUpload struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// MinioService is the object storage used for receipt PDFs.
type MinioService interface {
	PutObject(ctx context.Context, upload ObjectUpload) error
	// PresignedDownloadURL signs a GET that makes browsers save the object as
	// filename.
	PresignedDownloadURL(ctx context.Context, bucket, key, filename string, expiry time.Duration) (string, error)
	EnsureBucketExists(ctx context.Context, bucket string) error
}

type minioClient struct {
	client *minio.Client
}

func NewMinioService(endpoint, accessKey, secretKey string, useSSL bool) (MinioService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "minio client for %s", endpoint)
	}
	return &minioClient{client: client}, nil
}

func (m *minioClient) PutObject(ctx context.Context, upload ObjectUpload) error {
	_, err := m.client.PutObject(ctx, upload.Bucket, upload.Key, upload.Body, upload.Size, minio.PutObjectOptions{
		ContentType:  upload.ContentType,
		UserMetadata: upload.Metadata,
	})
	return errors.Wrapf(err, "put %s/%s", upload.Bucket, upload.Key)
}

func (m *minioClient) PresignedDownloadURL(ctx context.Context, bucket, key, filename string, expiry time.Duration) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", `attachment; filename="`+filename+`"`)
	}
	u, err := m.client.PresignedGetObject(ctx, bucket, key, expiry, params)
	if err != nil {
		return "", errors.Wrapf(err, "presign %s/%s", bucket, key)
	}
	return u.String(), nil
}

func (m *minioClient) EnsureBucketExists(ctx context.Context, bucket string) error {
	found, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", bucket)
	}
	if found {
		return nil
	}
	return errors.Wrapf(m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}), "create bucket %s", bucket)
}
