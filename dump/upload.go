package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/kjk/flashlog/logstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type UploaderConfig struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// plain http, for local minio
	Insecure bool
	// objects are named <Prefix>/<yyyy-mm-dd>/<uuid>.txt.br
	Prefix       string
	RequestTrace io.Writer
}

// Uploader uploads brotli-compressed dumps to an S3-compatible bucket
type Uploader struct {
	Client *minio.Client
	Bucket string
	config *UploaderConfig
	// for tests
	now func() time.Time
}

func NewUploader(ctx context.Context, config *UploaderConfig) (*Uploader, error) {
	if config == nil {
		return nil, errors.New("must provide config")
	}
	c := config
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return nil, errors.New("must provide Access, Secret, Bucket and Endpoint in config")
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Uploader{
		Client: mc,
		Bucket: c.Bucket,
		config: c,
		now:    time.Now,
	}, nil
}

func objectName(prefix string, t time.Time, id uuid.UUID) string {
	name := id.String() + ".txt.br"
	return path.Join(prefix, t.UTC().Format("2006-01-02"), name)
}

// Upload drains the store and uploads it as a new object.
// Returns name of the object.
func (u *Uploader) Upload(ctx context.Context, s *logstore.Store, opts *Options) (string, error) {
	var buf bytes.Buffer
	w, err := NewCompressWriter(&buf, ".br")
	if err != nil {
		return "", err
	}
	if _, err = Drain(s, w, opts); err != nil {
		return "", err
	}
	if err = w.Close(); err != nil {
		return "", err
	}

	remotePath := objectName(u.config.Prefix, u.now(), uuid.New())
	putOpts := minio.PutObjectOptions{
		ContentType:     mimePlainText,
		ContentEncoding: "br",
	}
	r := bytes.NewReader(buf.Bytes())
	_, err = u.Client.PutObject(ctx, u.Bucket, remotePath, r, int64(buf.Len()), putOpts)
	if err != nil {
		return "", err
	}
	return remotePath, nil
}
