package dump

import (
	"bytes"
	"context"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/kjk/flashlog/logstore"
)

const (
	mimePlainText = "text/plain; charset=utf-8"
	postTimeout   = time.Second * 10
)

type PostConfig struct {
	// URL receives logs as POST body
	URL string
	// sent as X-Api-Key header if not empty
	ApiKey string
	// compress body with zstd and set Content-Encoding
	Compress bool
}

// Post sends all stored records to a server in a single request.
// There is only one attempt, the caller decides about retrying.
func Post(ctx context.Context, s *logstore.Store, c *PostConfig, opts *Options) (int64, error) {
	var buf bytes.Buffer
	n, err := Drain(s, &buf, opts)
	if err != nil {
		return n, err
	}
	d := buf.Bytes()
	r := requests.
		URL(c.URL).
		ContentType(mimePlainText)
	if c.Compress {
		if d, err = compress(d, ".zst"); err != nil {
			return n, err
		}
		r = r.Header("Content-Encoding", "zstd")
	}
	r = r.BodyBytes(d)
	if c.ApiKey != "" {
		r = r.Header("X-Api-Key", c.ApiKey)
	}
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()
	return n, r.Fetch(ctx)
}
