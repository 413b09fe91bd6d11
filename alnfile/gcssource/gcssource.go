// Package gcssource bridges ALN files stored in Google Cloud Storage to
// alnfile.Reader, which (like every filereader.FileReader) only knows how
// to Open a local path. It is adapted from api/gcs.go's GCSClient /
// NewPublicClient / NewClientFromBearerToken: same client construction
// idiom, generalized from "back an htsget range request" to "fetch an
// object to local disk so the core can treat it as just another source".
package gcssource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// Client wraps a storage.Client with the narrow surface this package needs.
type Client struct {
	*storage.Client
}

// NewPublicClient returns a Client with no credentials, usable only against
// publicly readable objects.
func NewPublicClient(ctx context.Context) (*Client, error) {
	gcs, err := storage.NewClient(ctx, option.WithHTTPClient(http.DefaultClient))
	if err != nil {
		return nil, fmt.Errorf("creating public storage client: %w", err)
	}
	return &Client{gcs}, nil
}

// NewClientFromBearerToken constructs a Client authorized with an existing
// OAuth2 bearer token, e.g. one forwarded from an incoming request.
func NewClientFromBearerToken(ctx context.Context, bearerToken string) (*Client, error) {
	bearerToken = strings.TrimPrefix(bearerToken, "Bearer ")
	token := oauth2.Token{TokenType: "Bearer", AccessToken: bearerToken}

	gcs, err := storage.NewClient(ctx, option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, fmt.Errorf("creating client from bearer token: %w", err)
	}
	return &Client{gcs}, nil
}

// RangeReader opens a reader for [offset, offset+length) of the named
// object. length < 0 reads to the end of the object.
func (c *Client) RangeReader(ctx context.Context, bucket, object string, offset, length int64) (io.ReadCloser, error) {
	r, err := c.Bucket(bucket).Object(object).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, fmt.Errorf("opening range reader for gs://%s/%s: %w", bucket, object, err)
	}
	return r, nil
}

// ParseURL splits a "gs://bucket/object" URL into its bucket and object
// components.
func ParseURL(url string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(url, "gs://")
	if rest == url {
		return "", "", fmt.Errorf("not a gs:// URL: %q", url)
	}
	bucket, object = rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		bucket, object = rest[:i], rest[i+1:]
	}
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("expected gs://bucket/object, got %q", url)
	}
	return bucket, object, nil
}

// Download copies the named object in full to destPath, so that
// alnfile.Reader (or any other local-path FileReader) can Open it directly.
func (c *Client) Download(ctx context.Context, bucket, object, destPath string) error {
	src, err := c.RangeReader(ctx, bucket, object, 0, -1)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("downloading gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}
