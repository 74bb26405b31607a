package minio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ClientOptions describes a client that owns its credentials and can sign
// requests and presigned URLs locally.
type ClientOptions struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// NewClient creates a MinIO/S3 client with static V4 credentials.
func NewClient(opts ClientOptions) (*minio.Client, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing storage client: %w", err)
	}
	return client, nil
}

// NewDelegatedClient creates an anonymous client for an account URL whose
// access is granted by a pre-shared query token. The token is appended to
// every outgoing request; the client itself holds no signing key.
func NewDelegatedClient(accountURL, sharedToken, region string) (*minio.Client, error) {
	u, err := url.Parse(accountURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid account url %q", accountURL)
	}
	query, err := url.ParseQuery(strings.TrimPrefix(sharedToken, "?"))
	if err != nil {
		return nil, fmt.Errorf("invalid shared access token: %w", err)
	}

	transport, err := minio.DefaultTransport(u.Scheme == "https")
	if err != nil {
		return nil, fmt.Errorf("error building storage transport: %w", err)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:     credentials.NewStatic("", "", "", credentials.SignatureAnonymous),
		Secure:    u.Scheme == "https",
		Region:    region,
		Transport: &tokenTransport{base: transport, query: query},
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing delegated storage client: %w", err)
	}
	return client, nil
}

type tokenTransport struct {
	base  http.RoundTripper
	query url.Values
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.query) == 0 {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	q := clone.URL.Query()
	for key, values := range t.query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	clone.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(clone)
}

// EnsureBucket creates the bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string) (bool, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("error checking if bucket %s exists: %w", bucket, err)
	}
	if exists {
		return false, nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return false, fmt.Errorf("error creating bucket %s: %w", bucket, err)
	}
	return true, nil
}

// IsNotFound reports whether err is the store's "no such object" response.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchObject":
		return true
	default:
		return false
	}
}
