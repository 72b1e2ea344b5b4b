package batchsource

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type gcsBackend struct {
	client *storage.Client
}

func newGCSBackend(ctx context.Context, cfg GCSConfig) (backend, error) {
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		creds := strings.TrimSpace(cfg.Credentials)
		if creds == "" {
			creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		}
		switch {
		case strings.HasPrefix(creds, "{"):
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		case creds != "":
			opts = append(opts, option.WithCredentialsFile(creds))
		}
		opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcsBackend{client: client}, nil
}

func (b *gcsBackend) open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return b.client.Bucket(bucket).Object(key).NewReader(ctx)
}

func (b *gcsBackend) list(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := b.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}
