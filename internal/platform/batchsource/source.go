package batchsource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// Config selects how remote batch URIs are reached. Local paths need none of it.
type Config struct {
	GCS GCSConfig `yaml:"gcs"`
	S3  S3Config  `yaml:"s3"`
}

type GCSConfig struct {
	// Credentials is a service account JSON document or a path to one.
	Credentials  string `yaml:"credentials"`
	EmulatorHost string `yaml:"emulator_host"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// backend reads objects from one storage scheme.
type backend interface {
	open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	list(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Opener resolves batch URIs: file://, bare paths, gs:// and s3://.
// Remote clients are created on first use.
type Opener struct {
	cfg Config
	log *logger.Logger

	mu  sync.Mutex
	gcs backend
	s3  backend
}

func NewOpener(cfg Config, log *logger.Logger) *Opener {
	return &Opener{cfg: cfg, log: log.With("service", "BatchSource")}
}

// Open returns a reader over the decompressed contents of uri.
func (o *Opener) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	var raw io.ReadCloser
	if loc.scheme == "file" {
		raw, err = os.Open(loc.key)
	} else {
		var b backend
		if b, err = o.backendFor(ctx, loc.scheme); err == nil {
			raw, err = b.open(ctx, loc.bucket, loc.key)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	rc, err := decompress(loc.key, raw)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	o.log.Debug("Opened batch", "uri", uri)
	return rc, nil
}

// List expands uri into batch URIs. A local directory or a bucket prefix
// ending in "/" yields every batch file below it; anything else is returned
// as-is.
func (o *Opener) List(ctx context.Context, uri string) ([]string, error) {
	loc, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	if loc.scheme == "file" {
		fi, err := os.Stat(loc.key)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			return []string{uri}, nil
		}
		var out []string
		err = filepath.WalkDir(loc.key, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsBatchFile(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(out)
		return out, nil
	}
	if loc.key != "" && !strings.HasSuffix(loc.key, "/") {
		return []string{uri}, nil
	}
	b, err := o.backendFor(ctx, loc.scheme)
	if err != nil {
		return nil, err
	}
	keys, err := b.list(ctx, loc.bucket, loc.key)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", uri, err)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if IsBatchFile(k) {
			out = append(out, loc.scheme+"://"+loc.bucket+"/"+k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (o *Opener) backendFor(ctx context.Context, scheme string) (backend, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch scheme {
	case "gs":
		if o.gcs == nil {
			b, err := newGCSBackend(ctx, o.cfg.GCS)
			if err != nil {
				return nil, err
			}
			o.gcs = b
		}
		return o.gcs, nil
	case "s3":
		if o.s3 == nil {
			b, err := newS3Backend(ctx, o.cfg.S3)
			if err != nil {
				return nil, err
			}
			o.s3 = b
		}
		return o.s3, nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
}

// IsBatchFile reports whether name looks like a JSONL batch, optionally
// compressed.
func IsBatchFile(name string) bool {
	base := strings.TrimSuffix(strings.TrimSuffix(strings.ToLower(name), ".gz"), ".zst")
	return strings.HasSuffix(base, ".jsonl") || strings.HasSuffix(base, ".ndjson")
}

type location struct {
	scheme string
	bucket string
	key    string
}

func parseURI(uri string) (location, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return location{}, fmt.Errorf("empty batch uri")
	}
	if !strings.Contains(uri, "://") {
		return location{scheme: "file", key: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return location{}, fmt.Errorf("parse batch uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return location{scheme: "file", key: u.Path}, nil
	case "gs", "s3":
		if u.Host == "" {
			return location{}, fmt.Errorf("batch uri %q has no bucket", uri)
		}
		return location{scheme: u.Scheme, bucket: u.Host, key: strings.TrimPrefix(u.Path, "/")}, nil
	default:
		return location{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
