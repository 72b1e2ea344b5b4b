package batchsource

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

const payload = "{\"source_variant\":\"CENSUS\"}\n"

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readAll(t *testing.T, o *Opener, uri string) string {
	t.Helper()
	rc, err := o.Open(context.Background(), uri)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestOpenLocalCompressed(t *testing.T) {
	dir := t.TempDir()
	o := NewOpener(Config{}, logger.Nop())

	plain := filepath.Join(dir, "a.jsonl")
	writeFile(t, plain, []byte(payload))

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gzPath := filepath.Join(dir, "b.jsonl.gz")
	writeFile(t, gzPath, gz.Bytes())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zstPath := filepath.Join(dir, "c.jsonl.zst")
	writeFile(t, zstPath, enc.EncodeAll([]byte(payload), nil))
	require.NoError(t, enc.Close())

	assert.Equal(t, payload, readAll(t, o, plain))
	assert.Equal(t, payload, readAll(t, o, "file://"+gzPath))
	assert.Equal(t, payload, readAll(t, o, zstPath))
}

func TestOpenCorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl.gz")
	writeFile(t, path, []byte("not gzip"))
	_, err := NewOpener(Config{}, logger.Nop()).Open(context.Background(), path)
	assert.Error(t, err)
}

func TestListLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2022/b.jsonl.gz", "a.jsonl", "notes.txt", "2023/c.ndjson"} {
		writeFile(t, filepath.Join(dir, name), []byte(payload))
	}
	got, err := NewOpener(Config{}, logger.Nop()).List(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "2022/b.jsonl.gz"),
		filepath.Join(dir, "2023/c.ndjson"),
		filepath.Join(dir, "a.jsonl"),
	}, got)
}

type fakeBackend struct {
	objects map[string]string
}

func (f fakeBackend) open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.objects[bucket+"/"+key])), nil
}

func (f fakeBackend) list(_ context.Context, bucket, prefix string) ([]string, error) {
	var out []string
	for k := range f.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix) {
			out = append(out, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	return out, nil
}

func TestRemotePrefixUsesBackend(t *testing.T) {
	o := NewOpener(Config{}, logger.Nop())
	o.s3 = fakeBackend{objects: map[string]string{
		"bio/usda/2022.jsonl": payload,
		"bio/usda/2021.jsonl": payload,
		"bio/usda/README.md":  "x",
		"bio/lab/p.jsonl":     payload,
	}}

	got, err := o.List(context.Background(), "s3://bio/usda/")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bio/usda/2021.jsonl", "s3://bio/usda/2022.jsonl"}, got)

	single, err := o.List(context.Background(), "s3://bio/lab/p.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bio/lab/p.jsonl"}, single)

	assert.Equal(t, payload, readAll(t, o, "s3://bio/lab/p.jsonl"))
}

func TestParseURI(t *testing.T) {
	loc, err := parseURI("gs://bucket/path/to/x.jsonl")
	require.NoError(t, err)
	assert.Equal(t, location{scheme: "gs", bucket: "bucket", key: "path/to/x.jsonl"}, loc)

	loc, err = parseURI("relative/x.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "file", loc.scheme)

	_, err = parseURI("ftp://host/x")
	assert.Error(t, err)
	_, err = parseURI("s3:///x")
	assert.Error(t, err)
	_, err = parseURI("  ")
	assert.Error(t, err)
}
