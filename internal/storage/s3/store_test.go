package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/recruitsql/recruitsql/internal/schema"
	"github.com/recruitsql/recruitsql/internal/storage"
)

func TestPutUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := newFakeClient()
	store, err := NewWithClient("recruitsql-config", "/schemas/prod/", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	info, err := store.Put(context.Background(), "/recruiting/2024.06.1.json", []byte(`{}`), "application/json")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPutBucket != "recruitsql-config" {
		t.Fatalf("bucket = %q", fake.lastPutBucket)
	}
	if info.Key != "schemas/prod/recruiting/2024.06.1.json" {
		t.Fatalf("key = %q", info.Key)
	}
	if fake.contentTypes[info.Key] != "application/json" {
		t.Fatalf("content type = %q", fake.contentTypes[info.Key])
	}
}

func TestObjectKeyRejectsTraversal(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"../secrets.json", "..", "  ", "/"} {
		if _, err := store.Put(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("Put(%q) expected validation error", key)
		}
	}
}

func TestGetMissingObjectReturnsNotFound(t *testing.T) {
	store, err := NewWithClient("bucket-a", "schemas", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
	if _, err := store.Stat(context.Background(), "missing.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
}

func TestStoreServesSchemaDescriptors(t *testing.T) {
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	encoded, err := schema.Encode(descriptor)
	if err != nil {
		t.Fatalf("schema.Encode() error = %v", err)
	}

	store, err := NewWithClient("bucket-a", "schemas", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Put(context.Background(), "recruiting.json", encoded, "application/json"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	loaded, err := schema.LoadObject(context.Background(), store, "recruiting.json")
	if err != nil {
		t.Fatalf("schema.LoadObject() error = %v", err)
	}
	if loaded.Version != descriptor.Version || len(loaded.Tables) != len(descriptor.Tables) {
		t.Fatalf("loaded descriptor = %+v", loaded)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := newFakeClient()
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("Ping() expected error for missing bucket")
	}
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.bucketExists {
		t.Fatal("expected MakeBucket to be called")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{raw: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{raw: "http://localhost:9000", wantHost: "localhost:9000"},
		{raw: "localhost:9000", useSSL: true, wantHost: "localhost:9000", wantSecure: true},
	}
	for _, tc := range tests {
		host, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tc.raw, err)
		}
		if host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tc.raw, host, secure)
		}
	}
	if _, _, err := parseEndpoint("https://", false); err == nil {
		t.Fatal("expected error for endpoint without host")
	}
}

type fakeClient struct {
	objects       map[string][]byte
	contentTypes  map[string]string
	lastPutBucket string
	bucketExists  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, body []byte, contentType string) (storage.ObjectInfo, error) {
	f.lastPutBucket = bucket
	f.objects[key] = append([]byte(nil), body...)
	f.contentTypes[key] = contentType
	return storage.ObjectInfo{Key: key, Size: int64(len(body)), ETag: "etag-1", LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) GetObject(_ context.Context, _, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(string(body))), nil
}

func (f *fakeClient) StatObject(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	body, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) MakeBucket(_ context.Context, _, _ string) error {
	f.bucketExists = true
	return nil
}
