package s3

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sqlagent/sqlagent/internal/storage"
)

func TestWriteObjectUsesPrefixAndCleanKey(t *testing.T) {
	fake := newFakeClient()
	store, err := NewWithClient("agent-logs", "/sqlagent/prod/", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.WriteObject(context.Background(), "/history/./query_logs.json", []byte("[]"), "application/json"); err != nil {
		t.Fatalf("WriteObject() error = %v", err)
	}
	if fake.lastBucket != "agent-logs" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "sqlagent/prod/history/query_logs.json" {
		t.Fatalf("key = %q", fake.lastKey)
	}
	if fake.lastContentType != "application/json" {
		t.Fatalf("content type = %q", fake.lastContentType)
	}
}

func TestWriteObjectRejectsKeysOutsidePrefix(t *testing.T) {
	store, err := NewWithClient("agent-logs", "", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"../secrets.txt", "..", " ", "a/../../b"} {
		if err := store.WriteObject(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("WriteObject(%q) expected key validation error", key)
		}
	}
}

func TestReadObjectReturnsNotFound(t *testing.T) {
	store, err := NewWithClient("agent-logs", "p", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.ReadObject(context.Background(), "query_logs.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("ReadObject() error = %v, want ErrObjectNotFound", err)
	}
}

func TestReadObjectReturnsLastWrite(t *testing.T) {
	fake := newFakeClient()
	store, err := NewWithClient("agent-logs", "p", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	ctx := context.Background()
	for _, payload := range []string{`[]`, `[{"question":"q"}]`} {
		if err := store.WriteObject(ctx, "query_logs.json", []byte(payload), ""); err != nil {
			t.Fatalf("WriteObject() error = %v", err)
		}
	}
	if fake.lastContentType != "application/octet-stream" {
		t.Fatalf("content type = %q", fake.lastContentType)
	}

	payload, err := store.ReadObject(ctx, "query_logs.json")
	if err != nil {
		t.Fatalf("ReadObject() error = %v", err)
	}
	if string(payload) != `[{"question":"q"}]` {
		t.Fatalf("payload = %q", payload)
	}
}

func TestReadObjectWrapsClientErrors(t *testing.T) {
	fake := newFakeClient()
	fake.getErr = errors.New("connection reset")
	store, err := NewWithClient("agent-logs", "p", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	_, err = store.ReadObject(context.Background(), "query_logs.json")
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("ReadObject() error = %v, want wrapped client error", err)
	}
	if !strings.Contains(err.Error(), "agent-logs/p/query_logs.json") {
		t.Fatalf("error %q does not name the object", err)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := newFakeClient()
	store, err := NewWithClient("agent-logs", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		useSSL   bool
		endpoint string
		secure   bool
	}{
		{raw: "https://minio.example.com", endpoint: "minio.example.com", secure: true},
		{raw: "http://localhost:9000", endpoint: "localhost:9000", secure: false},
		{raw: "localhost:9000", useSSL: true, endpoint: "localhost:9000", secure: true},
	}
	for _, tc := range tests {
		endpoint, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tc.raw, err)
		}
		if endpoint != tc.endpoint || secure != tc.secure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tc.raw, endpoint, secure)
		}
	}
	if _, _, err := parseEndpoint("", false); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

type fakeClient struct {
	objects            map[string][]byte
	getErr             error
	lastBucket         string
	lastKey            string
	lastContentType    string
	createBucketCalled bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, payload []byte, contentType string) error {
	f.lastBucket = bucket
	f.lastKey = key
	f.lastContentType = contentType
	f.objects[key] = append([]byte(nil), payload...)
	return nil
}

func (f *fakeClient) GetObject(_ context.Context, _, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	payload, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return payload, nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeClient) CreateBucket(context.Context, string, string) error {
	f.createBucketCalled = true
	return nil
}
