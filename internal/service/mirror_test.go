package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/storage"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	meta    map[string]map[string]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, types: map[string]string{}, meta: map[string]map[string]string{}}
}

func (m *memoryStorage) EnsureBucket(ctx context.Context) error { return nil }

func (m *memoryStorage) Upload(ctx context.Context, obj storage.Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Key] = data
	m.types[obj.Key] = obj.ContentType
	m.meta[obj.Key] = obj.Metadata
	return nil
}

func (m *memoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStorage) GetURL(key string) string {
	return "https://bucket.example.com/" + key
}

func TestResultMirror(t *testing.T) {
	var downloads int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads++
		w.Header().Set("Content-Type", "video/mp4")
		io.WriteString(w, "mp4-bytes")
	}))
	defer srv.Close()

	store := newMemoryStorage()
	m := NewResultMirror(store, 0)
	rec := &domain.JobRecord{ID: "vid-1", Format: domain.FormatMP4, Status: domain.JobStatusDone, ResultURL: srv.URL + "/out/result.mp4?sig=abc"}

	url, err := m.Mirror(context.Background(), rec)
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if url != "https://bucket.example.com/results/vid-1.mp4" {
		t.Errorf("url = %q", url)
	}
	if !bytes.Equal(store.objects["results/vid-1.mp4"], []byte("mp4-bytes")) {
		t.Errorf("stored = %q", store.objects["results/vid-1.mp4"])
	}

	if store.types["results/vid-1.mp4"] != "video/mp4" || store.meta["results/vid-1.mp4"]["job-id"] != "vid-1" {
		t.Errorf("content type = %q, metadata = %v", store.types["results/vid-1.mp4"], store.meta["results/vid-1.mp4"])
	}

	// Already mirrored objects are not fetched again.
	if _, err := m.Mirror(context.Background(), rec); err != nil {
		t.Fatalf("second Mirror: %v", err)
	}
	if downloads != 1 {
		t.Errorf("downloads = %d, want 1", downloads)
	}
}

func TestResultMirrorDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	store := newMemoryStorage()
	m := NewResultMirror(store, 0)
	_, err := m.Mirror(context.Background(), &domain.JobRecord{ID: "vid-2", ResultURL: srv.URL + "/expired"})
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if len(store.objects) != 0 {
		t.Errorf("objects = %d, want 0", len(store.objects))
	}
}

func TestObjectKey(t *testing.T) {
	testCases := []struct {
		name string
		rec  domain.JobRecord
		want string
	}{
		{name: "extension from url", rec: domain.JobRecord{ID: "a", Format: domain.FormatMP4, ResultURL: "https://cdn.example.com/x/out.GIF?t=1"}, want: "results/a.gif"},
		{name: "bundle without extension", rec: domain.JobRecord{ID: "b", Format: domain.FormatProBundle, ResultURL: "https://cdn.example.com/download/b"}, want: "results/b.zip"},
		{name: "mp4 without extension", rec: domain.JobRecord{ID: "c", Format: domain.FormatMP4, ResultURL: "https://cdn.example.com/c"}, want: "results/c.mp4"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := objectKey(&tc.rec); got != tc.want {
				t.Errorf("objectKey() = %q, want %q", got, tc.want)
			}
		})
	}
}
