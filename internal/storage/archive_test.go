package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apod-explorer/internal/domain"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	uploads int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, opts UploadOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = opts.ContentType
	m.uploads++
	if opts.ProgressCallback != nil {
		opts.ProgressCallback(int64(len(data)), opts.Size)
	}
	return "s3://" + opts.Bucket + "/" + key, nil
}

func (m *memoryStore) ListObjects(_ context.Context, _ string, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memoryStore) GetObjectURL(_ context.Context, bucket, key string, expires time.Duration) (string, error) {
	return "https://" + bucket + ".example/" + key + "?ttl=" + expires.String(), nil
}

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestArchiverObjectKey(t *testing.T) {
	a := NewArchiver(newMemoryStore(), ArchiveConfig{Bucket: "b", KeyPrefix: "/apod/"})

	key, err := a.ObjectKey(domain.Picture{Date: "2024-05-05", URL: "https://x/image/2405/small.jpg", HDURL: "https://x/image/2405/big.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "apod/2024-05-05/big.jpg", key)

	_, err = a.ObjectKey(domain.Picture{Date: "2024-05-05"})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestArchiverUploadsOnceAndLinks(t *testing.T) {
	srv := newMediaServer(t)
	store := newMemoryStore()
	logger, _ := test.NewNullLogger()
	a := NewArchiver(store, ArchiveConfig{Bucket: "pics", KeyPrefix: "apod", LinkTTL: time.Hour, Logger: logger})

	pic := domain.Picture{Date: "2024-05-05", URL: srv.URL + "/p.jpg", MediaType: domain.MediaTypeImage}

	var reported int64
	res, err := a.Archive(context.Background(), pic, func(done, _ int64) { reported = done })
	require.NoError(t, err)
	assert.False(t, res.Existing)
	assert.Equal(t, "apod/2024-05-05/p.jpg", res.Key)
	assert.Equal(t, "s3://pics/apod/2024-05-05/p.jpg", res.Location)
	assert.Contains(t, res.URL, "apod/2024-05-05/p.jpg")
	assert.Equal(t, []byte("jpeg-bytes"), store.objects[res.Key])
	assert.Equal(t, "image/jpeg", store.types[res.Key])
	assert.EqualValues(t, len("jpeg-bytes"), reported)

	res, err = a.Archive(context.Background(), pic, nil)
	require.NoError(t, err)
	assert.True(t, res.Existing)
	assert.Equal(t, 1, store.uploads)
}

func TestArchiverRejectsVideoAndBadDownloads(t *testing.T) {
	srv := newMediaServer(t)
	store := newMemoryStore()
	a := NewArchiver(store, ArchiveConfig{Bucket: "pics"})

	_, err := a.Archive(context.Background(), domain.Picture{Date: "2024-05-05", URL: "https://youtube/embed/x", MediaType: domain.MediaTypeVideo}, nil)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = a.Archive(context.Background(), domain.Picture{Date: "2024-05-06", URL: srv.URL + "/missing.jpg", MediaType: domain.MediaTypeImage}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
	assert.Zero(t, store.uploads)
}

func TestProgressWriter(t *testing.T) {
	var calls [][2]int64
	p := &progressWriter{total: 4, notify: func(done, total int64) { calls = append(calls, [2]int64{done, total}) }}

	_, _ = p.Write([]byte("ab"))
	_, _ = p.Write([]byte("cd"))
	p.finish()

	require.Len(t, calls, 2)
	assert.Equal(t, [2]int64{2, 4}, calls[0])
	assert.Equal(t, [2]int64{4, 4}, calls[1])
}
