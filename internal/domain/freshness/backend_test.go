package freshness

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poap-og-server/internal/platform/storage"
	platformtesting "poap-og-server/internal/platform/testing"
)

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := backend.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Set(ctx, "0xabc", `{"url":"a"}`))
	got, err := backend.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, `{"url":"a"}`, got)

	require.NoError(t, backend.Set(ctx, "0xabc", `{"url":"b"}`))
	got, err = backend.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, `{"url":"b"}`, got)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestSQLiteBackend(t *testing.T) {
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	backend, err := NewSQLite(db)
	require.NoError(t, err)
	exerciseBackend(t, backend)
}

func TestRedisBackend(t *testing.T) {
	mr := platformtesting.StartRedis(t)

	backend, err := NewRedis(RedisConfig{Addr: mr.Addr()}, "og:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	exerciseBackend(t, backend)

	raw, err := mr.Get("og:0xabc")
	require.NoError(t, err)
	assert.Equal(t, `{"url":"b"}`, raw)
	assert.Zero(t, mr.TTL("og:0xabc"))
}

func TestRedisBackendRequiresReachableServer(t *testing.T) {
	_, err := NewRedis(RedisConfig{}, "")
	assert.Error(t, err)
}

// fakeKV mimics the Workers KV values endpoint.
type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	token  string
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	const prefix = "/accounts/acct/storage/kv/namespaces/ns/values/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		v, ok := f.values[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, v)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.values[key] = string(body)
		_, _ = io.WriteString(w, `{"success":true}`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestCloudflareBackend(t *testing.T) {
	kv := &fakeKV{values: map[string]string{}, token: "tok"}
	srv := httptest.NewServer(kv)
	defer srv.Close()

	backend, err := NewCloudflare(CloudflareConfig{
		BaseURL:     srv.URL,
		AccountID:   "acct",
		NamespaceID: "ns",
		APIToken:    "tok",
		Timeout:     time.Second,
	}, "")
	require.NoError(t, err)
	exerciseBackend(t, backend)
}

func TestCloudflareBackendServerErrorIsNotAMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	backend, err := NewCloudflare(CloudflareConfig{
		BaseURL: srv.URL, AccountID: "a", NamespaceID: "n", APIToken: "t", Timeout: time.Second,
	}, "")
	require.NoError(t, err)

	_, err = backend.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, backend.Set(context.Background(), "k", "v"))

	// the typed cache still degrades to a miss
	assert.Nil(t, NewCache(backend, nil).Get(context.Background(), "k"))
}

func TestFactory(t *testing.T) {
	b, err := New(Config{}, Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &memoryBackend{}, b)

	_, err = New(Config{Driver: DriverSQLite}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{Driver: DriverCloudflare}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{Driver: "etcd"}, Dependencies{})
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	b, err = New(Config{Driver: "REDIS", Redis: RedisConfig{Addr: mr.Addr()}}, Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &redisBackend{}, b)
	_ = b.Close()
}
