package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "yfinance.cache")
	s, err := OpenSQLite(path)
	require.NoError(t, err, "failed to open sqlite cache")
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return client, mr
}

func TestSQLite_GetMissing(t *testing.T) {
	s, _ := setupSQLite(t)

	body, ok, err := s.Get(context.Background(), "GET /v10/finance/quoteSummary/AAA")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, body)
}

func TestSQLite_SetGetOverwrite(t *testing.T) {
	s, _ := setupSQLite(t)
	ctx := context.Background()
	key := "GET /v10/finance/quoteSummary/AAA?modules=price"

	require.NoError(t, s.Set(ctx, key, []byte(`{"v":1}`)))
	require.NoError(t, s.Set(ctx, key, []byte(`{"v":2}`)))

	body, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"v":2}`, string(body))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yfinance.cache")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", []byte("body")))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	body, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "body", string(body))
}

func TestSQLite_Clear(t *testing.T) {
	s, _ := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Set(ctx, "b", []byte("2")))

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, 0, "")
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "GET /x AAA", []byte("body")))

	body, ok, err := r.Get(ctx, "GET /x AAA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "body", string(body))

	assert.True(t, mr.Exists("etfkpis:GET_/x_AAA"))
	assert.Equal(t, time.Duration(0), mr.TTL("etfkpis:GET_/x_AAA"), "entries must not expire by default")
}

func TestRedis_GetMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, 0, "")

	body, ok, err := r.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, body)
}

func TestRedis_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, time.Hour, "ns")
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("v")))
	assert.Equal(t, time.Hour, mr.TTL("ns:k"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Clear(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, 0, "ns")
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte("1")))
	require.NoError(t, r.Set(ctx, "b", []byte("2")))
	require.NoError(t, mr.Set("other:c", "3"))

	n, err := r.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("other:c"))
}

func TestOpen(t *testing.T) {
	_, mr := setupTestRedis(t)

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"sqlite", Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "c.db")}, false},
		{"default backend", Options{Path: filepath.Join(t.TempDir(), "c.db")}, false},
		{"sqlite without path", Options{Backend: BackendSQLite}, true},
		{"redis", Options{Backend: BackendRedis, RedisAddr: mr.Addr()}, false},
		{"redis without addr", Options{Backend: BackendRedis}, true},
		{"unknown", Options{Backend: "memcached"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}
