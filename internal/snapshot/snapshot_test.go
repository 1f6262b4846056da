package snapshot_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/database/sqlite"
	"github.com/koustreak/sqlguard/internal/errs"
	"github.com/koustreak/sqlguard/internal/filestore"
	"github.com/koustreak/sqlguard/internal/snapshot"
)

// memStore is an in-memory filestore.Store.
type memStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	removed []string
}

func newMemStore() *memStore {
	return &memStore{buckets: make(map[string]map[string][]byte)}
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
	return nil
}

func (m *memStore) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, errs.New(errs.ErrKindInvalidInput, "size mismatch")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "NoSuchBucket")
	}
	b[key] = data
	return &filestore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memStore) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "NoSuchKey")
	}
	return memObject{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		info:       &filestore.ObjectInfo{Key: key, Size: int64(len(data))},
	}, nil
}

func (m *memStore) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "NoSuchKey")
	}
	return &filestore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memStore) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []filestore.ObjectInfo
	for key, data := range m.buckets[bucket] {
		if strings.HasPrefix(key, opts.Prefix) {
			out = append(out, filestore.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) RemoveObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	m.removed = append(m.removed, key)
	return nil
}

func (m *memStore) put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
	m.buckets[bucket][key] = data
}

type memObject struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o memObject) Info() *filestore.ObjectInfo { return o.info }

// stepClock returns a clock that advances one minute per call.
func stepClock() func() time.Time {
	t := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func openSeeded(t *testing.T, n int) *database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.Open(ctx, database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.True(t, conn.Execute(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)"), conn.LastError())
	for i := 0; i < n; i++ {
		require.True(t, conn.Execute(ctx, "INSERT INTO items (name) VALUES ('item')"), conn.LastError())
	}
	return conn
}

func TestNew(t *testing.T) {
	_, err := snapshot.New(nil, snapshot.Config{Bucket: "b"})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = snapshot.New(newMemStore(), snapshot.Config{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = snapshot.New(newMemStore(), snapshot.Config{Bucket: "b", Keep: -1})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s, err := snapshot.New(store, snapshot.Config{Bucket: "backups", Prefix: "app/"},
		snapshot.WithClock(stepClock()))
	require.NoError(t, err)

	conn := openSeeded(t, 3)
	info, err := s.Save(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, "app/20240102T030505.000000000Z.db.zst", info.Key)
	assert.Positive(t, info.Size)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, info.Key, latest.Key)

	path := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, s.Restore(ctx, latest.Key, path))

	restored, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer restored.Close()
	rows := restored.Query(ctx, "SELECT COUNT(*) FROM items")
	require.Len(t, rows, 1, restored.LastError())
	assert.Equal(t, "3", rows[0][0])
}

func TestSave_ConnectionState(t *testing.T) {
	ctx := context.Background()
	s, err := snapshot.New(newMemStore(), snapshot.Config{Bucket: "backups"}, snapshot.WithClock(stepClock()))
	require.NoError(t, err)

	conn := openSeeded(t, 3)
	require.True(t, conn.Execute(ctx, "UPDATE items SET name = 'x' WHERE id <= 2"))
	require.False(t, conn.Execute(ctx, "SELECT * FROM missing"))
	require.NotEmpty(t, conn.LastError())

	_, err = s.Save(ctx, conn)
	require.NoError(t, err)

	assert.Empty(t, conn.LastError())
	assert.Equal(t, int64(2), conn.Changes())
	assert.Equal(t, int64(3), conn.LastInsertRowID())
}

func TestSave_ReplacesExistingFileOnRestore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s, err := snapshot.New(store, snapshot.Config{Bucket: "backups"}, snapshot.WithClock(stepClock()))
	require.NoError(t, err)

	info, err := s.Save(ctx, openSeeded(t, 1))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "app.db")
	existing, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.True(t, existing.Execute(ctx, "CREATE TABLE other (x)"))
	require.NoError(t, existing.Close())

	require.NoError(t, s.Restore(ctx, info.Key, path))

	conn, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer conn.Close()
	assert.Len(t, conn.Query(ctx, "SELECT name FROM sqlite_master WHERE name = 'other'"), 0)
	assert.Len(t, conn.Query(ctx, "SELECT * FROM items"), 1)
}

func TestSave_KeepPrunesOldest(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s, err := snapshot.New(store, snapshot.Config{Bucket: "backups", Keep: 2},
		snapshot.WithClock(stepClock()))
	require.NoError(t, err)

	conn := openSeeded(t, 1)
	var keys []string
	for i := 0; i < 4; i++ {
		info, err := s.Save(ctx, conn)
		require.NoError(t, err)
		keys = append(keys, info.Key)
	}

	snaps, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, keys[2], snaps[0].Key)
	assert.Equal(t, keys[3], snaps[1].Key)
	assert.Equal(t, []string{keys[0], keys[1]}, store.removed)
}

func TestPrune_KeepZero(t *testing.T) {
	s, err := snapshot.New(newMemStore(), snapshot.Config{Bucket: "backups"})
	require.NoError(t, err)

	n, err := s.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestList_IgnoresUnrelatedKeys(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.put("backups", "app/notes.txt", []byte("x"))
	store.put("backups", "app/latest.db.zst", []byte("x"))
	store.put("backups", "other/20240101T000000.000000000Z.db.zst", []byte("x"))
	store.put("backups", "app/20240101T000000.000000000Z.db.zst", []byte("x"))

	s, err := snapshot.New(store, snapshot.Config{Bucket: "backups", Prefix: "app/"})
	require.NoError(t, err)

	snaps, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "app/20240101T000000.000000000Z.db.zst", snaps[0].Key)
}

func TestLatest_Empty(t *testing.T) {
	s, err := snapshot.New(newMemStore(), snapshot.Config{Bucket: "backups"})
	require.NoError(t, err)

	_, err = s.Latest(context.Background())
	assert.True(t, errs.IsNotFound(err))
}

func TestSave_Failures(t *testing.T) {
	ctx := context.Background()
	s, err := snapshot.New(newMemStore(), snapshot.Config{Bucket: "backups"})
	require.NoError(t, err)

	t.Run("closed connection", func(t *testing.T) {
		conn := openSeeded(t, 0)
		require.NoError(t, conn.Close())
		_, err := s.Save(ctx, conn)
		assert.True(t, errs.IsConnectionFailed(err))
	})

	t.Run("inside a transaction", func(t *testing.T) {
		conn := openSeeded(t, 1)
		tx, err := database.NewTransaction(ctx, conn)
		require.NoError(t, err)
		defer tx.Close()

		_, err = s.Save(ctx, conn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to copy database")
	})
}

func TestRestore_Failures(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s, err := snapshot.New(store, snapshot.Config{Bucket: "backups"})
	require.NoError(t, err)
	dir := t.TempDir()

	t.Run("missing key", func(t *testing.T) {
		err := s.Restore(ctx, "nope.db.zst", filepath.Join(dir, "a.db"))
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("not zstd", func(t *testing.T) {
		store.put("backups", "garbage.db.zst", []byte("definitely not zstd"))
		err := s.Restore(ctx, "garbage.db.zst", filepath.Join(dir, "b.db"))
		assert.True(t, errs.IsInvalidInput(err))
	})

	t.Run("not sqlite", func(t *testing.T) {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = enc.Write([]byte("plain text that is long enough to read a header from"))
		require.NoError(t, err)
		require.NoError(t, enc.Close())

		store.put("backups", "text.db.zst", buf.Bytes())
		path := filepath.Join(dir, "c.db")
		err = s.Restore(ctx, "text.db.zst", path)
		assert.True(t, errs.IsInvalidInput(err))
		assert.NoFileExists(t, path)
	})
}
