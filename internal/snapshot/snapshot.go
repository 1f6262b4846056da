// Package snapshot ships compressed copies of a SQLite database to object
// storage and restores them.
//
// A snapshot is taken with VACUUM INTO, so it is a consistent, defragmented
// copy even while the source database is in use. Objects are named
// <prefix><UTC timestamp>.db.zst; the timestamp layout sorts
// lexicographically in time order.
package snapshot

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/koustreak/sqlguard/internal/database"
	"github.com/koustreak/sqlguard/internal/errs"
	"github.com/koustreak/sqlguard/internal/filestore"
	"github.com/koustreak/sqlguard/internal/logger"
)

const (
	// Suffix ends every snapshot key.
	Suffix = ".db.zst"

	contentType = "application/zstd"
	timeLayout  = "20060102T150405.000000000Z"
)

// sqliteHeader starts every SQLite database file.
var sqliteHeader = []byte("SQLite format 3\x00")

// Config selects where snapshots live.
type Config struct {
	Bucket string `yaml:"bucket" validate:"required"`

	// Prefix is prepended to every key, e.g. "backups/app/".
	Prefix string `yaml:"prefix"`

	// Keep is how many snapshots Save retains. 0 keeps all of them.
	Keep int `yaml:"keep" validate:"gte=0"`
}

// Snapshotter saves, lists, restores and prunes snapshots in one bucket.
// It is safe for concurrent use if the Store is, but Save must not run
// concurrently with other work on the same Connection.
type Snapshotter struct {
	store  filestore.Store
	bucket string
	prefix string
	keep   int
	log    *logger.Logger
	now    func() time.Time
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithLogger sets the logger for snapshot lifecycle events.
func WithLogger(l *logger.Logger) Option {
	return func(s *Snapshotter) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now when naming snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshotter) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Snapshotter writing to cfg.Bucket through store.
func New(store filestore.Store, cfg Config, opts ...Option) (*Snapshotter, error) {
	if store == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot store is nil")
	}
	if cfg.Bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot bucket is required")
	}
	if cfg.Keep < 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot keep must not be negative")
	}

	s := &Snapshotter{
		store:  store,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		keep:   cfg.Keep,
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save snapshots conn's main database and uploads it. Only the SQLite
// drivers are supported. Save fails if conn is inside a transaction.
// When Keep is set, older snapshots beyond it are pruned afterwards; a
// failed prune is logged, not returned.
//
// The copy runs as a statement on conn, so afterwards conn.LastError
// describes the VACUUM INTO. VACUUM is not DML: Changes and
// LastInsertRowID keep their values.
func (s *Snapshotter) Save(ctx context.Context, conn *database.Connection) (*filestore.ObjectInfo, error) {
	if conn == nil || !conn.IsOpen() {
		return nil, errs.New(errs.ErrKindConnectionFailed, "snapshot needs an open connection")
	}
	if d := conn.Driver(); d != database.DriverSQLite && d != database.DriverSQLite3 {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshots are not supported for driver "+string(d))
	}

	dir, err := os.MkdirTemp("", "sqlguard-snapshot-*")
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "failed to create snapshot directory", err)
	}
	defer os.RemoveAll(dir)

	raw := filepath.Join(dir, "snapshot.db")
	lit, err := database.QuoteLiteral(raw)
	if err != nil {
		return nil, err
	}
	if !conn.Execute(ctx, "VACUUM INTO "+lit) {
		cause := conn.Err()
		return nil, errs.Wrap(errs.KindOf(cause), "failed to copy database: "+conn.LastError(), cause)
	}

	compressed, size, err := compressFile(raw, filepath.Join(dir, "snapshot.db.zst"))
	if err != nil {
		return nil, err
	}
	defer compressed.Close()

	if err := s.store.EnsureBucket(ctx, s.bucket); err != nil {
		return nil, err
	}

	key := s.prefix + s.now().UTC().Format(timeLayout) + Suffix
	info, err := s.store.PutObject(ctx, s.bucket, key, compressed, size, contentType)
	if err != nil {
		return nil, err
	}

	s.log.InfoWith("snapshot saved", map[string]any{
		"bucket": s.bucket,
		"key":    key,
		"size":   size,
		"path":   conn.Path(),
	})

	if s.keep > 0 {
		if _, err := s.Prune(ctx); err != nil {
			s.log.WarnWith("snapshot prune failed", err, map[string]any{"bucket": s.bucket})
		}
	}
	return info, nil
}

// List returns the snapshots under the prefix, oldest first.
func (s *Snapshotter) List(ctx context.Context) ([]filestore.ObjectInfo, error) {
	objs, err := s.store.ListObjects(ctx, s.bucket, filestore.ListOptions{
		Prefix:    s.prefix,
		Recursive: true,
	})
	if err != nil {
		return nil, err
	}

	snaps := make([]filestore.ObjectInfo, 0, len(objs))
	for _, o := range objs {
		if o.IsDir || !s.isSnapshotKey(o.Key) {
			continue
		}
		snaps = append(snaps, o)
	}
	return snaps, nil
}

// Latest returns the newest snapshot, or a not_found error if there is none.
func (s *Snapshotter) Latest(ctx context.Context) (*filestore.ObjectInfo, error) {
	snaps, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, errs.New(errs.ErrKindNotFound, "no snapshots in "+s.bucket+"/"+s.prefix)
	}
	latest := snaps[len(snaps)-1]
	return &latest, nil
}

// Restore downloads the snapshot at key and writes the database to path.
// path is replaced atomically: readers see either the old file or the
// complete restored one. Close any Connection on path first.
func (s *Snapshotter) Restore(ctx context.Context, key, path string) error {
	obj, err := s.store.GetObject(ctx, s.bucket, key)
	if err != nil {
		return err
	}
	defer obj.Close()

	dec, err := zstd.NewReader(obj)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to create zstd decompressor", err)
	}
	defer dec.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(dec, header); err != nil || !bytes.Equal(header, sqliteHeader) {
		return errs.Wrap(errs.ErrKindInvalidInput, "snapshot "+key+" is not a SQLite database", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sqlguard-restore-*")
	if err != nil {
		return errs.Wrap(errs.ErrKindPermissionDenied, "failed to create restore file", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(header); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to write restore file", err)
	}
	if _, err := io.Copy(tmp, dec); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to decompress snapshot "+key, err)
	}
	if err := tmp.Sync(); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to sync restore file", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to close restore file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to move restored database into place", err)
	}
	committed = true

	s.log.InfoWith("snapshot restored", map[string]any{
		"bucket": s.bucket,
		"key":    key,
		"path":   path,
	})
	return nil
}

// Prune removes the oldest snapshots beyond Keep and returns how many were
// removed. With Keep at 0 it does nothing.
func (s *Snapshotter) Prune(ctx context.Context) (int, error) {
	if s.keep == 0 {
		return 0, nil
	}
	snaps, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	excess := len(snaps) - s.keep
	removed := 0
	for i := 0; i < excess; i++ {
		if err := s.store.RemoveObject(ctx, s.bucket, snaps[i].Key); err != nil {
			return removed, err
		}
		removed++
		s.log.DebugWith("snapshot pruned", map[string]any{"key": snaps[i].Key})
	}
	return removed, nil
}

func (s *Snapshotter) isSnapshotKey(key string) bool {
	if !strings.HasPrefix(key, s.prefix) || !strings.HasSuffix(key, Suffix) {
		return false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), Suffix)
	_, err := time.Parse(timeLayout, stamp)
	return err == nil
}

// compressFile zstd-compresses src into dst and returns dst rewound for
// reading, along with its size.
func compressFile(src, dst string) (*os.File, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, 0, errs.Wrap(errs.ErrKindUnknown, "failed to open database copy", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return nil, 0, errs.Wrap(errs.ErrKindUnknown, "failed to create compressed snapshot", err)
	}

	enc, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		return nil, 0, errs.Wrap(errs.ErrKindUnknown, "failed to create zstd compressor", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		return nil, 0, errs.Wrap(errs.ErrKindUnknown, "failed to compress snapshot", err)
	}
	// Close flushes the final frame
	if err := enc.Close(); err != nil {
		out.Close()
		return nil, 0, errs.Wrap(errs.ErrKindUnknown, "failed to close compressor", err)
	}

	size, err := out.Seek(0, io.SeekCurrent)
	if err == nil {
		_, err = out.Seek(0, io.SeekStart)
	}
	if err != nil {
		out.Close()
		return nil, 0, errs.Wrap(errs.ErrKindUnknown, "failed to rewind compressed snapshot", err)
	}
	return out, size, nil
}
