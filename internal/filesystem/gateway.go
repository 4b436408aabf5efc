// Package filesystem presents a bucket as a tree of directories and files.
// Directories exist either as zero-length marker objects whose key ends with
// the delimiter or implicitly as the common prefix of other keys.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/damacus/bucketfs/internal/keypath"
	"github.com/damacus/bucketfs/internal/models"
	"github.com/damacus/bucketfs/internal/services"
)

// DefaultMoveConcurrency bounds the per-object moves of a directory move
const DefaultMoveConcurrency = 8

// Gateway translates tree operations into object store calls. It keeps no
// state besides its configuration and is safe for concurrent use.
type Gateway struct {
	store           services.ObjectStore
	bucket          string
	rootKey         string
	log             zerolog.Logger
	pageSize        int
	moveConcurrency int
	now             func() time.Time
}

// Option configures a Gateway
type Option func(*Gateway)

func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithPageSize sets MaxKeys for listing requests. Zero uses the store default.
func WithPageSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.pageSize = n
		}
	}
}

func WithMoveConcurrency(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.moveConcurrency = n
		}
	}
}

// WithClock replaces time.Now for timestamps the gateway synthesizes
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway scopes store to rootKey inside bucket. An empty rootKey exposes
// the whole bucket.
func NewGateway(store services.ObjectStore, bucket, rootKey string, opts ...Option) *Gateway {
	rootKey = keypath.Clean(rootKey)
	if rootKey != "" {
		rootKey = keypath.EnsureDir(rootKey)
	}
	g := &Gateway{
		store:           store,
		bucket:          bucket,
		rootKey:         rootKey,
		log:             zerolog.Nop(),
		moveConcurrency: DefaultMoveConcurrency,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With().Str("bucket", bucket).Str("root", rootKey).Logger()
	return g
}

func (g *Gateway) Bucket() string { return g.bucket }

// Root returns the directory the gateway is scoped to
func (g *Gateway) Root() *models.DirectoryEntry {
	return models.NewDirectoryEntry(g.rootKey, true)
}

// SupportsAppend is always false: objects are immutable once written
func (g *Gateway) SupportsAppend() bool { return false }

// ListEntries returns the immediate children of dir in store order. The
// directory's own marker object is not included.
func (g *Gateway) ListEntries(ctx context.Context, dir *models.DirectoryEntry) ([]models.Entry, error) {
	entries, err := g.listObjects(ctx, dir.Key(), false)
	if err != nil {
		return nil, newError(OpList, dir.Key(), err)
	}
	return entries, nil
}

// GetEntryByName resolves name inside dir. An exact object wins over a
// directory of the same name. A directory backed only by descendants is
// returned without a last write time.
func (g *Gateway) GetEntryByName(ctx context.Context, dir *models.DirectoryEntry, name string) (models.Entry, error) {
	if !validName(name) {
		return nil, &Error{Op: OpLookup, Key: dir.Key(), Err: fmt.Errorf("%w: %q", ErrInvalidName, name)}
	}
	key := keypath.Join(dir.Key(), name)

	info, err := g.store.StatObject(ctx, g.bucket, key)
	switch {
	case err == nil:
		g.log.Debug().Str("op", string(OpLookup)).Str("key", key).Msg("exact object")
		return entryFromObject(info), nil
	case !errors.Is(err, services.ErrObjectNotFound):
		return nil, newError(OpLookup, key, err)
	}

	dirKey := keypath.EnsureDir(key)
	children, err := g.listObjects(ctx, dirKey, true)
	if err != nil {
		return nil, newError(OpLookup, dirKey, err)
	}
	if len(children) == 0 {
		return nil, &Error{Op: OpLookup, Key: key, Err: ErrNotFound}
	}

	found := models.NewDirectoryEntry(dirKey, false)
	for _, child := range children {
		if child.Key() != dirKey {
			continue
		}
		if t, ok := child.LastWriteTime(); ok {
			found.SetLastWriteTime(t)
		}
		break
	}
	g.log.Debug().Str("op", string(OpLookup)).Str("key", dirKey).Int("children", len(children)).Msg("directory by prefix")
	return found, nil
}

// Resolve walks a slash separated path from the root. "" and "/" resolve to
// the root itself.
func (g *Gateway) Resolve(ctx context.Context, path string) (models.Entry, error) {
	var current models.Entry = g.Root()
	for _, segment := range keypath.Split(path) {
		dir, ok := current.(*models.DirectoryEntry)
		if !ok {
			return nil, &Error{Op: OpLookup, Key: keypath.Join(current.Key(), segment), Err: ErrNotFound}
		}
		next, err := g.GetEntryByName(ctx, dir, segment)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// OpenRead opens file for reading starting at offset. A non-zero offset needs
// a seekable stream; nothing is buffered to emulate one.
func (g *Gateway) OpenRead(ctx context.Context, file *models.FileEntry, offset int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, &Error{Op: OpRead, Key: file.Key(), Err: fmt.Errorf("negative offset %d", offset)}
	}
	rc, _, err := g.store.GetObject(ctx, g.bucket, file.Key())
	if err != nil {
		return nil, newError(OpRead, file.Key(), err)
	}
	if offset == 0 {
		return rc, nil
	}

	seeker, ok := rc.(io.Seeker)
	if !ok {
		_ = rc.Close()
		return nil, &Error{Op: OpRead, Key: file.Key(), Err: ErrNotSeekable}
	}
	if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
		_ = rc.Close()
		return nil, newError(OpRead, file.Key(), err)
	}
	g.log.Debug().Str("op", string(OpRead)).Str("key", file.Key()).Int64("offset", offset).Msg("seek")
	return rc, nil
}

// SetTimes accepts new timestamps without persisting them. Object metadata
// cannot be changed in place.
func (g *Gateway) SetTimes(ctx context.Context, entry models.Entry, modify, access, create *time.Time) (models.Entry, error) {
	g.log.Debug().Str("key", entry.Key()).Msg("set times ignored")
	return entry, nil
}

// listObjects drains a delimiter listing of prefix. The marker object equal to
// prefix is returned only when includeSelf is set.
func (g *Gateway) listObjects(ctx context.Context, prefix string, includeSelf bool) ([]models.Entry, error) {
	var entries []models.Entry
	opts := services.ListObjectsOptions{
		Prefix:    prefix,
		Delimiter: keypath.Delimiter,
		MaxKeys:   g.pageSize,
	}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := g.store.ListObjectsPage(ctx, g.bucket, opts)
		if err != nil {
			return nil, err
		}
		g.log.Debug().
			Str("op", string(OpList)).
			Str("key", prefix).
			Int("page", page).
			Int("objects", len(result.Objects)).
			Int("prefixes", len(result.CommonPrefixes)).
			Msg("list page")

		for _, p := range result.CommonPrefixes {
			entries = append(entries, models.NewDirectoryEntry(p, false))
		}
		for _, obj := range result.Objects {
			if obj.Key == prefix && keypath.IsDir(obj.Key) && !includeSelf {
				continue
			}
			entries = append(entries, entryFromObject(obj))
		}

		if !result.IsTruncated {
			return entries, nil
		}
		if result.NextContinuationToken == "" {
			return nil, fmt.Errorf("truncated listing of %q without continuation token", prefix)
		}
		opts.ContinuationToken = result.NextContinuationToken
	}
}

// listRecursive drains a listing of every object below prefix
func (g *Gateway) listRecursive(ctx context.Context, prefix string) ([]services.ObjectInfo, error) {
	var objects []services.ObjectInfo
	opts := services.ListObjectsOptions{Prefix: prefix, MaxKeys: g.pageSize}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := g.store.ListObjectsPage(ctx, g.bucket, opts)
		if err != nil {
			return nil, err
		}
		objects = append(objects, result.Objects...)
		if !result.IsTruncated {
			return objects, nil
		}
		if result.NextContinuationToken == "" {
			return nil, fmt.Errorf("truncated listing of %q without continuation token", prefix)
		}
		opts.ContinuationToken = result.NextContinuationToken
	}
}

func entryFromObject(info services.ObjectInfo) models.Entry {
	var e interface {
		models.Entry
		SetLastWriteTime(time.Time) bool
	}
	if keypath.IsDir(info.Key) {
		e = models.NewDirectoryEntry(info.Key, false)
	} else {
		e = models.NewFileEntry(info.Key, info.Size)
	}
	if !info.LastModified.IsZero() {
		e.SetLastWriteTime(info.LastModified)
	}
	return e
}

// validName rejects names that would not round-trip through keypath.Name
func validName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.Contains(name, keypath.Delimiter)
}
