package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/damacus/bucketfs/internal/keypath"
	"github.com/damacus/bucketfs/internal/models"
)

// Create uploads data as name inside dir, replacing any object already at
// that key. data is closed on every path.
func (g *Gateway) Create(ctx context.Context, dir *models.DirectoryEntry, name string, data io.ReadCloser) (*models.FileEntry, error) {
	data = orEmpty(data)
	defer data.Close()

	if !validName(name) {
		return nil, &Error{Op: OpCreate, Key: dir.Key(), Err: fmt.Errorf("%w: %q", ErrInvalidName, name)}
	}
	return g.upload(ctx, OpCreate, keypath.Join(dir.Key(), name), data)
}

// Replace overwrites the content of file unconditionally. data is closed on
// every path.
func (g *Gateway) Replace(ctx context.Context, file *models.FileEntry, data io.ReadCloser) (*models.FileEntry, error) {
	data = orEmpty(data)
	defer data.Close()

	return g.upload(ctx, OpReplace, file.Key(), data)
}

// Append always fails with ErrAppendNotSupported after closing data
func (g *Gateway) Append(ctx context.Context, file *models.FileEntry, offset *int64, data io.ReadCloser) error {
	if data != nil {
		_ = data.Close()
	}
	key := ""
	if file != nil {
		key = file.Key()
	}
	return &Error{Op: OpAppend, Key: key, Err: ErrAppendNotSupported}
}

// CreateDirectory writes the zero-length marker object for name inside dir
func (g *Gateway) CreateDirectory(ctx context.Context, dir *models.DirectoryEntry, name string) (*models.DirectoryEntry, error) {
	if !validName(name) {
		return nil, &Error{Op: OpMkdir, Key: dir.Key(), Err: fmt.Errorf("%w: %q", ErrInvalidName, name)}
	}
	key := keypath.EnsureDir(keypath.Join(dir.Key(), name))

	info, err := g.store.PutObject(ctx, g.bucket, key, bytes.NewReader(nil), 0)
	if err != nil {
		return nil, newError(OpMkdir, key, err)
	}
	g.log.Debug().Str("op", string(OpMkdir)).Str("key", key).Msg("marker written")

	created := models.NewDirectoryEntry(key, false)
	if !info.LastModified.IsZero() {
		created.SetLastWriteTime(info.LastModified)
	}
	return created, nil
}

// Unlink deletes the single object at the entry's key. Deleting a directory
// removes only its marker; callers enumerate descendants themselves.
func (g *Gateway) Unlink(ctx context.Context, entry models.Entry) error {
	if dir, ok := entry.(*models.DirectoryEntry); ok && dir.IsRoot() {
		return &Error{Op: OpUnlink, Key: dir.Key(), Err: ErrRootDirectory}
	}
	if err := g.store.RemoveObject(ctx, g.bucket, entry.Key()); err != nil {
		return newError(OpUnlink, entry.Key(), err)
	}
	g.log.Debug().Str("op", string(OpUnlink)).Str("key", entry.Key()).Msg("object removed")
	return nil
}

func (g *Gateway) upload(ctx context.Context, op Op, key string, data io.Reader) (*models.FileEntry, error) {
	info, err := g.store.PutObject(ctx, g.bucket, key, data, streamSize(data))
	if err != nil {
		return nil, newError(op, key, err)
	}
	g.log.Debug().Str("op", string(op)).Str("key", key).Int64("size", info.Size).Msg("object written")

	file := models.NewFileEntry(key, info.Size)
	if !info.LastModified.IsZero() {
		file.SetLastWriteTime(info.LastModified)
	}
	return file, nil
}

// streamSize reports the remaining length of r when it can tell without
// reading, or -1
func streamSize(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len())
	case interface{ Size() int64 }:
		return v.Size()
	case interface{ Stat() (fs.FileInfo, error) }:
		if fi, err := v.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size()
		}
	}
	return -1
}

func orEmpty(data io.ReadCloser) io.ReadCloser {
	if data == nil {
		return io.NopCloser(bytes.NewReader(nil))
	}
	return data
}
