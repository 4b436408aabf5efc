package filesystem

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/damacus/bucketfs/internal/models"
	"github.com/damacus/bucketfs/internal/services"
)

const testBucket = "files"

func seed(t *testing.T, objects map[string]string) *services.MemoryStore {
	t.Helper()
	mem := services.NewMemoryStore()
	for key, body := range objects {
		_, err := mem.PutObject(context.Background(), testBucket, key, strings.NewReader(body), int64(len(body)))
		require.NoError(t, err)
	}
	return mem
}

func keys(entries []models.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key())
	}
	return out
}

func dir(key string) *models.DirectoryEntry {
	return models.NewDirectoryEntry(key, false)
}

func TestGateway_Root(t *testing.T) {
	tests := []struct {
		rootKey string
		want    string
	}{
		{"", ""},
		{"/", ""},
		{"users/alice", "users/alice/"},
		{"/users//alice/", "users/alice/"},
	}
	for _, tt := range tests {
		t.Run(tt.rootKey, func(t *testing.T) {
			g := NewGateway(services.NewMemoryStore(), testBucket, tt.rootKey)
			root := g.Root()
			assert.Equal(t, tt.want, root.Key())
			assert.True(t, root.IsRoot())
			assert.False(t, root.IsDeletable())
		})
	}
}

func TestGateway_SupportsAppend(t *testing.T) {
	g := NewGateway(services.NewMemoryStore(), testBucket, "")
	assert.False(t, g.SupportsAppend())
}

func TestListEntries(t *testing.T) {
	mem := seed(t, map[string]string{
		"a/":        "",
		"a/x.txt":   "x",
		"a/y.txt":   "yy",
		"a/sub/1":   "1",
		"a/sub/2":   "2",
		"a/z/deep/": "",
		"b.txt":     "b",
	})
	mem.SetPageSize(2)
	g := NewGateway(mem, testBucket, "")

	entries, err := g.ListEntries(context.Background(), dir("a/"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/sub/", "a/z/", "a/x.txt", "a/y.txt"}, keys(entries))

	for _, e := range entries {
		switch e.Key() {
		case "a/sub/", "a/z/":
			assert.True(t, models.IsDirectory(e), e.Key())
			_, ok := e.LastWriteTime()
			assert.False(t, ok, "common prefixes carry no metadata")
		case "a/y.txt":
			file := e.(*models.FileEntry)
			assert.Equal(t, int64(2), file.Size())
			_, ok := file.LastWriteTime()
			assert.True(t, ok)
		}
	}
}

func TestListEntries_PaginationTransparency(t *testing.T) {
	objects := map[string]string{"d/": ""}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		objects["d/"+name] = name
		objects["d/dir-"+name+"/inner"] = name
	}
	mem := seed(t, objects)
	g := NewGateway(mem, testBucket, "")

	want, err := g.ListEntries(context.Background(), dir("d/"))
	require.NoError(t, err)
	require.Len(t, want, 14)

	for size := 1; size <= 15; size++ {
		mem.SetPageSize(size)
		got, err := g.ListEntries(context.Background(), dir("d/"))
		require.NoError(t, err)
		assert.ElementsMatch(t, keys(want), keys(got), "page size %d", size)
	}
}

func TestListEntries_RootScope(t *testing.T) {
	mem := seed(t, map[string]string{
		"users/alice/":          "",
		"users/alice/notes.txt": "n",
		"users/alice/pics/1":    "p",
		"users/bob/secret.txt":  "s",
	})
	g := NewGateway(mem, testBucket, "users/alice")

	entries, err := g.ListEntries(context.Background(), g.Root())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users/alice/notes.txt", "users/alice/pics/"}, keys(entries))
}

func TestListEntries_ChecksCancellationBetweenPages(t *testing.T) {
	mem := seed(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	mem.SetPageSize(1)
	store := newFaultyStore(mem)
	ctx, cancel := context.WithCancel(context.Background())
	store.afterPage = func(page int) {
		if page == 1 {
			cancel()
		}
	}
	g := NewGateway(store, testBucket, "")

	entries, err := g.ListEntries(ctx, g.Root())
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.pages)
}

func TestListEntries_TruncatedWithoutToken(t *testing.T) {
	store := new(MockObjectStore)
	store.On("ListObjectsPage", mock.Anything, testBucket, mock.Anything).
		Return(services.ListObjectsResult{IsTruncated: true}, nil)
	g := NewGateway(store, testBucket, "")

	_, err := g.ListEntries(context.Background(), g.Root())
	assert.Error(t, err)
}

func TestListEntries_StorageFault(t *testing.T) {
	boom := errors.New("connection reset")
	store := new(MockObjectStore)
	store.On("ListObjectsPage", mock.Anything, testBucket, mock.Anything).
		Return(services.ListObjectsResult{}, boom)
	g := NewGateway(store, testBucket, "")

	_, err := g.ListEntries(context.Background(), dir("a/"))
	assert.ErrorIs(t, err, boom)

	var fsErr *Error
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, OpList, fsErr.Op)
	assert.Equal(t, "a/", fsErr.Key)
}

func TestGetEntryByName(t *testing.T) {
	mem := seed(t, map[string]string{
		"docs/readme.md":      "hello",
		"docs/marked/":        "",
		"docs/marked/x":       "x",
		"docs/implicit/y.txt": "y",
		"docs/empty/":         "",
	})
	mem.SetPageSize(1)
	g := NewGateway(mem, testBucket, "")
	docs := dir("docs/")

	t.Run("exact file", func(t *testing.T) {
		e, err := g.GetEntryByName(context.Background(), docs, "readme.md")
		require.NoError(t, err)
		file, ok := e.(*models.FileEntry)
		require.True(t, ok)
		assert.Equal(t, "docs/readme.md", file.Key())
		assert.Equal(t, "readme.md", file.Name())
		assert.Equal(t, int64(5), file.Size())
		_, ok = file.LastWriteTime()
		assert.True(t, ok)
	})

	t.Run("directory with marker", func(t *testing.T) {
		e, err := g.GetEntryByName(context.Background(), docs, "marked")
		require.NoError(t, err)
		assert.True(t, models.IsDirectory(e))
		assert.Equal(t, "docs/marked/", e.Key())
		_, ok := e.LastWriteTime()
		assert.True(t, ok, "marker object supplies metadata")
	})

	t.Run("empty directory with marker", func(t *testing.T) {
		e, err := g.GetEntryByName(context.Background(), docs, "empty")
		require.NoError(t, err)
		assert.Equal(t, "docs/empty/", e.Key())
	})

	t.Run("implicit directory", func(t *testing.T) {
		e, err := g.GetEntryByName(context.Background(), docs, "implicit")
		require.NoError(t, err)
		assert.True(t, models.IsDirectory(e))
		assert.Equal(t, "docs/implicit/", e.Key())
		_, ok := e.LastWriteTime()
		assert.False(t, ok, "prefix-only directories have no metadata")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := g.GetEntryByName(context.Background(), docs, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("prefix of another name is not a match", func(t *testing.T) {
		_, err := g.GetEntryByName(context.Background(), docs, "read")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "a/b"} {
			_, err := g.GetEntryByName(context.Background(), docs, name)
			assert.ErrorIs(t, err, ErrInvalidName, name)
		}
	})
}

func TestGetEntryByName_PropagatesStatFault(t *testing.T) {
	boom := errors.New("access denied")
	store := new(MockObjectStore)
	store.On("StatObject", mock.Anything, testBucket, "a").Return(services.ObjectInfo{}, boom)
	g := NewGateway(store, testBucket, "")

	_, err := g.GetEntryByName(context.Background(), g.Root(), "a")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
	store.AssertNotCalled(t, "ListObjectsPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve(t *testing.T) {
	mem := seed(t, map[string]string{
		"root/a/b/c.txt": "c",
		"root/top.txt":   "t",
	})
	g := NewGateway(mem, testBucket, "root")

	root, err := g.Resolve(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "root/", root.Key())

	e, err := g.Resolve(context.Background(), "a//b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "root/a/b/c.txt", e.Key())

	e, err = g.Resolve(context.Background(), "/a/b/")
	require.NoError(t, err)
	assert.Equal(t, "root/a/b/", e.Key())

	_, err = g.Resolve(context.Background(), "top.txt/child")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = g.Resolve(context.Background(), "a/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenRead(t *testing.T) {
	mem := seed(t, map[string]string{"f.txt": "0123456789"})
	g := NewGateway(mem, testBucket, "")
	file := models.NewFileEntry("f.txt", 10)

	rc, err := g.OpenRead(context.Background(), file, 0)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "0123456789", string(data))

	rc, err = g.OpenRead(context.Background(), file, 7)
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "789", string(data))

	_, err = g.OpenRead(context.Background(), file, -1)
	assert.Error(t, err)

	_, err = g.OpenRead(context.Background(), models.NewFileEntry("gone.txt", 1), 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, services.ErrObjectNotFound)
}

func TestOpenRead_NonSeekableStream(t *testing.T) {
	body := &trackingReader{Reader: strings.NewReader("abc")}
	store := new(MockObjectStore)
	store.On("GetObject", mock.Anything, testBucket, "f").Return(body, services.ObjectInfo{Key: "f", Size: 3}, nil)
	g := NewGateway(store, testBucket, "")

	_, err := g.OpenRead(context.Background(), models.NewFileEntry("f", 3), 1)
	assert.ErrorIs(t, err, ErrNotSeekable)
	assert.True(t, body.closed)
}

func TestSetTimesIsNoOp(t *testing.T) {
	mem := seed(t, map[string]string{"f": "x"})
	g := NewGateway(mem, testBucket, "")
	file := models.NewFileEntry("f", 1)
	when := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	e, err := g.SetTimes(context.Background(), file, &when, &when, &when)
	require.NoError(t, err)
	assert.Same(t, file, e)

	info, err := mem.StatObject(context.Background(), testBucket, "f")
	require.NoError(t, err)
	assert.NotEqual(t, when, info.LastModified)
}
