package models

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEntry(t *testing.T) {
	f := NewFileEntry("docs/report.pdf", 2048)

	assert.Equal(t, "docs/report.pdf", f.Key())
	assert.Equal(t, "report.pdf", f.Name())
	assert.Equal(t, int64(2048), f.Size())
	assert.Equal(t, DefaultOwner, f.Owner())
	assert.Equal(t, DefaultGroup, f.Group())
	assert.Equal(t, int64(1), f.NumberOfLinks())

	_, ok := f.LastWriteTime()
	assert.False(t, ok)
	_, ok = f.CreatedTime()
	assert.False(t, ok)
}

func TestDirectoryEntryAddsDelimiter(t *testing.T) {
	d := NewDirectoryEntry("docs/archive", false)

	assert.Equal(t, "docs/archive/", d.Key())
	assert.Equal(t, "archive", d.Name())
	assert.False(t, d.IsRoot())
	assert.True(t, d.IsDeletable())
}

func TestDirectoryEntryKeepsExistingDelimiter(t *testing.T) {
	d := NewDirectoryEntry("docs/", false)
	assert.Equal(t, "docs/", d.Key())
	assert.Equal(t, "docs", d.Name())
}

func TestRootDirectory(t *testing.T) {
	t.Run("bucket root", func(t *testing.T) {
		root := NewDirectoryEntry("", true)
		assert.Equal(t, "", root.Key())
		assert.Equal(t, "", root.Name())
		assert.True(t, root.IsRoot())
		assert.False(t, root.IsDeletable())
	})

	t.Run("scoped root", func(t *testing.T) {
		root := NewDirectoryEntry("ftp/alice", true)
		assert.Equal(t, "ftp/alice/", root.Key())
		assert.Equal(t, "alice", root.Name())
		assert.False(t, root.IsDeletable())
	})
}

func TestSetLastWriteTimeOnlyOnce(t *testing.T) {
	f := NewFileEntry("a.txt", 1)
	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, f.SetLastWriteTime(first))
	assert.False(t, f.SetLastWriteTime(first.Add(time.Hour)))

	got, ok := f.LastWriteTime()
	assert.True(t, ok)
	assert.Equal(t, first, got)
}

func TestPermissions(t *testing.T) {
	p := NewFileEntry("a", 0).Permissions()
	assert.Equal(t, FullAccess, p)
	assert.Equal(t, "rwxrwxrwx", p.String())
	assert.Equal(t, fs.FileMode(0o777), p.Mode())

	partial := Permissions{User: AccessMode{Read: true, Write: true}, Group: AccessMode{Read: true}}
	assert.Equal(t, "rw-r-----", partial.String())
	assert.Equal(t, fs.FileMode(0o640), partial.Mode())
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		NewFileEntry("d/b.txt", 1),
		NewDirectoryEntry("d/Z", false),
		NewFileEntry("d/a.txt", 1),
	}

	SortEntries(entries)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"Z", "a.txt", "b.txt"}, names)
	assert.True(t, IsDirectory(entries[0]))
	assert.False(t, IsDirectory(entries[1]))
}
