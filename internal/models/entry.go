// Package models contains the file and directory entries handed to callers
package models

import (
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/damacus/bucketfs/internal/keypath"
)

// Placeholder ownership reported for every entry. Object stores have no
// POSIX owners.
const (
	DefaultOwner = "owner"
	DefaultGroup = "group"
)

// AccessMode is one read/write/execute triple.
type AccessMode struct {
	Read    bool
	Write   bool
	Execute bool
}

func (m AccessMode) String() string {
	b := []byte("---")
	if m.Read {
		b[0] = 'r'
	}
	if m.Write {
		b[1] = 'w'
	}
	if m.Execute {
		b[2] = 'x'
	}
	return string(b)
}

func (m AccessMode) bits() fs.FileMode {
	var mode fs.FileMode
	if m.Read {
		mode |= 4
	}
	if m.Write {
		mode |= 2
	}
	if m.Execute {
		mode |= 1
	}
	return mode
}

// Permissions holds the user/group/other access modes of an entry.
type Permissions struct {
	User  AccessMode
	Group AccessMode
	Other AccessMode
}

// FullAccess grants rwx to everybody. It is the only permission set entries
// ever carry; bucket ACLs are not mapped.
var FullAccess = Permissions{
	User:  AccessMode{Read: true, Write: true, Execute: true},
	Group: AccessMode{Read: true, Write: true, Execute: true},
	Other: AccessMode{Read: true, Write: true, Execute: true},
}

func (p Permissions) String() string {
	return p.User.String() + p.Group.String() + p.Other.String()
}

// Mode returns the permission bits as an fs.FileMode (0777 for FullAccess).
func (p Permissions) Mode() fs.FileMode {
	return p.User.bits()<<6 | p.Group.bits()<<3 | p.Other.bits()
}

// Entry is implemented by every file and directory handle.
type Entry interface {
	// Key is the full object key. Directory keys end with the delimiter.
	Key() string
	Name() string
	Owner() string
	Group() string
	Permissions() Permissions
	// LastWriteTime reports false when the store did not supply a timestamp.
	LastWriteTime() (time.Time, bool)
	// CreatedTime always reports false: object stores do not track creation.
	CreatedTime() (time.Time, bool)
	NumberOfLinks() int64
}

type entry struct {
	key       string
	lastWrite time.Time
	hasWrite  bool
}

func (e *entry) Key() string              { return e.key }
func (e *entry) Name() string             { return keypath.Name(e.key) }
func (e *entry) Owner() string            { return DefaultOwner }
func (e *entry) Group() string            { return DefaultGroup }
func (e *entry) Permissions() Permissions { return FullAccess }
func (e *entry) NumberOfLinks() int64     { return 1 }

func (e *entry) LastWriteTime() (time.Time, bool) {
	return e.lastWrite, e.hasWrite
}

func (e *entry) CreatedTime() (time.Time, bool) {
	return time.Time{}, false
}

// SetLastWriteTime records the modification time once it becomes known.
// It reports false, leaving the entry untouched, if a time was already set.
func (e *entry) SetLastWriteTime(t time.Time) bool {
	if e.hasWrite {
		return false
	}
	e.lastWrite = t
	e.hasWrite = true
	return true
}

// FileEntry is an object whose key does not end with the delimiter.
type FileEntry struct {
	entry
	size int64
}

// NewFileEntry builds a file handle for key with the object's content length.
func NewFileEntry(key string, size int64) *FileEntry {
	return &FileEntry{entry: entry{key: key}, size: size}
}

// Size returns the object content length in bytes.
func (f *FileEntry) Size() int64 { return f.size }

// DirectoryEntry is a key prefix that behaves like a directory.
type DirectoryEntry struct {
	entry
	root bool
}

// NewDirectoryEntry builds a directory handle. The key gets a trailing
// delimiter unless it is the empty root key (the whole bucket).
func NewDirectoryEntry(key string, isRoot bool) *DirectoryEntry {
	if !isRoot || key != "" {
		key = keypath.EnsureDir(key)
	}
	return &DirectoryEntry{entry: entry{key: key}, root: isRoot}
}

// IsRoot reports whether this is the root of the gateway.
func (d *DirectoryEntry) IsRoot() bool { return d.root }

// IsDeletable is false only for the root directory.
func (d *DirectoryEntry) IsDeletable() bool { return !d.root }

// IsDirectory reports whether e is a directory handle.
func IsDirectory(e Entry) bool {
	_, ok := e.(*DirectoryEntry)
	return ok
}

// SortEntries orders entries by name using ordinal comparison. Listings are
// returned in store order; callers that need a stable order sort here.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.Compare(entries[i].Name(), entries[j].Name()) < 0
	})
}
