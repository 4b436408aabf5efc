package filesystem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/damacus/bucketfs/internal/services"
)

var (
	// ErrNotFound means neither an object nor any descendant exists at a key
	ErrNotFound = errors.New("no such file or directory")
	// ErrAppendNotSupported is returned by every Append call
	ErrAppendNotSupported = errors.New("append is not supported by object storage")
	// ErrRootDirectory is returned when the root would be deleted or moved
	ErrRootDirectory = errors.New("operation not permitted on the root directory")
	// ErrNotSeekable is returned by OpenRead for a non-zero offset on a stream
	// without random access
	ErrNotSeekable = errors.New("object stream does not support seeking")
	ErrInvalidName = errors.New("invalid entry name")
	// ErrInvalidMove is returned when a directory would be moved into its own
	// subtree
	ErrInvalidMove = errors.New("cannot move a directory into itself")
	// ErrUnsupportedEntry is returned for Entry implementations the gateway
	// did not create
	ErrUnsupportedEntry = errors.New("unsupported entry type")
)

// Op names the gateway operation that failed
type Op string

const (
	OpList    Op = "list"
	OpLookup  Op = "lookup"
	OpCreate  Op = "create"
	OpReplace Op = "replace"
	OpMkdir   Op = "mkdir"
	OpMove    Op = "move"
	OpUnlink  Op = "unlink"
	OpRead    Op = "read"
	OpAppend  Op = "append"
)

// Error records the operation and key of a failed gateway call. Storage
// errors are carried unchanged in Err.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps err for op on key. A missing object additionally matches
// ErrNotFound so callers need only one sentinel.
func newError(op Op, key string, err error) *Error {
	if errors.Is(err, services.ErrObjectNotFound) && !errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return &Error{Op: op, Key: key, Err: err}
}

// MoveStage tells which half of a copy+delete failed
type MoveStage string

const (
	StageCopy   MoveStage = "copy"
	StageDelete MoveStage = "delete"
)

// MoveFailure is one object that could not be moved. A failure at
// StageDelete means the copy exists at the destination and the source was
// left behind.
type MoveFailure struct {
	Key   string
	Stage MoveStage
	Err   error
}

// MoveError reports a move that left the tree in a mixed state. Objects in
// Moved are at the destination only. Nothing is rolled back; callers
// reconcile by listing both locations.
type MoveError struct {
	Source      string
	Destination string
	// Moved holds source keys that were copied and deleted
	Moved  []string
	Failed []MoveFailure
	// Skipped holds source keys that were never attempted because the move
	// was aborted
	Skipped []string
	// Err is the context error when the move was cancelled
	Err error
}

func (e *MoveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "move %q to %q incomplete: %d moved, %d failed, %d skipped",
		e.Source, e.Destination, len(e.Moved), len(e.Failed), len(e.Skipped))
	if len(e.Failed) > 0 {
		f := e.Failed[0]
		fmt.Fprintf(&b, "; %s %q: %v", f.Stage, f.Key, f.Err)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes every underlying failure to errors.Is and errors.As
func (e *MoveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed)+1)
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
