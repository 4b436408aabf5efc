package filesystem

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/damacus/bucketfs/internal/keypath"
	"github.com/damacus/bucketfs/internal/models"
)

// Move relocates source to name inside target with copy+delete per object.
//
// A file whose copy fails is left untouched. A file whose delete fails exists
// at both keys and the returned error wraps a *MoveError. A directory move
// copies every descendant with bounded concurrency, stops scheduling after the
// first failure and reports a *MoveError listing what was moved. Nothing is
// rolled back.
func (g *Gateway) Move(ctx context.Context, source models.Entry, target *models.DirectoryEntry, name string) (models.Entry, error) {
	if !validName(name) {
		return nil, &Error{Op: OpMove, Key: source.Key(), Err: fmt.Errorf("%w: %q", ErrInvalidName, name)}
	}

	var moved models.Entry
	switch src := source.(type) {
	case *models.FileEntry:
		dst := keypath.Join(target.Key(), name)
		if dst != src.Key() {
			if err := g.moveFile(ctx, src.Key(), dst); err != nil {
				return nil, err
			}
		}
		file := models.NewFileEntry(dst, src.Size())
		file.SetLastWriteTime(g.movedTime(src))
		moved = file

	case *models.DirectoryEntry:
		if src.IsRoot() {
			return nil, &Error{Op: OpMove, Key: src.Key(), Err: ErrRootDirectory}
		}
		dst := keypath.EnsureDir(keypath.Join(target.Key(), name))
		if dst != src.Key() {
			// rebased keys must not overlap the source keys still to be moved
			if strings.HasPrefix(dst, src.Key()) || strings.HasPrefix(src.Key(), dst) {
				return nil, &Error{Op: OpMove, Key: src.Key(), Err: ErrInvalidMove}
			}
			if err := g.moveTree(ctx, src.Key(), dst); err != nil {
				return nil, err
			}
		}
		dir := models.NewDirectoryEntry(dst, false)
		dir.SetLastWriteTime(g.movedTime(src))
		moved = dir

	default:
		return nil, &Error{Op: OpMove, Key: source.Key(), Err: ErrUnsupportedEntry}
	}
	return moved, nil
}

// movedTime keeps the source's last write time, or stamps the move itself
func (g *Gateway) movedTime(src models.Entry) time.Time {
	if t, ok := src.LastWriteTime(); ok {
		return t
	}
	return g.now()
}

func (g *Gateway) moveFile(ctx context.Context, src, dst string) error {
	stage, err := g.moveObject(ctx, src, dst)
	switch {
	case err == nil:
		return nil
	case stage == StageCopy:
		return newError(OpMove, src, err)
	default:
		g.log.Warn().Str("op", string(OpMove)).Str("key", src).Str("destination", dst).Err(err).Msg("source left behind after copy")
		return &Error{Op: OpMove, Key: src, Err: &MoveError{
			Source:      src,
			Destination: dst,
			Failed:      []MoveFailure{{Key: src, Stage: stage, Err: err}},
		}}
	}
}

func (g *Gateway) moveTree(ctx context.Context, srcPrefix, dstPrefix string) error {
	objects, err := g.listRecursive(ctx, srcPrefix)
	if err != nil {
		return newError(OpMove, srcPrefix, err)
	}

	var (
		mu      sync.Mutex
		moved   []string
		failed  []MoveFailure
		skipped []string
		total   int64
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.moveConcurrency)

	for i, obj := range objects {
		if egCtx.Err() != nil {
			mu.Lock()
			for _, rest := range objects[i:] {
				skipped = append(skipped, rest.Key)
			}
			mu.Unlock()
			break
		}
		dst, _ := keypath.Rebase(obj.Key, srcPrefix, dstPrefix)
		// moves run on ctx, not egCtx, so one failure lets in-flight moves finish
		eg.Go(func() error {
			if egCtx.Err() != nil {
				mu.Lock()
				skipped = append(skipped, obj.Key)
				mu.Unlock()
				return nil
			}
			stage, err := g.moveObject(ctx, obj.Key, dst)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, MoveFailure{Key: obj.Key, Stage: stage, Err: err})
				return err
			}
			moved = append(moved, obj.Key)
			total += obj.Size
			return nil
		})
	}
	_ = eg.Wait()

	if len(failed) == 0 && len(skipped) == 0 {
		g.log.Debug().
			Str("op", string(OpMove)).
			Str("key", srcPrefix).
			Str("destination", dstPrefix).
			Int("objects", len(moved)).
			Str("bytes", humanize.Bytes(uint64(total))).
			Msg("directory moved")
		return nil
	}

	slices.Sort(moved)
	slices.Sort(skipped)
	slices.SortFunc(failed, func(a, b MoveFailure) int { return strings.Compare(a.Key, b.Key) })
	moveErr := &MoveError{
		Source:      srcPrefix,
		Destination: dstPrefix,
		Moved:       moved,
		Failed:      failed,
		Skipped:     skipped,
		Err:         ctx.Err(),
	}
	g.log.Warn().
		Str("op", string(OpMove)).
		Str("key", srcPrefix).
		Str("destination", dstPrefix).
		Int("moved", len(moved)).
		Int("failed", len(failed)).
		Int("skipped", len(moveErr.Skipped)).
		Msg("directory move incomplete")
	return &Error{Op: OpMove, Key: srcPrefix, Err: moveErr}
}

// moveObject copies src to dst and deletes src only after the copy succeeded
func (g *Gateway) moveObject(ctx context.Context, src, dst string) (MoveStage, error) {
	if err := g.store.CopyObject(ctx, g.bucket, src, g.bucket, dst); err != nil {
		return StageCopy, err
	}
	if err := g.store.RemoveObject(ctx, g.bucket, src); err != nil {
		return StageDelete, err
	}
	g.log.Debug().Str("op", string(OpMove)).Str("key", src).Str("destination", dst).Msg("object moved")
	return "", nil
}
