package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/damacus/bucketfs/internal/filesystem"
	"github.com/damacus/bucketfs/internal/models"
)

// FileSystem is the tree API the handlers drive. *filesystem.Gateway
// implements it.
type FileSystem interface {
	Resolve(ctx context.Context, path string) (models.Entry, error)
	ListEntries(ctx context.Context, dir *models.DirectoryEntry) ([]models.Entry, error)
	GetEntryByName(ctx context.Context, dir *models.DirectoryEntry, name string) (models.Entry, error)
	Create(ctx context.Context, dir *models.DirectoryEntry, name string, data io.ReadCloser) (*models.FileEntry, error)
	Replace(ctx context.Context, file *models.FileEntry, data io.ReadCloser) (*models.FileEntry, error)
	Append(ctx context.Context, file *models.FileEntry, offset *int64, data io.ReadCloser) error
	CreateDirectory(ctx context.Context, dir *models.DirectoryEntry, name string) (*models.DirectoryEntry, error)
	Move(ctx context.Context, source models.Entry, target *models.DirectoryEntry, name string) (models.Entry, error)
	Unlink(ctx context.Context, entry models.Entry) error
	OpenRead(ctx context.Context, file *models.FileEntry, offset int64) (io.ReadCloser, error)
	SetTimes(ctx context.Context, entry models.Entry, modify, access, create *time.Time) (models.Entry, error)
}

type FilesHandler struct {
	fs  FileSystem
	log zerolog.Logger
}

func NewFilesHandler(fs FileSystem, log zerolog.Logger) *FilesHandler {
	return &FilesHandler{fs: fs, log: log}
}

// ListingView is the response of List
type ListingView struct {
	Path    string      `json:"path"`
	Entries []EntryView `json:"entries"`
}

// List returns the children of a directory sorted by name
func (h *FilesHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	path := c.QueryParam("path")

	dir, err := h.resolveDir(ctx, path)
	if err != nil {
		return err
	}
	entries, err := h.fs.ListEntries(ctx, dir)
	if err != nil {
		return HTTPError(err)
	}
	models.SortEntries(entries)

	view := ListingView{Path: path, Entries: make([]EntryView, 0, len(entries))}
	for _, e := range entries {
		view.Entries = append(view.Entries, newEntryView(e))
	}
	return c.JSON(http.StatusOK, view)
}

// Stat describes a single file or directory
func (h *FilesHandler) Stat(c echo.Context) error {
	entry, err := h.fs.Resolve(c.Request().Context(), c.QueryParam("path"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, newEntryView(entry))
}

// Download streams a file, optionally starting at a byte offset
func (h *FilesHandler) Download(c echo.Context) error {
	ctx := c.Request().Context()

	var offset int64
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid offset")
		}
		offset = n
	}

	file, err := h.resolveFile(ctx, c.QueryParam("path"))
	if err != nil {
		return err
	}
	if offset > file.Size() {
		return echo.NewHTTPError(http.StatusRequestedRangeNotSatisfiable, "Offset beyond end of file")
	}

	rc, err := h.fs.OpenRead(ctx, file, offset)
	if err != nil {
		return HTTPError(err)
	}
	defer func() { _ = rc.Close() }()

	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(file.Name()))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(file.Size()-offset, 10))
	return c.Stream(http.StatusOK, getContentTypeFromExt(file.Name()), rc)
}

// Upload writes the request body to path, replacing an existing file
func (h *FilesHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	body := requestBody(c.Request())

	parentPath, name, ok := splitPath(c.QueryParam("path"))
	if !ok {
		_ = body.Close()
		return echo.NewHTTPError(http.StatusBadRequest, "Path is required")
	}
	parent, err := h.resolveDir(ctx, parentPath)
	if err != nil {
		_ = body.Close()
		return err
	}

	existing, err := h.fs.GetEntryByName(ctx, parent, name)
	switch {
	case errors.Is(err, filesystem.ErrNotFound):
		file, err := h.fs.Create(ctx, parent, name, body)
		if err != nil {
			return HTTPError(err)
		}
		h.log.Info().Str("key", file.Key()).Int64("size", file.Size()).Msg("file created")
		return c.JSON(http.StatusCreated, newEntryView(file))
	case err != nil:
		_ = body.Close()
		return HTTPError(err)
	}

	current, ok := existing.(*models.FileEntry)
	if !ok {
		_ = body.Close()
		return echo.NewHTTPError(http.StatusConflict, "A directory exists at this path")
	}
	file, err := h.fs.Replace(ctx, current, body)
	if err != nil {
		return HTTPError(err)
	}
	h.log.Info().Str("key", file.Key()).Int64("size", file.Size()).Msg("file replaced")
	return c.JSON(http.StatusOK, newEntryView(file))
}

// Append is always rejected; objects cannot be extended in place
func (h *FilesHandler) Append(c echo.Context) error {
	err := h.fs.Append(c.Request().Context(), nil, nil, c.Request().Body)
	return HTTPError(err)
}

// Mkdir creates a directory marker at path
func (h *FilesHandler) Mkdir(c echo.Context) error {
	ctx := c.Request().Context()

	parentPath, name, ok := splitPath(c.QueryParam("path"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Path is required")
	}
	parent, err := h.resolveDir(ctx, parentPath)
	if err != nil {
		return err
	}
	dir, err := h.fs.CreateDirectory(ctx, parent, name)
	if err != nil {
		return HTTPError(err)
	}
	h.log.Info().Str("key", dir.Key()).Msg("directory created")
	return c.JSON(http.StatusCreated, newEntryView(dir))
}

// Move renames the entry at "from" to "to"
func (h *FilesHandler) Move(c echo.Context) error {
	ctx := c.Request().Context()

	from, to := c.FormValue("from"), c.FormValue("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Both from and to are required")
	}
	source, err := h.fs.Resolve(ctx, from)
	if err != nil {
		return HTTPError(err)
	}
	targetPath, name, ok := splitPath(to)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid destination")
	}
	target, err := h.resolveDir(ctx, targetPath)
	if err != nil {
		return err
	}

	moved, err := h.fs.Move(ctx, source, target, name)
	if err != nil {
		h.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("move failed")
		return HTTPError(err)
	}
	h.log.Info().Str("from", source.Key()).Str("to", moved.Key()).Msg("entry moved")
	return c.JSON(http.StatusOK, newEntryView(moved))
}

// Delete removes a file or an empty directory. With recursive=true the
// handler walks the directory and removes every descendant first.
func (h *FilesHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	recursive, _ := strconv.ParseBool(c.QueryParam("recursive"))

	entry, err := h.fs.Resolve(ctx, c.QueryParam("path"))
	if err != nil {
		return HTTPError(err)
	}

	dir, isDir := entry.(*models.DirectoryEntry)
	switch {
	case isDir && dir.IsRoot():
		// Unlink refuses the root
	case isDir && recursive:
		removed, err := h.removeTree(ctx, dir)
		if err != nil {
			return HTTPError(err)
		}
		h.log.Info().Str("key", dir.Key()).Int("objects", removed).Msg("directory removed")
		return c.NoContent(http.StatusNoContent)
	case isDir:
		children, err := h.fs.ListEntries(ctx, dir)
		if err != nil {
			return HTTPError(err)
		}
		if len(children) > 0 {
			return echo.NewHTTPError(http.StatusConflict, "Directory not empty")
		}
	}

	if err := h.fs.Unlink(ctx, entry); err != nil {
		return HTTPError(err)
	}
	h.log.Info().Str("key", entry.Key()).Msg("entry removed")
	return c.NoContent(http.StatusNoContent)
}

// Touch accepts a timestamp update and returns the entry unchanged
func (h *FilesHandler) Touch(c echo.Context) error {
	ctx := c.Request().Context()
	entry, err := h.fs.Resolve(ctx, c.QueryParam("path"))
	if err != nil {
		return HTTPError(err)
	}
	now := time.Now()
	updated, err := h.fs.SetTimes(ctx, entry, &now, &now, nil)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, newEntryView(updated))
}

// removeTree unlinks every descendant of dir depth first, then dir itself
func (h *FilesHandler) removeTree(ctx context.Context, dir *models.DirectoryEntry) (int, error) {
	children, err := h.fs.ListEntries(ctx, dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, child := range children {
		if sub, ok := child.(*models.DirectoryEntry); ok {
			n, err := h.removeTree(ctx, sub)
			removed += n
			if err != nil {
				return removed, err
			}
			continue
		}
		if err := h.fs.Unlink(ctx, child); err != nil {
			return removed, err
		}
		removed++
	}
	if err := h.fs.Unlink(ctx, dir); err != nil {
		return removed, err
	}
	return removed + 1, nil
}

func (h *FilesHandler) resolveDir(ctx context.Context, path string) (*models.DirectoryEntry, error) {
	entry, err := h.fs.Resolve(ctx, path)
	if err != nil {
		return nil, HTTPError(err)
	}
	dir, ok := entry.(*models.DirectoryEntry)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Not a directory")
	}
	return dir, nil
}

func (h *FilesHandler) resolveFile(ctx context.Context, path string) (*models.FileEntry, error) {
	entry, err := h.fs.Resolve(ctx, path)
	if err != nil {
		return nil, HTTPError(err)
	}
	file, ok := entry.(*models.FileEntry)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Is a directory")
	}
	return file, nil
}
