package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"github.com/damacus/bucketfs/internal/filesystem"
	"github.com/damacus/bucketfs/internal/keypath"
	"github.com/damacus/bucketfs/internal/models"
)

// EntryView is the JSON form of a file or directory
type EntryView struct {
	Name        string     `json:"name"`
	Key         string     `json:"key"`
	Type        string     `json:"type"`
	Size        int64      `json:"size,omitempty"`
	SizeHuman   string     `json:"size_human,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
	Permissions string     `json:"permissions"`
	Owner       string     `json:"owner"`
	Group       string     `json:"group"`
	Links       int64      `json:"links"`
}

func newEntryView(e models.Entry) EntryView {
	v := EntryView{
		Name:        e.Name(),
		Key:         e.Key(),
		Type:        "directory",
		Permissions: e.Permissions().String(),
		Owner:       e.Owner(),
		Group:       e.Group(),
		Links:       e.NumberOfLinks(),
	}
	if file, ok := e.(*models.FileEntry); ok {
		v.Type = "file"
		v.Size = file.Size()
		v.SizeHuman = humanize.IBytes(uint64(file.Size()))
	}
	if t, ok := e.LastWriteTime(); ok {
		v.Modified = &t
	}
	return v
}

// MoveFailureView is one failed object of an incomplete move
type MoveFailureView struct {
	Key   string `json:"key"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// MoveErrorView is returned with 409 when a move left both trees populated
type MoveErrorView struct {
	Message     string            `json:"message"`
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	Moved       []string          `json:"moved"`
	Failed      []MoveFailureView `json:"failed"`
	Skipped     []string          `json:"skipped"`
}

// HTTPError maps gateway errors onto status codes
func HTTPError(err error) error {
	var moveErr *filesystem.MoveError
	switch {
	case errors.As(err, &moveErr):
		view := MoveErrorView{
			Message:     "move incomplete",
			Source:      moveErr.Source,
			Destination: moveErr.Destination,
			Moved:       moveErr.Moved,
			Skipped:     moveErr.Skipped,
		}
		for _, f := range moveErr.Failed {
			view.Failed = append(view.Failed, MoveFailureView{Key: f.Key, Stage: string(f.Stage), Error: f.Err.Error()})
		}
		return echo.NewHTTPError(http.StatusConflict, view)
	case errors.Is(err, filesystem.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, filesystem.ErrAppendNotSupported):
		return echo.NewHTTPError(http.StatusNotImplemented, "Append is not supported")
	case errors.Is(err, filesystem.ErrRootDirectory):
		return echo.NewHTTPError(http.StatusForbidden, "Operation not permitted on the root directory")
	case errors.Is(err, filesystem.ErrInvalidName), errors.Is(err, filesystem.ErrInvalidMove):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, filesystem.ErrNotSeekable):
		return echo.NewHTTPError(http.StatusRequestedRangeNotSatisfiable, "Offset not supported for this object")
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Request cancelled")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "Storage error: "+err.Error())
	}
}

// splitPath returns the parent path and final name of p
func splitPath(p string) (string, string, bool) {
	segments := keypath.Split(p)
	if len(segments) == 0 {
		return "", "", false
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], keypath.Delimiter), segments[last], true
}

// sizedBody exposes the request Content-Length so uploads are not buffered
type sizedBody struct {
	io.ReadCloser
	size int64
}

func (b sizedBody) Size() int64 { return b.size }

func requestBody(r *http.Request) io.ReadCloser {
	if r.ContentLength >= 0 {
		return sizedBody{ReadCloser: r.Body, size: r.ContentLength}
	}
	return r.Body
}

func getContentTypeFromExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	types := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".svg":  "image/svg+xml",
		".txt":  "text/plain",
		".csv":  "text/csv",
		".md":   "text/markdown",
		".json": "application/json",
		".xml":  "application/xml",
		".pdf":  "application/pdf",
		".mp4":  "video/mp4",
		".mp3":  "audio/mpeg",
		".zip":  "application/zip",
		".tar":  "application/x-tar",
		".gz":   "application/gzip",
	}
	if t, ok := types[ext]; ok {
		return t
	}
	return echo.MIMEOctetStream
}
