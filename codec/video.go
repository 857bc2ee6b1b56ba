package codec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/types"
)

// VideoHandle owns a downloaded video temp file. The file lives until
// Close is called by the host; nothing else removes it.
type VideoHandle struct {
	Path string
	MIME string
	Size int64

	closed bool
}

// Empty reports whether the handle is a placeholder with no media.
func (h *VideoHandle) Empty() bool {
	return h == nil || h.Path == ""
}

// Open returns a reader over the video file.
func (h *VideoHandle) Open() (io.ReadCloser, error) {
	if h.Empty() {
		return nil, types.NewError(types.ErrBadInput, "empty video handle")
	}
	return os.Open(h.Path)
}

// Close removes the temp file. Safe to call more than once.
func (h *VideoHandle) Close() error {
	if h.Empty() || h.closed {
		return nil
	}
	h.closed = true
	return os.Remove(h.Path)
}

// EmptyVideoHandle returns the placeholder used when download fails but
// the workflow should continue.
func EmptyVideoHandle() *VideoHandle {
	return &VideoHandle{}
}

const downloadChunk = 1 << 20 // 1 MiB

var videoExtByMIME = map[string]string{
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"video/quicktime":  ".mov",
	"video/x-msvideo":  ".avi",
	"video/x-matroska": ".mkv",
}

// KnownVideoExtensions lists path suffixes recognized as video files.
var KnownVideoExtensions = []string{".mp4", ".webm", ".mov", ".avi", ".mkv"}

// HasVideoExtension reports whether the URL path ends in a known video
// extension.
func HasVideoExtension(url string) bool {
	p := strings.ToLower(url)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, ext := range KnownVideoExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// DownloadVideo streams a remote video to a temp file in 1 MiB chunks.
// The extension is inferred from Content-Type, then the URL suffix,
// then defaults to .mp4.
func DownloadVideo(ctx context.Context, client *http.Client, url string, timeout time.Duration) (*VideoHandle, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.ErrDownload, "build request").WithCause(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrDownload, fmt.Sprintf("fetch %s", url)).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewError(types.ErrDownload,
			fmt.Sprintf("fetch %s: status=%d body=%s", url, resp.StatusCode, string(body))).
			WithHTTPStatus(resp.StatusCode)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	ext := videoExtByMIME[mime]
	if ext == "" {
		ext = extFromURL(url)
	}
	if ext == "" {
		ext = ".mp4"
	}

	tmp, err := os.CreateTemp("", "mediaflow-*"+ext)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "create temp file").WithCause(err)
	}
	size, err := io.CopyBuffer(tmp, resp.Body, make([]byte, downloadChunk))
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if err == nil {
			err = closeErr
		}
		return nil, types.NewError(types.ErrDownload, fmt.Sprintf("stream %s", url)).WithCause(err)
	}
	if mime == "" {
		mime = "video/mp4"
	}
	return &VideoHandle{Path: tmp.Name(), MIME: mime, Size: size}, nil
}

func extFromURL(url string) string {
	p := url
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	for _, known := range KnownVideoExtensions {
		if ext == known {
			return ext
		}
	}
	return ""
}
