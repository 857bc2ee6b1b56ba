package codec

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/types"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := ToBytes(Blank(w, h), FormatPNG)
	require.NoError(t, err)
	return data
}

func TestDataURL(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	url := DataURL(raw, "image/png")
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestToBytesJPEG(t *testing.T) {
	data, err := ToBytes(Blank(16, 16), FormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data[:2]) // JPEG SOI marker
}

func TestToBytesUnsupportedFormat(t *testing.T) {
	_, err := ToBytes(Blank(4, 4), "GIF")
	assert.Equal(t, types.ErrBadInput, types.KindOf(err))
}

func TestDownloadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes(t, 8, 6))
	}))
	defer srv.Close()

	tensor, err := DownloadImage(context.Background(), srv.Client(), srv.URL, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6, 8, 3}, tensor.Shape())
}

func TestDownloadImageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := DownloadImage(context.Background(), srv.Client(), srv.URL, 5*time.Second)
	require.Error(t, err)
	assert.Equal(t, types.ErrDownload, types.KindOf(err))
}

func TestDownloadImageBatchHarmonizesToFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 16, 8))
	})
	mux.HandleFunc("/b.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 32, 32))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	batch, err := DownloadImageBatch(context.Background(), srv.Client(),
		[]string{srv.URL + "/a.png", srv.URL + "/b.png"}, 5*time.Second)
	require.NoError(t, err)
	// First URL wins on size.
	assert.Equal(t, []int{2, 8, 16, 3}, batch.Shape())
}

func TestResample(t *testing.T) {
	out := Resample(Blank(10, 10), 20, 5)
	assert.Equal(t, []int{1, 5, 20, 3}, out.Shape())
}
