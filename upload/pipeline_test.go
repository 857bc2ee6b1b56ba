package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/codec"
	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/transport"
	"github.com/BaSui01/mediaflow/types"
)

func testClient() *transport.Client {
	return transport.NewClient(5*time.Second, zap.NewNop(),
		transport.WithRetryPolicy(transport.RetryPolicy{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}))
}

func bearer(t *testing.T) auth.Strategy {
	t.Helper()
	s, err := auth.For(auth.KindBearer, auth.Credentials{APIKey: "sk"}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestMultipartUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(10<<20))
		_, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(hdr.Filename, ".png"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "a-1", "url": "https://cdn.example/a-1.png"},
		})
	}))
	defer srv.Close()

	rec := &registry.Record{
		Provider: "fake",
		Upload: &registry.UploadSpec{
			Flavor:    registry.UploadMultipart,
			Path:      "/upload",
			FileField: "image",
			Adapter:   registry.UploadAdapter{AssetID: "data.id", AssetURL: "data.url"},
		},
	}
	assets, err := New(testClient(), zap.NewNop()).
		UploadAll(context.Background(), rec, srv.URL, bearer(t), []*codec.Tensor{codec.Blank(8, 6)})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "a-1", assets[0].ID)
	assert.Equal(t, "https://cdn.example/a-1.png", assets[0].URL)
	assert.Equal(t, 8, assets[0].Width)
	assert.Equal(t, 6, assets[0].Height)
	assert.Equal(t, "image/png", assets[0].MIME)
}

func TestPresignUpload(t *testing.T) {
	var putBody []byte
	var presignReq map[string]any

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/api/presign", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&presignReq))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"pre_sign": srv.URL + "/bucket/object.png", "file_id": "f-9"},
		})
	})
	mux.HandleFunc("/bucket/object.png", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		putBody, _ = io.ReadAll(r.Body)
	})
	mux.HandleFunc("/api/confirm", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "f-9", body["file_id"])
		assert.Equal(t, float64(20), body["category"])
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"url": "https://static.example/object.png"},
		})
	})

	rec := &registry.Record{
		Provider: "haiyi",
		Upload: &registry.UploadSpec{
			Flavor:      registry.UploadPresign,
			Path:        "/api/presign",
			ConfirmPath: "/api/confirm",
			Category:    "20",
			Adapter: registry.UploadAdapter{
				PresignURL: "data.pre_sign",
				FileID:     "data.file_id",
				AssetURL:   "data.url",
			},
		},
	}
	assets, err := New(testClient(), zap.NewNop()).
		UploadAll(context.Background(), rec, srv.URL, bearer(t), []*codec.Tensor{codec.Blank(4, 4)})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "https://static.example/object.png", assets[0].URL)
	assert.NotEmpty(t, putBody)

	// The presign request carries the content hash and size.
	assert.Len(t, presignReq["hash_val"], 64)
	assert.Equal(t, float64(len(putBody)), presignReq["size"])
	assert.Equal(t, float64(20), presignReq["category"])
}

func TestJSONBase64Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "image/png", body["fileMimeType"])
		assert.NotEmpty(t, body["content"])
		json.NewEncoder(w).Encode(map[string]any{
			"fileMetadataId": "meta-1",
			"fileUri":        "users/u1/meta-1/content",
		})
	}))
	defer srv.Close()

	rec := &registry.Record{
		Provider: "grok",
		Upload: &registry.UploadSpec{
			Flavor:  registry.UploadJSONBase64,
			Path:    "/rest/app-chat/upload-file",
			Adapter: registry.UploadAdapter{AssetID: "fileMetadataId", AssetURL: "fileUri"},
		},
	}
	assets, err := New(testClient(), zap.NewNop()).
		UploadAll(context.Background(), rec, srv.URL, bearer(t), []*codec.Tensor{codec.Blank(4, 4)})
	require.NoError(t, err)
	assert.Equal(t, "meta-1", assets[0].ID)
	assert.Equal(t, "users/u1/meta-1/content", assets[0].URL)
}

func TestUploadPreservesOrder(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		json.NewEncoder(w).Encode(map[string]any{
			"fileMetadataId": "meta-" + string(rune('0'+n)),
		})
	}))
	defer srv.Close()

	rec := &registry.Record{
		Provider: "grok",
		Upload: &registry.UploadSpec{
			Flavor:  registry.UploadJSONBase64,
			Path:    "/upload",
			Adapter: registry.UploadAdapter{AssetID: "fileMetadataId"},
		},
	}
	assets, err := New(testClient(), zap.NewNop()).
		UploadAll(context.Background(), rec, srv.URL, bearer(t),
			[]*codec.Tensor{codec.Blank(2, 2), codec.Blank(2, 2), codec.Blank(2, 2)})
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, "meta-1", assets[0].ID)
	assert.Equal(t, "meta-2", assets[1].ID)
	assert.Equal(t, "meta-3", assets[2].ID)
}

func TestUploadAbortsOnFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"fileMetadataId": "meta-1"})
	}))
	defer srv.Close()

	rec := &registry.Record{
		Provider: "grok",
		Upload: &registry.UploadSpec{
			Flavor:  registry.UploadJSONBase64,
			Path:    "/upload",
			Adapter: registry.UploadAdapter{AssetID: "fileMetadataId"},
		},
	}
	_, err := New(testClient(), zap.NewNop()).
		UploadAll(context.Background(), rec, srv.URL, bearer(t),
			[]*codec.Tensor{codec.Blank(2, 2), codec.Blank(2, 2), codec.Blank(2, 2)})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderRejected, types.KindOf(err))
	assert.Equal(t, 2, calls)
}

func TestCOSUploadRejectsMissingCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"resourceUrl": "https://r.example/x.png"})
	}))
	defer srv.Close()

	rec := &registry.Record{
		Provider: "hunyuan",
		Upload: &registry.UploadSpec{
			Flavor: registry.UploadCOS,
			Path:   "/genUploadInfo",
			Adapter: registry.UploadAdapter{
				AssetURL:     "resourceUrl",
				COSBucket:    "bucketName",
				COSRegion:    "region",
				COSKey:       "location",
				COSSecretID:  "encryptTmpSecretId",
				COSSecretKey: "encryptTmpSecretKey",
			},
		},
	}
	_, err := New(testClient(), zap.NewNop()).
		UploadAll(context.Background(), rec, srv.URL, bearer(t), []*codec.Tensor{codec.Blank(2, 2)})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderRejected, types.KindOf(err))
}

func TestUploadAllWithoutSpec(t *testing.T) {
	_, err := New(testClient(), zap.NewNop()).
		UploadAll(context.Background(), &registry.Record{Provider: "bare"}, "https://x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInternal, types.KindOf(err))
}
