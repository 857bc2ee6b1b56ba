package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/types"
)

const sampleDoc = `
IMAGE:
  dashscope:
    base_url: https://dashscope.aliyuncs.com
    api_key: sk-test
    models: [wanx2.1-t2i-turbo, wanx2.1-t2i-plus]
  glm:
    base_url: https://open.bigmodel.cn
    api_key: id.secret
    model: cogview-4
VIDEO:
  dashscope:
    base_url: https://dashscope.aliyuncs.com
    api_key: sk-test
    max_wait: 10m
`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStoreGet(t *testing.T) {
	store, err := NewStore(writeDoc(t, sampleDoc), zap.NewNop())
	require.NoError(t, err)

	settings, err := store.Get("IMAGE", "dashscope")
	require.NoError(t, err)
	assert.Equal(t, "https://dashscope.aliyuncs.com", settings.BaseURL)
	assert.Equal(t, "sk-test", settings.APIKey)

	settings, err = store.Get("VIDEO", "dashscope")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, settings.MaxWait)
}

func TestStoreGetMissing(t *testing.T) {
	store, err := NewStore(writeDoc(t, sampleDoc), zap.NewNop())
	require.NoError(t, err)

	_, err = store.Get("AUDIO", "dashscope")
	assert.Equal(t, types.ErrConfigMissing, types.KindOf(err))

	_, err = store.Get("IMAGE", "unknown")
	assert.Equal(t, types.ErrConfigMissing, types.KindOf(err))
}

func TestStoreListModels(t *testing.T) {
	store, err := NewStore(writeDoc(t, sampleDoc), zap.NewNop())
	require.NoError(t, err)

	models, err := store.ListModels("IMAGE", "dashscope")
	require.NoError(t, err)
	assert.Equal(t, []string{"wanx2.1-t2i-turbo", "wanx2.1-t2i-plus"}, models)

	// Single model falls back to the scalar field.
	models, err = store.ListModels("IMAGE", "glm")
	require.NoError(t, err)
	assert.Equal(t, []string{"cogview-4"}, models)
}

func TestStoreReloadIsAtomic(t *testing.T) {
	path := writeDoc(t, sampleDoc)
	store, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)

	// A bad rewrite must keep the old snapshot readable.
	require.NoError(t, os.WriteFile(path, []byte("{broken yaml"), 0o644))
	assert.Error(t, store.Reload())
	settings, err := store.Get("IMAGE", "glm")
	require.NoError(t, err)
	assert.Equal(t, "id.secret", settings.APIKey)

	// A good rewrite swaps in one step.
	require.NoError(t, os.WriteFile(path, []byte("IMAGE:\n  glm:\n    api_key: id2.secret2\n"), 0o644))
	require.NoError(t, store.Reload())
	settings, err = store.Get("IMAGE", "glm")
	require.NoError(t, err)
	assert.Equal(t, "id2.secret2", settings.APIKey)
	_, err = store.Get("VIDEO", "dashscope")
	assert.Error(t, err)
}

func TestStoreFromDocument(t *testing.T) {
	store := NewStoreFromDocument(Document{
		"TTS": {"siliconflow": {APIKey: "sk-x", Model: "CosyVoice2-0.5B"}},
	}, nil)
	settings, err := store.Get("TTS", "siliconflow")
	require.NoError(t, err)
	assert.Equal(t, "sk-x", settings.APIKey)
	assert.ElementsMatch(t, []string{"TTS"}, store.Categories())
}

func TestWatcherReloads(t *testing.T) {
	path := writeDoc(t, sampleDoc)
	store, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)

	w := NewWatcher(store, zap.NewNop(), WithInterval(time.Second))
	// Force an old mtime so the rewrite below is seen as newer.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
	w.lastMod = past

	require.NoError(t, os.WriteFile(path, []byte("IMAGE:\n  glm:\n    api_key: rotated\n"), 0o644))
	w.check()

	settings, err := store.Get("IMAGE", "glm")
	require.NoError(t, err)
	assert.Equal(t, "rotated", settings.APIKey)
}
