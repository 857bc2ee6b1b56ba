package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationInfoRender(t *testing.T) {
	info := &GenerationInfo{
		TaskKind:   TaskTextToVideo,
		Provider:   "dashscope",
		Model:      "wan2.2-t2v-plus",
		Prompt:     "a cat running under moonlight",
		Ratio:      "16:9",
		Resolution: "720P",
		Duration:   5,
		JobID:      "t-1",
		SubmitTime: "2025-11-02 10:00:00.123",
		EndTime:    "2025-11-02 10:03:11.456",
		ResultURLs: []string{"https://example.com/out.mp4"},
		Usage:      Usage{TotalTokens: 1234, VideoDuration: 5},
	}

	text := info.Render()
	assert.Contains(t, text, "generation succeeded")
	assert.Contains(t, text, "job_id: t-1")
	assert.Contains(t, text, "total_tokens: 1234")
	assert.Contains(t, text, "duration: 5s")
	assert.Contains(t, text, "https://example.com/out.mp4")
	// Provider timestamps pass through verbatim.
	assert.Contains(t, text, "2025-11-02 10:00:00.123")
}

func TestGenerationInfoRenderFailure(t *testing.T) {
	info := &GenerationInfo{
		TaskKind:     TaskTextToImage,
		Provider:     "glm",
		JobID:        "t-2",
		LastProgress: 40,
		Error:        "deadline exceeded",
	}
	text := info.Render()
	assert.Contains(t, text, "generation failed")
	assert.Contains(t, text, "t-2")
	assert.Contains(t, text, "last_progress: 40%")
	assert.Contains(t, text, "deadline exceeded")
}

func TestGenerationInfoFromJob(t *testing.T) {
	j := &Job{
		ID:           "t-3",
		Provider:     "dashscope",
		Kind:         TaskTextToVideo,
		Progress:     100,
		SubmitTime:   "1730541600123", // unix ms, kept opaque
		ResultURLs:   []string{"https://cdn.example.com/v.mp4"},
		Usage:        Usage{VideoCount: 1},
		ActualPrompt: "a fluffy cat sprinting across a moonlit rooftop",
	}
	info := (&GenerationInfo{Prompt: "a cat"}).FromJob(j)
	assert.Equal(t, "t-3", info.JobID)
	assert.Equal(t, "1730541600123", info.SubmitTime)
	assert.Equal(t, []string{"https://cdn.example.com/v.mp4"}, info.ResultURLs)
	assert.Contains(t, info.Render(), "actual_prompt")
}
