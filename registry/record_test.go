package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalClassify(t *testing.T) {
	tests := []struct {
		status string
		want   Outcome
	}{
		{"SUCCEEDED", OutcomeSuccess},
		{"FAILED", OutcomeFailure},
		{"UNKNOWN", OutcomeFailure},
		{"CANCELED", OutcomeCancel},
		{"PENDING", OutcomeInProgress},
		{"RUNNING", OutcomeInProgress},
		{"", OutcomeInProgress},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dashScopeTerminal.Classify(tt.status), tt.status)
	}
}

func TestPollURL(t *testing.T) {
	rec := &Record{PollPathTemplate: "/api/v1/tasks/{task_id}"}
	assert.Equal(t, "https://dashscope.aliyuncs.com/api/v1/tasks/t-42",
		rec.PollURL("https://dashscope.aliyuncs.com/", "t-42"))
}

func TestPollBody(t *testing.T) {
	rec := &Record{PollBodyTemplate: `{"task_ids":["{task_id}"],"ss":52}`}
	assert.Equal(t, `{"task_ids":["j-7"],"ss":52}`, string(rec.PollBody("j-7")))

	assert.Nil(t, (&Record{}).PollBody("j-7"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "1280*720", SubmitSchema{}.FormatSize(Size{1280, 720}))
	assert.Equal(t, "1024x1024", SubmitSchema{SizeSeparator: "x"}.FormatSize(Size{1024, 1024}))
}

func TestIsContentPolicyCode(t *testing.T) {
	rec := haiyiImage()
	assert.True(t, rec.IsContentPolicyCode("70026"))
	assert.False(t, rec.IsContentPolicyCode("10000"))
}
