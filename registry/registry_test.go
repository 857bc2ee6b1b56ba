package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/types"
)

func validPollRecord() *Record {
	return &Record{
		Provider:         "fake",
		Category:         CategoryImage,
		Kind:             types.TaskTextToImage,
		BaseURL:          "https://fake.example",
		SubmitPath:       "/submit",
		PollPathTemplate: "/tasks/{task_id}",
		Auth:             auth.KindBearer,
		WaitMode:         WaitPoll,
		Adapter: ResponseAdapter{
			JobID:      "task_id",
			Status:     "status",
			ResultURLs: []string{"urls"},
		},
		Terminal: TerminalStates{Success: []string{"DONE"}, Failure: []string{"FAILED"}},
		Timeouts: Timeouts{PollInterval: time.Second, MaxWait: time.Minute},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(validPollRecord()))

	rec, err := r.Lookup(CategoryImage, "fake", types.TaskTextToImage)
	require.NoError(t, err)
	assert.Equal(t, "fake", rec.Provider)

	_, err = r.Lookup(CategoryImage, "other", types.TaskTextToImage)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigMissing, types.KindOf(err))
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(validPollRecord()))
	assert.Error(t, r.Register(validPollRecord()))
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing submit path", func(r *Record) { r.SubmitPath = "" }},
		{"missing poll path", func(r *Record) { r.PollPathTemplate = "" }},
		{"missing status path", func(r *Record) { r.Adapter.Status = "" }},
		{"missing job id path", func(r *Record) { r.Adapter.JobID = "" }},
		{"empty success set", func(r *Record) { r.Terminal.Success = nil }},
		{"overlapping terminal sets", func(r *Record) { r.Terminal.Failure = append(r.Terminal.Failure, "DONE") }},
		{"missing result paths", func(r *Record) { r.Adapter.ResultURLs = nil }},
		{"unknown wait mode", func(r *Record) { r.WaitMode = "batch" }},
		{"unknown auth", func(r *Record) { r.Auth = "oauth2" }},
		{"upload without path", func(r *Record) { r.Upload = &UploadSpec{Flavor: UploadMultipart} }},
		{"presign without confirm", func(r *Record) {
			r.Upload = &UploadSpec{Flavor: UploadPresign, Path: "/presign",
				Adapter: UploadAdapter{PresignURL: "p", FileID: "f"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validPollRecord()
			tt.mutate(rec)
			assert.Error(t, New().Register(rec))
		})
	}
}

func TestSyncRecordValidation(t *testing.T) {
	rec := validPollRecord()
	rec.WaitMode = WaitSync
	rec.Adapter = ResponseAdapter{}
	assert.Error(t, New().Register(rec))

	rec.Adapter.SyncB64 = "data.0.b64_json"
	assert.NoError(t, New().Register(rec))
}
