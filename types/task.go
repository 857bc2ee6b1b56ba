package types

import (
	"fmt"
	"time"
)

// TaskKind identifies the kind of generative task a provider record serves.
type TaskKind string

const (
	TaskTextToImage  TaskKind = "t2i"
	TaskImageToImage TaskKind = "i2i"
	TaskTextToVideo  TaskKind = "t2v"
	TaskImageToVideo TaskKind = "i2v"
	TaskTextToSpeech TaskKind = "tts"
	TaskSpeechToText TaskKind = "stt"
	TaskChat         TaskKind = "chat"
	TaskVision       TaskKind = "vlm"
)

// IsVideo reports whether the task produces video artifacts.
func (k TaskKind) IsVideo() bool {
	return k == TaskTextToVideo || k == TaskImageToVideo
}

// JobState is the lifecycle state of a generation job.
// Every job is in exactly one state; terminal states are sinks.
type JobState string

const (
	StateDraft      JobState = "draft"
	StateUploading  JobState = "uploading"
	StateSubmitting JobState = "submitting"
	StateInProgress JobState = "in_progress"
	StateSuccess    JobState = "success"
	StateFailure    JobState = "failure"
	StateCancelled  JobState = "cancelled"
	StateTimedOut   JobState = "timed_out"
)

// Terminal reports whether the state is a sink.
func (s JobState) Terminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// validTransitions encodes the job state machine. Draft may skip
// Uploading when no reference bitmaps are present, and may fail
// outright when the request is rejected before anything is sent.
var validTransitions = map[JobState][]JobState{
	StateDraft:      {StateUploading, StateSubmitting, StateFailure},
	StateUploading:  {StateSubmitting, StateFailure},
	StateSubmitting: {StateInProgress, StateFailure, StateSuccess},
	StateInProgress: {StateSuccess, StateFailure, StateCancelled, StateTimedOut},
}

// CanTransition reports whether from → to is a legal state change.
func CanTransition(from, to JobState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProgressUnknown marks a job whose provider reports no progress.
const ProgressUnknown = -1

// Usage accumulates provider-reported token/credit consumption.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`
	Credits          float64 `json:"credits,omitempty"`
	ImageCount       int     `json:"image_count,omitempty"`
	VideoCount       int     `json:"video_count,omitempty"`
	VideoDuration    float64 `json:"video_duration,omitempty"`
}

// Empty reports whether no usage was recorded.
func (u Usage) Empty() bool {
	return u == Usage{}
}

// Job tracks one generative task from submission to a terminal state.
// It is created on successful submission and mutated only by the
// poll/stream loop that owns it.
type Job struct {
	ID       string   `json:"id"`
	Provider string   `json:"provider"`
	Kind     TaskKind `json:"kind"`
	Model    string   `json:"model,omitempty"`

	State    JobState `json:"state"`
	Status   string   `json:"status,omitempty"`   // provider's raw status string
	Progress int      `json:"progress,omitempty"` // 0-100, ProgressUnknown if never reported

	CreatedAt  time.Time `json:"created_at"`
	TerminalAt time.Time `json:"terminal_at,omitempty"`

	// Provider timestamps are opaque strings; formats vary per provider
	// and are surfaced verbatim, never parsed.
	SubmitTime    string `json:"submit_time,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`

	Usage        Usage    `json:"usage,omitempty"`
	ResultURLs   []string `json:"result_urls,omitempty"`
	FallbackURL  string   `json:"fallback_url,omitempty"` // watermarked alternative, if any
	ActualPrompt string   `json:"actual_prompt,omitempty"`
	TextResponse string   `json:"text_response,omitempty"`

	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Transition moves the job to a new state, enforcing the state machine.
func (j *Job) Transition(to JobState) error {
	if !CanTransition(j.State, to) {
		return NewError(ErrInternal, fmt.Sprintf("invalid job transition %s -> %s", j.State, to))
	}
	j.State = to
	if to.Terminal() {
		j.TerminalAt = time.Now()
	}
	return nil
}

// UploadedAsset is a remote-side handle to a caller-supplied bitmap,
// valid for the lifetime of the job request that produced it.
type UploadedAsset struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	MIME   string `json:"mime,omitempty"`
}
