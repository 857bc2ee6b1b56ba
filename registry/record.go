package registry

import (
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/types"
)

// WaitMode selects how a record's jobs reach their terminal state.
type WaitMode string

const (
	// WaitPoll submits, receives a job id, and polls a status endpoint.
	WaitPoll WaitMode = "poll"
	// WaitStream submits and reads one long streaming response
	// (NDJSON lines or SSE frames) until the result URL appears.
	WaitStream WaitMode = "single_long_response"
	// WaitSync submits and receives the finished result in the same
	// response. No job id, no waiting.
	WaitSync WaitMode = "sync"
)

// Slot names a value from a normalized job request that the submit
// schema can place into the payload.
type Slot string

const (
	SlotPrompt         Slot = "prompt"
	SlotNegativePrompt Slot = "negative_prompt"
	SlotModel          Slot = "model"
	SlotSize           Slot = "size"       // formatted "W<sep>H"
	SlotRatio          Slot = "ratio"      // aspect ratio verbatim, e.g. "16:9"
	SlotResolution     Slot = "resolution" // tier verbatim, e.g. "720P"
	SlotSeed           Slot = "seed"
	SlotDuration       Slot = "duration"
	SlotWatermark      Slot = "watermark"
	SlotCount          Slot = "count"
	SlotFunction       Slot = "function"   // provider-specific operation selector
	SlotRefImage       Slot = "ref_image"  // first uploaded asset URL
	SlotRefImages      Slot = "ref_images" // all uploaded asset URLs, in order
	SlotRefAssetID     Slot = "ref_asset_id"
	SlotRefAssetIDs    Slot = "ref_asset_ids"
	// SlotCropArea receives an {x,y,width,height} object: the largest
	// region of the first uploaded asset matching the requested aspect
	// ratio, anchored at the origin.
	SlotCropArea   Slot = "crop_area"
	SlotFirstFrame Slot = "first_frame" // keyframe-to-video endpoints
	SlotLastFrame  Slot = "last_frame"
)

// SubmitSchema declares how a payload is assembled: a base JSON
// template plus sjson paths that receive request values. Slots whose
// request value is absent are left out of the payload.
type SubmitSchema struct {
	Template string
	Slots    map[Slot]string

	// SizeSeparator joins width and height for SlotSize. Defaults to "*".
	SizeSeparator string

	// Headers are sent with the submit call in addition to auth.
	Headers map[string]string
}

// FormatSize renders a concrete size for SlotSize.
func (s SubmitSchema) FormatSize(size Size) string {
	sep := s.SizeSeparator
	if sep == "" {
		sep = "*"
	}
	return size.Format(sep)
}

// ResponseAdapter declares where fields live in provider responses, as
// gjson paths. Empty paths mean the provider never reports that field.
// The same adapter serves submit responses, poll responses, and
// individual stream frames; paths that miss simply yield nothing.
type ResponseAdapter struct {
	JobID  string
	Status string

	// Progress is read as a number and multiplied by ProgressScale
	// (0 means 1) to reach the 0-100 range.
	Progress      string
	ProgressScale float64

	// ResultURLs candidates are tried in order; the first path that
	// yields at least one URL wins. A path may address a single string
	// or an array of strings.
	ResultURLs []string

	// ResultEnvelope, when set, names a field whose value is itself a
	// JSON-encoded string; the ResultURLs paths are resolved inside
	// that decoded document.
	ResultEnvelope string

	// FallbackURLs locate a watermarked alternative kept for download
	// retry. First non-empty wins.
	FallbackURLs []string

	// Sync results for WaitSync records.
	SyncB64 string
	SyncURL string

	ErrorCode    string
	ErrorMessage string

	ActualPrompt string
	Text         string

	SubmitTime    string
	ScheduledTime string
	EndTime       string

	UsageTotalTokens string
	UsageImageCount  string
}

// Outcome classifies a provider status string.
type Outcome int

const (
	OutcomeInProgress Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeCancel
)

// TerminalStates partitions a provider's status vocabulary. Statuses
// outside all three sets mean the job is still running.
type TerminalStates struct {
	Success []string
	Failure []string
	Cancel  []string
}

// Classify maps a raw status string to an outcome.
func (t TerminalStates) Classify(status string) Outcome {
	if contains(t.Success, status) {
		return OutcomeSuccess
	}
	if contains(t.Failure, status) {
		return OutcomeFailure
	}
	if contains(t.Cancel, status) {
		return OutcomeCancel
	}
	return OutcomeInProgress
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// overlaps reports whether two status sets share a member.
func overlaps(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}

// Timeouts bounds a record's calls and overall wait.
type Timeouts struct {
	Connect      time.Duration
	Read         time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Normalized applies defaults and the 1s poll-interval floor.
func (t Timeouts) Normalized() Timeouts {
	if t.Connect <= 0 {
		t.Connect = 30 * time.Second
	}
	if t.Read <= 0 {
		t.Read = 60 * time.Second
	}
	if t.PollInterval < time.Second {
		t.PollInterval = time.Second
	}
	if t.MaxWait <= 0 {
		t.MaxWait = 10 * time.Minute
	}
	return t
}

// Record is the full declarative description of one provider endpoint
// for one task kind.
type Record struct {
	Provider string
	Category string // config document category, e.g. "image", "video"
	Kind     types.TaskKind

	BaseURL string // default; config base_url overrides

	SubmitPath string
	// PollPathTemplate may contain {task_id}; path segments in braces
	// other than task_id are filled from config extras.
	PollPathTemplate string
	// PollMethod defaults to GET. Providers polling via POST carry the
	// job id in PollBodyTemplate instead of the path.
	PollMethod       string
	PollBodyTemplate string
	PollHeaders      map[string]string

	Auth        auth.Kind
	Impersonate bool

	WaitMode WaitMode
	Submit   SubmitSchema
	Adapter  ResponseAdapter
	Terminal TerminalStates
	Timeouts Timeouts

	Sizes  *SizeCatalog
	Upload *UploadSpec

	// ResultURLPrefix completes relative result paths (per-provider
	// construction, kept exactly as the service expects).
	ResultURLPrefix string

	// ContentPolicyCodes are provider error codes meaning the content
	// was rejected by policy rather than the request being malformed.
	ContentPolicyCodes []string
}

// PollURL fills the poll path template for a job id.
func (r *Record) PollURL(base, jobID string) string {
	path := strings.ReplaceAll(r.PollPathTemplate, "{task_id}", jobID)
	return strings.TrimRight(base, "/") + path
}

// PollBody fills the poll body template for a job id, or returns nil
// when the record polls without a body.
func (r *Record) PollBody(jobID string) []byte {
	if r.PollBodyTemplate == "" {
		return nil
	}
	return []byte(strings.ReplaceAll(r.PollBodyTemplate, "{task_id}", jobID))
}

// IsContentPolicyCode reports whether a provider error code means a
// content-policy rejection.
func (r *Record) IsContentPolicyCode(code string) bool {
	return contains(r.ContentPolicyCodes, code)
}
