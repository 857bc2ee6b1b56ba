package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/codec"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/transport"
	"github.com/BaSui01/mediaflow/types"
	"github.com/BaSui01/mediaflow/upload"
)

// Engine drives jobs through the shared state machine by interpreting
// provider records.
type Engine struct {
	client  *transport.Client
	uploads *upload.Pipeline
	logger  *zap.Logger
	metrics *metrics.Collector

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option adjusts an Engine.
type Option func(*Engine)

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithClock overrides time observation and sleeping, used by tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.now = now
		e.sleep = sleep
	}
}

// New builds an engine on the shared transport client.
func New(client *transport.Client, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		client:  client,
		uploads: upload.New(client, logger),
		logger:  logger,
		now:     time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunParams selects the record and carries per-call wiring.
type RunParams struct {
	Record *registry.Record

	// BaseURL overrides the record's default when the configuration
	// names one.
	BaseURL string

	Auth auth.Strategy

	// Extra fills {placeholder} segments in endpoint paths, e.g. a
	// conversation id, from the provider's configuration.
	Extra map[string]string
}

// Run executes one generation job to a terminal state. The returned
// Job is non-nil whenever a submission was attempted, so callers can
// render partial generation info on failure.
func (e *Engine) Run(ctx context.Context, p RunParams, req *JobRequest) (*types.Job, error) {
	rec := p.Record
	if err := req.Validate(); err != nil {
		return nil, err
	}
	base := p.BaseURL
	if base == "" {
		base = rec.BaseURL
	}
	if base == "" {
		return nil, types.NewError(types.ErrConfigMissing, "no base url for provider "+rec.Provider).
			WithProvider(rec.Provider)
	}

	job := &types.Job{
		Provider:  rec.Provider,
		Kind:      rec.Kind,
		Model:     req.Model,
		State:     types.StateDraft,
		Progress:  types.ProgressUnknown,
		CreatedAt: e.now(),
	}

	assets, err := e.prepareReferences(ctx, job, rec, base, p.Auth, req)
	if err != nil {
		return job, err
	}

	size, err := e.resolveSize(rec, req)
	if err != nil {
		return job, e.fail(job, err)
	}

	if err := job.Transition(types.StateSubmitting); err != nil {
		return job, err
	}
	payload, err := buildPayload(rec, req, assets, size)
	if err != nil {
		return job, e.fail(job, err)
	}

	if e.metrics != nil {
		e.metrics.RecordSubmission(rec.Provider, string(rec.Kind))
	}
	submitURL := join(base, fillExtras(rec.SubmitPath, p.Extra))

	switch rec.WaitMode {
	case registry.WaitSync:
		return e.runSync(ctx, job, rec, p.Auth, submitURL, payload)
	case registry.WaitStream:
		return e.runStream(ctx, job, rec, p.Auth, submitURL, payload)
	default:
		return e.runPoll(ctx, job, rec, base, p.Auth, submitURL, payload)
	}
}

// prepareReferences uploads reference bitmaps through the record's
// pipeline, or inlines them as PNG data URLs for providers that take
// image payloads directly.
func (e *Engine) prepareReferences(ctx context.Context, job *types.Job, rec *registry.Record,
	base string, strategy auth.Strategy, req *JobRequest) ([]types.UploadedAsset, error) {

	if len(req.ReferenceImages) == 0 {
		return nil, nil
	}
	if err := job.Transition(types.StateUploading); err != nil {
		return nil, err
	}

	if rec.Upload == nil {
		assets := make([]types.UploadedAsset, 0, len(req.ReferenceImages))
		for _, img := range req.ReferenceImages {
			data, err := codec.ToBytes(img, "PNG")
			if err != nil {
				return nil, e.fail(job, err)
			}
			assets = append(assets, types.UploadedAsset{
				URL:  codec.DataURL(data, "image/png"),
				MIME: "image/png",
			})
		}
		return assets, nil
	}

	assets, err := e.uploads.UploadAll(ctx, rec, base, strategy, req.ReferenceImages)
	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.RecordUpload(rec.Provider, status)
	}
	if err != nil {
		return nil, e.fail(job, err)
	}
	return assets, nil
}

// resolveSize picks the concrete size when the record has a catalog
// and the request names a ratio or tier.
func (e *Engine) resolveSize(rec *registry.Record, req *JobRequest) (*registry.Size, error) {
	if rec.Sizes == nil || (req.AspectRatio == "" && req.Resolution == "") {
		return nil, nil
	}
	size, err := rec.Sizes.Resolve(req.Model, req.AspectRatio, req.Resolution)
	if err != nil {
		return nil, err
	}
	return &size, nil
}

// runSync handles providers that return the finished result in the
// submit response.
func (e *Engine) runSync(ctx context.Context, job *types.Job, rec *registry.Record,
	strategy auth.Strategy, submitURL string, payload []byte) (*types.Job, error) {

	doc, err := e.submit(ctx, job, rec, strategy, submitURL, payload)
	if err != nil {
		return job, err
	}
	a := rec.Adapter
	var urls []string
	if a.SyncB64 != "" {
		if b64 := doc.Get(a.SyncB64).String(); b64 != "" {
			urls = []string{"data:image/png;base64," + b64}
		}
	}
	if len(urls) == 0 && a.SyncURL != "" {
		if u := doc.Get(a.SyncURL).String(); u != "" {
			urls = []string{u}
		}
	}
	if len(urls) == 0 {
		return job, e.fail(job, e.classifyProviderError(rec, doc, 0, "response carried no result"))
	}
	job.ResultURLs = urls
	applyMeta(doc, job, a)
	return e.succeed(job)
}

// submit issues the submit call and classifies any failure. The job is
// left in Submitting on success.
func (e *Engine) submit(ctx context.Context, job *types.Job, rec *registry.Record,
	strategy auth.Strategy, submitURL string, payload []byte) (gjson.Result, error) {

	callCtx, cancel := context.WithTimeout(ctx, callBudget(rec))
	defer cancel()
	resp, err := e.client.Do(callCtx, &transport.Request{
		Method:      http.MethodPost,
		URL:         submitURL,
		Header:      headerMap(rec.Submit.Headers),
		Body:        payload,
		ContentType: "application/json",
		Auth:        strategy,
		Impersonate: rec.Impersonate,
	})
	if err != nil {
		return gjson.Result{}, e.fail(job, err)
	}
	doc := gjson.ParseBytes(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if auth.DetectChallenge(resp.Body) {
			return gjson.Result{}, e.fail(job, types.NewError(types.ErrAuthChallenge,
				"submit endpoint served an anti-bot challenge page").WithHTTPStatus(resp.StatusCode))
		}
		return gjson.Result{}, e.fail(job,
			e.classifyProviderError(rec, doc, resp.StatusCode, fmt.Sprintf("submit returned HTTP %d", resp.StatusCode)))
	}
	return doc, nil
}

// classifyProviderError builds the typed error for a rejected call,
// distinguishing content-policy rejections from other failures.
func (e *Engine) classifyProviderError(rec *registry.Record, doc gjson.Result,
	httpStatus int, fallback string) *types.Error {

	code, message := readProviderError(doc, rec.Adapter)
	if message == "" {
		message = fallback
	}
	if code != "" {
		message = fmt.Sprintf("%s (code %s)", message, code)
	}
	kind := types.ErrProviderRejected
	if rec.IsContentPolicyCode(code) {
		kind = types.ErrContentRejected
	}
	err := types.NewError(kind, message)
	if httpStatus > 0 {
		err = err.WithHTTPStatus(httpStatus)
	}
	return err
}

// fail stamps the job with the error, moves it to Failure (or the
// error's matching terminal state) and returns the enriched error.
func (e *Engine) fail(job *types.Job, err error) error {
	kind := types.KindOf(err)
	if kind == "" {
		kind = types.ErrInternal
	}
	job.ErrorKind = kind
	job.ErrorMessage = err.Error()

	target := types.StateFailure
	if kind == types.ErrTimeout {
		target = types.StateTimedOut
	}
	if !job.State.Terminal() {
		if terr := job.Transition(target); terr != nil {
			e.logger.Warn("job state transition failed", zap.Error(terr))
			job.State = target
		}
	}
	e.recordTerminal(job)
	return withJobContext(err, job.Provider, job.ID, job.Progress)
}

// succeed moves the job to Success and records metrics.
func (e *Engine) succeed(job *types.Job) (*types.Job, error) {
	if err := job.Transition(types.StateSuccess); err != nil {
		return job, err
	}
	e.recordTerminal(job)
	e.logger.Info("job succeeded",
		zap.String("provider", job.Provider),
		zap.String("job_id", job.ID),
		zap.Int("result_urls", len(job.ResultURLs)))
	return job, nil
}

func (e *Engine) recordTerminal(job *types.Job) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordTerminal(job.Provider, string(job.Kind), string(job.State),
		job.TerminalAt.Sub(job.CreatedAt))
}

// withJobContext attaches provider and partial-progress context so
// callers can render generation info even on failure.
func withJobContext(err error, provider, jobID string, progress int) error {
	var typed *types.Error
	if e, ok := err.(*types.Error); ok {
		typed = e
	} else {
		typed = types.NewError(types.ErrInternal, err.Error()).WithCause(err)
	}
	if typed.Provider == "" {
		typed = typed.WithProvider(provider)
	}
	if typed.JobID == "" && jobID != "" {
		typed = typed.WithJob(jobID, progress)
	}
	return typed
}

// callBudget bounds one buffered provider call. Submit and poll calls
// get connect plus read; synchronous providers generate inside the
// submit call, so they get the whole wait budget.
func callBudget(rec *registry.Record) time.Duration {
	n := rec.Timeouts.Normalized()
	if rec.WaitMode == registry.WaitSync {
		return n.MaxWait
	}
	return n.Connect + n.Read
}

func headerMap(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// fillExtras replaces {placeholder} path segments from configuration
// extras.
func fillExtras(path string, extra map[string]string) string {
	for k, v := range extra {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	return path
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
