// Package materialize turns a finished job's result URLs into the
// artifacts callers consume: a batched image tensor or a video file
// handle, each paired with a rendered generation-info block. Failures
// yield placeholder artifacts so workflows can continue; the error
// still reports what went wrong.
package materialize

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/codec"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/types"
)

// Placeholder dimensions for failed image jobs.
const (
	placeholderWidth  = 512
	placeholderHeight = 512
)

// Meta carries the request-side fields that belong in the info block
// but are not recorded on the job.
type Meta struct {
	Prompt     string
	Ratio      string
	Resolution string
	Duration   int
}

// Materializer downloads and decodes finished artifacts.
type Materializer struct {
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Collector
	timeout time.Duration
}

// Option adjusts a Materializer.
type Option func(*Materializer)

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Materializer) { m.metrics = c }
}

// WithDownloadTimeout bounds each artifact fetch.
func WithDownloadTimeout(d time.Duration) Option {
	return func(m *Materializer) { m.timeout = d }
}

// New builds a Materializer on a plain HTTP client. Result URLs are
// public object-storage links; they never need provider auth.
func New(httpClient *http.Client, logger *zap.Logger, opts ...Option) *Materializer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Materializer{http: httpClient, logger: logger, timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Images fetches every result URL, harmonizes sizes to the first
// image, and concatenates along the batch dimension. On failure the
// returned tensor is a blank placeholder and the info block carries
// the error text; the error is returned as well so callers can choose
// to propagate it.
func (m *Materializer) Images(ctx context.Context, job *types.Job, meta Meta) (*codec.Tensor, string, error) {
	tensor, err := m.decodeImages(ctx, job.ResultURLs)
	m.recordDownload(job.Provider, err)
	if err != nil {
		m.logger.Warn("image materialization failed",
			zap.String("provider", job.Provider),
			zap.String("job_id", job.ID),
			zap.Error(err))
		return codec.Blank(placeholderWidth, placeholderHeight), m.renderInfo(job, meta, err), err
	}
	return tensor, m.renderInfo(job, meta, nil), nil
}

func (m *Materializer) decodeImages(ctx context.Context, urls []string) (*codec.Tensor, error) {
	if len(urls) == 0 {
		return nil, types.NewError(types.ErrDownload, "job finished without result urls")
	}
	if !hasDataURL(urls) {
		return codec.DownloadImageBatch(ctx, m.http, urls, m.timeout)
	}
	// Mixed batches decode inline results in place and fetch the rest
	// one by one; sync providers rarely return more than one URL.
	tensors := make([]*codec.Tensor, 0, len(urls))
	for _, u := range urls {
		var (
			t   *codec.Tensor
			err error
		)
		if strings.HasPrefix(u, "data:") {
			t, err = decodeDataURL(u)
		} else {
			t, err = codec.DownloadImage(ctx, m.http, u, m.timeout)
		}
		if err != nil {
			return nil, err
		}
		tensors = append(tensors, t)
	}
	for i := 1; i < len(tensors); i++ {
		if tensors[i].H != tensors[0].H || tensors[i].W != tensors[0].W {
			tensors[i] = codec.Resample(tensors[i], tensors[0].W, tensors[0].H)
		}
	}
	return codec.Concat(tensors)
}

func hasDataURL(urls []string) bool {
	for _, u := range urls {
		if strings.HasPrefix(u, "data:") {
			return true
		}
	}
	return false
}

// Video picks the result URL, downloads it to a temp file, and falls
// back to the watermarked alternative when the first download fails.
// On total failure the returned handle is the empty placeholder.
func (m *Materializer) Video(ctx context.Context, job *types.Job, meta Meta) (*codec.VideoHandle, string, error) {
	url := pickVideoURL(job.ResultURLs)
	if url == "" {
		err := types.NewError(types.ErrDownload, "job finished without result urls")
		m.recordDownload(job.Provider, err)
		return codec.EmptyVideoHandle(), m.renderInfo(job, meta, err), err
	}

	handle, err := codec.DownloadVideo(ctx, m.http, url, m.timeout)
	if err != nil && job.FallbackURL != "" && job.FallbackURL != url {
		m.logger.Warn("video download failed, retrying watermarked fallback",
			zap.String("provider", job.Provider),
			zap.String("job_id", job.ID),
			zap.Error(err))
		handle, err = codec.DownloadVideo(ctx, m.http, job.FallbackURL, m.timeout)
	}
	m.recordDownload(job.Provider, err)
	if err != nil {
		return codec.EmptyVideoHandle(), m.renderInfo(job, meta, err), err
	}
	return handle, m.renderInfo(job, meta, nil), nil
}

// FailureInfo renders the info block for a job that never produced
// result URLs, e.g. a timeout or rejection before materialization.
func (m *Materializer) FailureInfo(job *types.Job, meta Meta, err error) string {
	return m.renderInfo(job, meta, err)
}

func (m *Materializer) renderInfo(job *types.Job, meta Meta, err error) string {
	info := &types.GenerationInfo{
		Prompt:     meta.Prompt,
		Ratio:      meta.Ratio,
		Resolution: meta.Resolution,
		Duration:   meta.Duration,
	}
	if job != nil {
		info.FromJob(job)
	}
	if err != nil && info.Error == "" {
		info.Error = err.Error()
	}
	return info.Render()
}

func (m *Materializer) recordDownload(provider string, err error) {
	if m.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordDownload(provider, status)
}

// pickVideoURL prefers the first URL with a known video extension and
// falls back to the first URL.
func pickVideoURL(urls []string) string {
	for _, u := range urls {
		if codec.HasVideoExtension(u) {
			return u
		}
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// decodeDataURL decodes an inline "data:<mime>;base64,<payload>" result
// produced by synchronous providers.
func decodeDataURL(u string) (*codec.Tensor, error) {
	i := strings.Index(u, ",")
	if i < 0 {
		return nil, types.NewError(types.ErrDownload, "malformed data url")
	}
	raw, err := base64.StdEncoding.DecodeString(u[i+1:])
	if err != nil {
		return nil, types.NewError(types.ErrDownload, "decode data url").WithCause(err)
	}
	return codec.DecodeImage(raw)
}
