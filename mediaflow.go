// Package mediaflow is the entry point for running generative media
// jobs against heterogeneous provider back-ends. A Client binds the
// configuration store, the provider registry, and the job engine; the
// Run* methods submit a job, wait for its terminal state, and hand
// back the materialized artifact with a rendered info block.
//
// Usage:
//
//	store, err := config.NewStore("providers.yaml", logger)
//	client, err := mediaflow.New(store, mediaflow.WithLogger(logger))
//	tensor, info, err := client.RunImageJob(ctx, "dashscope", &engine.JobRequest{
//		Prompt:      "a red fox in the snow",
//		AspectRatio: "16:9",
//		Resolution:  "1K",
//		Seed:        -1,
//	})
package mediaflow

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/codec"
	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/engine"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/materialize"
	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/speech"
	"github.com/BaSui01/mediaflow/transport"
	"github.com/BaSui01/mediaflow/types"
)

// Configuration categories, matching the document layout.
const (
	CategoryImage = "image"
	CategoryVideo = "video"
	CategoryAudio = "audio"
)

// Client is the façade over the whole pipeline. It is safe for
// concurrent use; every job gets its own state.
type Client struct {
	store    *config.Store
	registry *registry.Registry
	client   *transport.Client
	engine   *engine.Engine
	material *materialize.Materializer
	speech   *speech.Service
	logger   *zap.Logger
	metrics  *metrics.Collector

	httpTimeout time.Duration
}

// Option configures the client created by [New].
type Option func(*Client)

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRegistry replaces the built-in provider registry.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithHTTPTimeout bounds each individual HTTP call.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpTimeout = d }
}

// WithMetrics registers prometheus collectors under the "mediaflow"
// namespace on the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = metrics.NewCollector("mediaflow", reg, c.logger)
	}
}

// New builds a client over a loaded configuration store.
func New(store *config.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, types.NewError(types.ErrConfigMissing, "nil config store")
	}
	c := &Client{
		store:       store,
		logger:      zap.NewNop(),
		httpTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		reg, err := registry.Builtin()
		if err != nil {
			return nil, err
		}
		c.registry = reg
	}
	c.client = transport.NewClient(c.httpTimeout, c.logger)

	engineOpts := []engine.Option{}
	materialOpts := []materialize.Option{}
	if c.metrics != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(c.metrics))
		materialOpts = append(materialOpts, materialize.WithMetrics(c.metrics))
	}
	c.engine = engine.New(c.client, c.logger, engineOpts...)
	c.material = materialize.New(http.DefaultClient, c.logger, materialOpts...)
	c.speech = speech.New(c.client, c.logger)
	return c, nil
}

// RunImageJob submits an image generation job and returns the decoded
// result batch. The task kind is text-to-image, or image-to-image when
// the request carries reference images. On failure the tensor is a
// blank placeholder and the info block carries the error.
func (c *Client) RunImageJob(ctx context.Context, provider string, req *engine.JobRequest) (*codec.Tensor, string, error) {
	job, meta, err := c.run(ctx, CategoryImage, provider, imageKind(req), req)
	if err != nil {
		return codec.Blank(512, 512), c.material.FailureInfo(job, meta, err), err
	}
	return c.material.Images(ctx, job, meta)
}

// RunVideoJob submits a video generation job and returns a handle to
// the downloaded file. The task kind is text-to-video, or
// image-to-video when the request carries reference images. On failure
// the handle is empty and the info block carries the error.
func (c *Client) RunVideoJob(ctx context.Context, provider string, req *engine.JobRequest) (*codec.VideoHandle, string, error) {
	job, meta, err := c.run(ctx, CategoryVideo, provider, videoKind(req), req)
	if err != nil {
		return codec.EmptyVideoHandle(), c.material.FailureInfo(job, meta, err), err
	}
	return c.material.Video(ctx, job, meta)
}

// RunJob submits a job with an explicit category and task kind, for
// providers registered outside the image/video defaults.
func (c *Client) RunJob(ctx context.Context, category, provider string, kind types.TaskKind, req *engine.JobRequest) (*types.Job, error) {
	job, _, err := c.run(ctx, category, provider, kind, req)
	return job, err
}

func (c *Client) run(ctx context.Context, category, provider string, kind types.TaskKind,
	req *engine.JobRequest) (*types.Job, materialize.Meta, error) {

	meta := materialize.Meta{}
	if req != nil {
		meta = materialize.Meta{
			Prompt:     req.Prompt,
			Ratio:      req.AspectRatio,
			Resolution: req.Resolution,
			Duration:   req.Duration,
		}
	}

	rec, err := c.registry.Lookup(category, provider, kind)
	if err != nil {
		return nil, meta, err
	}
	settings, err := c.store.Get(category, provider)
	if err != nil {
		return nil, meta, err
	}
	strategy, err := auth.For(rec.Auth, credentials(settings), c.logger)
	if err != nil {
		return nil, meta, err
	}
	if req != nil && req.Model == "" {
		req.Model = settings.Model
	}

	job, err := c.engine.Run(ctx, engine.RunParams{
		Record:  overrideTimeouts(rec, settings),
		BaseURL: settings.BaseURL,
		Auth:    strategy,
		Extra:   settings.Extra,
	}, req)
	return job, meta, err
}

// overrideTimeouts copies the record when the configuration adjusts
// its time bounds: timeout replaces the per-call read bound, max_wait
// replaces the whole-job wait budget. Registry records are shared, so
// they are never mutated in place.
func overrideTimeouts(rec *registry.Record, s config.Settings) *registry.Record {
	if s.Timeout <= 0 && s.MaxWait <= 0 {
		return rec
	}
	out := *rec
	if s.Timeout > 0 {
		out.Timeouts.Read = s.Timeout
	}
	if s.MaxWait > 0 {
		out.Timeouts.MaxWait = s.MaxWait
	}
	return &out
}

// RunTTSJob synthesizes speech. It returns the waveform, the audio URL
// when the provider serves one, and a rendered info block.
func (c *Client) RunTTSJob(ctx context.Context, provider, text string, opts speech.TTSOptions) (*codec.Waveform, string, string, error) {
	settings, strategy, err := c.audioTarget(provider)
	if err != nil {
		return nil, "", "", err
	}
	if opts.Model == "" {
		opts.Model = settings.Model
	}
	wave, audioURL, err := c.speech.Synthesize(ctx, settings.BaseURL, strategy, text, opts)
	info := &types.GenerationInfo{
		TaskKind: types.TaskTextToSpeech,
		Provider: provider,
		Model:    opts.Model,
		Prompt:   text,
	}
	if err != nil {
		info.Error = err.Error()
		return nil, audioURL, info.Render(), err
	}
	if audioURL != "" {
		info.ResultURLs = []string{audioURL}
	}
	return wave, audioURL, info.Render(), nil
}

// RunSTTJob transcribes a waveform to text.
func (c *Client) RunSTTJob(ctx context.Context, provider string, wave *codec.Waveform, model string) (string, error) {
	settings, strategy, err := c.audioTarget(provider)
	if err != nil {
		return "", err
	}
	if model == "" {
		model = settings.Model
	}
	return c.speech.Transcribe(ctx, settings.BaseURL, strategy, wave, model)
}

// UploadReferenceVoice registers a custom voice and returns its URI.
func (c *Client) UploadReferenceVoice(ctx context.Context, provider string, wave *codec.Waveform,
	model, customName, transcript string) (string, error) {

	settings, strategy, err := c.audioTarget(provider)
	if err != nil {
		return "", err
	}
	if model == "" {
		model = settings.Model
	}
	return c.speech.UploadReferenceVoice(ctx, settings.BaseURL, strategy, wave, model, customName, transcript)
}

// ListVoices fetches the provider's registered custom voices.
func (c *Client) ListVoices(ctx context.Context, provider string) ([]speech.Voice, error) {
	settings, strategy, err := c.audioTarget(provider)
	if err != nil {
		return nil, err
	}
	return c.speech.ListVoices(ctx, settings.BaseURL, strategy)
}

// audioTarget resolves settings and bearer auth for a speech provider.
func (c *Client) audioTarget(provider string) (config.Settings, auth.Strategy, error) {
	settings, err := c.store.Get(CategoryAudio, provider)
	if err != nil {
		return config.Settings{}, nil, err
	}
	strategy, err := auth.For(auth.KindBearer, credentials(settings), c.logger)
	if err != nil {
		return config.Settings{}, nil, err
	}
	return settings, strategy, nil
}

func credentials(s config.Settings) auth.Credentials {
	return auth.Credentials{
		APIKey:    s.APIKey,
		Cookie:    s.Cookie,
		CSRFToken: s.CSRFToken,
		StatsigID: s.StatsigID,
		UserAgent: s.UserAgent,
		Origin:    s.Origin,
	}
}

func imageKind(req *engine.JobRequest) types.TaskKind {
	if req != nil && len(req.ReferenceImages) > 0 {
		return types.TaskImageToImage
	}
	return types.TaskTextToImage
}

func videoKind(req *engine.JobRequest) types.TaskKind {
	if req != nil && len(req.ReferenceImages) > 0 {
		return types.TaskImageToVideo
	}
	return types.TaskTextToVideo
}
