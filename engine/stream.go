package engine

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/transport"
	"github.com/BaSui01/mediaflow/types"
)

// runStream submits the job and reads one long streaming response
// (SSE frames or NDJSON lines) until a frame carries the result URL.
// A stream that closes without one is a truncation, not a failure.
func (e *Engine) runStream(ctx context.Context, job *types.Job, rec *registry.Record,
	strategy auth.Strategy, submitURL string, payload []byte) (*types.Job, error) {

	timeouts := rec.Timeouts.Normalized()
	ctx, cancel := context.WithTimeout(ctx, timeouts.MaxWait)
	defer cancel()

	stream, err := e.client.Stream(ctx, &transport.Request{
		Method:      http.MethodPost,
		URL:         submitURL,
		Header:      headerMap(rec.Submit.Headers),
		Body:        payload,
		ContentType: "application/json",
		Auth:        strategy,
		Impersonate: rec.Impersonate,
	})
	if err != nil {
		return job, e.fail(job, err)
	}
	defer stream.Close()

	if err := job.Transition(types.StateInProgress); err != nil {
		return job, err
	}

	a := rec.Adapter
	lastLogged := types.ProgressUnknown
	for {
		line, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return job, e.fail(job, types.NewError(types.ErrTruncated,
					"stream ended without a result").WithJob(job.ID, job.Progress))
			}
			if ctx.Err() != nil {
				return job, e.fail(job, types.NewError(types.ErrTimeout,
					"stream did not finish within the wait budget").
					WithCause(ctx.Err()).WithJob(job.ID, job.Progress))
			}
			return job, e.fail(job, types.NewError(types.ErrTruncated,
				"stream broke before a result arrived").WithCause(err).WithJob(job.ID, job.Progress))
		}

		frame := gjson.ParseBytes(line)
		if a.JobID != "" && job.ID == "" {
			job.ID = frame.Get(a.JobID).String()
		}
		if p := readProgress(frame, a); p != types.ProgressUnknown && p > job.Progress {
			job.Progress = p
		}
		if job.Progress != types.ProgressUnknown && job.Progress > lastLogged {
			lastLogged = job.Progress
			e.logger.Info("job progress",
				zap.String("provider", rec.Provider),
				zap.String("job_id", job.ID),
				zap.Int("progress", job.Progress))
		}
		if a.Text != "" {
			if t := frame.Get(a.Text).String(); t != "" {
				job.TextResponse += t
			}
		}
		if code, _ := readProviderError(frame, a); code != "" && rec.IsContentPolicyCode(code) {
			return job, e.fail(job, e.classifyProviderError(rec, frame, 0,
				"provider rejected the content").WithJob(job.ID, job.Progress))
		}

		urls := readResultURLs(frame, rec)
		if len(urls) == 0 {
			continue
		}
		job.ResultURLs = urls
		job.FallbackURL = readFallbackURL(frame, rec)
		applyMeta(frame, job, a)
		if a.Progress != "" {
			job.Progress = 100
		}
		return e.succeed(job)
	}
}
