package engine

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/transport"
	"github.com/BaSui01/mediaflow/types"
)

// runPoll submits the job, then polls the status endpoint until a
// terminal status or the record's wait budget runs out. Transient poll
// failures are absorbed; only the deadline or a terminal status ends
// the loop.
func (e *Engine) runPoll(ctx context.Context, job *types.Job, rec *registry.Record,
	base string, strategy auth.Strategy, submitURL string, payload []byte) (*types.Job, error) {

	doc, err := e.submit(ctx, job, rec, strategy, submitURL, payload)
	if err != nil {
		return job, err
	}
	jobID := doc.Get(rec.Adapter.JobID).String()
	if jobID == "" {
		return job, e.fail(job, e.classifyProviderError(rec, doc, 0, "submit response carried no job id"))
	}
	job.ID = jobID
	applyMeta(doc, job, rec.Adapter)
	if err := job.Transition(types.StateInProgress); err != nil {
		return job, err
	}
	e.logger.Info("job submitted",
		zap.String("provider", rec.Provider),
		zap.String("job_id", jobID),
		zap.String("model", job.Model))

	timeouts := rec.Timeouts.Normalized()
	deadline := e.now().Add(timeouts.MaxWait)
	pollMethod := rec.PollMethod
	if pollMethod == "" {
		pollMethod = http.MethodGet
	}
	lastLogged := types.ProgressUnknown

	for {
		if !e.now().Before(deadline) {
			return job, e.fail(job, types.NewError(types.ErrTimeout,
				"job did not finish within the wait budget").WithJob(jobID, job.Progress))
		}
		if err := e.sleep(ctx, timeouts.PollInterval); err != nil {
			return job, e.fail(job, types.NewError(types.ErrTimeout,
				"wait cancelled").WithCause(err).WithJob(jobID, job.Progress))
		}

		callCtx, cancel := context.WithTimeout(ctx, callBudget(rec))
		resp, err := e.client.Do(callCtx, &transport.Request{
			Method:      pollMethod,
			URL:         rec.PollURL(base, jobID),
			Header:      headerMap(rec.PollHeaders),
			Body:        rec.PollBody(jobID),
			ContentType: "application/json",
			Auth:        strategy,
			Impersonate: rec.Impersonate,
		})
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return job, e.fail(job, types.NewError(types.ErrTimeout,
					"wait cancelled").WithCause(ctx.Err()).WithJob(jobID, job.Progress))
			}
			e.logger.Warn("poll failed, will retry",
				zap.String("provider", rec.Provider),
				zap.String("job_id", jobID),
				zap.Error(err))
			continue
		}
		if e.metrics != nil {
			e.metrics.RecordPollTick(rec.Provider)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			e.logger.Warn("poll returned non-2xx, will retry",
				zap.String("provider", rec.Provider),
				zap.String("job_id", jobID),
				zap.Int("status", resp.StatusCode))
			continue
		}

		tick := gjson.ParseBytes(resp.Body)
		status := tick.Get(rec.Adapter.Status).String()
		if status != "" {
			job.Status = status
		}
		if p := readProgress(tick, rec.Adapter); p != types.ProgressUnknown && p > job.Progress {
			job.Progress = p
		}
		if job.Progress != types.ProgressUnknown && job.Progress > lastLogged {
			lastLogged = job.Progress
			e.logger.Info("job progress",
				zap.String("provider", rec.Provider),
				zap.String("job_id", jobID),
				zap.Int("progress", job.Progress))
		}

		switch rec.Terminal.Classify(status) {
		case registry.OutcomeSuccess:
			urls := readResultURLs(tick, rec)
			if len(urls) == 0 {
				return job, e.fail(job, e.classifyProviderError(rec, tick, 0,
					"terminal success without result urls").WithJob(jobID, job.Progress))
			}
			job.ResultURLs = urls
			job.FallbackURL = readFallbackURL(tick, rec)
			applyMeta(tick, job, rec.Adapter)
			if rec.Adapter.Progress != "" {
				job.Progress = 100
			}
			return e.succeed(job)
		case registry.OutcomeFailure:
			err := e.classifyProviderError(rec, tick, 0, "provider reported status "+status)
			return job, e.fail(job, err.WithJob(jobID, job.Progress))
		case registry.OutcomeCancel:
			return job, e.cancel(job, status)
		}
	}
}

// cancel records a provider-side cancellation. The taxonomy has no
// dedicated kind; the job state carries the distinction.
func (e *Engine) cancel(job *types.Job, status string) error {
	err := types.NewError(types.ErrProviderRejected,
		"job was cancelled on the provider side (status "+status+")").
		WithJob(job.ID, job.Progress)
	job.ErrorKind = types.ErrProviderRejected
	job.ErrorMessage = err.Error()
	if terr := job.Transition(types.StateCancelled); terr != nil {
		e.logger.Warn("job state transition failed", zap.Error(terr))
		job.State = types.StateCancelled
	}
	e.recordTerminal(job)
	return withJobContext(err, job.Provider, job.ID, job.Progress)
}
