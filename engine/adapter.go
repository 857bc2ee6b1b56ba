package engine

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/types"
)

// readResultURLs tries the adapter's candidate paths in order and
// returns the first non-empty URL list, completing relative paths
// with the record's result prefix.
func readResultURLs(doc gjson.Result, rec *registry.Record) []string {
	a := rec.Adapter
	if a.ResultEnvelope != "" {
		if inner := doc.Get(a.ResultEnvelope).String(); inner != "" {
			doc = gjson.Parse(inner)
		}
	}
	for _, path := range a.ResultURLs {
		urls := urlsAt(doc, path)
		if len(urls) > 0 {
			for i, u := range urls {
				urls[i] = completeURL(u, rec.ResultURLPrefix)
			}
			return urls
		}
	}
	return nil
}

// urlsAt reads one path that may address a single string or an array
// of strings.
func urlsAt(doc gjson.Result, path string) []string {
	v := doc.Get(path)
	if !v.Exists() {
		return nil
	}
	if v.IsArray() {
		var urls []string
		for _, item := range v.Array() {
			if s := item.String(); s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	}
	if s := v.String(); s != "" {
		return []string{s}
	}
	return nil
}

// completeURL prefixes relative paths exactly the way the provider
// constructs its no-watermark links.
func completeURL(u, prefix string) string {
	if prefix == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(u, "/")
}

// readFallbackURL picks the watermarked alternative, if any.
func readFallbackURL(doc gjson.Result, rec *registry.Record) string {
	for _, path := range rec.Adapter.FallbackURLs {
		if u := doc.Get(path).String(); u != "" {
			return u
		}
	}
	return ""
}

// readProgress returns the scaled progress in 0-100, or
// types.ProgressUnknown when the document carries none.
func readProgress(doc gjson.Result, a registry.ResponseAdapter) int {
	if a.Progress == "" {
		return types.ProgressUnknown
	}
	v := doc.Get(a.Progress)
	if !v.Exists() {
		return types.ProgressUnknown
	}
	scale := a.ProgressScale
	if scale == 0 {
		scale = 1
	}
	p := int(v.Float() * scale)
	if p < 0 {
		return types.ProgressUnknown
	}
	if p > 100 {
		p = 100
	}
	return p
}

// readProviderError extracts the provider's error code and message.
func readProviderError(doc gjson.Result, a registry.ResponseAdapter) (code, message string) {
	if a.ErrorCode != "" {
		code = doc.Get(a.ErrorCode).String()
	}
	if a.ErrorMessage != "" {
		message = doc.Get(a.ErrorMessage).String()
	}
	return code, message
}

// applyMeta copies timestamps, the rewritten prompt and usage from a
// response onto the job. Timestamps stay opaque strings.
func applyMeta(doc gjson.Result, job *types.Job, a registry.ResponseAdapter) {
	if a.SubmitTime != "" {
		if v := doc.Get(a.SubmitTime).String(); v != "" {
			job.SubmitTime = v
		}
	}
	if a.ScheduledTime != "" {
		if v := doc.Get(a.ScheduledTime).String(); v != "" {
			job.ScheduledTime = v
		}
	}
	if a.EndTime != "" {
		if v := doc.Get(a.EndTime).String(); v != "" {
			job.EndTime = v
		}
	}
	if a.ActualPrompt != "" {
		if v := doc.Get(a.ActualPrompt).String(); v != "" {
			job.ActualPrompt = v
		}
	}
	if a.UsageTotalTokens != "" {
		if v := doc.Get(a.UsageTotalTokens); v.Exists() {
			job.Usage.TotalTokens = int(v.Int())
		}
	}
	if a.UsageImageCount != "" {
		if v := doc.Get(a.UsageImageCount); v.Exists() {
			job.Usage.ImageCount = int(v.Int())
		}
	}
}
