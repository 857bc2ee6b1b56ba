package types

import (
	"fmt"
	"strings"
)

// GenerationInfo is the human-readable summary block handed back with
// every generated artifact. It is display-only and never consulted
// programmatically.
type GenerationInfo struct {
	TaskKind TaskKind
	Provider string
	Model    string
	Prompt   string
	// ActualPrompt is the provider-rewritten prompt, when prompt
	// extension was applied and the provider reports it.
	ActualPrompt string
	Ratio        string
	Resolution   string
	Duration     int // seconds, video only

	JobID string
	// Provider timestamps, verbatim.
	SubmitTime    string
	ScheduledTime string
	EndTime       string

	ResultURLs   []string
	Usage        Usage
	LastProgress int

	// Error carries failure text when the artifact is a placeholder.
	Error string
}

// Render formats the info block for display.
func (g *GenerationInfo) Render() string {
	var b strings.Builder
	if g.Error != "" {
		b.WriteString("generation failed\n")
	} else {
		b.WriteString("generation succeeded\n")
	}
	writeLine := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	writeLine("task", string(g.TaskKind))
	writeLine("provider", g.Provider)
	writeLine("model", g.Model)
	writeLine("prompt", g.Prompt)
	if g.ActualPrompt != "" && g.ActualPrompt != g.Prompt {
		writeLine("actual_prompt", g.ActualPrompt)
	}
	writeLine("ratio", g.Ratio)
	writeLine("resolution", g.Resolution)
	if g.Duration > 0 {
		fmt.Fprintf(&b, "duration: %ds\n", g.Duration)
	}
	writeLine("job_id", g.JobID)
	writeLine("submit_time", g.SubmitTime)
	writeLine("scheduled_time", g.ScheduledTime)
	writeLine("end_time", g.EndTime)
	for _, u := range g.ResultURLs {
		writeLine("result_url", u)
	}
	if !g.Usage.Empty() {
		u := g.Usage
		if u.TotalTokens > 0 {
			fmt.Fprintf(&b, "total_tokens: %d\n", u.TotalTokens)
		}
		if u.Credits > 0 {
			fmt.Fprintf(&b, "credits: %.2f\n", u.Credits)
		}
		if u.ImageCount > 0 {
			fmt.Fprintf(&b, "image_count: %d\n", u.ImageCount)
		}
		if u.VideoCount > 0 {
			fmt.Fprintf(&b, "video_count: %d\n", u.VideoCount)
		}
		if u.VideoDuration > 0 {
			fmt.Fprintf(&b, "video_duration: %.1fs\n", u.VideoDuration)
		}
	}
	if g.LastProgress > 0 && g.LastProgress < 100 {
		fmt.Fprintf(&b, "last_progress: %d%%\n", g.LastProgress)
	}
	writeLine("error", g.Error)
	return b.String()
}

// FromJob seeds an info block from terminal job state.
func (g *GenerationInfo) FromJob(j *Job) *GenerationInfo {
	g.Provider = j.Provider
	g.TaskKind = j.Kind
	if j.Model != "" {
		g.Model = j.Model
	}
	g.JobID = j.ID
	g.SubmitTime = j.SubmitTime
	g.ScheduledTime = j.ScheduledTime
	g.EndTime = j.EndTime
	g.ResultURLs = j.ResultURLs
	g.Usage = j.Usage
	g.LastProgress = j.Progress
	if j.ActualPrompt != "" {
		g.ActualPrompt = j.ActualPrompt
	}
	if j.ErrorMessage != "" {
		g.Error = j.ErrorMessage
	}
	return g
}
