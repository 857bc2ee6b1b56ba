package engine

import (
	"fmt"

	"github.com/BaSui01/mediaflow/codec"
	"github.com/BaSui01/mediaflow/types"
)

// JobRequest is the normalized caller input for a generation job.
type JobRequest struct {
	Prompt         string
	NegativePrompt string
	Model          string

	// AspectRatio and Resolution select a concrete size from the
	// record's catalog, e.g. "16:9" at "720P".
	AspectRatio string
	Resolution  string

	// Duration in seconds, for video jobs. Zero means provider default.
	Duration int

	// Seed below zero means random.
	Seed int64

	Watermark bool

	// Count of outputs; zero means provider default.
	Count int

	// Function selects a provider-specific operation, e.g. an image
	// edit mode.
	Function string

	// ReferenceImages are uploaded (or inlined as data URLs) in order.
	ReferenceImages []*codec.Tensor
}

// Validate checks the parts every provider needs.
func (r *JobRequest) Validate() error {
	if r == nil {
		return types.NewError(types.ErrBadInput, "nil job request")
	}
	if r.Prompt == "" && len(r.ReferenceImages) == 0 {
		return types.NewError(types.ErrBadInput, "job request needs a prompt or reference images")
	}
	for i, img := range r.ReferenceImages {
		if img == nil {
			return types.NewError(types.ErrBadInput, fmt.Sprintf("reference image %d is nil", i))
		}
	}
	return nil
}
