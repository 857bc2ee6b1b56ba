package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/BaSui01/mediaflow/registry"
	"github.com/BaSui01/mediaflow/types"
)

// buildPayload fills the record's submit template from the request.
// Slots whose value is absent are left out of the payload entirely.
func buildPayload(rec *registry.Record, req *JobRequest, assets []types.UploadedAsset,
	size *registry.Size) ([]byte, error) {

	doc := rec.Submit.Template
	if doc == "" {
		doc = "{}"
	}

	set := func(slot registry.Slot, value any) error {
		path, declared := rec.Submit.Slots[slot]
		if !declared {
			return nil
		}
		next, err := sjson.Set(doc, path, value)
		if err != nil {
			return types.NewError(types.ErrInternal, "fill submit slot "+string(slot)).WithCause(err)
		}
		doc = next
		return nil
	}

	if req.Prompt != "" {
		if err := set(registry.SlotPrompt, req.Prompt); err != nil {
			return nil, err
		}
	}
	if req.NegativePrompt != "" {
		if err := set(registry.SlotNegativePrompt, req.NegativePrompt); err != nil {
			return nil, err
		}
	}
	if req.Model != "" {
		if err := set(registry.SlotModel, req.Model); err != nil {
			return nil, err
		}
	}
	if size != nil {
		if err := set(registry.SlotSize, rec.Submit.FormatSize(*size)); err != nil {
			return nil, err
		}
	}
	if req.AspectRatio != "" {
		if err := set(registry.SlotRatio, req.AspectRatio); err != nil {
			return nil, err
		}
	}
	if req.Resolution != "" {
		if err := set(registry.SlotResolution, req.Resolution); err != nil {
			return nil, err
		}
	}
	if req.Seed >= 0 {
		if err := set(registry.SlotSeed, req.Seed); err != nil {
			return nil, err
		}
	}
	if req.Duration > 0 {
		if err := set(registry.SlotDuration, req.Duration); err != nil {
			return nil, err
		}
	}
	if req.Count > 0 {
		if err := set(registry.SlotCount, req.Count); err != nil {
			return nil, err
		}
	}
	if req.Function != "" {
		if err := set(registry.SlotFunction, req.Function); err != nil {
			return nil, err
		}
	}
	if err := set(registry.SlotWatermark, req.Watermark); err != nil {
		return nil, err
	}

	if len(assets) > 0 {
		urls := make([]string, len(assets))
		ids := make([]string, len(assets))
		for i, a := range assets {
			urls[i] = a.URL
			ids[i] = a.ID
		}
		if err := set(registry.SlotRefImage, urls[0]); err != nil {
			return nil, err
		}
		if err := set(registry.SlotRefImages, urls); err != nil {
			return nil, err
		}
		if err := set(registry.SlotRefAssetID, ids[0]); err != nil {
			return nil, err
		}
		if err := set(registry.SlotRefAssetIDs, ids); err != nil {
			return nil, err
		}
		if assets[0].Width > 0 && assets[0].Height > 0 {
			if err := set(registry.SlotCropArea, cropArea(assets[0].Width, assets[0].Height, req.AspectRatio)); err != nil {
				return nil, err
			}
		}
		if err := set(registry.SlotFirstFrame, urls[0]); err != nil {
			return nil, err
		}
		if len(urls) > 1 {
			if err := set(registry.SlotLastFrame, urls[1]); err != nil {
				return nil, err
			}
		}
	}

	return []byte(doc), nil
}

// cropArea computes the largest origin-anchored region of a w×h asset
// matching the requested ratio. Width-first: the height is derived from
// the full width, and only when that overflows is the width derived
// from the full height instead.
func cropArea(w, h int, ratio string) map[string]int {
	a, b := parseRatio(ratio)
	targetW := w
	targetH := int(math.Round(float64(w) * float64(b) / float64(a)))
	if targetH > h {
		targetH = h
		targetW = int(math.Round(float64(h) * float64(a) / float64(b)))
	}
	return map[string]int{"x": 0, "y": 0, "width": targetW, "height": targetH}
}

// parseRatio reads "a:b", defaulting to 16:9.
func parseRatio(ratio string) (int, int) {
	parts := strings.SplitN(ratio, ":", 2)
	if len(parts) != 2 {
		return 16, 9
	}
	a, err1 := strconv.Atoi(parts[0])
	b, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || a <= 0 || b <= 0 {
		return 16, 9
	}
	return a, b
}
