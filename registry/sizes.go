package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/mediaflow/types"
)

// Size is a concrete pixel dimension pair.
type Size struct {
	W int
	H int
}

// Format renders the size with the given separator, e.g. "1280*720".
func (s Size) Format(sep string) string {
	return strconv.Itoa(s.W) + sep + strconv.Itoa(s.H)
}

// ModelSizeRule restricts the catalog for one model.
type ModelSizeRule struct {
	// AllowedTiers, when set, limits which resolution tiers the model
	// accepts.
	AllowedTiers []string
	// FixedSize, when set, overrides the catalog entirely: the model
	// always generates at this size regardless of ratio and tier.
	FixedSize *Size
}

// SizeCatalog maps (resolution tier, aspect ratio) to concrete pixel
// sizes, with optional per-model restrictions.
type SizeCatalog struct {
	Tiers  map[string]map[string]Size // tier -> ratio -> size
	Models map[string]ModelSizeRule
}

// Resolve picks the size for a model, ratio and tier. A missing entry
// or a tier the model does not allow yields ErrUnsupportedSize.
func (c *SizeCatalog) Resolve(model, ratio, tier string) (Size, error) {
	if rule, ok := c.Models[model]; ok {
		if rule.FixedSize != nil {
			return *rule.FixedSize, nil
		}
		if len(rule.AllowedTiers) > 0 && !contains(rule.AllowedTiers, tier) {
			return Size{}, types.NewError(types.ErrUnsupportedSize,
				fmt.Sprintf("model %s does not support tier %s", model, tier))
		}
	}
	ratios, ok := c.Tiers[tier]
	if !ok {
		return Size{}, types.NewError(types.ErrUnsupportedSize, "unknown resolution tier "+tier)
	}
	size, ok := ratios[ratio]
	if !ok {
		return Size{}, types.NewError(types.ErrUnsupportedSize,
			fmt.Sprintf("no size for ratio %s at tier %s", ratio, tier))
	}
	return size, nil
}

// Validate checks every catalog entry: dimensions positive and even,
// and matching the declared ratio within one pixel.
func (c *SizeCatalog) Validate() error {
	for tier, ratios := range c.Tiers {
		for ratio, size := range ratios {
			if size.W <= 0 || size.H <= 0 {
				return fmt.Errorf("size %s/%s is not positive", tier, ratio)
			}
			if size.W%2 != 0 || size.H%2 != 0 {
				return fmt.Errorf("size %s/%s has odd dimensions %dx%d", tier, ratio, size.W, size.H)
			}
			if !matchesRatio(size, ratio) {
				return fmt.Errorf("size %s/%s (%dx%d) is off its declared ratio", tier, ratio, size.W, size.H)
			}
		}
	}
	for model, rule := range c.Models {
		if rule.FixedSize != nil && (rule.FixedSize.W <= 0 || rule.FixedSize.H <= 0) {
			return fmt.Errorf("fixed size for model %s is not positive", model)
		}
	}
	return nil
}

// matchesRatio reports whether w:h is within one pixel of the declared
// "a:b" ratio.
func matchesRatio(size Size, ratio string) bool {
	a, b, ok := parseRatio(ratio)
	if !ok {
		return false
	}
	expectedH := float64(size.W) * float64(b) / float64(a)
	if abs(float64(size.H)-expectedH) <= 1 {
		return true
	}
	expectedW := float64(size.H) * float64(a) / float64(b)
	return abs(float64(size.W)-expectedW) <= 1
}

func parseRatio(ratio string) (int, int, bool) {
	a, b, found := strings.Cut(ratio, ":")
	if !found {
		return 0, 0, false
	}
	ai, err1 := strconv.Atoi(a)
	bi, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil || ai <= 0 || bi <= 0 {
		return 0, 0, false
	}
	return ai, bi, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
