package codec

import (
	"fmt"
	"image"

	"github.com/BaSui01/mediaflow/types"
)

// Tensor is an image batch in channel-last RGB layout: [N,H,W,3],
// float32 values in [0,1]. Data is row-major.
type Tensor struct {
	Data    []float32
	N, H, W int
}

const channels = 3

// NewTensor wraps raw float data with a declared shape. Accepted shapes
// are rank 3 ([H,W,3] or [3,H,W]) and rank 4 ([N,H,W,3] or [N,3,H,W]);
// channel-first layouts are converted to channel-last. Anything else is
// a BadInput error.
func NewTensor(data []float32, shape []int) (*Tensor, error) {
	var n, h, w int
	var channelFirst bool
	switch len(shape) {
	case 3:
		n = 1
		switch {
		case shape[2] == channels:
			h, w = shape[0], shape[1]
		case shape[0] == channels:
			h, w = shape[1], shape[2]
			channelFirst = true
		default:
			return nil, types.NewError(types.ErrBadInput, fmt.Sprintf("image must have 3 channels, shape %v", shape))
		}
	case 4:
		n = shape[0]
		switch {
		case shape[3] == channels:
			h, w = shape[1], shape[2]
		case shape[1] == channels:
			h, w = shape[2], shape[3]
			channelFirst = true
		default:
			return nil, types.NewError(types.ErrBadInput, fmt.Sprintf("image must have 3 channels, shape %v", shape))
		}
	default:
		return nil, types.NewError(types.ErrBadInput, fmt.Sprintf("image rank must be 3 or 4, shape %v", shape))
	}
	if n <= 0 || h <= 0 || w <= 0 {
		return nil, types.NewError(types.ErrBadInput, fmt.Sprintf("image dimensions must be positive, shape %v", shape))
	}
	if len(data) != n*h*w*channels {
		return nil, types.NewError(types.ErrBadInput,
			fmt.Sprintf("data length %d does not match shape %v", len(data), shape))
	}

	if !channelFirst {
		return &Tensor{Data: data, N: n, H: h, W: w}, nil
	}
	// [N,3,H,W] → [N,H,W,3]
	out := make([]float32, len(data))
	plane := h * w
	for i := 0; i < n; i++ {
		base := i * channels * plane
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for c := 0; c < channels; c++ {
					out[((i*h+y)*w+x)*channels+c] = data[base+c*plane+y*w+x]
				}
			}
		}
	}
	return &Tensor{Data: out, N: n, H: h, W: w}, nil
}

// Shape returns [N,H,W,3].
func (t *Tensor) Shape() []int {
	return []int{t.N, t.H, t.W, channels}
}

// At returns the value at (n, y, x, c).
func (t *Tensor) At(n, y, x, c int) float32 {
	return t.Data[((n*t.H+y)*t.W+x)*channels+c]
}

// Frame extracts one batch entry as an image.RGBA. Values are clamped
// to [0,1] and rounded to uint8.
func (t *Tensor) Frame(n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.W, t.H))
	for y := 0; y < t.H; y++ {
		for x := 0; x < t.W; x++ {
			off := img.PixOffset(x, y)
			img.Pix[off+0] = toByte(t.At(n, y, x, 0))
			img.Pix[off+1] = toByte(t.At(n, y, x, 1))
			img.Pix[off+2] = toByte(t.At(n, y, x, 2))
			img.Pix[off+3] = 0xff
		}
	}
	return img
}

// FromImage builds a single-frame tensor from any decoded image.
func FromImage(src image.Image) *Tensor {
	bounds := src.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	t := &Tensor{Data: make([]float32, h*w*channels), N: 1, H: h, W: w}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			t.Data[i+0] = float32(r>>8) / 255.0
			t.Data[i+1] = float32(g>>8) / 255.0
			t.Data[i+2] = float32(b>>8) / 255.0
			i += channels
		}
	}
	return t
}

// Concat stacks tensors along the batch dimension. All inputs must
// share H and W; harmonize sizes before concatenating.
func Concat(tensors []*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, types.NewError(types.ErrBadInput, "no tensors to concat")
	}
	h, w := tensors[0].H, tensors[0].W
	total := 0
	for _, t := range tensors {
		if t.H != h || t.W != w {
			return nil, types.NewError(types.ErrBadInput,
				fmt.Sprintf("size mismatch: %dx%d vs %dx%d", t.W, t.H, w, h))
		}
		total += t.N
	}
	out := &Tensor{Data: make([]float32, 0, total*h*w*channels), N: total, H: h, W: w}
	for _, t := range tensors {
		out.Data = append(out.Data, t.Data...)
	}
	return out, nil
}

// Blank returns an all-zero placeholder tensor of the given size.
func Blank(width, height int) *Tensor {
	return &Tensor{Data: make([]float32, height*width*channels), N: 1, H: height, W: width}
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
