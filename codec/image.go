package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // consumer sites serve webp results
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mediaflow/types"
)

// Image formats accepted by ToBytes. PNG is preferred for reference
// inputs because it is lossless.
const (
	FormatPNG  = "PNG"
	FormatJPEG = "JPEG"
)

const jpegQuality = 95

// ToBytes encodes the first frame of the tensor as PNG or JPEG bytes.
func ToBytes(t *Tensor, format string) ([]byte, error) {
	if t == nil || t.N == 0 {
		return nil, types.NewError(types.ErrBadInput, "empty tensor")
	}
	frame := t.Frame(0)
	var buf bytes.Buffer
	switch strings.ToUpper(format) {
	case FormatPNG:
		if err := png.Encode(&buf, frame); err != nil {
			return nil, types.NewError(types.ErrInternal, "png encode").WithCause(err)
		}
	case FormatJPEG:
		if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, types.NewError(types.ErrInternal, "jpeg encode").WithCause(err)
		}
	default:
		return nil, types.NewError(types.ErrBadInput, fmt.Sprintf("unsupported image format %q", format))
	}
	return buf.Bytes(), nil
}

// DataURL renders bytes as a base64 data URL for inline payloads.
func DataURL(data []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeImage parses PNG/JPEG/WebP bytes into a single-frame tensor.
func DecodeImage(data []byte) (*Tensor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewError(types.ErrDownload, "decode image").WithCause(err)
	}
	return FromImage(img), nil
}

// DownloadImage fetches a URL and decodes it into a [1,H,W,3] tensor.
func DownloadImage(ctx context.Context, client *http.Client, url string, timeout time.Duration) (*Tensor, error) {
	data, err := fetch(ctx, client, url, timeout)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// DownloadImageBatch fetches every URL and concatenates the decoded
// frames along the batch dimension. When sizes differ, later frames are
// resampled to the first frame's size; the first URL wins ties.
func DownloadImageBatch(ctx context.Context, client *http.Client, urls []string, timeout time.Duration) (*Tensor, error) {
	if len(urls) == 0 {
		return nil, types.NewError(types.ErrBadInput, "no urls")
	}
	tensors := make([]*Tensor, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			t, err := DownloadImage(gctx, client, u, timeout)
			if err != nil {
				return err
			}
			tensors[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := 1; i < len(tensors); i++ {
		if tensors[i].H != tensors[0].H || tensors[i].W != tensors[0].W {
			tensors[i] = Resample(tensors[i], tensors[0].W, tensors[0].H)
		}
	}
	return Concat(tensors)
}

// Resample rescales every frame to width×height with Catmull-Rom
// interpolation.
func Resample(t *Tensor, width, height int) *Tensor {
	frames := make([]*Tensor, t.N)
	for n := 0; n < t.N; n++ {
		src := t.Frame(n)
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
		frames[n] = FromImage(dst)
	}
	out, _ := Concat(frames)
	return out
}

func fetch(ctx context.Context, client *http.Client, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.ErrDownload, "build request").WithCause(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrDownload, fmt.Sprintf("fetch %s", url)).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewError(types.ErrDownload,
			fmt.Sprintf("fetch %s: status=%d body=%s", url, resp.StatusCode, string(body))).
			WithHTTPStatus(resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
