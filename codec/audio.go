package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/BaSui01/mediaflow/types"
)

// Waveform is an audio clip in planar layout: Data holds Channels
// blocks of Frames samples each, float32 in [-1,1].
type Waveform struct {
	Data       []float32
	Channels   int
	SampleRate int
}

// Frames returns the per-channel sample count.
func (w *Waveform) Frames() int {
	if w.Channels == 0 {
		return 0
	}
	return len(w.Data) / w.Channels
}

// Sample returns the sample at (channel, frame).
func (w *Waveform) Sample(c, t int) float32 {
	return w.Data[c*w.Frames()+t]
}

// PeakNormalize scales the waveform so that max |x| = 1, applied only
// when samples exceed the valid range.
func (w *Waveform) PeakNormalize() {
	peak := float32(0)
	for _, v := range w.Data {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	if peak <= 1 || peak == 0 {
		return
	}
	inv := 1 / peak
	for i := range w.Data {
		w.Data[i] *= inv
	}
}

// Resample converts the waveform to the target sample rate with linear
// interpolation. Quality is sufficient for speech payloads; providers
// resample again internally.
func (w *Waveform) Resample(targetRate int) *Waveform {
	if targetRate <= 0 || targetRate == w.SampleRate || w.Frames() == 0 {
		return w
	}
	srcFrames := w.Frames()
	dstFrames := int(math.Round(float64(srcFrames) * float64(targetRate) / float64(w.SampleRate)))
	if dstFrames < 1 {
		dstFrames = 1
	}
	out := &Waveform{
		Data:       make([]float32, dstFrames*w.Channels),
		Channels:   w.Channels,
		SampleRate: targetRate,
	}
	step := float64(srcFrames-1) / float64(max(dstFrames-1, 1))
	for c := 0; c < w.Channels; c++ {
		for t := 0; t < dstFrames; t++ {
			pos := float64(t) * step
			i := int(pos)
			frac := float32(pos - float64(i))
			s := w.Sample(c, i)
			if i+1 < srcFrames {
				s = s*(1-frac) + w.Sample(c, i+1)*frac
			}
			out.Data[c*dstFrames+t] = s
		}
	}
	return out
}

// AudioBytesToWaveform decodes WAV bytes into a waveform, resampling to
// targetRate when necessary and peak-normalizing out-of-range samples.
func AudioBytesToWaveform(data []byte, targetRate int) (*Waveform, error) {
	w, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	w.PeakNormalize()
	if targetRate > 0 && targetRate != w.SampleRate {
		w = w.Resample(targetRate)
	}
	return w, nil
}

// WAV container handling. Only PCM (8/16-bit) and IEEE float32 are
// accepted, which covers every provider this module talks to.

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// DecodeWAV parses a RIFF/WAVE byte slice into a planar waveform.
func DecodeWAV(data []byte) (*Waveform, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, types.NewError(types.ErrBadInput, "not a RIFF/WAVE stream")
	}
	var (
		format, channels, bits int
		sampleRate             int
		pcm                    []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, types.NewError(types.ErrBadInput, "short fmt chunk")
			}
			format = int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	if channels == 0 || sampleRate == 0 || pcm == nil {
		return nil, types.NewError(types.ErrBadInput, "wav missing fmt or data chunk")
	}

	var samples []float32
	switch {
	case format == wavFormatPCM && bits == 16:
		n := len(pcm) / 2
		samples = make([]float32, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2]))
			samples[i] = float32(v) / 32768.0
		}
	case format == wavFormatPCM && bits == 8:
		samples = make([]float32, len(pcm))
		for i, b := range pcm {
			samples[i] = (float32(b) - 128.0) / 128.0
		}
	case format == wavFormatFloat && bits == 32:
		n := len(pcm) / 4
		samples = make([]float32, n)
		for i := 0; i < n; i++ {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pcm[4*i : 4*i+4]))
		}
	default:
		return nil, types.NewError(types.ErrBadInput,
			fmt.Sprintf("unsupported wav encoding: format=%d bits=%d", format, bits))
	}

	// Interleaved → planar.
	frames := len(samples) / channels
	planar := make([]float32, frames*channels)
	for t := 0; t < frames; t++ {
		for c := 0; c < channels; c++ {
			planar[c*frames+t] = samples[t*channels+c]
		}
	}
	return &Waveform{Data: planar, Channels: channels, SampleRate: sampleRate}, nil
}

// EncodeWAV renders the waveform as 16-bit PCM WAV bytes.
func EncodeWAV(w *Waveform) []byte {
	frames := w.Frames()
	dataSize := frames * w.Channels * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(w.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(w.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(w.SampleRate*w.Channels*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(w.Channels*2))              // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for t := 0; t < frames; t++ {
		for c := 0; c < w.Channels; c++ {
			v := w.Sample(c, t)
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.Write(buf, binary.LittleEndian, int16(v*32767))
		}
	}
	return buf.Bytes()
}
