package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/types"
)

func sineWave(rate, frames int, freq float64) *Waveform {
	w := &Waveform{Data: make([]float32, frames), Channels: 1, SampleRate: rate}
	for i := 0; i < frames; i++ {
		w.Data[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return w
}

func TestWAVRoundTrip(t *testing.T) {
	src := sineWave(16000, 1600, 440)
	encoded := EncodeWAV(src)

	decoded, err := DecodeWAV(encoded)
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.Channels)
	assert.Equal(t, 16000, decoded.SampleRate)
	require.Equal(t, src.Frames(), decoded.Frames())
	for i := range src.Data {
		assert.InDelta(t, src.Data[i], decoded.Data[i], 1.0/32767, "sample %d", i)
	}
}

func TestDecodeWAVStereoPlanar(t *testing.T) {
	// Two channels with distinct constant levels; planar layout must
	// keep them separated.
	src := &Waveform{Data: make([]float32, 200), Channels: 2, SampleRate: 8000}
	for i := 0; i < 100; i++ {
		src.Data[i] = 0.25     // channel 0
		src.Data[100+i] = -0.5 // channel 1
	}
	decoded, err := DecodeWAV(EncodeWAV(src))
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Channels)
	assert.InDelta(t, 0.25, decoded.Sample(0, 50), 1e-3)
	assert.InDelta(t, -0.5, decoded.Sample(1, 50), 1e-3)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, err := DecodeWAV([]byte("not audio"))
	require.Error(t, err)
	assert.Equal(t, types.ErrBadInput, types.KindOf(err))
}

func TestResampleWaveform(t *testing.T) {
	src := sineWave(48000, 4800, 440)
	out := src.Resample(16000)
	assert.Equal(t, 16000, out.SampleRate)
	assert.InDelta(t, 1600, out.Frames(), 1)

	// Same-rate resample is a no-op.
	assert.Same(t, src, src.Resample(48000))
}

func TestPeakNormalize(t *testing.T) {
	w := &Waveform{Data: []float32{2, -4, 1}, Channels: 1, SampleRate: 8000}
	w.PeakNormalize()
	assert.InDelta(t, 0.5, w.Data[0], 1e-6)
	assert.InDelta(t, -1.0, w.Data[1], 1e-6)

	// In-range audio is untouched.
	v := &Waveform{Data: []float32{0.5, -0.25}, Channels: 1, SampleRate: 8000}
	v.PeakNormalize()
	assert.Equal(t, float32(0.5), v.Data[0])
}

func TestAudioBytesToWaveform(t *testing.T) {
	encoded := EncodeWAV(sineWave(48000, 4800, 440))
	w, err := AudioBytesToWaveform(encoded, 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, w.SampleRate)
	assert.Equal(t, 1, w.Channels)
}
