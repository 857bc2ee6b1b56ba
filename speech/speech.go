// Package speech implements the text-to-speech and speech-to-text
// operations. Providers follow the OpenAI-compatible audio surface:
// synthesis returns raw audio bytes, transcription takes a multipart
// WAV upload, and custom reference voices are registered with a
// base64 audio body.
package speech

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/codec"
	"github.com/BaSui01/mediaflow/transport"
	"github.com/BaSui01/mediaflow/types"
)

// Service issues speech calls over the shared transport client.
type Service struct {
	client *transport.Client
	logger *zap.Logger
}

// New builds a speech service.
func New(client *transport.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}
}

// TTSOptions tunes a synthesis call. Zero values mean provider
// defaults.
type TTSOptions struct {
	Model string

	// Voice is either a short builtin name, a fully qualified
	// "model:voice" id, or a custom voice URI from
	// UploadReferenceVoice. Short names are qualified with the model.
	Voice string

	SampleRate int
	Speed      float64
	Gain       float64
}

// voiceParam renders the wire value for the voice field.
func (o TTSOptions) voiceParam() string {
	v := o.Voice
	if v == "" || strings.HasPrefix(v, "speech:") || strings.Contains(v, ":") {
		return v
	}
	return o.Model + ":" + v
}

// Synthesize renders text to a waveform. The provider answers with raw
// WAV bytes, or with a JSON body carrying an audio URL which is then
// fetched. The URL, when present, is returned alongside the waveform.
func (s *Service) Synthesize(ctx context.Context, base string, strategy auth.Strategy,
	text string, opts TTSOptions) (*codec.Waveform, string, error) {

	if text == "" {
		return nil, "", types.NewError(types.ErrBadInput, "empty text for synthesis")
	}
	body := `{"response_format":"wav"}`
	body, _ = sjson.Set(body, "model", opts.Model)
	body, _ = sjson.Set(body, "input", text)
	if v := opts.voiceParam(); v != "" {
		body, _ = sjson.Set(body, "voice", v)
	}
	if opts.SampleRate > 0 {
		body, _ = sjson.Set(body, "sample_rate", opts.SampleRate)
	}
	if opts.Speed > 0 {
		body, _ = sjson.Set(body, "speed", opts.Speed)
	}
	if opts.Gain != 0 {
		body, _ = sjson.Set(body, "gain", opts.Gain)
	}

	resp, err := s.call(ctx, http.MethodPost, base+"/audio/speech", []byte(body), "application/json", strategy)
	if err != nil {
		return nil, "", err
	}

	audio := resp.Body
	audioURL := ""
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		doc := gjson.ParseBytes(resp.Body)
		// Providers disagree on where the link lives; DashScope nests
		// it under output.audio.
		for _, path := range []string{"url", "audio_url", "output.audio.url"} {
			if audioURL = doc.Get(path).String(); audioURL != "" {
				break
			}
		}
		if audioURL == "" {
			return nil, "", types.NewError(types.ErrProviderRejected,
				"synthesis response carried neither audio bytes nor a url")
		}
		urlResp, err := s.call(ctx, http.MethodGet, audioURL, nil, "", nil)
		if err != nil {
			return nil, audioURL, err
		}
		audio = urlResp.Body
	}

	wave, err := codec.AudioBytesToWaveform(audio, opts.SampleRate)
	if err != nil {
		return nil, audioURL, err
	}
	return wave, audioURL, nil
}

// Transcribe sends a waveform as a multipart WAV upload and returns
// the recognized text.
func (s *Service) Transcribe(ctx context.Context, base string, strategy auth.Strategy,
	wave *codec.Waveform, model string) (string, error) {

	if wave == nil || wave.Frames() == 0 {
		return "", types.NewError(types.ErrBadInput, "empty waveform for transcription")
	}
	body, contentType, err := transport.EncodeMultipart(
		map[string]string{"model": model},
		[]transport.FilePart{{Field: "file", Filename: "speech.wav", ContentType: "audio/wav", Data: codec.EncodeWAV(wave)}},
	)
	if err != nil {
		return "", err
	}
	resp, err := s.call(ctx, http.MethodPost, base+"/audio/transcriptions", body, contentType, strategy)
	if err != nil {
		return "", err
	}
	text := gjson.GetBytes(resp.Body, "text").String()
	if text == "" {
		return "", types.NewError(types.ErrProviderRejected, "transcription response carried no text")
	}
	return text, nil
}

// UploadReferenceVoice registers a custom voice from a waveform and a
// transcript, returning the voice URI usable in TTSOptions.Voice.
func (s *Service) UploadReferenceVoice(ctx context.Context, base string, strategy auth.Strategy,
	wave *codec.Waveform, model, customName, transcript string) (string, error) {

	if wave == nil || wave.Frames() == 0 {
		return "", types.NewError(types.ErrBadInput, "empty waveform for voice upload")
	}
	if customName == "" {
		return "", types.NewError(types.ErrBadInput, "voice upload needs a custom name")
	}
	body := "{}"
	body, _ = sjson.Set(body, "model", model)
	body, _ = sjson.Set(body, "customName", customName)
	body, _ = sjson.Set(body, "text", transcript)
	body, _ = sjson.Set(body, "audio", codec.DataURL(codec.EncodeWAV(wave), "audio/wav"))

	resp, err := s.call(ctx, http.MethodPost, base+"/uploads/audio/voice", []byte(body), "application/json", strategy)
	if err != nil {
		return "", err
	}
	uri := gjson.GetBytes(resp.Body, "uri").String()
	if uri == "" {
		return "", types.NewError(types.ErrProviderRejected, "voice upload response carried no uri")
	}
	s.logger.Info("reference voice uploaded", zap.String("custom_name", customName), zap.String("uri", uri))
	return uri, nil
}

// Voice describes one entry from the provider's voice list.
type Voice struct {
	Model string `json:"model"`
	Name  string `json:"customName"`
	Text  string `json:"text"`
	URI   string `json:"uri"`
}

// ListVoices fetches the registered custom voices.
func (s *Service) ListVoices(ctx context.Context, base string, strategy auth.Strategy) ([]Voice, error) {
	resp, err := s.call(ctx, http.MethodGet, base+"/audio/voice/list", nil, "", strategy)
	if err != nil {
		return nil, err
	}
	items := gjson.GetBytes(resp.Body, "result")
	if !items.Exists() {
		items = gjson.GetBytes(resp.Body, "results")
	}
	var voices []Voice
	for _, item := range items.Array() {
		voices = append(voices, Voice{
			Model: item.Get("model").String(),
			Name:  item.Get("customName").String(),
			Text:  item.Get("text").String(),
			URI:   item.Get("uri").String(),
		})
	}
	return voices, nil
}

func (s *Service) call(ctx context.Context, method, url string, body []byte,
	contentType string, strategy auth.Strategy) (*transport.Response, error) {

	resp, err := s.client.Do(ctx, &transport.Request{
		Method:      method,
		URL:         url,
		Body:        body,
		ContentType: contentType,
		Auth:        strategy,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(resp.Body, "message").String()
		if msg == "" {
			msg = gjson.GetBytes(resp.Body, "error.message").String()
		}
		if msg == "" {
			msg = fmt.Sprintf("speech call returned HTTP %d", resp.StatusCode)
		}
		return nil, types.NewError(types.ErrProviderRejected, msg).WithHTTPStatus(resp.StatusCode)
	}
	return resp, nil
}
