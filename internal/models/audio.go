package models

import (
	"bytes"
	"io"
)

// AudioModel identifies a hosted Whisper variant.
type AudioModel string

const (
	AudioModelWhisperLargeV3Turbo AudioModel = "whisper-large-v3-turbo"
	AudioModelDistilWhisperEN     AudioModel = "distil-whisper-large-v3-en"
	AudioModelWhisperLargeV3      AudioModel = "whisper-large-v3"
)

// AudioModels lists the supported models in help-text order.
var AudioModels = []AudioModel{
	AudioModelWhisperLargeV3Turbo,
	AudioModelDistilWhisperEN,
	AudioModelWhisperLargeV3,
}

// Valid reports whether m is one of the supported models.
func (m AudioModel) Valid() bool {
	for _, known := range AudioModels {
		if m == known {
			return true
		}
	}
	return false
}

// SupportsLanguage reports whether the model accepts a language hint.
// The distilled model is English-only.
func (m AudioModel) SupportsLanguage() bool {
	return m == AudioModelWhisperLargeV3Turbo || m == AudioModelWhisperLargeV3
}

type ResponseFormat string

const (
	ResponseFormatJSON        ResponseFormat = "json"
	ResponseFormatVerboseJSON ResponseFormat = "verbose_json"
	ResponseFormatText        ResponseFormat = "text"
)

var ResponseFormats = []ResponseFormat{
	ResponseFormatJSON,
	ResponseFormatVerboseJSON,
	ResponseFormatText,
}

func (f ResponseFormat) Valid() bool {
	for _, known := range ResponseFormats {
		if f == known {
			return true
		}
	}
	return false
}

// Structured reports whether the format returns a JSON document.
func (f ResponseFormat) Structured() bool {
	return f == ResponseFormatJSON || f == ResponseFormatVerboseJSON
}

type AudioTranscriptionTask string

const (
	AudioTranscriptionTaskTranscribe AudioTranscriptionTask = "transcribe"
	AudioTranscriptionTaskTranslate  AudioTranscriptionTask = "translate"
)

// SyntheticFilename is the name every upload is labelled with. The remote
// API picks the decoder from the extension, not from the bytes.
const SyntheticFilename = "audio.mp3"

// AudioInput wraps the uploaded audio payload. The bytes are passed through
// untouched; only the part name and media type are synthetic.
type AudioInput struct {
	data []byte
}

func NewAudioInput(payload []byte) AudioInput {
	return AudioInput{data: payload}
}

func (a AudioInput) Reader() io.Reader { return bytes.NewReader(a.data) }

func (a AudioInput) Bytes() int64 { return int64(len(a.data)) }

func (a AudioInput) Filename() string { return SyntheticFilename }

func (a AudioInput) ContentType() string { return "audio/mpeg" }

// TranscriptionOptions captures transcription/translation parameters.
// Zero values of the optional fields mean "not provided".
type TranscriptionOptions struct {
	Model          AudioModel
	ResponseFormat ResponseFormat
	Language       string
	Temperature    *float64
	Prompt         string
	Translate      bool
}

// Task maps the translate flag onto the endpoint it selects.
func (o TranscriptionOptions) Task() AudioTranscriptionTask {
	if o.Translate {
		return AudioTranscriptionTaskTranslate
	}
	return AudioTranscriptionTaskTranscribe
}

// Result is either a TextResult or a JSONResult.
type Result interface {
	isResult()
}

// TextResult is returned for the text response format, whitespace trimmed.
type TextResult string

func (TextResult) isResult() {}

// JSONResult is returned for json and verbose_json. Fields is the decoded
// object as sent by the API; Raw keeps the original bytes so the document
// can be re-rendered with its key order intact.
type JSONResult struct {
	Fields map[string]any
	Raw    []byte
}

func (JSONResult) isResult() {}
