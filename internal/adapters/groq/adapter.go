package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ncecere/groq_whisper/internal/models"
)

// DefaultBaseURL is Groq's OpenAI-compatible API root.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

const (
	transcriptionsPath = "audio/transcriptions"
	translationsPath   = "audio/translations"
)

// Options configure the Groq audio processor. Extra options are applied
// after the defaults, so they can add headers or middleware.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Extra      []option.RequestOption
}

// Processor sends one audio payload per call to the transcription or
// translation endpoint. It holds no credential and no per-call state.
type Processor struct {
	client *openai.Client
	logger *slog.Logger
}

// New creates a processor against opts.BaseURL, or DefaultBaseURL when empty.
// SDK retries are disabled and no request timeout is set.
func New(opts Options) (*Processor, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("groq: invalid base url %q", base)
	}

	requestOpts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(base, "/") + "/"),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	requestOpts = append(requestOpts, opts.Extra...)
	// the SDK fills these from OPENAI_ORG_ID and OPENAI_PROJECT_ID
	requestOpts = append(requestOpts,
		option.WithHeaderDel("OpenAI-Organization"),
		option.WithHeaderDel("OpenAI-Project"),
	)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := openai.NewClient(requestOpts...)
	return &Processor{client: &client, logger: logger}, nil
}

// Process validates opts, uploads payload and normalizes the response into
// a models.TextResult or models.JSONResult.
func (p *Processor) Process(ctx context.Context, payload []byte, apiKey string, opts models.TranscriptionOptions) (models.Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ConfigurationError{Err: ErrMissingAPIKey}
	}
	if err := Validate(opts); err != nil {
		return nil, err
	}

	input := models.NewAudioInput(payload)
	body, contentType, err := buildForm(input, opts)
	if err != nil {
		return nil, fmt.Errorf("groq: build form: %w", err)
	}

	path := endpointPath(opts.Task())
	p.logger.DebugContext(ctx, "groq audio request",
		slog.String("endpoint", path),
		slog.String("model", string(opts.Model)),
		slog.String("response_format", string(opts.ResponseFormat)),
		slog.Int64("bytes", input.Bytes()),
	)

	var (
		status int
		raw    []byte
	)
	err = p.client.Post(ctx, path, nil, &raw,
		option.WithAPIKey(apiKey),
		option.WithRequestBody(contentType, bytes.NewReader(body)),
		option.WithMiddleware(captureStatus(&status)),
	)
	if err != nil {
		return nil, transportError(err, status)
	}

	p.logger.DebugContext(ctx, "groq audio response",
		slog.Int("status", status),
		slog.Int("bytes", len(raw)),
	)
	return decodeResult(opts.ResponseFormat, raw)
}

// Validate applies the local option rules. It never touches the network.
func Validate(opts models.TranscriptionOptions) error {
	if !opts.Model.Valid() {
		return &ValidationError{Field: "model", Message: fmt.Sprintf("%q is not a supported model", opts.Model)}
	}
	if !opts.ResponseFormat.Valid() {
		return &ValidationError{Field: "response_format", Message: fmt.Sprintf("%q must be one of json, verbose_json, text", opts.ResponseFormat)}
	}
	if opts.Temperature != nil {
		t := *opts.Temperature
		if math.IsNaN(t) || t < 0 || t > 1 {
			return &ValidationError{Field: "temperature", Message: "must be between 0 and 1"}
		}
	}
	if opts.Language != "" && !opts.Model.SupportsLanguage() {
		return &ValidationError{
			Field:   "language",
			Message: fmt.Sprintf("only supported for %s and %s models", models.AudioModelWhisperLargeV3Turbo, models.AudioModelWhisperLargeV3),
		}
	}
	return nil
}

func endpointPath(task models.AudioTranscriptionTask) string {
	if task == models.AudioTranscriptionTaskTranslate {
		return translationsPath
	}
	return transcriptionsPath
}

// buildForm writes the file part plus model and response_format. Optional
// fields are written only when set.
func buildForm(input models.AudioInput, opts models.TranscriptionOptions) ([]byte, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, input.Filename()))
	h.Set("Content-Type", input.ContentType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, input.Reader()); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model", string(opts.Model)},
		{"response_format", string(opts.ResponseFormat)},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	if opts.Temperature != nil {
		fields = append(fields, [2]string{"temperature", strconv.FormatFloat(*opts.Temperature, 'f', -1, 64)})
	}
	if opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", opts.Prompt})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), w.FormDataContentType(), nil
}

func captureStatus(status *int) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		resp, err := next(req)
		if resp != nil {
			*status = resp.StatusCode
		}
		return resp, err
	}
}

func transportError(err error, status int) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = err.Error()
		}
		return &TransportError{StatusCode: apiErr.StatusCode, Message: msg, Cause: err}
	}
	te := &TransportError{Message: err.Error(), Cause: err}
	if status != 0 && (status < 200 || status > 299) {
		te.StatusCode = status
	}
	return te
}

func decodeResult(format models.ResponseFormat, raw []byte) (models.Result, error) {
	if !format.Structured() {
		return models.TextResult(strings.TrimSpace(string(raw))), nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &TransportError{Message: "decode response: " + err.Error(), Cause: err}
	}
	if fields == nil {
		return nil, &TransportError{Message: "decode response: expected a JSON object"}
	}
	return models.JSONResult{Fields: fields, Raw: raw}, nil
}
