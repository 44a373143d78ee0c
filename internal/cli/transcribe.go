package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncecere/groq_whisper/internal/adapters/groq"
	"github.com/ncecere/groq_whisper/internal/keys"
	"github.com/ncecere/groq_whisper/internal/models"
)

type transcribeFlags struct {
	key            string
	model          string
	responseFormat string
	language       string
	temperature    float64
	prompt         string
	translate      bool
}

func (f *transcribeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.key, "key", "", "Groq API key to use, or the name of a stored key")
	fs.StringVar(&f.model, "model", "", "Whisper model to use: "+joinModels()+" (default from config, whisper-large-v3-turbo)")
	fs.StringVar(&f.responseFormat, "response-format", "", "Response format: json, verbose_json or text (default from config, text)")
	fs.StringVar(&f.language, "language", "", "Language code (e.g., 'en' for English). Only for whisper-large-v3-turbo and whisper-large-v3")
	fs.Float64Var(&f.temperature, "temperature", 0, "Temperature between 0 and 1")
	fs.StringVar(&f.prompt, "prompt", "", "Optional context or spelling guidance (max 224 tokens)")
	fs.BoolVar(&f.translate, "translate", false, "Use translation endpoint instead of transcription")
}

func (a *app) transcribe(cmd *cobra.Command, source string, f *transcribeFlags) error {
	opts, err := a.buildOptions(cmd, f)
	if err != nil {
		return err
	}

	payload, err := readAudio(cmd.InOrStdin(), source)
	if err != nil {
		return err
	}
	a.logger.DebugContext(cmd.Context(), "audio loaded",
		slog.String("source", source),
		slog.Int("bytes", len(payload)),
		slog.String("task", string(opts.Task())),
	)

	apiKey, err := a.resolveKey(f.key)
	if err != nil {
		return err
	}

	processor, err := groq.New(groq.Options{
		BaseURL:    a.cfg.API.BaseURL,
		HTTPClient: a.httpClient(),
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	result, err := processor.Process(cmd.Context(), payload, apiKey, opts)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), result)
}

func (a *app) buildOptions(cmd *cobra.Command, f *transcribeFlags) (models.TranscriptionOptions, error) {
	model := strings.TrimSpace(f.model)
	if model == "" {
		model = a.cfg.Defaults.Model
	}
	if !models.AudioModel(model).Valid() {
		return models.TranscriptionOptions{}, fmt.Errorf("invalid value for --model: %q is not one of %s", model, joinModels())
	}

	format := strings.TrimSpace(f.responseFormat)
	if format == "" {
		format = a.cfg.Defaults.ResponseFormat
	}
	if !models.ResponseFormat(format).Valid() {
		return models.TranscriptionOptions{}, fmt.Errorf("invalid value for --response-format: %q is not one of json, verbose_json, text", format)
	}

	opts := models.TranscriptionOptions{
		Model:          models.AudioModel(model),
		ResponseFormat: models.ResponseFormat(format),
		Language:       strings.TrimSpace(f.language),
		Prompt:         f.prompt,
		Translate:      f.translate,
	}
	if cmd.Flags().Changed("temperature") {
		t := f.temperature
		opts.Temperature = &t
	}
	return opts, nil
}

func (a *app) resolveKey(explicit string) (string, error) {
	store, err := keys.Open(a.cfg.Keys.Path)
	if err != nil {
		return "", err
	}
	var envValue string
	if a.cfg.API.KeyEnv != "" {
		envValue = os.Getenv(a.cfg.API.KeyEnv)
	}
	key, ok := keys.Resolve(store, explicit, a.cfg.Keys.Provider, envValue)
	if !ok {
		return "", &groq.ConfigurationError{Err: groq.ErrMissingAPIKey}
	}
	return key, nil
}

func (a *app) httpClient() *http.Client {
	if a.cfg.API.Timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: a.cfg.API.Timeout}
}

// readAudio loads the whole payload; "-" reads stdin. The file is closed
// before the request is made.
func readAudio(stdin io.Reader, source string) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read audio from stdin: %w", err)
		}
		return data, nil
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	return data, nil
}

func render(w io.Writer, result models.Result) error {
	switch r := result.(type) {
	case models.TextResult:
		_, err := fmt.Fprintln(w, string(r))
		return err
	case models.JSONResult:
		out, err := indentJSON(r)
		if err != nil {
			return fmt.Errorf("render json: %w", err)
		}
		_, err = fmt.Fprintln(w, out)
		return err
	default:
		return fmt.Errorf("unsupported result type %T", result)
	}
}

func indentJSON(r models.JSONResult) (string, error) {
	if len(r.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, bytes.TrimSpace(r.Raw), "", "  "); err == nil {
			return buf.String(), nil
		}
	}
	out, err := json.MarshalIndent(r.Fields, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func joinModels() string {
	names := make([]string, len(models.AudioModels))
	for i, m := range models.AudioModels {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
