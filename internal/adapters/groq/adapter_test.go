package groq

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/groq_whisper/internal/models"
)

type capturedRequest struct {
	Method   string
	Path     string
	Auth     string
	Header   http.Header
	Fields   map[string][]string
	Filename string
	Payload  []byte
}

func newFakeGroq(t *testing.T, status int, contentType, body string) (*httptest.Server, *capturedRequest, *int32) {
	t.Helper()
	captured := &capturedRequest{}
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Auth = r.Header.Get("Authorization")
		captured.Header = r.Header.Clone()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		captured.Fields = r.MultipartForm.Value
		if files := r.MultipartForm.File["file"]; len(files) > 0 {
			captured.Filename = files[0].Filename
			f, err := files[0].Open()
			if err == nil {
				captured.Payload, _ = io.ReadAll(f)
				f.Close()
			}
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured, &hits
}

func newTestProcessor(t *testing.T, baseURL string) *Processor {
	t.Helper()
	p, err := New(Options{BaseURL: baseURL + "/openai/v1"})
	require.NoError(t, err)
	return p
}

func floatPtr(v float64) *float64 { return &v }

func TestProcessTextTrimsWhitespace(t *testing.T) {
	srv, captured, _ := newFakeGroq(t, http.StatusOK, "text/plain; charset=utf-8", "  hello world  \n")
	p := newTestProcessor(t, srv.URL)

	res, err := p.Process(context.Background(), []byte("RIFFfake"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
	})
	require.NoError(t, err)
	require.Equal(t, models.TextResult("hello world"), res)

	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, "/openai/v1/audio/transcriptions", captured.Path)
	require.Equal(t, "Bearer gsk_test", captured.Auth)
	require.Equal(t, "audio.mp3", captured.Filename)
	require.Equal(t, []byte("RIFFfake"), captured.Payload)
	require.Equal(t, []string{"whisper-large-v3-turbo"}, captured.Fields["model"])
	require.Equal(t, []string{"text"}, captured.Fields["response_format"])
}

func TestProcessJSONPassthrough(t *testing.T) {
	srv, _, _ := newFakeGroq(t, http.StatusOK, "application/json", `{"text": "hi"}`)
	p := newTestProcessor(t, srv.URL)

	res, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3,
		ResponseFormat: models.ResponseFormatJSON,
	})
	require.NoError(t, err)
	jr, ok := res.(models.JSONResult)
	require.True(t, ok, "expected JSONResult, got %T", res)
	require.Equal(t, map[string]any{"text": "hi"}, jr.Fields)
	require.JSONEq(t, `{"text": "hi"}`, string(jr.Raw))
}

func TestProcessVerboseJSONKeepsSegments(t *testing.T) {
	body := `{"task":"transcribe","language":"english","duration":1.5,"text":"hi","segments":[{"id":0,"start":0,"end":1.5,"text":"hi"}],"x_groq":{"id":"req_1"}}`
	srv, _, _ := newFakeGroq(t, http.StatusOK, "application/json", body)
	p := newTestProcessor(t, srv.URL)

	res, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatVerboseJSON,
	})
	require.NoError(t, err)
	jr := res.(models.JSONResult)
	segments, ok := jr.Fields["segments"].([]any)
	require.True(t, ok)
	require.Len(t, segments, 1)
	require.Equal(t, "hi", segments[0].(map[string]any)["text"])
	require.Equal(t, map[string]any{"id": "req_1"}, jr.Fields["x_groq"])
}

func TestProcessEndpointSelection(t *testing.T) {
	cases := []struct {
		name      string
		translate bool
		path      string
	}{
		{name: "transcribe", translate: false, path: "/openai/v1/audio/transcriptions"},
		{name: "translate", translate: true, path: "/openai/v1/audio/translations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, captured, _ := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
			p := newTestProcessor(t, srv.URL)
			_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
				Model:          models.AudioModelWhisperLargeV3,
				ResponseFormat: models.ResponseFormatText,
				Translate:      tc.translate,
			})
			require.NoError(t, err)
			require.Equal(t, tc.path, captured.Path)
		})
	}
}

func TestProcessOmitsUnsetOptionalFields(t *testing.T) {
	srv, captured, _ := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p := newTestProcessor(t, srv.URL)

	_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelDistilWhisperEN,
		ResponseFormat: models.ResponseFormatText,
	})
	require.NoError(t, err)
	require.Len(t, captured.Fields, 2)
	require.NotContains(t, captured.Fields, "language")
	require.NotContains(t, captured.Fields, "temperature")
	require.NotContains(t, captured.Fields, "prompt")
}

func TestProcessSendsOptionalFields(t *testing.T) {
	srv, captured, _ := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p := newTestProcessor(t, srv.URL)

	_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
		Language:       "fr",
		Temperature:    floatPtr(0.5),
		Prompt:         "Kubernetes, etcd",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"fr"}, captured.Fields["language"])
	require.Equal(t, []string{"0.5"}, captured.Fields["temperature"])
	require.Equal(t, []string{"Kubernetes, etcd"}, captured.Fields["prompt"])
}

func TestProcessZeroTemperatureIsSent(t *testing.T) {
	srv, captured, _ := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p := newTestProcessor(t, srv.URL)

	_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
		Temperature:    floatPtr(0),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"0"}, captured.Fields["temperature"])
}

func TestProcessRejectsTemperatureOutOfRange(t *testing.T) {
	srv, _, hits := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p := newTestProcessor(t, srv.URL)

	for _, temp := range []float64{-0.01, 1.01, 2, -1, math.NaN(), math.Inf(1)} {
		_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
			Model:          models.AudioModelWhisperLargeV3Turbo,
			ResponseFormat: models.ResponseFormatText,
			Temperature:    floatPtr(temp),
		})
		require.Error(t, err)
		require.True(t, IsValidation(err), "temperature %v: %v", temp, err)
		require.Contains(t, err.Error(), "temperature")
	}
	require.Zero(t, atomic.LoadInt32(hits))
}

func TestProcessRejectsLanguageForDistilModel(t *testing.T) {
	srv, _, hits := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p := newTestProcessor(t, srv.URL)

	_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelDistilWhisperEN,
		ResponseFormat: models.ResponseFormatText,
		Language:       "en",
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "language", verr.Field)
	require.Zero(t, atomic.LoadInt32(hits))
}

func TestProcessRequiresAPIKey(t *testing.T) {
	srv, _, hits := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p := newTestProcessor(t, srv.URL)

	_, err := p.Process(context.Background(), []byte("audio"), "  ", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
	})
	require.True(t, IsConfiguration(err))
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.Zero(t, atomic.LoadInt32(hits))
}

func TestProcessNon2xxIsTransportError(t *testing.T) {
	body := `{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`
	srv, _, hits := newFakeGroq(t, http.StatusUnauthorized, "application/json", body)
	p := newTestProcessor(t, srv.URL)

	res, err := p.Process(context.Background(), []byte("audio"), "gsk_bad", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatJSON,
	})
	require.Nil(t, res)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusUnauthorized, terr.StatusCode)
	require.Contains(t, err.Error(), "401")
	require.Contains(t, err.Error(), "Invalid API Key")
	require.Equal(t, int32(1), atomic.LoadInt32(hits), "no retries expected")
}

func TestProcessServerErrorIsNotRetried(t *testing.T) {
	srv, _, hits := newFakeGroq(t, http.StatusInternalServerError, "application/json", `{"error":{"message":"boom"}}`)
	p := newTestProcessor(t, srv.URL)

	_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
	})
	require.True(t, IsTransport(err))
	require.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestProcessMalformedJSON(t *testing.T) {
	srv, _, _ := newFakeGroq(t, http.StatusOK, "application/json", `{"text": `)
	p := newTestProcessor(t, srv.URL)

	res, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatJSON,
	})
	require.Nil(t, res)
	require.True(t, IsTransport(err), "unexpected error: %v", err)
}

func TestProcessNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	p := newTestProcessor(t, base)
	_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
	})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Zero(t, terr.StatusCode)
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	err := Validate(models.TranscriptionOptions{Model: "whisper-1", ResponseFormat: models.ResponseFormatText})
	require.True(t, IsValidation(err))

	err = Validate(models.TranscriptionOptions{Model: models.AudioModelWhisperLargeV3, ResponseFormat: "srt"})
	require.True(t, IsValidation(err))

	err = Validate(models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3,
		ResponseFormat: models.ResponseFormatVerboseJSON,
		Language:       "de",
		Temperature:    floatPtr(1),
	})
	require.NoError(t, err)
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	require.Error(t, err)

	p, err := New(Options{})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestProcessDropsOpenAIAccountHeaders(t *testing.T) {
	t.Setenv("OPENAI_ORG_ID", "org-from-env")
	t.Setenv("OPENAI_PROJECT_ID", "proj-from-env")
	srv, captured, _ := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p := newTestProcessor(t, srv.URL)

	_, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
	})
	require.NoError(t, err)
	require.Empty(t, captured.Header.Get("OpenAI-Organization"))
	require.Empty(t, captured.Header.Get("OpenAI-Project"))
	require.Equal(t, "Bearer gsk_test", captured.Auth)
}

func TestProcessAppliesExtraOptions(t *testing.T) {
	srv, captured, _ := newFakeGroq(t, http.StatusOK, "text/plain", "ok")
	p, err := New(Options{
		BaseURL: srv.URL + "/openai/v1",
		Extra:   []option.RequestOption{option.WithHeader("X-Client-Name", "groqwhisper")},
	})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatText,
	})
	require.NoError(t, err)
	require.Equal(t, "groqwhisper", captured.Header.Get("X-Client-Name"))
}

func TestProcessNullJSONBodyIsTransportError(t *testing.T) {
	srv, _, _ := newFakeGroq(t, http.StatusOK, "application/json", "null")
	p := newTestProcessor(t, srv.URL)

	res, err := p.Process(context.Background(), []byte("audio"), "gsk_test", models.TranscriptionOptions{
		Model:          models.AudioModelWhisperLargeV3Turbo,
		ResponseFormat: models.ResponseFormatJSON,
	})
	require.Nil(t, res)
	require.True(t, IsTransport(err), "unexpected error: %v", err)
	require.Contains(t, err.Error(), "decode response")
}
