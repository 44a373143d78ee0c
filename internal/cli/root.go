package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncecere/groq_whisper/internal/config"
)

type app struct {
	configFile string
	envFile    string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the groqwhisper command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	flags := &transcribeFlags{}

	cmd := &cobra.Command{
		Use:   "groqwhisper [flags] AUDIO_FILE",
		Short: "Run transcriptions or translations using the Groq Whisper API",
		Long: `Run transcriptions or translations using the Groq Whisper API.

AUDIO_FILE is a path to an audio file, or - to read the audio from stdin.
The result is written to stdout: plain text, or indented JSON for the
json and verbose_json response formats.`,
		Example: `  # Basic transcription
  groqwhisper audio.mp3 > output.txt
  cat audio.mp3 | groqwhisper - > output.txt

  # Translation to English
  groqwhisper --translate audio.mp3

  # Transcription with specific model and language
  groqwhisper --model whisper-large-v3 --language fr audio.mp3

  # Detailed JSON output with timestamps
  groqwhisper --response-format verbose_json audio.mp3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.transcribe(cmd, args[0], flags)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default ./groq_whisper.yaml)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Dotenv file to load (default ./.env)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log request details to stderr")
	flags.register(cmd)

	cmd.AddCommand(newKeysCommand(a), newConfigCommand(a))
	return cmd
}

// Execute runs the root command against the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// FormatError renders err as the single line printed before exiting.
func FormatError(err error) string {
	return "Error: " + strings.Join(strings.Fields(err.Error()), " ")
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{ConfigFile: a.configFile, EnvFile: a.envFile})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	a.logger = newLogger(cmd.ErrOrStderr(), level)
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
