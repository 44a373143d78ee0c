package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ncecere/groq_whisper/internal/models"
)

// EnvPrefix namespaces every environment override, e.g. GROQ_WHISPER_API_BASE_URL.
const EnvPrefix = "GROQ_WHISPER"

// Config captures the runtime configuration for the CLI.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Log      LogConfig      `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// KeyEnv names the environment variable consulted after the key store.
	KeyEnv string `mapstructure:"key_env"`
	// Timeout of zero leaves requests unbounded.
	Timeout time.Duration `mapstructure:"timeout"`
}

type KeysConfig struct {
	Path     string `mapstructure:"path"`
	Provider string `mapstructure:"provider"`
}

type DefaultsConfig struct {
	Model          string `mapstructure:"model"`
	ResponseFormat string `mapstructure:"response_format"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv(EnvPrefix + "_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("groq_whisper")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes values and rejects unsupported enumerations.
func (c *Config) Validate() error {
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be provided")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be >= 0")
	}
	c.API.KeyEnv = strings.TrimSpace(c.API.KeyEnv)

	c.Keys.Provider = strings.TrimSpace(c.Keys.Provider)
	if c.Keys.Provider == "" {
		c.Keys.Provider = "groq"
	}
	if strings.TrimSpace(c.Keys.Path) == "" {
		path, err := DefaultKeysPath()
		if err != nil {
			return fmt.Errorf("resolve keys.path: %w", err)
		}
		c.Keys.Path = path
	}

	c.Defaults.Model = strings.TrimSpace(c.Defaults.Model)
	if !models.AudioModel(c.Defaults.Model).Valid() {
		return fmt.Errorf("defaults.model %q is not a supported model", c.Defaults.Model)
	}
	c.Defaults.ResponseFormat = strings.ToLower(strings.TrimSpace(c.Defaults.ResponseFormat))
	if !models.ResponseFormat(c.Defaults.ResponseFormat).Valid() {
		return fmt.Errorf("defaults.response_format must be json, verbose_json or text")
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	case "":
		c.Log.Level = "info"
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// DefaultKeysPath is keys.json under the user config directory.
func DefaultKeysPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "groq_whisper", "keys.json"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("api.key_env", "GROQ_API_KEY")
	v.SetDefault("api.timeout", "0s")

	v.SetDefault("keys.path", "")
	v.SetDefault("keys.provider", "groq")

	v.SetDefault("defaults.model", string(models.AudioModelWhisperLargeV3Turbo))
	v.SetDefault("defaults.response_format", string(models.ResponseFormatText))

	v.SetDefault("log.level", "info")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
