package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type effectiveConfig struct {
	BaseURL        string `json:"api.base_url"`
	KeyEnv         string `json:"api.key_env"`
	Timeout        string `json:"api.timeout"`
	KeysPath       string `json:"keys.path"`
	KeysProvider   string `json:"keys.provider"`
	Model          string `json:"defaults.model"`
	ResponseFormat string `json:"defaults.response_format"`
	LogLevel       string `json:"log.level"`
}

// newConfigCommand prints the merged configuration. Key values never appear
// in config, only the key file location and env var name.
func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(effectiveConfig{
				BaseURL:        a.cfg.API.BaseURL,
				KeyEnv:         a.cfg.API.KeyEnv,
				Timeout:        a.cfg.API.Timeout.String(),
				KeysPath:       a.cfg.Keys.Path,
				KeysProvider:   a.cfg.Keys.Provider,
				Model:          a.cfg.Defaults.Model,
				ResponseFormat: a.cfg.Defaults.ResponseFormat,
				LogLevel:       a.cfg.Log.Level,
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
