package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncecere/groq_whisper/internal/keys"
)

func newKeysCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored API keys",
	}

	var value string
	setCmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Store a key under NAME (read from --value or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(value)
			if key == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no key provided on stdin")
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("key must not be empty")
			}
			store, err := keys.Open(a.cfg.Keys.Path)
			if err != nil {
				return err
			}
			if err := store.Set(args[0], key); err != nil {
				return err
			}
			a.logger.Debug("key stored", "name", args[0], "path", store.Path())
			return nil
		},
	}
	setCmd.Flags().StringVar(&value, "value", "", "Key value; prompts on stdin when omitted")

	getCmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Print the key stored under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.Open(a.cfg.Keys.Path)
			if err != nil {
				return err
			}
			key, ok := store.Get(args[0])
			if !ok {
				return fmt.Errorf("no key found with name %q", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the names of stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.Open(a.cfg.Keys.Path)
			if err != nil {
				return err
			}
			for _, name := range store.Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the location of the keys file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Keys.Path)
			return err
		},
	}

	cmd.AddCommand(setCmd, getCmd, listCmd, pathCmd)
	return cmd
}
