package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raysh454/policyctl/internal/credential"
)

func newKeyCommand(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the saved API key",
	}
	cmd.AddCommand(newKeySetCommand(st), newKeyClearCommand(st), newKeyShowCommand(st))
	return cmd
}

func newKeySetCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key]",
		Short: "Save the API key",
		Long: `Save the API key to the credential store. Without an argument the key
is read from the first line of standard input, which keeps it out of shell
history.

Examples:
  policyctl key set abc123
  echo abc123 | policyctl key set`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) == 1 {
				value = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read key: %w", err)
				}
				value = line
			}
			if err := credential.Save(cmd.Context(), st.application.Store, value); err != nil {
				return err
			}
			banner(cmd.OutOrStdout(), true, "API key saved.")
			return nil
		},
	}
}

func newKeyClearCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.Clear(cmd.Context(), st.application.Store); err != nil {
				return err
			}
			banner(cmd.OutOrStdout(), true, "API key cleared.")
			return nil
		},
	}
}

type keyReport struct {
	Set    bool   `json:"set" yaml:"set"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Masked string `json:"masked,omitempty" yaml:"masked,omitempty"`
}

func newKeyShowCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show whether an API key is set",
		Long: `Show whether requests will carry an API key and where it comes from.
Only the last four characters are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report keyReport
			if st.cfg.APIKey != "" {
				report = keyReport{Set: true, Source: "override", Masked: mask(st.cfg.APIKey)}
			} else {
				v, ok, err := credential.NewStoreProvider(st.application.Store).Credential(cmd.Context())
				if err != nil {
					return err
				}
				if ok {
					report = keyReport{Set: true, Source: string(st.cfg.Store.Backend), Masked: mask(v)}
				}
			}

			if ok, err := formatOutput(cmd.OutOrStdout(), st.outputFormat, report); ok {
				return err
			}
			if !report.Set {
				fmt.Fprintln(cmd.OutOrStdout(), "auth: off")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "auth: key set (%s, from %s)\n", report.Masked, report.Source)
			return nil
		},
	}
}

// mask hides all but the last four characters of key. It counts runes so a
// multibyte key is never split mid-character.
func mask(key string) string {
	r := []rune(key)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
