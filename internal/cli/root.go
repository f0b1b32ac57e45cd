// Package cli implements the policyctl commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raysh454/policyctl/internal/app"
	"github.com/raysh454/policyctl/internal/credential"
	"github.com/raysh454/policyctl/internal/logging"
)

// Version is set at build time.
var Version = "0.1.0"

// rootState is what the persistent flags and PersistentPreRunE produce for
// the subcommands.
type rootState struct {
	configPath   string
	baseURL      string
	apiKey       string
	storeBackend string
	storePath    string
	outputFormat string
	logLevel     string

	getenv func(string) string

	cfg         *app.Config
	application *app.Application
}

// NewRootCommand builds a fresh command tree. Each call is independent, so
// tests can run several in parallel.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand(os.Getenv)
	return root
}

func newRootCommand(getenv func(string) string) (*cobra.Command, *rootState) {
	st := &rootState{getenv: getenv}

	root := &cobra.Command{
		Use:   "policyctl",
		Short: "Command-line client for the policy backend",
		Long: `policyctl lists, creates, deletes and exports insurance policies.

Requests carry the API key saved with 'policyctl key set'. The key is only
ever sent to the configured base URL; requests to any other origin are refused.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "completion" || cmd.Name() == "help" {
				return nil
			}
			return st.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return st.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&st.configPath, "config", "", "Config file (default: ~/.config/policyctl/config.yaml)")
	pf.StringVar(&st.baseURL, "base-url", "", "Backend origin, e.g. http://localhost:8000")
	pf.StringVar(&st.apiKey, "api-key", "", "API key for this invocation only (not saved)")
	pf.StringVar(&st.storeBackend, "store", "", "Credential store: file, sqlite, redis, memory")
	pf.StringVar(&st.storePath, "store-path", "", "Path of the file or sqlite credential store")
	pf.StringVarP(&st.outputFormat, "output", "o", formatTable, "Output format: table, json, yaml")
	pf.StringVar(&st.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newHealthCommand(st),
		newListCommand(st),
		newAddCommand(st),
		newDeleteCommand(st),
		newExportCommand(st),
		newKeyCommand(st),
		newCompletionCommand(root),
	)
	return root, st
}

func (st *rootState) setup(cmd *cobra.Command) error {
	if !validFormat(st.outputFormat) {
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", st.outputFormat)
	}

	cfg, err := app.LoadConfig(st.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(st.getenv)

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = st.baseURL
	}
	if flags.Changed("api-key") {
		cfg.APIKey = strings.TrimSpace(st.apiKey)
	}
	if flags.Changed("store") {
		cfg.Store.Backend = credential.Backend(st.storeBackend)
	}
	if flags.Changed("store-path") {
		cfg.Store.Path = st.storePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = st.logLevel
	}
	st.cfg = cfg

	logger := logging.NewLogger("policyctl", cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))
	st.application, err = app.NewApplication(cmd.Context(), cfg, logger)
	return err
}

func (st *rootState) teardown() error {
	if st.application == nil {
		return nil
	}
	err := st.application.Close()
	st.application = nil
	return err
}

func newCompletionCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for policyctl.

Bash:
  source <(policyctl completion bash)

Zsh:
  policyctl completion zsh > "${fpath[1]}/_policyctl"

Fish:
  policyctl completion fish > ~/.config/fish/completions/policyctl.fish

PowerShell:
  policyctl completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unknown shell: %s", args[0])
			}
		},
	}
}

// Execute runs policyctl with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return execute(ctx, os.Getenv, args, stdin, stdout, stderr)
}

func execute(ctx context.Context, getenv func(string) string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, st := newRootCommand(getenv)
	// Post-run hooks are skipped when a command fails.
	defer st.teardown()

	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	cliErr := toCLIError(err)
	format, _ := root.PersistentFlags().GetString("output")
	fmt.Fprintln(stderr, formatError(cliErr, format))
	return cliErr.ExitCode
}
