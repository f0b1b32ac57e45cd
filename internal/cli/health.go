package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/policyctl/internal/credential"
	"github.com/raysh454/policyctl/internal/policy"
)

type healthReport struct {
	Origin string `json:"origin" yaml:"origin"`
	Health string `json:"health" yaml:"health"`
	Auth   string `json:"auth" yaml:"auth"`
	KeySet bool   `json:"key_set" yaml:"key_set"`
}

func newHealthCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show backend health and whether it requires an API key",
		Long: `Check the backend's /health endpoint and probe, without sending the
stored key, whether listing policies requires one.

Examples:
  policyctl health
  policyctl health -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := st.application
			ctx := cmd.Context()

			report := healthReport{Origin: a.Client.Origin().String()}
			report.Health, report.Auth = probe(ctx, a.Policies)

			var err error
			report.KeySet, err = keySet(ctx, st)
			if err != nil {
				return err
			}

			if ok, err := formatOutput(cmd.OutOrStdout(), st.outputFormat, report); ok {
				return err
			}

			out := cmd.OutOrStdout()
			health := okFmt(report.Health)
			if report.Health != "ok" {
				health = warnFmt(report.Health)
			}
			fmt.Fprintf(out, "origin: %s\n", report.Origin)
			fmt.Fprintf(out, "health: %s\n", health)
			auth := report.Auth
			if report.KeySet {
				auth += ", key set"
			}
			fmt.Fprintf(out, "auth: %s\n", auth)
			return nil
		},
	}
}

// probe never fails: an unreachable backend reports "error", matching the
// status pills of the web page.
func probe(ctx context.Context, svc *policy.Service) (health, auth string) {
	health, err := svc.Health(ctx)
	if err != nil {
		health = "error"
	}
	mode, err := svc.ProbeAuth(ctx)
	if err != nil {
		return health, "unknown"
	}
	return health, string(mode)
}

// keySet reports whether requests will carry a key, from the override or
// the store.
func keySet(ctx context.Context, st *rootState) (bool, error) {
	if st.cfg.APIKey != "" {
		return true, nil
	}
	_, ok, err := credential.NewStoreProvider(st.application.Store).Credential(ctx)
	return ok, err
}
