package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raysh454/policyctl/internal/policy"
)

func newListCommand(st *rootState) *cobra.Command {
	var (
		q      policy.ListQuery
		toggle string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List policies",
		Long: `List policies, optionally filtered and sorted.

--toggle COLUMN works like clicking a column header: it sorts by COLUMN
descending, or flips to ascending when COLUMN is already sorted descending.

Examples:
  policyctl list
  policyctl list --q anna --sort premium --dir asc
  policyctl list --sort holder --dir desc --toggle holder
  policyctl list --limit 20 --offset 40 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if toggle != "" {
				q = q.Toggle(toggle)
			}
			page, err := st.application.Policies.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			if ok, err := formatOutput(cmd.OutOrStdout(), st.outputFormat, page); ok {
				return err
			}
			printPolicies(cmd.OutOrStdout(), page)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Q, "q", "", "Search number, holder or status")
	f.StringVar(&q.Sort, "sort", "", "Sort column: id, number, holder, premium, status")
	f.StringVar(&q.Dir, "dir", "", "Sort direction: asc or desc")
	f.IntVar(&q.Limit, "limit", 0, "Maximum rows to return")
	f.IntVar(&q.Offset, "offset", 0, "Rows to skip")
	f.StringVar(&toggle, "toggle", "", "Toggle sorting on COLUMN")
	return cmd
}

func printPolicies(out io.Writer, page *policy.Page) {
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No policies found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tHOLDER\tPREMIUM\tSTATUS")
	for _, p := range page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\n", p.ID, p.Number, p.Holder, p.Premium, p.Status)
	}
	w.Flush()
	if page.Total >= 0 {
		fmt.Fprintf(out, "\n%d of %d\n", len(page.Items), page.Total)
	}
}

func newAddCommand(st *rootState) *cobra.Command {
	var p policy.NewPolicy
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a policy",
		Long: `Create a policy. The backend validates the fields; its message is shown
on rejection.

Examples:
  policyctl add --number P-2001 --holder "Anna Berg" --premium 1200 --status active`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Number = strings.TrimSpace(p.Number)
			p.Holder = strings.TrimSpace(p.Holder)
			p.Status = strings.TrimSpace(p.Status)

			created, err := st.application.Policies.Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			if created == nil {
				created = &policy.Policy{Number: p.Number, Holder: p.Holder, Premium: p.Premium, Status: p.Status}
			}
			if ok, err := formatOutput(cmd.OutOrStdout(), st.outputFormat, created); ok {
				return err
			}
			banner(cmd.OutOrStdout(), true, fmt.Sprintf("Created policy %s.", created.Number))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Number, "number", "", "Policy number")
	f.StringVar(&p.Holder, "holder", "", "Policy holder")
	f.Float64Var(&p.Premium, "premium", 0, "Premium")
	f.StringVar(&p.Status, "status", "active", "Status")
	return cmd
}

func newDeleteCommand(st *rootState) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a policy",
		Long: `Delete a policy by id. Asks for confirmation unless --yes is given.

Examples:
  policyctl delete 42
  policyctl delete 42 --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid policy id %q", args[0])
			}
			if !yes {
				confirmed, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete policy #%d?", id))
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			if err := st.application.Policies.Delete(cmd.Context(), id); err != nil {
				return err
			}
			banner(cmd.OutOrStdout(), true, fmt.Sprintf("Deleted policy #%d.", id))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func newExportCommand(st *rootState) *cobra.Command {
	var (
		q    string
		file string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export policies as CSV",
		Long: `Download the CSV export, filtered by --q when given. Use -f - to write
to standard output.

Examples:
  policyctl export
  policyctl export --q lapsed -f lapsed.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "-" {
				_, err := st.application.Policies.ExportCSV(cmd.Context(), q, cmd.OutOrStdout())
				return err
			}

			tmp, err := os.CreateTemp(filepath.Dir(file), ".policies-*.csv")
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer os.Remove(tmp.Name())

			n, err := st.application.Policies.ExportCSV(cmd.Context(), q, tmp)
			if err == nil {
				// CreateTemp opens with 0600; exports are ordinary files.
				err = tmp.Chmod(0o644)
			}
			if cerr := tmp.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if err := os.Rename(tmp.Name(), file); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			banner(cmd.OutOrStdout(), true, fmt.Sprintf("Exported %s (%d bytes)", file, n))
			return nil
		},
	}
	cmd.Flags().StringVar(&q, "q", "", "Only export policies matching this search")
	cmd.Flags().StringVarP(&file, "file", "f", "policies.csv", "Output file, or - for stdout")
	return cmd
}
