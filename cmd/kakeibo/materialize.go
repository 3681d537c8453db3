package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func materializeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Create the month's recurring entries",
		Long: `Create one ledger entry per recurring rule for the given month.

Entries that already exist for a rule and month are counted as duplicates,
so the command can be re-run at any time. Rows that failed are listed with
their failure class; transient failures succeed on a later run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMaterialize(cmd)
		},
	}
	addOwnerFlag(cmd, false)
	addMonthFlag(cmd)
	cmd.Flags().Bool("all", false, "materialize every owner that has rules")
	return cmd
}

func (a *app) runMaterialize(cmd *cobra.Command) error {
	month, err := a.monthFlag(cmd)
	if err != nil {
		return err
	}
	owner, _ := cmd.Flags().GetString("owner")
	all, _ := cmd.Flags().GetBool("all")

	var results []core.ApplyResult
	switch {
	case all && owner != "":
		return errors.New("--owner and --all are mutually exclusive")
	case all:
		results, err = a.processor.MaterializeAll(cmd.Context(), month)
	case owner != "":
		var res core.ApplyResult
		res, err = a.processor.MaterializeMonth(cmd.Context(), owner, month)
		results = []core.ApplyResult{res}
	default:
		return errors.New("either --owner or --all is required")
	}

	if printErr := printApplyResults(cmd.OutOrStdout(), results); printErr != nil {
		return printErr
	}
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.HasFailures() {
			return fmt.Errorf("%s %s: %d rows failed", r.OwnerID, r.Month, len(r.Failures))
		}
	}
	return nil
}

func printApplyResults(out io.Writer, results []core.ApplyResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "OWNER\tMONTH\tAPPLIED\tDUPLICATES\tFAILURES"); err != nil {
		return err
	}
	for _, r := range results {
		if r.OwnerID == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
			r.OwnerID, r.Month, r.Applied, r.Duplicates, len(r.Failures)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, r := range results {
		for _, f := range r.Failures {
			if _, err := fmt.Fprintf(out, "  %s: %v\n", f.Class, f); err != nil {
				return err
			}
		}
	}
	return nil
}
