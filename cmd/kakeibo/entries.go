package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func entriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Record and list ledger entries",
	}
	cmd.AddCommand(entriesAddCmd(a))
	cmd.AddCommand(entriesListCmd(a))
	cmd.AddCommand(entriesDeleteCmd(a))
	return cmd
}

func entriesAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a one-off entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			kindFlag, _ := cmd.Flags().GetString("kind")
			amountFlag, _ := cmd.Flags().GetString("amount")
			category, _ := cmd.Flags().GetString("category")
			memo, _ := cmd.Flags().GetString("memo")
			dateFlag, _ := cmd.Flags().GetString("date")

			kind, err := core.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(amountFlag)
			if err != nil {
				return err
			}
			now := a.now()
			date := core.NewDate(now.Year(), int(now.Month()), now.Day())
			if dateFlag != "" {
				if date, err = core.ParseDate(dateFlag); err != nil {
					return err
				}
			}

			entry, err := a.processor.RecordEntry(cmd.Context(), core.LedgerEntryCandidate{
				OwnerID:  owner,
				Kind:     kind,
				Amount:   core.Money{Amount: amount},
				Category: category,
				Memo:     memo,
				Date:     date,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded entry %d: %s %s %s on %s\n",
				entry.ID, entry.Kind, entry.Amount, entry.Category, entry.Date)
			return nil
		},
	}
	addOwnerFlag(cmd, true)
	cmd.Flags().String("kind", "", "expense or income")
	cmd.Flags().String("amount", "", "amount in whole units, e.g. 1,250")
	cmd.Flags().String("category", "", "category")
	cmd.Flags().String("memo", "", "optional memo")
	cmd.Flags().String("date", "", "date as YYYY-MM-DD (default: today)")
	for _, f := range []string{"kind", "amount", "category"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func entriesListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the month's entries by date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			month, err := a.monthFlag(cmd)
			if err != nil {
				return err
			}
			owner, _ := cmd.Flags().GetString("owner")
			entries, err := a.processor.ListEntries(cmd.Context(), owner, month)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No entries for %s\n", month)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tKIND\tAMOUNT\tCATEGORY\tRULE\tMEMO")
			for _, e := range entries {
				rule := "-"
				if e.SourceRuleID != nil {
					rule = strconv.FormatInt(*e.SourceRuleID, 10)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Date, e.Kind, e.Amount, e.Category, rule, e.Memo)
			}
			return w.Flush()
		},
	}
	addOwnerFlag(cmd, true)
	addMonthFlag(cmd)
	return cmd
}

func entriesDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Long: `Delete a ledger entry. Deleting an entry that a rule produced frees the
month for that rule: the next materialize creates it again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			owner, _ := cmd.Flags().GetString("owner")
			if err := a.processor.DeleteEntry(cmd.Context(), owner, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %d\n", id)
			return nil
		},
	}
	addOwnerFlag(cmd, true)
	return cmd
}
