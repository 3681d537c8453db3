package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func rulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage recurring rules",
		Long: `Recurring rules are monthly templates. Each rule produces at most one
ledger entry per month, on its day of month (1 to 28).

Rules cannot be edited: delete and re-add instead. Deleting a rule keeps
the entries it already produced.`,
	}
	cmd.AddCommand(rulesListCmd(a))
	cmd.AddCommand(rulesAddCmd(a))
	cmd.AddCommand(rulesDeleteCmd(a))
	return cmd
}

func rulesListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the owner's rules, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			rules, err := a.processor.ListRules(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rules. Use 'kakeibo rules add' to create one.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tAMOUNT\tCATEGORY\tDAY\tMEMO")
			for _, r := range rules {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.Kind, r.Amount, r.Category, r.DayOfMonth, r.Memo)
			}
			return w.Flush()
		},
	}
	addOwnerFlag(cmd, true)
	return cmd
}

func rulesAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring rule",
		Example: `  kakeibo rules add --owner alice --kind expense --amount 98,000 --category Rent --day 27
  kakeibo rules add --owner alice --kind income --amount 300000 --category Salary --day 25`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			kindFlag, _ := cmd.Flags().GetString("kind")
			amountFlag, _ := cmd.Flags().GetString("amount")
			category, _ := cmd.Flags().GetString("category")
			memo, _ := cmd.Flags().GetString("memo")
			day, _ := cmd.Flags().GetInt("day")

			kind, err := core.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(amountFlag)
			if err != nil {
				return err
			}
			rule, err := a.processor.CreateRule(cmd.Context(), core.RecurringRule{
				OwnerID:    owner,
				Kind:       kind,
				Amount:     core.Money{Amount: amount},
				Category:   category,
				Memo:       memo,
				DayOfMonth: day,
				CreatedAt:  a.now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created rule %d: %s %s %s on day %d\n",
				rule.ID, rule.Kind, rule.Amount, rule.Category, rule.DayOfMonth)
			return nil
		},
	}
	addOwnerFlag(cmd, true)
	cmd.Flags().String("kind", "", "expense or income")
	cmd.Flags().String("amount", "", "amount in whole units, e.g. 9,800")
	cmd.Flags().String("category", "", "category")
	cmd.Flags().String("memo", "", "optional memo")
	cmd.Flags().Int("day", 0, "day of month (1-28)")
	for _, f := range []string{"kind", "amount", "category", "day"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func rulesDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule; its entries are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			owner, _ := cmd.Flags().GetString("owner")
			if err := a.processor.DeleteRule(cmd.Context(), owner, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %d\n", id)
			return nil
		},
	}
	addOwnerFlag(cmd, true)
	return cmd
}
