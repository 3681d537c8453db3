package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func summarizeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Show month totals, daily sums and category breakdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			month, err := a.monthFlag(cmd)
			if err != nil {
				return err
			}
			owner, _ := cmd.Flags().GetString("owner")
			kindFlag, _ := cmd.Flags().GetString("kind")
			asJSON, _ := cmd.Flags().GetBool("json")

			var kinds []core.Kind
			if kindFlag == "" {
				kinds = []core.Kind{core.KindExpense, core.KindIncome}
			} else {
				kind, err := core.ParseKind(kindFlag)
				if err != nil {
					return err
				}
				kinds = []core.Kind{kind}
			}

			summary, err := a.processor.SummarizeMonth(cmd.Context(), owner, month)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(cmd.OutOrStdout(), summary, kinds)
		},
	}
	addOwnerFlag(cmd, true)
	addMonthFlag(cmd)
	cmd.Flags().String("kind", "", "only show the breakdown of this kind (expense, income)")
	cmd.Flags().Bool("json", false, "print the summary as JSON")
	return cmd
}

func printSummary(out io.Writer, s core.MonthSummary, kinds []core.Kind) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Month\t%s\t\n", s.Month)
	fmt.Fprintf(w, "Expense\t%s\t\n", core.Money{Amount: s.Total.Expense})
	fmt.Fprintf(w, "Income\t%s\t\n", core.Money{Amount: s.Total.Income})
	fmt.Fprintf(w, "Net\t%s\t\n", core.Money{Amount: s.Total.Net})
	if err := w.Flush(); err != nil {
		return err
	}

	if len(s.Days) > 0 {
		days := make([]string, 0, len(s.Days))
		for d := range s.Days {
			days = append(days, d)
		}
		sort.Strings(days)

		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "DATE\tEXPENSE\tINCOME\tNET\t")
		for _, d := range days {
			sum := s.Days[d]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", d,
				core.Money{Amount: sum.Expense}, core.Money{Amount: sum.Income}, core.Money{Amount: sum.Net()})
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	for _, kind := range kinds {
		shares := s.Breakdown.Expense
		if kind == core.KindIncome {
			shares = s.Breakdown.Income
		}
		if len(shares) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s by category\n", kind)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, c := range shares {
			fmt.Fprintf(w, "%s\t%s\t%d%%\t\n", c.Category, core.Money{Amount: c.Value}, c.Percent)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
