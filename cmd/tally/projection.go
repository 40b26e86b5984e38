package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aretw0/tally/pkg/timeline"
)

var (
	projectionKey      string
	projectionCurrency string
	projectionJSON     bool
)

var projectionCmd = &cobra.Command{
	Use:   "projection",
	Short: "Show the month-by-month balance and the progress of goals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)

		doc, err := svc.Load(cmd.Context())
		if err != nil {
			return err
		}
		p, err := timeline.FromDocument(doc, projectionKey)
		if err != nil {
			return err
		}
		goals := timeline.Goals(doc.Goals)

		if projectionJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"projection": p, "goals": goals})
		}

		if _, err := timeline.FormatMoney(decimal.Zero, projectionCurrency); err != nil {
			return err
		}
		money := func(v float64) string {
			s, _ := timeline.FormatMoney(decimal.NewFromFloat(v), projectionCurrency)
			return s
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(w, "Month\tIncome\tExpenses\tBalance\t\n")
		for _, m := range p.Months {
			fmt.Fprintf(w, "%s %d\t%s\t%s\t%s\t\n", m.Month, m.Year, money(m.Income), money(m.Expenses), money(m.Balance))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nStarting balance: %s\n", money(p.StartingBalance))
		final, _ := timeline.FormatMoney(p.Final(), projectionCurrency)
		fmt.Fprintf(out, "Final balance:    %s\n", final)
		if p.NegativeMonths > 0 {
			fmt.Fprintf(out, "Lowest balance:   %s in %s (%d months below zero)\n", money(p.LowestBalance), p.LowestMonth, p.NegativeMonths)
		}

		if len(goals) > 0 {
			fmt.Fprintln(out, "\nGoals:")
			for _, g := range goals {
				status := fmt.Sprintf("%s to go", money(g.Remaining))
				if g.Reached {
					status = "reached"
				}
				fmt.Fprintf(out, "  %-24s %s of %s (%.1f%%), %s\n", g.Name, money(g.Current), money(g.Target), g.Percent, status)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectionCmd)
	projectionCmd.Flags().StringVarP(&projectionKey, "key", "k", timeline.DefaultKey, "Timeline key")
	projectionCmd.Flags().StringVarP(&projectionCurrency, "currency", "c", "USD", "ISO 4217 currency used for display")
	projectionCmd.Flags().BoolVar(&projectionJSON, "json", false, "Output in JSON format")
}
