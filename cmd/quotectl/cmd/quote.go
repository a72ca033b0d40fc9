package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"github.com/smallbiznis/medisub/internal/pricing/format"
	pricingservice "github.com/smallbiznis/medisub/internal/pricing/service"
	"github.com/spf13/cobra"
)

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	var (
		doctors int64
		cycle   string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute a subscription quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := opts.outputFormat()
			if err != nil {
				return err
			}

			billingCycle, err := pricingdomain.ParseBillingCycle(cycle)
			if err != nil {
				return fmt.Errorf("--cycle %q: %w", cycle, err)
			}

			cfg, err := opts.loadPricing()
			if err != nil {
				return err
			}
			if v := pricingservice.ValidateUnitCount(doctors, cfg.MaxUnits); !v.Valid {
				return fmt.Errorf("--doctors: %s", v.Message)
			}

			quote, err := pricingservice.ComputeQuote(doctors, billingCycle, cfg)
			if err != nil {
				return err
			}

			if outFormat == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(quote)
			}
			return writeQuote(cmd.OutOrStdout(), quote)
		},
	}

	cmd.Flags().Int64VarP(&doctors, "doctors", "d", 1, "number of doctors")
	cmd.Flags().StringVarP(&cycle, "cycle", "c", string(pricingdomain.BillingCycleMonthly), "billing cycle (monthly, yearly)")

	return cmd
}

func writeQuote(out io.Writer, q pricingdomain.PriceQuote) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Doctors\t%d\n", q.UnitCount)
	fmt.Fprintf(w, "Billing cycle\t%s\n", q.BillingCycle)
	fmt.Fprintf(w, "Base price\t%s\n", format.FormatPrice(q.BasePrice))
	fmt.Fprintf(w, "Subtotal\t%s\n", format.FormatPrice(q.Subtotal))
	for _, d := range q.DiscountDetails {
		fmt.Fprintf(w, "%s (%s%%)\t-%s\n", d.Label, d.Percentage.String(), format.FormatPrice(d.Amount))
	}
	fmt.Fprintf(w, "Final price\t%s\n", format.FormatPrice(q.FinalPrice))
	fmt.Fprintf(w, "Per doctor\t%s\n", format.FormatPrice(q.PricePerUnit))
	fmt.Fprintf(w, "You save\t%s\n", format.FormatPrice(q.Savings))

	return w.Flush()
}
