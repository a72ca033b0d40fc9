package cmd

import (
	"encoding/json"
	"fmt"

	pricingservice "github.com/smallbiznis/medisub/internal/pricing/service"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <doctors>",
		Short: "Check a doctor count the way the checkout form does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := opts.outputFormat()
			if err != nil {
				return err
			}
			cfg, err := opts.loadPricing()
			if err != nil {
				return err
			}

			v := pricingservice.ValidateUnitCount(args[0], cfg.MaxUnits)
			if outFormat == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
			}

			if v.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %d doctors\n", v.Value)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalid (%s): %s\n", v.Code, v.Message)
			return nil
		},
	}
}
