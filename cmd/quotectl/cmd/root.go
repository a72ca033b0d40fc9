// Package cmd provides the quotectl commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/smallbiznis/medisub/internal/config"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	pricingFile string
	format      string
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Price hospital subscriptions from the command line",
		Long: `quotectl computes subscription quotes with the same pricing table the
API serves, so operators can answer pricing questions offline.

Examples:
  quotectl quote --doctors 10 --cycle yearly
  quotectl quote -d 25 -c monthly --format json
  quotectl validate 12.5`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.pricingFile, "pricing", "", "pricing table file (default: MEDISUB_PRICING_FILE or built-in defaults)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")

	root.AddCommand(newQuoteCmd(opts))
	root.AddCommand(newValidateCmd(opts))

	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) loadPricing() (pricingdomain.PricingConfig, error) {
	path := o.pricingFile
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("MEDISUB_PRICING_FILE")
	}
	cfg, err := config.LoadPricing(path)
	if err != nil {
		return pricingdomain.PricingConfig{}, fmt.Errorf("load pricing: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) outputFormat() (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(o.format)); f {
	case "text", "json":
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q", o.format)
	}
}
