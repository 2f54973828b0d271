package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/netscope/internal/iprange"
)

// normalizeCmd represents the normalize command.
var normalizeCmd = &cobra.Command{
	Use:   "normalize START [END]",
	Short: "Show how a range will be interpreted",
	Long: `Print the canonical range for START and END exactly as a scan would use
it, together with the end address suggested for START alone. Nothing is
scanned.`,
	Example: `  netscope normalize 192.168.1
  netscope normalize 10.0.0.1 10.0.0.50
  netscope normalize 192.168.1.20 192.168.1.10`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	start, end := rangeArgs(args)
	out := cmd.OutOrStdout()

	if suggestion := iprange.AutoSuggest(start, end); suggestion != "" && suggestion != end {
		fmt.Fprintf(out, "Suggested end: %s\n", suggestion)
	}

	rng, err := iprange.Normalize(start, end)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Range:         %s\n", rng)
	fmt.Fprintf(out, "Addresses:     %d\n", rng.Size())
	for _, block := range rng.CIDRs() {
		fmt.Fprintf(out, "  %s\n", block)
	}
	return nil
}
