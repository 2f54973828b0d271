package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/netscope/internal/settings"
)

var (
	scanTimeout      time.Duration
	scanServicePorts string
	scanHiddenPorts  string
	scanHidden       bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan START [END]",
	Short: "Run a one-shot discovery scan",
	Long: `Discover hosts on an IPv4 range and print the host table. START may be a
full address or its leading octets; END may be omitted or given in full.
Missing start octets are filled with 0, and an omitted END becomes the
start's /24 broadcast address, so "192.168.1" scans 192.168.1.0 to
192.168.1.255.`,
	Example: `  netscope scan 192.168.1
  netscope scan 10.0.0.1 10.0.0.50
  netscope scan 192.168.1.1 --ports 22,80,443
  netscope scan 10.0.0 --hidden --hidden-ports 3389,5900`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runScan,
}

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch START [END]",
	Short: "Scan a range, then monitor the discovered hosts",
	Long: `Run a discovery scan and keep polling every host that was found. Each
liveness change is printed as it happens. Stop with Ctrl+C.`,
	Example: `  netscope watch 192.168.1
  netscope watch 10.0.0.1 10.0.0.50 --hidden`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)

	addScanFlags(scanCmd.Flags())
	addScanFlags(watchCmd.Flags())
}

func addScanFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&scanTimeout, "timeout", 10*time.Minute, "give up on the scan after this long")
	fs.StringVar(&scanServicePorts, "ports", "", "comma-separated service ports to probe")
	fs.BoolVar(&scanHidden, "hidden", false, "also probe hidden-host ports")
	fs.StringVar(&scanHiddenPorts, "hidden-ports", "", "comma-separated hidden-host ports")
}

// applyScanFlags copies explicitly set flags over the viper settings read
// by the controller.
func applyScanFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("ports") {
		viper.Set(settings.KeyServicePorts, scanServicePorts)
	}
	if cmd.Flags().Changed("hidden") {
		viper.Set(settings.KeyHiddenHostDiscovery, scanHidden)
	}
	if cmd.Flags().Changed("hidden-ports") {
		viper.Set(settings.KeyHiddenHostPorts, scanHiddenPorts)
	}
}

func rangeArgs(args []string) (start, end string) {
	start = args[0]
	if len(args) > 1 {
		end = args[1]
	}
	return start, end
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ls, err := startLocalScan(ctx, cmd, args)
	if err != nil {
		return err
	}
	defer ls.Close()

	displayHostsTable(cmd.OutOrStdout(), ls.Hosts())
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ls, err := startLocalScan(ctx, cmd, args)
	if err != nil {
		return err
	}
	defer ls.Close()

	records := ls.Hosts()
	displayHostsTable(cmd.OutOrStdout(), records)
	if len(records) == 0 {
		return fmt.Errorf("no hosts found, nothing to monitor")
	}

	return ls.Watch(ctx)
}

// startLocalScan builds a local session and runs the scan to completion.
// A scan that finishes with errors still yields its partial host table.
func startLocalScan(ctx context.Context, cmd *cobra.Command, args []string) (*localSession, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	applyScanFlags(cmd)

	ls, err := newLocalSession(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	start, end := rangeArgs(args)
	if _, err := ls.Scan(scanCtx, start, end); err != nil {
		ls.Close()
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return ls, nil
}
