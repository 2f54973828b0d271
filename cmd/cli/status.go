package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/anstrom/netscope/internal/api/handlers"
	"github.com/anstrom/netscope/internal/session"
)

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running daemon",
	Long: `Ask the running daemon for its health, session state and host count.
Use "monitor" to change the monitoring state.`,
	Example: `  netscope status
  NETSCOPE_API_PORT=9090 netscope status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// monitorCmd represents the monitor command.
var monitorCmd = &cobra.Command{
	Use:       "monitor start|stop|toggle",
	Short:     "Start or stop monitoring on a running daemon",
	Example:   "  netscope monitor start\n  netscope monitor toggle",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"start", "stop", "toggle"},
	RunE:      runMonitor,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	client := NewAPIClient(cfg)

	var health handlers.HealthResponse
	if err := client.Get(cmd.Context(), "/health", &health); err != nil {
		return fmt.Errorf("daemon is not reachable at %s: %w", cfg.GetAPIAddress(), err)
	}
	printStatus(cmd, health)
	return nil
}

func printStatus(cmd *cobra.Command, health handlers.HealthResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daemon:     %s (up %s)\n", health.Status, health.Uptime)
	fmt.Fprintf(out, "State:      %s\n", health.Session.State)
	fmt.Fprintf(out, "Hosts:      %d\n", health.Session.HostCount)
	fmt.Fprintf(out, "Monitoring: %t\n", health.Session.Monitoring)
	if health.Session.LastRange != nil {
		fmt.Fprintf(out, "Last range: %s\n", health.Session.LastRange)
	}
	for _, name := range slices.Sorted(maps.Keys(health.Checks)) {
		fmt.Fprintf(out, "Check %s: %s\n", name, health.Checks[name])
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	var resp handlers.MonitoringResponse
	if err := NewAPIClient(cfg).Post(cmd.Context(), "/monitoring/"+args[0], nil, &resp); err != nil {
		return err
	}

	state := "inactive"
	if resp.Monitoring || resp.State == session.StateMonitoring {
		state = "active"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s (state: %s)\n", state, resp.State)
	return nil
}
