package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netscope/internal/daemon"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/settings"
)

var (
	serveHost    string
	servePort    int
	servePIDFile string
	serveNoAPI   bool
	serveLive    bool
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the netscope daemon",
	Long: `Run the netscope daemon in the foreground. The daemon owns the discovery
session, adopts the backend's monitoring state at start-up and serves the
HTTP and WebSocket API until it receives SIGINT or SIGTERM. SIGHUP reloads
the scan settings from the configuration file.`,
	Example: `  netscope serve
  netscope serve --port 9090 --host 0.0.0.0
  netscope serve --config /etc/netscope/netscope.yaml --pid-file /run/netscope.pid
  NETSCOPE_SCANNING_SERVICE_PORTS=22,443 netscope serve --live-settings`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "API listen address (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "API port (overrides config)")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "write the daemon PID to this file")
	serveCmd.Flags().BoolVar(&serveNoAPI, "no-api", false, "do not start the API server")
	serveCmd.Flags().BoolVar(&serveLive, "live-settings", false,
		"read scan settings through viper on every scan so environment overrides apply")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if serveHost != "" {
		cfg.API.ListenAddr = serveHost
	}
	if servePort != 0 {
		cfg.API.Port = servePort
	}
	if servePIDFile != "" {
		cfg.Daemon.PIDFile = servePIDFile
	}
	if serveNoAPI {
		cfg.API.Enabled = false
	}

	opts := []daemon.Option{
		daemon.WithLogger(logging.Default()),
		daemon.WithConfigPath(getConfigFilePath()),
	}
	if serveLive {
		opts = append(opts, daemon.WithSettings(settings.NewViperProvider(viper.GetViper())))
	}

	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "Starting daemon with configuration:\n")
		fmt.Fprintf(cmd.OutOrStdout(), "  API: %t (%s)\n", cfg.API.Enabled, cfg.GetAPIAddress())
		fmt.Fprintf(cmd.OutOrStdout(), "  History: %s\n", cfg.History.Backend)
		fmt.Fprintf(cmd.OutOrStdout(), "  Probe engine: %s\n", cfg.Probe.Engine)
	}

	d := daemon.New(cfg, opts...)
	if err := d.Start(); err != nil {
		return fmt.Errorf("error starting daemon: %w", err)
	}
	return nil
}
