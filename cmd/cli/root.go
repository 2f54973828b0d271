// Package cli provides the command-line interface for netscope.
// It implements the Cobra command tree: serve runs the daemon, scan and
// watch drive a local discovery session, and the remaining commands either
// work offline or talk to a running daemon over its API.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netscope/internal/config"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/settings"
)

// EnvPrefix prefixes every environment override, e.g.
// NETSCOPE_SCANNING_SERVICE_PORTS.
const EnvPrefix = "NETSCOPE"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netscope",
	Short: "LAN discovery and liveness monitoring",
	Long: `netscope discovers hosts on an IPv4 range, keeps a table of what it found
and monitors those hosts for liveness. Run it as a daemon with an HTTP and
WebSocket API, or drive one-shot scans straight from the terminal.`,
	Version:      getVersion(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netscope.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("netscope")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// setConfigDefaults registers the keys read live through viper.
func setConfigDefaults() {
	viper.SetDefault(settings.KeyServicePorts, settings.DefaultServicePortsString)
	viper.SetDefault(settings.KeyHiddenHostDiscovery, false)
	viper.SetDefault(settings.KeyHiddenHostPorts, "")
}

func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return viper.ConfigFileUsed()
}

// loadConfig loads the YAML configuration, falling back to defaults when no
// file is in use, and applies API address overrides from the environment.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := getConfigFilePath(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if addr := viper.GetString("api.listen_addr"); addr != "" {
		cfg.API.ListenAddr = addr
	}
	if port := viper.GetInt("api.port"); port != 0 {
		cfg.API.Port = port
	}
	return cfg, nil
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
		logConfig.AddSource = true
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Info("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
	}
}
