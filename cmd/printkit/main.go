// Command printkit walks, queries and discovers SNMP network printers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/geekxflood/printkit/config"
	"github.com/geekxflood/printkit/logging"
)

// annotationHotReload marks commands that watch the configuration file.
const annotationHotReload = "printkit/hot-reload"

// version is set at build time.
var version = "dev"

// defaultConfigPaths are tried in order when --config is not given.
var defaultConfigPaths = []string{
	"printkit.yaml",
	"printkit.yml",
	"/etc/printkit/printkit.yaml",
	"/etc/printkit/printkit.yml",
}

// app holds the global flags and what PersistentPreRunE builds from them.
type app struct {
	configPath string
	community  string
	timeout    time.Duration
	port       int
	debug      int

	manager  config.Manager
	logger   logging.Logger
	settings config.ClientSettings
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "printkit",
		Version: version,
		Short:   "SNMP toolkit for network printers",
		Long: `printkit speaks SNMPv1 to network printers: it walks and queries single
agents, discovers printers by broadcast and polls their supply levels.`,
		Example: `  # Walk the marker supplies table of one printer
  printkit walk 192.0.2.10 1.3.6.1.2.1.43.11.1.1

  # Discover printers on the local network
  printkit discover --config /etc/printkit/printkit.yaml

  # Serve a recorded printer for local testing
  printkit agent --tree testdata/printer.yaml --listen 127.0.0.1:1161`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file path")
	flags.StringVar(&a.community, "community", "", "SNMP community (default from configuration, snmp.conf or \"public\")")
	flags.DurationVar(&a.timeout, "timeout", 0, "per-request timeout (default from configuration)")
	flags.IntVar(&a.port, "port", 0, "agent UDP port (default from configuration)")
	flags.IntVarP(&a.debug, "debug", "d", 0, "debug level: 1 logs at debug level, 2 adds packet dumps")

	root.AddCommand(
		newWalkCmd(a),
		newGetCmd(a),
		newDiscoverCmd(a),
		newPollCmd(a),
		newAgentCmd(a),
	)
	return root
}

// setup loads the configuration, initializes logging and resolves the client
// settings with flag overrides applied.
func (a *app) setup(cmd *cobra.Command) error {
	configPath := a.configPath
	if configPath == "" {
		for _, path := range defaultConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	manager, err := config.NewManager(config.Options{
		ConfigPath:            configPath,
		EnableConfigHotReload: configPath != "" && cmd.Annotations[annotationHotReload] == "true",
		HotReloadContext:      cmd.Context(),
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.manager = manager

	logConfig := logging.DefaultConfig()
	section, err := manager.GetMap("logging")
	if err != nil {
		return err
	}
	if v, ok := section["level"].(string); ok {
		logConfig.Level = v
	}
	if v, ok := section["format"].(string); ok {
		logConfig.Format = v
	}
	if v, ok := section["output"].(string); ok {
		logConfig.Output = v
	}
	if v, ok := section["addSource"].(bool); ok {
		logConfig.AddSource = v
	}
	if a.debug > 0 {
		logConfig.Level = logging.LevelDebug
	}
	if err := logging.Init(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.logger = logging.NewComponentLogger("printkit", cmd.Name())

	if configPath != "" {
		a.logger.Debug("configuration loaded", "path", configPath)
	}

	settings, err := config.ClientOptions(manager, logging.NewComponentLogger("snmp", "transport"))
	if err != nil {
		return fmt.Errorf("invalid SNMP configuration: %w", err)
	}
	if a.community != "" {
		settings.Community = a.community
	}
	if a.timeout > 0 {
		settings.Timeout = a.timeout
	}
	if a.port > 0 {
		settings.Options.Port = a.port
	}
	if a.debug >= 2 {
		settings.Options.Dump = true
	}
	a.settings = settings
	return nil
}

func (a *app) close() error {
	var err error
	if a.manager != nil {
		err = a.manager.Close()
	}
	return errors.Join(err, logging.Shutdown())
}
