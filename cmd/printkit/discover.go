package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/geekxflood/printkit/discovery"
	"github.com/geekxflood/printkit/logging"
	"github.com/geekxflood/printkit/reasons"
	"github.com/geekxflood/printkit/traps"
)

const shutdownTimeout = 5 * time.Second

func newDiscoverCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find printers by broadcast and report their supplies",
		Long: `Discover broadcasts a request for hrDeviceType.1 to every configured
address, probes each agent that reports a printer and prints what it found.
Addresses come from snmp.address, the legacy snmp.conf or discovery.broadcast.`,
		Example: `  printkit discover
  printkit discover --format json --timeout 3s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scanner, err := a.newScanner(nil)
			if err != nil {
				return err
			}
			printers, err := scanner.Scan(cmd.Context(), a.settings.Targets)
			if err != nil {
				return err
			}
			return writePrinters(cmd.OutOrStdout(), format, printers)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, json")
	return cmd
}

func newPollCmd(a *app) *cobra.Command {
	var (
		format        string
		metricsListen string
		trapsListen   string
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll printers on an interval",
		Long: `Poll repeats discovery every discovery.interval, re-probing printers that
were already found, until interrupted. With metrics enabled the supply
levels are exported on /metrics. With traps enabled a printer is re-probed
as soon as it sends a trap.`,
		Example: `  printkit poll --metrics-listen :9163
  printkit poll --traps-listen :1162
  printkit poll --config /etc/printkit/printkit.yaml --format json`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationHotReload: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			interval, err := a.manager.GetDuration("discovery.interval", 5*time.Minute)
			if err != nil {
				return err
			}
			if metricsListen == "" {
				if enabled, _ := a.manager.GetBool("metrics.enabled", false); enabled {
					metricsListen, _ = a.manager.GetString("metrics.listen", ":9163")
				}
			}
			if trapsListen == "" {
				if enabled, _ := a.manager.GetBool("traps.enabled", false); enabled {
					trapsListen, _ = a.manager.GetString("traps.listen", traps.DefaultListen)
				}
			}

			reg := prometheus.NewRegistry()
			scanner, err := a.newScanner(reg)
			if err != nil {
				return err
			}

			var outMu sync.Mutex
			out := cmd.OutOrStdout()
			poller := discovery.NewPoller(scanner, a.settings.Targets, interval, func(printers []*discovery.Printer) {
				outMu.Lock()
				defer outMu.Unlock()
				if err := writePrinters(out, format, printers); err != nil {
					a.logger.Warn("failed to write printers", "error", err)
				}
			})

			a.manager.OnConfigChange(func(err error) {
				if err != nil {
					a.logger.Warn("configuration reload failed", "error", err)
					return
				}
				if level, err := a.manager.GetString("logging.level"); err == nil {
					_ = logging.SetLevel(level)
				}
				a.logger.Info("configuration reloaded")
			})

			var listener *traps.Listener
			if trapsListen != "" {
				listener, err = a.newTrapListener(trapsListen, reg, poller)
				if err != nil {
					return err
				}
				if err := listener.Start(cmd.Context()); err != nil {
					return err
				}
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return poller.Run(ctx)
			})
			if listener != nil {
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
					defer cancel()
					return listener.Stop(shutdownCtx)
				})
			}
			if metricsListen != "" {
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				srv := newMetricsServer(metricsListen, reg)
				g.Go(func() error {
					return listenAndServe(ctx, srv, metricsListen)
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				a.logger.Info("serving metrics", "listen", metricsListen)
			}

			a.logger.Info("polling printers", "targets", len(a.settings.Targets), "interval", interval)
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, json")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address (default metrics.listen when metrics.enabled)")
	cmd.Flags().StringVar(&trapsListen, "traps-listen", "", "receive traps on this UDP address (default traps.listen when traps.enabled)")
	return cmd
}

// newTrapListener returns a trap listener that re-probes the sending printer
// through poller.
func (a *app) newTrapListener(listen string, reg prometheus.Registerer, poller *discovery.Poller) (*traps.Listener, error) {
	community, err := a.manager.GetString("traps.community", "")
	if err != nil {
		return nil, err
	}
	if community == "" {
		community = a.settings.Community
	}
	workers, err := a.manager.GetInt("traps.workers", traps.DefaultWorkers)
	if err != nil {
		return nil, err
	}

	logger := logging.NewComponentLogger("traps", "listener")
	return traps.NewListener(traps.Options{
		Listen:     listen,
		Community:  community,
		Workers:    workers,
		Registerer: reg,
		Logger:     logger,
		Handler: func(ctx context.Context, t *traps.Trap) {
			logger.InfoContext(ctx, "trap received, refreshing printer", "trap", t.TrapOID.String())
			if _, err := poller.Refresh(ctx, t.Printer()); err != nil && ctx.Err() == nil {
				logger.WarnContext(ctx, "refresh failed", "error", err)
			}
		},
	}), nil
}

// newScanner builds a Scanner from the client settings and the reason rules
// of the configuration. A nil reg means no metrics.
func (a *app) newScanner(reg prometheus.Registerer) (*discovery.Scanner, error) {
	section, err := a.manager.GetMap("reasons")
	if err != nil {
		return nil, err
	}
	rules, err := reasons.ParseRules(section["rules"])
	if err != nil {
		return nil, fmt.Errorf("invalid reasons.rules: %w", err)
	}
	if len(rules) == 0 {
		rules = reasons.BuiltinRules()
	}
	engine, err := reasons.NewEngine(rules, logging.NewComponentLogger("reasons", "engine"))
	if err != nil {
		return nil, err
	}

	workers, err := a.manager.GetInt("discovery.workers", discovery.DefaultWorkers)
	if err != nil {
		return nil, err
	}

	var collector *discovery.Collector
	if reg != nil {
		collector = discovery.NewCollector(reg)
	}

	return discovery.NewScanner(discovery.Options{
		Community:   a.settings.Community,
		Timeout:     a.settings.Timeout,
		WalkTimeout: a.settings.WalkTimeout,
		MaxRunTime:  a.settings.MaxRunTime,
		Workers:     workers,
		Family:      a.settings.Family,
		Conn:        a.settings.Options,
		Reasons:     engine,
		Collector:   collector,
		Logger:      logging.NewComponentLogger("discovery", "scanner"),
	}), nil
}

type printerJSON struct {
	URI         string             `json:"uri"`
	Name        string             `json:"name,omitempty"`
	Make        string             `json:"make,omitempty"`
	Description string             `json:"description,omitempty"`
	Location    string             `json:"location,omitempty"`
	Status      string             `json:"status"`
	Reasons     []string           `json:"reasons,omitempty"`
	Supplies    []discovery.Supply `json:"supplies,omitempty"`
	LastSeen    time.Time          `json:"lastSeen"`
}

func writePrinters(w io.Writer, format string, printers []*discovery.Printer) error {
	switch format {
	case "json":
		out := make([]printerJSON, 0, len(printers))
		for _, p := range printers {
			out = append(out, printerJSON{
				URI:         p.URI(),
				Name:        p.Name,
				Make:        p.Make,
				Description: p.Description,
				Location:    p.Location,
				Status:      p.Status.String(),
				Reasons:     p.Reasons,
				Supplies:    p.Supplies,
				LastSeen:    p.LastSeen,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "URI\tMAKE\tLOCATION\tSTATUS\tSUPPLIES\tREASONS")
		for _, p := range printers {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.URI(), p.Make, p.Location, p.Status, supplySummary(p.Supplies), strings.Join(p.Reasons, ","))
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// supplySummary renders "Black Toner 5%, Waste Toner 50%".
func supplySummary(supplies []discovery.Supply) string {
	parts := make([]string, 0, len(supplies))
	for _, s := range supplies {
		if percent := s.Percent(); percent >= 0 {
			parts = append(parts, fmt.Sprintf("%s %d%%", s.Description, percent))
		} else {
			parts = append(parts, s.Description+" ?")
		}
	}
	return strings.Join(parts, ", ")
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}
