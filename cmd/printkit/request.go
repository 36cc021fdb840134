package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/geekxflood/printkit/logging"
	"github.com/geekxflood/printkit/mibnames"
	"github.com/geekxflood/printkit/snmp"
)

func newWalkCmd(a *app) *cobra.Command {
	var numeric bool

	cmd := &cobra.Command{
		Use:   "walk <host> <oid>",
		Short: "Walk the subtree under an OID",
		Long: `Walk sends successive GetNextRequests to one agent and prints every
binding under the OID. A walk that stops early after returning bindings is
not an error.`,
		Example: `  printkit walk 192.0.2.10 1.3.6.1.2.1.43.11.1.1
  printkit walk --numeric printer.example.net .1.3.6.1.2.1.1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, prefix, err := a.parseRequest(ctx, args)
			if err != nil {
				return err
			}

			names, err := a.translator(numeric)
			if err != nil {
				return err
			}
			defer names.Close()

			conn, err := snmp.Open(ctx, a.settings.Family, a.settings.Options)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx = logging.WithPrinter(ctx, target.String())
			ctx = logging.WithWalkID(ctx, prefix.String())
			out := cmd.OutOrStdout()
			count, err := conn.Walk(ctx, target, a.settings.Community, prefix, a.settings.WalkTimeout, func(p *snmp.Packet) error {
				return printBinding(out, names, p)
			})
			if err != nil {
				return err
			}
			a.logger.DebugContext(ctx, "walk finished", "count", count)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&numeric, "numeric", "n", false, "print numeric OIDs")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var numeric bool

	cmd := &cobra.Command{
		Use:   "get <host> <oid>",
		Short: "Read one object",
		Example: `  printkit get 192.0.2.10 1.3.6.1.2.1.1.5.0
  printkit get --community private 192.0.2.10 1.3.6.1.2.1.25.3.5.1.1.1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, oid, err := a.parseRequest(ctx, args)
			if err != nil {
				return err
			}

			names, err := a.translator(numeric)
			if err != nil {
				return err
			}
			defer names.Close()

			conn, err := snmp.Open(ctx, a.settings.Family, a.settings.Options)
			if err != nil {
				return err
			}
			defer conn.Close()

			p, err := conn.Get(ctx, target, a.settings.Community, oid, a.settings.Timeout)
			if err != nil {
				return err
			}
			return printBinding(cmd.OutOrStdout(), names, p)
		},
	}
	cmd.Flags().BoolVarP(&numeric, "numeric", "n", false, "print numeric OIDs")
	return cmd
}

// parseRequest resolves the <host> <oid> arguments.
func (a *app) parseRequest(ctx context.Context, args []string) (netip.Addr, snmp.OID, error) {
	oid, err := snmp.ParseOID(args[1])
	if err != nil {
		return netip.Addr{}, nil, fmt.Errorf("invalid OID %q: %w", args[1], err)
	}

	if addr, err := netip.ParseAddr(args[0]); err == nil {
		return addr, oid, nil
	}

	network := "ip4"
	if a.settings.Family == "udp6" {
		network = "ip6"
	}
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, network, args[0])
	if err != nil {
		return netip.Addr{}, nil, fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, nil, fmt.Errorf("no %s address for %s", network, args[0])
	}
	return addrs[0].Unmap(), oid, nil
}

// translator returns a Translator loaded from mibs.path. With numeric set it
// carries no names at all.
func (a *app) translator(numeric bool) (mibnames.Translator, error) {
	if numeric {
		return numericNames{}, nil
	}

	cacheSize, err := a.manager.GetInt("mibs.cacheSize", 1024)
	if err != nil {
		return nil, err
	}
	dir, err := a.manager.GetString("mibs.path", "")
	if err != nil {
		return nil, err
	}

	t := mibnames.NewWithConfig(mibnames.Config{
		LazyLoading:  true,
		MaxCacheSize: cacheSize,
		Logger:       logging.NewComponentLogger("mibnames", "translator"),
	})
	if err := t.Init(dir); err != nil {
		return nil, fmt.Errorf("failed to load MIBs: %w", err)
	}
	return t, nil
}

// printBinding writes "name = TYPE: value".
func printBinding(w io.Writer, names mibnames.Translator, p *snmp.Packet) error {
	name, err := names.TranslateOID(p.ObjectName)
	if err != nil && !errors.Is(err, mibnames.ErrNotFound) {
		return err
	}
	if p.ObjectValue == nil {
		_, err = fmt.Fprintf(w, "%s = NULL\n", name)
		return err
	}
	_, err = fmt.Fprintf(w, "%s = %s: %s\n", name, p.ObjectValue.Tag(), p.ObjectValue)
	return err
}

// numericNames is a Translator that renders every OID as dotted decimal.
type numericNames struct{}

func (numericNames) Init(string) error { return nil }

func (numericNames) Translate(oid string) (string, error) {
	parsed, err := snmp.ParseOID(oid)
	if err != nil {
		return oid, err
	}
	return parsed.String(), nil
}

func (numericNames) TranslateOID(oid snmp.OID) (string, error) { return oid.String(), nil }

func (n numericNames) TranslateBatch(oids []string) (map[string]string, error) {
	out := make(map[string]string, len(oids))
	var errs []error
	for _, oid := range oids {
		name, err := n.Translate(oid)
		if err != nil {
			errs = append(errs, err)
		}
		out[oid] = name
	}
	return out, errors.Join(errs...)
}

func (numericNames) LoadMIB(string) error { return nil }

func (numericNames) GetStats() mibnames.Stats { return mibnames.Stats{} }

func (numericNames) Close() error { return nil }
