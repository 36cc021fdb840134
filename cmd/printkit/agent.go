package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geekxflood/printkit/logging"
	"github.com/geekxflood/printkit/snmp/snmptest"
)

func newAgentCmd(a *app) *cobra.Command {
	var (
		treeFile string
		listen   string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve a printer tree from a YAML file",
		Long: `Agent answers SNMPv1 GET and GET-NEXT requests from an OID table, so the
other commands can be tried without a printer. The tree file is a list of
oid/type/value objects:

  - oid: 1.3.6.1.2.1.25.3.2.1.2.1
    type: oid
    value: 1.3.6.1.2.1.25.3.1.5
  - oid: 1.3.6.1.2.1.43.11.1.1.9.1.1
    type: integer
    value: 40`,
		Example: `  printkit agent --tree printer.yaml --listen 127.0.0.1:1161
  printkit walk --port 1161 127.0.0.1 1.3.6.1.2.1.43`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(treeFile)
			if err != nil {
				return fmt.Errorf("failed to read tree: %w", err)
			}
			tree, err := snmptest.ParseTreeYAML(data)
			if err != nil {
				return err
			}

			agent := snmptest.NewAgent(listen, tree, logging.NewComponentLogger("snmptest", "agent"))
			if err := agent.Start(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("agent listening", "addr", agent.Addr().String(), "objects", tree.Len())
			fmt.Fprintln(cmd.OutOrStdout(), agent.Addr().String())

			<-cmd.Context().Done()
			return agent.Stop(context.WithoutCancel(cmd.Context()))
		},
	}
	cmd.Flags().StringVarP(&treeFile, "tree", "t", "", "YAML tree file")
	cmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:1161", "UDP listen address")
	_ = cmd.MarkFlagRequired("tree")
	return cmd
}
