// Command coordinatord runs the NetSuite ERP assistant control plane: a
// semantic router dispatching to bounded specialist agents over a governed
// tool registry, backed by the changeset/sandbox-run/assertion-gate
// pipeline. All HTTP/session framing lives in the surrounding service
// layer (spec §1 non-goal); this binary exposes the turn contract directly
// over newline-delimited JSON on stdout for a `serve` loop, plus a couple
// of operator subcommands for single-turn `ask` runs and deploy-gate checks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "coordinatord",
		Short: "NetSuite ERP assistant coordinator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a coordinatord YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newAskCmd(&configPath))
	root.AddCommand(newDeployGateCmd(&configPath))
	return root
}
