// vmc: host/guest companion coordination service for virtual machines.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "vmc",
		Short: "VM host/guest companion coordination service",
		Long: `vmc coordinates a fleet of guest VMs and their host: guests heartbeat
their hostname, addresses, and advertised port-forward rules to a server
running on the host, which maintains a machine registry, relays forwarded
TCP traffic into the right guest, and lets one-shot clients query the
registry or trigger clipboard/exec/notification actions on the host.

Run "vmc server" on the host and "vmc agent" inside each guest.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServerCmd())
	root.AddCommand(newAgentCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newGuestCommands()...)
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("vmc %s\n", Version)
		},
	}
}
